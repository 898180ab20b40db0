package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/dto"
	"github.com/cuongbtq/review-monitor/internal/api/handler"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/gin-gonic/gin"
)

// UserResolver maps a bearer token to a user
type UserResolver interface {
	FindUserByToken(ctx context.Context, token string) (*domain.User, error)
}

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("query", c.Request.URL.RawQuery),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		if user := handler.CurrentUser(c); user != nil {
			attrs = append(attrs, slog.String("user", user.Username))
		}

		logger.Info("HTTP Request", attrs...)

		for _, e := range c.Errors {
			logger.Error("Request error", slog.String("error", e.Error()))
		}
	}
}

// AuthMiddleware requires "Authorization: Bearer <token>" naming an enabled user
func AuthMiddleware(users UserResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, _ := strings.Cut(c.GetHeader("Authorization"), " ")
		if !strings.EqualFold(scheme, "Bearer") {
			token = ""
		}

		user, err := users.FindUserByToken(c.Request.Context(), strings.TrimSpace(token))
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid authentication credentials"})
			return
		case err != nil:
			logger.Error("Failed to resolve user", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to authenticate"})
			return
		case user.Disabled:
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Inactive user"})
			return
		}

		c.Set(handler.ContextUserKey, user)
		c.Next()
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
