// Package bootstrap builds the clients shared by the service entrypoints from
// the loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/config"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/recordstore"
	"github.com/cuongbtq/review-monitor/shared/logger"
	"github.com/cuongbtq/review-monitor/shared/postgresql"
	"github.com/cuongbtq/review-monitor/shared/rabbitmq"
	"github.com/cuongbtq/review-monitor/shared/reviewapi"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// Storage is the opened record store and, for the postgres backend, the
// database client behind it
type Storage struct {
	Collections *recordstore.Collections
	DB          *postgresql.Client
}

// HealthCheck pings the database when there is one
func (s *Storage) HealthCheck(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.HealthCheck(ctx)
}

// Close closes the record store and the database client
func (s *Storage) Close() error {
	err := s.Collections.Close()
	if s.DB != nil {
		if dbErr := s.DB.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// OpenStorage opens the backend selected by cfg.Storage
func OpenStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	opts := recordstore.Options{
		Backend:    cfg.Storage.Backend,
		DataDir:    cfg.Storage.DataDir,
		SQLitePath: cfg.Storage.SQLitePath,
	}

	var db *postgresql.Client
	if cfg.Storage.Backend == config.StorageBackendPostgres {
		client, err := postgresql.NewClient(ctx, postgresConfig(&cfg.Database), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db = client
		opts.Postgres = client
	}

	store, err := recordstore.Open(ctx, opts, logger)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	logger.Info("Record store opened",
		slog.String("backend", cfg.Storage.Backend),
	)

	return &Storage{
		Collections: recordstore.NewCollections(store, logger),
		DB:          db,
	}, nil
}

// InitRabbitMQ connects to the trigger queue, or returns nil when it is disabled
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ disabled")
		return nil, nil
	}

	client, err := rabbitmq.NewClient(rabbitMQConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	return client, nil
}

// InitProvider creates the review directory client
func InitProvider(cfg *config.ProviderConfig, logger *slog.Logger) *reviewapi.Client {
	if cfg.APIKey == "" {
		logger.Warn("Provider API key is not set",
			slog.String("env", config.EnvProviderAPIKey),
		)
	}

	return reviewapi.NewClient(&reviewapi.Config{
		BaseURL: cfg.BaseURL,
		Host:    cfg.Host,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, logger)
}

// SeedDefaultUser stores the configured default user, or updates its token
// when the configured one changed
func SeedDefaultUser(ctx context.Context, store *storage.Storage, cfg *config.AuthConfig, logger *slog.Logger) error {
	seed := cfg.DefaultUser
	if seed.Username == "" {
		return nil
	}

	result, err := store.EnsureUser(ctx, domain.User{
		Username: seed.Username,
		Email:    seed.Email,
		APIToken: seed.Token,
	})
	if err != nil {
		return fmt.Errorf("failed to seed default user: %w", err)
	}

	switch result {
	case storage.UserCreated:
		logger.Info("Default user created",
			slog.String("username", seed.Username),
		)
	case storage.UserTokenUpdated:
		logger.Info("Default user token updated",
			slog.String("username", seed.Username),
		)
	}

	return nil
}

func postgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

func rabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange,
		ExchangeType:       cfg.ExchangeType,
		QueueName:          cfg.Queue,
		RoutingKey:         cfg.RoutingKey,
		Durable:            cfg.Durable,
		PrefetchCount:      cfg.PrefetchCount,
		RetryAttempts:      cfg.RetryAttempts,
		RetryInterval:      cfg.RetryInterval,
		Heartbeat:          cfg.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}
