package reviewapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

// epoch is used when the provider omits review_time
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// timestamps without an offset are read as UTC
var reviewTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type providerReview struct {
	ReviewID     *string      `json:"review_id"`
	ReviewTitle  *string      `json:"review_title"`
	ReviewText   *string      `json:"review_text"`
	ReviewRating *json.Number `json:"review_rating"`
	ReviewTime   *string      `json:"review_time"`
	ConsumerName *string      `json:"consumer_name"`
}

type providerCompany struct {
	Domain      string   `json:"domain"`
	Name        string   `json:"name"`
	Website     string   `json:"website"`
	TrustScore  *float64 `json:"trust_score"`
	ReviewCount *int     `json:"review_count"`
}

func (pc providerCompany) toDomain() domain.Company {
	return domain.Company{
		Domain:             pc.Domain,
		Name:               pc.Name,
		Website:            pc.Website,
		TrustScore:         pc.TrustScore,
		TrustScoreCategory: pc.TrustScore,
		NumberOfReviews:    pc.ReviewCount,
	}
}

// parseReview maps one provider entry onto the local review shape
func parseReview(raw json.RawMessage, companyDomain string) (domain.Review, error) {
	var pr providerReview
	if err := json.Unmarshal(raw, &pr); err != nil {
		return domain.Review{}, fmt.Errorf("invalid review entry: %w", err)
	}

	if pr.ReviewID == nil || *pr.ReviewID == "" {
		return domain.Review{}, errors.New("review_id is missing")
	}

	rating, err := parseRating(pr.ReviewRating)
	if err != nil {
		return domain.Review{}, err
	}

	date := epoch
	if pr.ReviewTime != nil {
		date, err = ParseReviewTime(*pr.ReviewTime)
		if err != nil {
			return domain.Review{}, err
		}
	}

	return domain.Review{
		ID:            *pr.ReviewID,
		CompanyDomain: companyDomain,
		Title:         deref(pr.ReviewTitle),
		Content:       deref(pr.ReviewText),
		Rating:        rating,
		Date:          date,
		Author:        deref(pr.ConsumerName),
	}, nil
}

// ParseReviewTime reads an ISO-8601 timestamp; a trailing Z means UTC
func ParseReviewTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "Z") {
		value = strings.TrimSuffix(value, "Z") + "+00:00"
	}

	for _, layout := range reviewTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid review_time %q", value)
}

func parseRating(n *json.Number) (int, error) {
	if n == nil || *n == "" {
		return 0, nil
	}

	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}

	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid review_rating %q", n.String())
	}

	return int(f), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
