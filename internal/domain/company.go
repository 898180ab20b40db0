package domain

import "time"

// Company is a search result from the review directory
type Company struct {
	Domain             string   `json:"domain"`
	Name               string   `json:"name"`
	Website            string   `json:"website"`
	TrustScore         *float64 `json:"trustscore"`
	TrustScoreCategory *float64 `json:"trustscore_category"`
	NumberOfReviews    *int     `json:"number_of_reviews"`
}

// TrackedCompany is a (domain, user) pair a user has opted to monitor.
// The owner is serialized as "user" to stay compatible with existing collection files.
type TrackedCompany struct {
	Domain  string    `json:"domain"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
	Owner   string    `json:"user"`
}
