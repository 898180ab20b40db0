package domain

import "time"

// Review is a single stored review. ID is unique per CompanyDomain only.
type Review struct {
	ID            string    `json:"id"`
	CompanyDomain string    `json:"company_domain"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Rating        int       `json:"rating"`
	Date          time.Time `json:"date"`
	Author        string    `json:"author"`
}

// ReviewIDsForDomain returns the set of review ids already stored for domain
func ReviewIDsForDomain(reviews []Review, companyDomain string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, r := range reviews {
		if r.CompanyDomain == companyDomain {
			ids[r.ID] = struct{}{}
		}
	}
	return ids
}

// FilterNewReviews drops every fetched review whose id is already in seen and
// records the survivors in seen, so duplicates inside one batch are dropped too.
func FilterNewReviews(fetched []Review, seen map[string]struct{}) []Review {
	fresh := make([]Review, 0, len(fetched))
	for _, r := range fetched {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}
