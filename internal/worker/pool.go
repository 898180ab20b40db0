package worker

import (
	"context"
	"sync"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

type fetchResult struct {
	reviews []domain.Review
	err     error
}

// fetchAll fetches reviews for every company with at most i.concurrency calls
// in flight. results[n] belongs to companies[n] whatever the completion order.
// Companies not reached before ctx is done keep the context error.
func (i *Ingestor) fetchAll(ctx context.Context, companies []domain.TrackedCompany) []fetchResult {
	results := make([]fetchResult, len(companies))
	if len(companies) == 0 {
		return results
	}

	workers := min(i.concurrency, len(companies))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				reviews, err := i.source.FetchReviews(ctx, companies[idx].Domain)
				results[idx] = fetchResult{reviews: reviews, err: err}
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(companies); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case indexes <- next:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	for ; next < len(companies); next++ {
		results[next] = fetchResult{err: ctx.Err()}
	}

	return results
}
