package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

// maxUpdateAttempts bounds the optimistic retry loop in Update
const maxUpdateAttempts = 5

// Collection is a typed view over one named collection.
// Update calls on the same Collection are serialized.
type Collection[T any] struct {
	store  Store
	name   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCollection creates a typed collection over store
func NewCollection[T any](store Store, name string, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{
		store:  store,
		name:   name,
		logger: logger,
	}
}

// Name returns the collection name
func (c *Collection[T]) Name() string {
	return c.name
}

// Load returns every record in stored order. A missing or unparseable
// collection yields an empty slice; only I/O failures are returned as errors.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	items, _, err := c.load(ctx)
	return items, err
}

func (c *Collection[T]) load(ctx context.Context) ([]T, int64, error) {
	doc, err := c.store.Load(ctx, c.name)
	if err != nil {
		return nil, 0, err
	}

	items := []T{}
	if len(doc.Data) == 0 {
		return items, doc.Version, nil
	}

	if err := json.Unmarshal(doc.Data, &items); err != nil || items == nil {
		if err != nil {
			c.logger.Warn("Collection is unreadable, treating as empty",
				slog.String("collection", c.name),
				slog.String("error", err.Error()),
			)
		}
		return []T{}, doc.Version, nil
	}

	return items, doc.Version, nil
}

// Replace overwrites the whole collection
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := encode(items)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", c.name, err)
	}

	return c.store.Replace(ctx, c.name, data)
}

// Update runs a read-modify-write cycle. fn receives the current records and
// returns the new full collection; a conflicting concurrent write re-runs fn
// against fresh data. An error from fn aborts the update without writing.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		items, version, err := c.load(ctx)
		if err != nil {
			return err
		}

		updated, err := fn(items)
		if err != nil {
			return err
		}

		data, err := encode(updated)
		if err != nil {
			return fmt.Errorf("failed to encode collection %s: %w", c.name, err)
		}

		err = c.store.CompareAndReplace(ctx, c.name, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}

		c.logger.Warn("Collection changed during update, retrying",
			slog.String("collection", c.name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxUpdateAttempts),
		)
	}

	return fmt.Errorf("failed to update collection %s after %d attempts: %w", c.name, maxUpdateAttempts, ErrVersionConflict)
}

func encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.MarshalIndent(items, "", "  ")
}

// Collections groups the four collections of the service over one Store
type Collections struct {
	Users            *Collection[domain.User]
	TrackedCompanies *Collection[domain.TrackedCompany]
	Reviews          *Collection[domain.Review]
	JobLogs          *Collection[domain.JobRunLog]

	store Store
}

// NewCollections builds the typed collections. Share one instance per process
// so that Update calls on a collection are serialized.
func NewCollections(store Store, logger *slog.Logger) *Collections {
	return &Collections{
		Users:            NewCollection[domain.User](store, CollectionUsers, logger),
		TrackedCompanies: NewCollection[domain.TrackedCompany](store, CollectionTrackedCompanies, logger),
		Reviews:          NewCollection[domain.Review](store, CollectionReviews, logger),
		JobLogs:          NewCollection[domain.JobRunLog](store, CollectionJobLogs, logger),
		store:            store,
	}
}

// Close closes the underlying store
func (c *Collections) Close() error {
	return c.store.Close()
}
