package domain

import "errors"

var (
	// ErrCompanyAlreadyTracked is returned when a user tracks the same domain twice
	ErrCompanyAlreadyTracked = errors.New("company already tracked")

	// ErrCompanyNotTracked is returned when a user reads reviews for a domain they do not track
	ErrCompanyNotTracked = errors.New("company not tracked by user")

	// ErrJobNotFound is returned when a run log cannot be found
	ErrJobNotFound = errors.New("job not found")

	// ErrRunInProgress is returned when an ingestion run is requested while another is still running
	ErrRunInProgress = errors.New("review fetch already in progress")

	// ErrUnauthorized is returned when a credential does not resolve to a user
	ErrUnauthorized = errors.New("invalid authentication credentials")

	// ErrUserDisabled is returned for a known but disabled user
	ErrUserDisabled = errors.New("inactive user")

	// ErrInvalidPayload is returned when a trigger message is malformed
	ErrInvalidPayload = errors.New("invalid job payload")
)

// StorageError marks a record store failure. It aborts an ingestion run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage error: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a storage failure of op
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
