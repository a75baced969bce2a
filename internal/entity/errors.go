package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStaleState = errors.New("stale state")
	ErrReferenced = errors.New("still referenced")
)

// AdapterError is a failure of an external scoring, prediction or scraping
// collaborator. Permanent errors (bad input, 4xx) are never retried.
type AdapterError struct {
	Adapter   string
	Op        string
	Permanent bool
	Err       error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func NewPermanentAdapterError(adapter, op string, err error) *AdapterError {
	return &AdapterError{Adapter: adapter, Op: op, Permanent: true, Err: err}
}

// SendError is a per-recipient delivery failure (bounce, rejected address,
// per-message rate limit). The campaign keeps going.
type SendError struct {
	Recipient string
	Reason    string
	Err       error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send to %s failed: %s: %v", e.Recipient, e.Reason, e.Err)
	}
	return fmt.Sprintf("send to %s failed: %s", e.Recipient, e.Reason)
}

func (e *SendError) Unwrap() error { return e.Err }

// SystemicError is a provider-wide outage. It fails the whole campaign.
type SystemicError struct {
	Provider string
	Err      error
}

func (e *SystemicError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *SystemicError) Unwrap() error { return e.Err }

func IsPermanent(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Permanent
}
