// Package queue carries commission jobs through redis with bounded retries
// and a dead-letter store.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrEmpty is returned by Pop when no job became ready before the timeout.
	ErrEmpty = errors.New("queue is empty")

	// ErrJobExpired is returned by Pop when the job state outlived its TTL.
	ErrJobExpired = errors.New("job state expired")

	// ErrLeaseExpired is the failure recorded for a job whose consumer never
	// settled it, typically because the worker died mid-job.
	ErrLeaseExpired = errors.New("lease expired before the job was settled")
)

// Message is the unit stored in the broker.
type Message struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"lastError,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Broker is the storage behind a Queue: a ready list, a delayed set ordered
// by due time, an in-flight set leased to consumers and per-message state.
type Broker interface {
	// Push stores msg and makes it ready immediately.
	Push(ctx context.Context, msg *Message) error

	// Pop blocks up to timeout for the next ready message and moves it to the
	// in-flight set, leased until leaseUntil.
	Pop(ctx context.Context, queue string, timeout time.Duration, leaseUntil time.Time) (*Message, error)

	// Delete drops the message state and its lease once it was handled.
	Delete(ctx context.Context, msg *Message) error

	// Defer stores msg, releases its lease and schedules it to become ready at runAt.
	Defer(ctx context.Context, msg *Message, runAt time.Time) error

	// Reclaim claims every in-flight message whose lease ran out at now and
	// returns it still in flight, for the caller to settle. In-flight messages
	// without a lease get one until leaseUntil. A message that cannot be
	// loaded is leased again and its error is returned along with the rest.
	Reclaim(ctx context.Context, queue string, now, leaseUntil time.Time) ([]*Message, error)

	// PromoteDue moves every delayed message due at now to the ready list.
	PromoteDue(ctx context.Context, queue string, now time.Time) (int, error)

	// Depth reports the ready and delayed backlog.
	Depth(ctx context.Context, queue string) (ready, delayed int64, err error)
}
