package queue

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"clubinex/config"
	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBroker struct {
	mu       sync.Mutex
	ready    []string
	delayed  map[string]time.Time
	jobs     map[string]Message
	inflight map[string]bool
	leases   map[string]time.Time
}

func newMemBroker() *memBroker {
	return &memBroker{
		delayed:  make(map[string]time.Time),
		jobs:     make(map[string]Message),
		inflight: make(map[string]bool),
		leases:   make(map[string]time.Time),
	}
}

func (b *memBroker) Push(_ context.Context, msg *Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.jobs[msg.ID] = *msg
	b.ready = append(b.ready, msg.ID)

	return nil
}

func (b *memBroker) Pop(_ context.Context, _ string, _ time.Duration, leaseUntil time.Time) (*Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ready) == 0 {
		return nil, ErrEmpty
	}
	id := b.ready[0]
	b.ready = b.ready[1:]

	msg, ok := b.jobs[id]
	if !ok {
		return nil, errors.Wrapf(ErrJobExpired, "job %s", id)
	}
	b.inflight[id] = true
	b.leases[id] = leaseUntil

	return &msg, nil
}

func (b *memBroker) Delete(_ context.Context, msg *Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.jobs, msg.ID)
	b.settle(msg.ID)

	return nil
}

func (b *memBroker) Defer(_ context.Context, msg *Message, runAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.jobs[msg.ID] = *msg
	b.delayed[msg.ID] = runAt
	b.settle(msg.ID)

	return nil
}

func (b *memBroker) Reclaim(_ context.Context, _ string, now, leaseUntil time.Time) ([]*Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expired := make([]string, 0)
	for id := range b.inflight {
		at, leased := b.leases[id]
		if !leased {
			b.leases[id] = leaseUntil

			continue
		}
		if !at.After(now) {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)

	msgs := make([]*Message, 0, len(expired))
	for _, id := range expired {
		delete(b.leases, id)
		msg, ok := b.jobs[id]
		if !ok {
			delete(b.inflight, id)

			continue
		}
		msgs = append(msgs, &msg)
	}

	return msgs, nil
}

func (b *memBroker) settle(id string) {
	delete(b.inflight, id)
	delete(b.leases, id)
}

func (b *memBroker) PromoteDue(_ context.Context, _ string, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	due := make([]string, 0)
	for id, at := range b.delayed {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	for _, id := range due {
		delete(b.delayed, id)
		b.ready = append(b.ready, id)
	}

	return len(due), nil
}

func (b *memBroker) Depth(_ context.Context, _ string) (ready, delayed int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return int64(len(b.ready)), int64(len(b.delayed)), nil
}

type memFailedJobs struct {
	mu        sync.Mutex
	jobs      []*entity.FailedJob
	createErr error
}

func (r *memFailedJobs) Create(_ context.Context, job *entity.FailedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	r.jobs = append(r.jobs, job)

	return nil
}

func (r *memFailedJobs) FindByID(_ context.Context, id uuid.UUID) (*entity.FailedJob, error) {
	for _, job := range r.jobs {
		if job.ID == id {
			return job, nil
		}
	}

	return nil, repository.ErrFailedJobNotFound
}

func (r *memFailedJobs) List(_ context.Context, _, _ int) ([]*entity.FailedJob, error) {
	return r.jobs, nil
}

func (r *memFailedJobs) CountPending(_ context.Context) (int64, error) {
	return int64(len(r.jobs)), nil
}

func (r *memFailedJobs) MarkRetried(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type queueFixtures struct {
	queue      *Queue
	broker     *memBroker
	failedJobs *memFailedJobs
	clock      *stepClock
}

func createTestQueue(maxRetries int) queueFixtures {
	cfg := &config.Config{
		Queue: &config.QueueConfig{
			Name:        "commission",
			MaxRetries:  &maxRetries,
			BaseBackoff: time.Second,
			MaxBackoff:  10 * time.Second,
			PollTimeout: time.Millisecond,

			VisibilityTimeout: time.Minute,
		},
	}
	broker := newMemBroker()
	failedJobs := &memFailedJobs{}
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	q := New(Params{
		Config:     cfg,
		Broker:     broker,
		FailedJobs: failedJobs,
		Clock:      clock,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	q.jitter = func(d time.Duration) time.Duration { return d }

	return queueFixtures{queue: q, broker: broker, failedJobs: failedJobs, clock: clock}
}

func enqueueJob(t *testing.T, q *Queue, txID string) *entity.CommissionJob {
	t.Helper()

	job := &entity.CommissionJob{
		JobID:         uuid.NewString(),
		UserID:        uuid.New(),
		TransactionID: txID,
		Amount:        1000,
	}
	require.NoError(t, q.Enqueue(context.Background(), job.JobID, job.IdempotencyKey(), job))

	return job
}

func TestQueue_ReceiveAndComplete(t *testing.T) {
	fx := createTestQueue(3)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-1")

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, job.JobID, msg.ID)
	assert.Equal(t, "tx-1", msg.Key)

	decoded, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, job.UserID, decoded.UserID)
	assert.Equal(t, int64(1000), decoded.Amount)

	assert.Contains(t, fx.broker.inflight, msg.ID)
	assert.Equal(t, fx.clock.Now().Add(time.Minute), fx.broker.leases[msg.ID])

	require.NoError(t, fx.queue.Complete(ctx, msg))
	assert.Empty(t, fx.broker.jobs)
	assert.Empty(t, fx.broker.inflight)
	assert.Empty(t, fx.broker.leases)

	msg, err = fx.queue.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestQueue_FailRetriesWithBackoffThenDeadLetters(t *testing.T) {
	fx := createTestQueue(2)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-2")
	cause := errors.New("connection reset")

	for attempt := 1; attempt <= 2; attempt++ {
		msg, err := fx.queue.Receive(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg, "attempt %d", attempt)

		require.NoError(t, fx.queue.Fail(ctx, msg, cause, false))
		assert.Equal(t, fx.clock.Now().Add(fx.queue.Backoff(attempt)), fx.broker.delayed[job.JobID])

		// Not due yet.
		promoted, err := fx.queue.PromoteDue(ctx)
		require.NoError(t, err)
		assert.Zero(t, promoted)

		fx.clock.advance(fx.queue.Backoff(attempt))
		promoted, err = fx.queue.PromoteDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)
	}

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, fx.queue.Fail(ctx, msg, cause, false))

	require.Len(t, fx.failedJobs.jobs, 1)
	dead := fx.failedJobs.jobs[0]
	assert.Equal(t, job.JobID, dead.JobID)
	assert.Equal(t, "tx-2", dead.IdempotencyKey)
	assert.Equal(t, 3, dead.Attempts)
	assert.Equal(t, "connection reset", dead.LastError)
	assert.Empty(t, fx.broker.jobs)
}

func TestQueue_PermanentFailureDeadLettersImmediately(t *testing.T) {
	fx := createTestQueue(5)
	ctx := context.Background()
	enqueueJob(t, fx.queue, "tx-3")

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.queue.Fail(ctx, msg, errors.New("user not found"), true))

	require.Len(t, fx.failedJobs.jobs, 1)
	assert.Equal(t, 1, fx.failedJobs.jobs[0].Attempts)
	assert.Empty(t, fx.broker.delayed)
}

func TestQueue_DeadLetterStoreFailureKeepsJob(t *testing.T) {
	fx := createTestQueue(0)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-4")
	fx.failedJobs.createErr = errors.New("database down")

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	err = fx.queue.Fail(ctx, msg, errors.New("boom"), false)
	require.Error(t, err)

	assert.Contains(t, fx.broker.jobs, job.JobID)
	assert.Contains(t, fx.broker.delayed, job.JobID)
}

func TestQueue_Backoff(t *testing.T) {
	fx := createTestQueue(10)

	assert.Equal(t, time.Second, fx.queue.Backoff(1))
	assert.Equal(t, 2*time.Second, fx.queue.Backoff(2))
	assert.Equal(t, 8*time.Second, fx.queue.Backoff(4))
	assert.Equal(t, 10*time.Second, fx.queue.Backoff(5))
	assert.Equal(t, 10*time.Second, fx.queue.Backoff(50))
}

func TestEqualJitter(t *testing.T) {
	for range 100 {
		d := equalJitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.Less(t, d, 10*time.Second)
	}
}

func TestQueue_ReceiveSkipsExpiredState(t *testing.T) {
	fx := createTestQueue(1)
	ctx := context.Background()
	fx.broker.ready = append(fx.broker.ready, "gone")

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestQueue_Depth(t *testing.T) {
	fx := createTestQueue(3)
	ctx := context.Background()
	enqueueJob(t, fx.queue, "tx-5")
	enqueueJob(t, fx.queue, "tx-6")

	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.queue.Fail(ctx, msg, errors.New("timeout"), false))

	ready, delayed, err := fx.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ready)
	assert.Equal(t, int64(1), delayed)
}

func TestQueue_UnsettledJobIsRedelivered(t *testing.T) {
	fx := createTestQueue(3)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-7")

	// The consumer takes the job and dies without settling it.
	msg, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)

	reclaimed, err := fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, reclaimed, "lease still running")

	fx.clock.advance(time.Minute)
	reclaimed, err = fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	assert.Empty(t, fx.broker.inflight)
	assert.Empty(t, fx.broker.leases)
	require.Contains(t, fx.broker.delayed, job.JobID)
	stored := fx.broker.jobs[job.JobID]
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, ErrLeaseExpired.Error(), stored.LastError)

	fx.clock.advance(fx.queue.Backoff(1))
	promoted, err := fx.queue.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	again, err := fx.queue.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.JobID, again.ID)
	assert.Equal(t, 1, again.Attempts)

	// Reclaiming a job that was settled in time is a no-op.
	require.NoError(t, fx.queue.Complete(ctx, again))
	fx.clock.advance(time.Hour)
	reclaimed, err = fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
	assert.Empty(t, fx.failedJobs.jobs)
}

func TestQueue_ExpiredLeaseWithoutRetriesDeadLetters(t *testing.T) {
	fx := createTestQueue(0)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-8")

	_, err := fx.queue.Receive(ctx)
	require.NoError(t, err)

	fx.clock.advance(2 * time.Minute)
	reclaimed, err := fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	require.Len(t, fx.failedJobs.jobs, 1)
	assert.Equal(t, job.JobID, fx.failedJobs.jobs[0].JobID)
	assert.Equal(t, ErrLeaseExpired.Error(), fx.failedJobs.jobs[0].LastError)
	assert.Empty(t, fx.broker.jobs)
	assert.Empty(t, fx.broker.delayed)
}

func TestQueue_InFlightJobWithoutLeaseIsLeasedThenReclaimed(t *testing.T) {
	fx := createTestQueue(3)
	ctx := context.Background()
	job := enqueueJob(t, fx.queue, "tx-9")

	// A crash between taking the job and writing its lease.
	fx.broker.ready = nil
	fx.broker.inflight[job.JobID] = true

	reclaimed, err := fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
	assert.Equal(t, fx.clock.Now().Add(time.Minute), fx.broker.leases[job.JobID])

	fx.clock.advance(time.Minute)
	reclaimed, err = fx.queue.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)
	assert.Contains(t, fx.broker.delayed, job.JobID)
}
