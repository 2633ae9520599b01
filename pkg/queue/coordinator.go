// Package queue runs uploaded images through a layout backend one at a time,
// in submission order.
package queue

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"
)

var (
	ErrClosed   = errors.New("queue closed")
	ErrNotFound = errors.New("record not found")
)

// Observer is called from the coordinator goroutine with every snapshot
// before readers can see it. It must not block or call back into the
// coordinator.
type Observer func(*types.Snapshot)

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Coordinator) {
		c.observer = observer
	}
}

// Coordinator owns the records of a session and the FIFO of jobs. All
// mutation happens on one goroutine; callers talk to it through messages
// and read immutable snapshots.
type Coordinator struct {
	client   client.LayoutClient
	logger   *slog.Logger
	observer Observer

	enqueueCh chan enqueueRequest
	retryCh   chan retryRequest

	snapshot atomic.Pointer[types.Snapshot]
	changed  atomic.Pointer[chan struct{}]

	ctx    context.Context
	cancel context.CancelFunc

	done chan struct{}
	jobs sync.WaitGroup

	closeOnce sync.Once
}

type enqueueRequest struct {
	uploads []client.Upload
	reply   chan []int
}

type retryRequest struct {
	index int
	reply chan error
}

type completion struct {
	index    int
	attempt  int
	result   *types.Result
	err      error
	duration time.Duration
}

// state is only touched by the coordinator goroutine
type state struct {
	records []types.Record
	fifo    []int
	busy    bool
	version uint64

	completions chan completion
}

// New starts a coordinator submitting jobs to c
func New(c client.LayoutClient, options ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Coordinator{
		client: c,
		logger: slog.Default(),

		enqueueCh: make(chan enqueueRequest),
		retryCh:   make(chan retryRequest),

		ctx:    ctx,
		cancel: cancel,

		done: make(chan struct{}),
	}

	for _, option := range options {
		option(q)
	}

	changed := make(chan struct{})
	q.changed.Store(&changed)
	q.snapshot.Store(&types.Snapshot{})

	go q.run()

	return q
}

// Enqueue appends one pending record per upload and queues them. It returns
// the indices of the new records.
func (q *Coordinator) Enqueue(ctx context.Context, uploads ...client.Upload) ([]int, error) {
	req := enqueueRequest{
		uploads: uploads,
		reply:   make(chan []int, 1),
	}

	select {
	case q.enqueueCh <- req:
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case indices := <-req.reply:
		return indices, nil
	case <-q.done:
		return nil, ErrClosed
	}
}

// Retry resets a record to pending, drops its result and queues it again
func (q *Coordinator) Retry(ctx context.Context, index int) error {
	req := retryRequest{
		index: index,
		reply: make(chan error, 1),
	}

	select {
	case q.retryCh <- req:
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-q.done:
		return ErrClosed
	}
}

// Snapshot returns the latest published state
func (q *Coordinator) Snapshot() *types.Snapshot {
	return q.snapshot.Load()
}

// Wait blocks until a snapshot newer than since is published
func (q *Coordinator) Wait(ctx context.Context, since uint64) (*types.Snapshot, error) {
	for {
		// load the channel first so a publish in between is not missed
		changed := *q.changed.Load()
		s := q.snapshot.Load()

		if s.Version > since {
			return s, nil
		}

		select {
		case <-changed:
		case <-q.done:
			return q.snapshot.Load(), ErrClosed
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// WaitFor blocks until a snapshot satisfies cond
func (q *Coordinator) WaitFor(ctx context.Context, cond func(*types.Snapshot) bool) (*types.Snapshot, error) {
	s := q.Snapshot()

	for !cond(s) {
		var err error

		if s, err = q.Wait(ctx, s.Version); err != nil {
			return s, err
		}
	}

	return s, nil
}

// WaitIdle blocks until no record is pending or loading and the FIFO is empty
func (q *Coordinator) WaitIdle(ctx context.Context) (*types.Snapshot, error) {
	return q.WaitFor(ctx, Idle)
}

// Idle reports whether the queue has nothing left to do
func (q *Coordinator) Idle() bool {
	return Idle(q.Snapshot())
}

// Idle reports whether no record of s is pending or loading and no job
// token is waiting
func Idle(s *types.Snapshot) bool {
	if s.Queued > 0 {
		return false
	}

	for _, r := range s.Records {
		if r.Status == types.StatusPending || r.Status == types.StatusLoading {
			return false
		}
	}

	return true
}

// Close cancels the running job, stops the coordinator and releases the
// records. It is safe to call more than once.
func (q *Coordinator) Close() error {
	q.closeOnce.Do(func() {
		q.cancel()
		<-q.done
		q.jobs.Wait()
	})

	return nil
}

func (q *Coordinator) run() {
	s := &state{
		completions: make(chan completion, 1),
	}

	defer q.stop(s)

	for {
		select {
		case <-q.ctx.Done():
			return

		case req := <-q.enqueueCh:
			req.reply <- q.enqueue(s, req.uploads)

		case req := <-q.retryCh:
			req.reply <- q.retry(s, req.index)

		case c := <-s.completions:
			q.complete(s, c)
		}

		q.drain(s)
	}
}

func (q *Coordinator) enqueue(s *state, uploads []client.Upload) []int {
	indices := make([]int, 0, len(uploads))
	now := time.Now()

	for _, u := range uploads {
		index := len(s.records)

		s.records = append(s.records, types.Record{
			Index:       index,
			Name:        u.Name,
			ContentType: u.ContentType,
			Source:      bytes.Clone(u.Data),
			Status:      types.StatusPending,
			Attempt:     1,
			UpdatedAt:   now,
		})

		s.fifo = append(s.fifo, index)
		indices = append(indices, index)
	}

	if len(indices) > 0 {
		q.publish(s)
	}

	return indices
}

func (q *Coordinator) retry(s *state, index int) error {
	if index < 0 || index >= len(s.records) {
		return ErrNotFound
	}

	r := &s.records[index]

	r.Status = types.StatusPending
	r.Result = nil
	r.Attempt++
	r.UpdatedAt = time.Now()

	s.fifo = append(s.fifo, index)

	q.logger.Info("retry queued", "index", index, "name", r.Name, "attempt", r.Attempt)

	q.publish(s)

	return nil
}

// drain starts the next job unless one is in flight. Tokens of records that
// are gone or already loading are dropped; every other token runs, so each
// retry adds a run at the tail.
func (q *Coordinator) drain(s *state) {
	for !s.busy && len(s.fifo) > 0 {
		index := s.fifo[0]
		s.fifo = s.fifo[1:]

		if index < 0 || index >= len(s.records) {
			continue
		}

		r := &s.records[index]

		if r.Status == types.StatusLoading {
			continue
		}

		r.Status = types.StatusLoading
		r.Result = nil
		r.UpdatedAt = time.Now()

		s.busy = true
		q.publish(s)

		q.start(s, *r)
	}
}

func (q *Coordinator) start(s *state, r types.Record) {
	upload := client.Upload{
		Name:        r.Name,
		ContentType: r.ContentType,
		Data:        r.Source,
	}

	q.logger.Debug("job started", "index", r.Index, "name", r.Name, "attempt", r.Attempt)

	q.jobs.Add(1)

	go func() {
		defer q.jobs.Done()

		timestamp := time.Now()
		result, err := q.client.DetectLayout(q.ctx, upload)

		c := completion{
			index:    r.Index,
			attempt:  r.Attempt,
			result:   result,
			err:      err,
			duration: time.Since(timestamp),
		}

		select {
		case s.completions <- c:
		case <-q.ctx.Done():
		}
	}()
}

func (q *Coordinator) complete(s *state, c completion) {
	s.busy = false

	r := &s.records[c.index]

	// the record was retried while this call was running; its queued token
	// starts a fresh call
	if r.Attempt != c.attempt || r.Status != types.StatusLoading {
		q.logger.Debug("stale result dropped", "index", c.index, "attempt", c.attempt)
		return
	}

	err := c.err

	if err == nil && c.result == nil {
		err = errors.New("empty result")
	}

	r.UpdatedAt = time.Now()

	if err != nil {
		r.Status = types.StatusError
		r.Result = &types.Result{Error: err.Error()}

		q.logger.Error("job failed", "index", c.index, "name", r.Name, "attempt", c.attempt, "duration", c.duration, "error", err)
	} else {
		r.Status = types.StatusDone
		r.Result = c.result

		q.logger.Info("job done", "index", c.index, "name", r.Name, "attempt", c.attempt, "duration", c.duration, "regions", len(c.result.Objects))
	}

	q.publish(s)
}

func (q *Coordinator) publish(s *state) {
	s.version++

	records := make([]types.Record, len(s.records))
	copy(records, s.records)

	snapshot := &types.Snapshot{
		Version: s.version,
		Records: records,
		Queued:  len(s.fifo),
	}

	if q.observer != nil {
		q.observer(snapshot)
	}

	// store before swapping the channel; see Wait
	q.snapshot.Store(snapshot)

	changed := make(chan struct{})
	old := q.changed.Swap(&changed)
	close(*old)
}

func (q *Coordinator) stop(s *state) {
	s.records = nil
	s.fifo = nil

	q.publish(s)

	close(q.done)
}
