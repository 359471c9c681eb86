package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
	"github.com/veranemoloko/dubbing-sync/internal/metrics"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Fetcher retrieves the current snapshot of a task from the remote service.
type Fetcher interface {
	FetchTask(ctx context.Context, taskID string) (*domain.Task, error)
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Clock          Clock
	Logger         *slog.Logger
}

type fetchState int

const (
	stateIdle fetchState = iota
	stateFetching
)

type entry struct {
	taskID string
	state  fetchState

	// dispatched is the last sequence number handed to a fetch, applied the last one applied.
	dispatched uint64
	applied    uint64
	// inflight is the sequence of the fetch that owns the polling loop, 0 when none.
	inflight  uint64
	flightKey string

	snapshot  *domain.Task
	lastErr   error
	updatedAt time.Time

	observers map[string]*Handle
	timer     Timer
	timerGen  uint64
}

func (e *entry) observation() Observation {
	return Observation{
		TaskID:    e.taskID,
		Task:      e.snapshot,
		Err:       e.lastErr,
		Seq:       e.applied,
		UpdatedAt: e.updatedAt,
	}
}

// Engine keeps task snapshots in sync with the remote service for as long as they are observed.
// Observed non-terminal tasks are refreshed PollInterval after the previous fetch completed;
// polling stops once a task is completed or failed.
type Engine struct {
	fetcher  Fetcher
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	flights singleflight.Group
	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	entries    map[string]*entry
	handles    map[string]*Handle
	nextFlight uint64
	closed     bool
}

// New creates an Engine that reads snapshots through fetcher.
func New(fetcher Fetcher, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		fetcher:  fetcher,
		clock:    opts.Clock,
		interval: opts.PollInterval,
		timeout:  opts.RequestTimeout,
		logger:   opts.Logger,
		baseCtx:  ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
		handles:  make(map[string]*Handle),
	}
}

// Subscribe registers interest in a task. The handle's first update is the cached state,
// which is a loading observation if the task was never fetched.
func (en *Engine) Subscribe(taskID string) (*Handle, error) {
	if taskID == "" {
		return nil, errpkg.ErrEmptyTaskID
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if en.closed {
		return nil, errpkg.ErrEngineClosed
	}

	e := en.entryLocked(taskID)
	h := &Handle{
		id:      uuid.NewString(),
		taskID:  taskID,
		updates: make(chan Observation, 1),
	}
	e.observers[h.id] = h
	en.handles[h.id] = h
	metrics.ActiveSubscriptions.Inc()

	// A cached non-terminal snapshot nobody is polling gets revalidated right away.
	if e.state == stateIdle && e.timer == nil && en.shouldPoll(e) {
		en.dispatch(e)
	}

	h.offer(e.observation())

	en.logger.Debug("subscribed",
		"task_id", taskID,
		"handle", h.id,
		"observers", len(e.observers),
	)
	return h, nil
}

// Current returns the latest state for the handle's task without blocking.
func (en *Engine) Current(h *Handle) (Observation, error) {
	en.mu.Lock()
	defer en.mu.Unlock()

	e, err := en.lookupLocked(h)
	if err != nil {
		return Observation{}, err
	}
	return e.observation(), nil
}

// RefreshNow fetches the task out of band and waits for the result. If a fetch is already
// outstanding the call joins it instead of issuing another request. The polling timer is
// restarted from the completion of the fetch.
func (en *Engine) RefreshNow(ctx context.Context, h *Handle) (Observation, error) {
	en.mu.Lock()
	e, err := en.lookupLocked(h)
	if err != nil {
		en.mu.Unlock()
		return Observation{}, err
	}

	var ch <-chan singleflight.Result
	if e.state == stateFetching {
		ch = en.flights.DoChan(e.flightKey, en.fetchFunc(e, e.inflight))
		metrics.RefreshesCoalesced.Inc()
		en.logger.Debug("refresh joined in-flight fetch", "task_id", e.taskID, "seq", e.inflight)
	} else {
		ch = en.dispatch(e)
	}
	en.mu.Unlock()

	select {
	case res := <-ch:
		obs, _ := res.Val.(Observation)
		return obs, res.Err
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	}
}

// Unsubscribe releases a handle and closes its update channel. Releasing the last observer
// of a task stops its polling and abandons any outstanding fetch; the snapshot is kept.
// Releasing an already released handle is a no-op.
func (en *Engine) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if en.handles[h.id] != h {
		return
	}
	en.releaseLocked(h)

	e := en.entries[h.taskID]
	if e == nil {
		return
	}
	delete(e.observers, h.id)
	if len(e.observers) > 0 {
		return
	}

	en.stopTimer(e)
	if e.state == stateFetching {
		e.state = stateIdle
		e.inflight = 0
		e.flightKey = ""
	}
	en.logger.Debug("last observer released", "task_id", e.taskID)
}

// Snapshot returns the cached snapshot of a task, if any.
func (en *Engine) Snapshot(taskID string) (*domain.Task, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()

	e, ok := en.entries[taskID]
	if !ok || e.snapshot == nil {
		return nil, false
	}
	return e.snapshot, true
}

// Prime seeds the cache with a snapshot obtained elsewhere, e.g. the response to a create.
// It never overwrites a snapshot that came from a fetch.
func (en *Engine) Prime(task *domain.Task) {
	if task == nil || task.ID == "" {
		return
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if en.closed {
		return
	}

	e := en.entryLocked(task.ID)
	if e.snapshot != nil || e.applied > 0 {
		return
	}
	e.snapshot = task
	e.updatedAt = en.clock.Now()
	en.notify(e)
}

// Forget drops everything known about a task and releases its handles.
func (en *Engine) Forget(taskID string) {
	en.mu.Lock()
	defer en.mu.Unlock()

	en.forgetLocked(taskID)
}

// Close stops all polling, releases every handle and cancels outstanding fetches.
func (en *Engine) Close() {
	en.mu.Lock()
	if en.closed {
		en.mu.Unlock()
		return
	}
	en.closed = true
	for id := range en.entries {
		en.forgetLocked(id)
	}
	en.mu.Unlock()

	en.cancel()
}

func (en *Engine) forgetLocked(taskID string) {
	e, ok := en.entries[taskID]
	if !ok {
		return
	}
	en.stopTimer(e)
	for _, h := range e.observers {
		en.releaseLocked(h)
	}
	delete(en.entries, taskID)
}

func (en *Engine) releaseLocked(h *Handle) {
	delete(en.handles, h.id)
	close(h.updates)
	metrics.ActiveSubscriptions.Dec()
}

func (en *Engine) entryLocked(taskID string) *entry {
	e, ok := en.entries[taskID]
	if !ok {
		e = &entry{
			taskID:    taskID,
			observers: make(map[string]*Handle),
		}
		en.entries[taskID] = e
	}
	return e
}

func (en *Engine) lookupLocked(h *Handle) (*entry, error) {
	if en.closed {
		return nil, errpkg.ErrEngineClosed
	}
	if h == nil || en.handles[h.id] != h {
		return nil, errpkg.ErrUnknownHandle
	}
	e, ok := en.entries[h.taskID]
	if !ok {
		return nil, errpkg.ErrUnknownHandle
	}
	return e, nil
}

// shouldPoll: observed, and either never fetched or not yet terminal.
func (en *Engine) shouldPoll(e *entry) bool {
	if len(e.observers) == 0 {
		return false
	}
	return e.snapshot == nil || !e.snapshot.Status.IsTerminal()
}

// dispatch starts a new fetch for e and makes it the owner of the polling loop.
func (en *Engine) dispatch(e *entry) <-chan singleflight.Result {
	en.stopTimer(e)

	e.dispatched++
	en.nextFlight++
	e.inflight = e.dispatched
	e.flightKey = strconv.FormatUint(en.nextFlight, 10)
	e.state = stateFetching

	return en.flights.DoChan(e.flightKey, en.fetchFunc(e, e.inflight))
}

func (en *Engine) fetchFunc(e *entry, seq uint64) func() (any, error) {
	return func() (any, error) {
		ctx, cancel := context.WithTimeout(en.baseCtx, en.timeout)
		defer cancel()

		start := time.Now()
		task, err := en.fetcher.FetchTask(ctx, e.taskID)
		metrics.FetchDuration.Observe(time.Since(start).Seconds())

		var pe *errpkg.ParseError
		switch {
		case err == nil:
			metrics.FetchesTotal.WithLabelValues(metrics.ResultOK).Inc()
		case errors.As(err, &pe):
			metrics.FetchesTotal.WithLabelValues(metrics.ResultParseError).Inc()
		default:
			metrics.FetchesTotal.WithLabelValues(metrics.ResultError).Inc()
		}

		return en.complete(e, seq, task, err), err
	}
}

// complete applies the result of fetch seq unless it has been superseded.
func (en *Engine) complete(e *entry, seq uint64, task *domain.Task, fetchErr error) Observation {
	en.mu.Lock()
	defer en.mu.Unlock()

	owner := e.inflight == seq
	if owner {
		e.state = stateIdle
		e.inflight = 0
		e.flightKey = ""
	}

	if en.closed || en.entries[e.taskID] != e || len(e.observers) == 0 {
		metrics.DiscardedResponses.Inc()
		en.logger.Debug("fetch result discarded", "task_id", e.taskID, "seq", seq)
		return e.observation()
	}
	if seq <= e.applied {
		metrics.StaleResponses.Inc()
		en.logger.Debug("stale fetch result dropped",
			"task_id", e.taskID,
			"seq", seq,
			"applied", e.applied,
		)
		return e.observation()
	}

	e.applied = seq
	e.updatedAt = en.clock.Now()
	if fetchErr != nil {
		e.lastErr = fetchErr
		en.logger.Warn("task refresh failed",
			"task_id", e.taskID,
			"seq", seq,
			"error", fetchErr,
		)
	} else {
		prev := e.snapshot
		e.snapshot = task
		e.lastErr = nil
		if task.Status.IsTerminal() && (prev == nil || prev.Status != task.Status) {
			en.logger.Info("task reached terminal status",
				"task_id", e.taskID,
				"status", task.Status,
			)
		}
	}

	if owner && en.shouldPoll(e) {
		en.schedule(e)
	}
	en.notify(e)

	return e.observation()
}

func (en *Engine) schedule(e *entry) {
	en.stopTimer(e)
	gen := e.timerGen
	e.timer = en.clock.AfterFunc(en.interval, func() {
		en.tick(e, gen)
	})
}

// stopTimer also invalidates a timer callback that already fired but has not run yet.
func (en *Engine) stopTimer(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (en *Engine) tick(e *entry, gen uint64) {
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.closed || en.entries[e.taskID] != e || gen != e.timerGen {
		return
	}
	e.timer = nil

	if e.state == stateFetching {
		metrics.TicksDropped.Inc()
		en.logger.Debug("tick dropped, fetch outstanding", "task_id", e.taskID)
		return
	}
	if !en.shouldPoll(e) {
		return
	}
	en.dispatch(e)
}

func (en *Engine) notify(e *entry) {
	obs := e.observation()
	for _, h := range e.observers {
		h.offer(obs)
	}
}
