package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/telemetry"
)

// ErrStopped is returned by Dispatch and WaitIdle once Run has returned.
var ErrStopped = errors.New("session controller stopped")

// DefaultQueueSize is the event queue capacity used when none is configured.
const DefaultQueueSize = 64

// Searcher runs one search against the backend.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Passage, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]Passage, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]Passage, error) {
	return f(ctx, query)
}

// Environment receives the location and scroll effects.
// Both methods are called from the controller loop and must not block.
type Environment interface {
	UpdateLocation(path string)
	ScrollToMain()
}

type nopEnvironment struct{}

func (nopEnvironment) UpdateLocation(string) {}
func (nopEnvironment) ScrollToMain()         {}

// Observer is called with every state produced by the controller.
type Observer func(State)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Searcher    Searcher
	Environment Environment // optional
	Metrics     *telemetry.QueryMetrics
	Logger      *slog.Logger
	Policy      StalePolicy
	Greeting    []Message
	SessionID   string // generated when empty
	QueueSize   int
}

type envelope struct {
	ev       Event
	internal bool
}

// Controller owns the session state. Every transition happens on the
// goroutine running Run; other goroutines only enqueue events.
type Controller struct {
	reducer  Reducer
	searcher Searcher
	env      Environment
	metrics  *telemetry.QueryMetrics
	logger   *slog.Logger
	id       string

	events chan envelope
	done   chan struct{}

	mu         sync.Mutex
	state      State
	observers  []Observer
	dispatched uint64
	processed  uint64
	inflight   int
	changed    chan struct{}
	running    bool

	wg sync.WaitGroup
}

// NewController creates a controller seeded with cfg.Greeting.
func NewController(cfg ControllerConfig) *Controller {
	env := cfg.Environment
	if env == nil {
		env = nopEnvironment{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewQueryMetrics()
	}
	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Controller{
		reducer:  Reducer{Policy: cfg.Policy},
		searcher: cfg.Searcher,
		env:      env,
		metrics:  metrics,
		logger:   logger.With(slog.String("session_id", id)),
		id:       id,
		events:   make(chan envelope, size),
		done:     make(chan struct{}),
		state:    NewState(cfg.Greeting),
		changed:  make(chan struct{}),
	}
}

// SessionID returns the id attached to every log line of this session.
func (c *Controller) SessionID() string {
	return c.id
}

// Metrics returns the session's query statistics.
func (c *Controller) Metrics() *telemetry.QueryMetrics {
	return c.metrics
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers obs and immediately calls it with the current state.
func (c *Controller) Subscribe(obs Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, obs)
	s := c.state
	c.mu.Unlock()

	obs(s)
}

// Dispatch enqueues ev for the controller loop. It blocks while the queue
// is full. An event counts towards WaitIdle once it is queued.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.events <- envelope{ev: ev}:
		c.mu.Lock()
		c.dispatched++
		c.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// WaitIdle blocks until every event dispatched before the call has been
// processed and no search is outstanding, then returns the state.
func (c *Controller) WaitIdle(ctx context.Context) (State, error) {
	c.mu.Lock()
	target := c.dispatched
	c.mu.Unlock()

	for {
		c.mu.Lock()
		idle := c.processed >= target && c.inflight == 0
		s := c.state
		ch := c.changed
		c.mu.Unlock()

		if idle {
			return s, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		case <-c.done:
			return c.Snapshot(), ErrStopped
		}
	}
}

// Run processes events until ctx is canceled. Outstanding searches are
// canceled and awaited before Run returns. Run may be called only once.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("session controller already running")
	}
	c.running = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.wg.Wait()
		close(c.done)
		c.logSummary()
	}()

	c.logger.Info("session_started",
		slog.Int("greeting_messages", len(c.Snapshot().Messages)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-c.events:
			c.handle(runCtx, env)
		}
	}
}

func (c *Controller) handle(ctx context.Context, env envelope) {
	next, effects := c.reducer.Reduce(c.Snapshot(), env.ev)

	c.mu.Lock()
	c.state = next
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	// Observers see the new state before any effect runs, so a search
	// never starts ahead of its loading snapshot.
	for _, obs := range observers {
		obs(next)
	}

	for _, eff := range effects {
		c.perform(ctx, eff)
	}

	c.mu.Lock()
	if env.internal {
		c.inflight--
	} else {
		c.processed++
	}
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

func (c *Controller) perform(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case IssueSearch:
		c.startSearch(ctx, eff)
	case UpdateLocation:
		c.env.UpdateLocation(eff.Path)
	case ScrollToMain:
		c.env.ScrollToMain()
	case ReportFailure:
		attrs := []any{slog.Uint64("request_id", eff.RequestID)}
		for _, a := range dcerrors.LogAttrs(eff.Err) {
			attrs = append(attrs, a)
		}
		c.logger.Warn("search_failed", attrs...)
	case ReportStale:
		c.logger.Debug("stale_response_dropped",
			slog.Uint64("request_id", eff.RequestID),
			slog.Uint64("latest_request_id", eff.Latest))
	}
}

func (c *Controller) startSearch(ctx context.Context, req IssueSearch) {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	c.logger.Info("search_started",
		slog.Uint64("request_id", req.RequestID),
		slog.String("query", req.Query))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		start := time.Now()
		passages, err := c.search(ctx, req.Query)

		c.record(req, start, len(passages), err, ctx.Err() != nil)

		var ev Event
		if err != nil {
			ev = SearchFailed{RequestID: req.RequestID, Err: err}
		} else {
			ev = SearchSucceeded{RequestID: req.RequestID, Passages: passages}
		}

		select {
		case c.events <- envelope{ev: ev, internal: true}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) search(ctx context.Context, query string) ([]Passage, error) {
	if c.searcher == nil {
		return nil, dcerrors.InternalError("no searcher configured", nil)
	}
	return c.searcher.Search(ctx, query)
}

func (c *Controller) record(req IssueSearch, start time.Time, results int, err error, canceled bool) {
	latency := time.Since(start)
	outcome := telemetry.OutcomeOK
	switch {
	case canceled:
		outcome = telemetry.OutcomeCanceled
	case dcerrors.IsRateLimited(err):
		outcome = telemetry.OutcomeRateLimited
	case err != nil:
		outcome = telemetry.OutcomeError
	}

	c.metrics.Record(telemetry.QueryEvent{
		Query:       req.Query,
		Outcome:     outcome,
		ResultCount: results,
		Latency:     latency,
		Timestamp:   start,
	})

	if err == nil {
		c.logger.Info("search_completed",
			slog.Uint64("request_id", req.RequestID),
			slog.Int("results", results),
			slog.Duration("latency", latency))
	}
}

func (c *Controller) logSummary() {
	snap := c.metrics.Snapshot()
	c.logger.Info("session_ended",
		slog.Int64("queries", snap.TotalQueries),
		slog.Int64("ok", snap.OutcomeCounts[telemetry.OutcomeOK]),
		slog.Int64("rate_limited", snap.OutcomeCounts[telemetry.OutcomeRateLimited]),
		slog.Int64("errors", snap.OutcomeCounts[telemetry.OutcomeError]),
		slog.Int64("zero_results", snap.ZeroResultCount))
}
