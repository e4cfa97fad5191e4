package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/telemetry"
)

type fakeEnv struct {
	mu        sync.Mutex
	locations []string
	scrolls   int
}

func (e *fakeEnv) UpdateLocation(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locations = append(e.locations, path)
}

func (e *fakeEnv) ScrollToMain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrolls++
}

func (e *fakeEnv) snapshot() ([]string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.locations...), e.scrolls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runController(t *testing.T, cfg ControllerConfig) *Controller {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	c := NewController(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return c
}

func waitIdle(t *testing.T, c *Controller) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := c.WaitIdle(ctx)
	require.NoError(t, err)
	return s
}

func TestController_SearchSuccess(t *testing.T) {
	// Given: a backend returning two passages
	env := &fakeEnv{}
	var gotQuery string
	c := runController(t, ControllerConfig{
		Environment: env,
		Greeting:    greeting(),
		Searcher: SearcherFunc(func(_ context.Context, q string) ([]Passage, error) {
			gotQuery = q
			return passages("Refunds within 30 days.", "Contact support."), nil
		}),
	})

	// When: a query is submitted
	require.NoError(t, c.Dispatch(context.Background(), SubmitLine{Text: "refund policy"}))
	s := waitIdle(t, c)

	// Then: the transcript holds the query and both passages
	assert.Equal(t, "refund policy", gotQuery)
	require.Len(t, s.Messages, 5)
	assert.Equal(t, Message{ID: 2, Text: "refund policy", Origin: OriginUser}, s.Messages[2])
	assert.Equal(t, "Contact support.", s.Messages[4].Text)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Err)

	locations, scrolls := env.snapshot()
	assert.Equal(t, []string{"/refund+policy"}, locations)
	assert.Equal(t, 2, scrolls)

	snap := c.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.OutcomeCounts[telemetry.OutcomeOK])
}

func TestController_KeystrokesThenSubmit(t *testing.T) {
	c := runController(t, ControllerConfig{
		Searcher: SearcherFunc(func(context.Context, string) ([]Passage, error) {
			return nil, nil
		}),
	})

	ctx := context.Background()
	for _, ch := range "tax" {
		require.NoError(t, c.Dispatch(ctx, KeyTyped{Rune: ch}))
	}
	require.NoError(t, c.Dispatch(ctx, Backspace{}))

	s := waitIdle(t, c)
	assert.Equal(t, Input{Mode: InputComposing, Buffer: "ta"}, s.Input)

	require.NoError(t, c.Dispatch(ctx, Submit{}))
	s = waitIdle(t, c)
	assert.Equal(t, "ta", s.Query)
	assert.True(t, s.ShowEmptyResults())
}

func TestController_RateLimited(t *testing.T) {
	// Given: a backend answering 429
	c := runController(t, ControllerConfig{
		Searcher: SearcherFunc(func(context.Context, string) ([]Passage, error) {
			return nil, dcerrors.New(dcerrors.ErrCodeRateLimited, "status 429", nil)
		}),
	})

	// When: a query is submitted
	require.NoError(t, c.Dispatch(context.Background(), SubmitLine{Text: "refund policy"}))
	s := waitIdle(t, c)

	// Then: the quota message is shown
	require.NotNil(t, s.Err)
	assert.Equal(t, ErrorRateLimited, s.Err.Kind)
	assert.Equal(t, RateLimitedMessage, s.Err.Message)
	assert.Equal(t, int64(1), c.Metrics().Snapshot().OutcomeCounts[telemetry.OutcomeRateLimited])
}

func TestController_DropsStaleResponse(t *testing.T) {
	// Given: a backend where the first query answers only after the second
	release := make(chan struct{})
	c := runController(t, ControllerConfig{
		Policy: DropStale,
		Searcher: SearcherFunc(func(ctx context.Context, q string) ([]Passage, error) {
			if q == "one" {
				select {
				case <-release:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return passages("answer one"), nil
			}
			return passages("answer two"), nil
		}),
	})

	ctx := context.Background()
	require.NoError(t, c.Dispatch(ctx, SubmitLine{Text: "one"}))
	require.NoError(t, c.Dispatch(ctx, SubmitLine{Text: "two"}))
	require.Eventually(t, func() bool {
		return c.Snapshot().NumMatches == 1
	}, 2*time.Second, 5*time.Millisecond)

	// When: the first response arrives late
	close(release)
	s := waitIdle(t, c)

	// Then: it is discarded
	assert.Equal(t, passages("answer two"), s.Results)
	require.Len(t, s.Messages, 3)
	assert.Equal(t, "answer two", s.Messages[2].Text)
}

func TestController_SubscribeReceivesSnapshots(t *testing.T) {
	c := NewController(ControllerConfig{
		Logger:   quietLogger(),
		Greeting: greeting(),
		Searcher: SearcherFunc(func(context.Context, string) ([]Passage, error) {
			return passages("p"), nil
		}),
	})

	var mu sync.Mutex
	var seen []State
	c.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	// Then: the current state is delivered on subscription
	mu.Lock()
	require.Len(t, seen, 1)
	assert.Len(t, seen[0].Messages, 2)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	require.NoError(t, c.Dispatch(ctx, SubmitLine{Text: "q"}))
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.True(t, seen[1].Loading)
	assert.False(t, seen[2].Loading)
	assert.Len(t, seen[2].Messages, 4)
}

func TestController_ObserversSeeLoadingBeforeSearch(t *testing.T) {
	// Given: an observer that takes a moment to render the loading state
	var rendered atomic.Bool
	var renderedFirst atomic.Bool
	c := NewController(ControllerConfig{
		Logger: quietLogger(),
		Searcher: SearcherFunc(func(context.Context, string) ([]Passage, error) {
			renderedFirst.Store(rendered.Load())
			return passages("p"), nil
		}),
	})
	c.Subscribe(func(s State) {
		if s.Loading {
			time.Sleep(50 * time.Microsecond)
			rendered.Store(true)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	// When: a query is submitted
	require.NoError(t, c.Dispatch(ctx, SubmitLine{Text: "q"}))
	waitIdle(t, c)

	// Then: the search started only after the loading state was rendered
	assert.True(t, renderedFirst.Load())
}

func TestController_FailedDispatchIsNotAwaited(t *testing.T) {
	// Given: a controller whose queue is already full
	c := NewController(ControllerConfig{Logger: quietLogger(), QueueSize: 1})
	require.NoError(t, c.Dispatch(context.Background(), KeyTyped{Rune: 'a'}))

	// When: a dispatch gives up on a canceled context
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Dispatch(canceled, KeyTyped{Rune: 'b'}), context.Canceled)

	// Then: only the queued event is waited for
	c.mu.Lock()
	assert.Equal(t, uint64(1), c.dispatched)
	c.mu.Unlock()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = c.Run(ctx) }()

	s := waitIdle(t, c)
	assert.Equal(t, "a", s.Input.Buffer)
}

func TestController_CancelAbortsSearch(t *testing.T) {
	// Given: a backend that never answers
	started := make(chan struct{})
	c := NewController(ControllerConfig{
		Logger: quietLogger(),
		Searcher: SearcherFunc(func(ctx context.Context, _ string) ([]Passage, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.NoError(t, c.Dispatch(ctx, SubmitLine{Text: "slow"}))
	<-started

	// When: the session is canceled
	cancel()

	// Then: Run returns and the request is recorded as canceled
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, int64(1), c.Metrics().Snapshot().OutcomeCounts[telemetry.OutcomeCanceled])

	assert.ErrorIs(t, c.Dispatch(context.Background(), Submit{}), ErrStopped)
	_, err := c.WaitIdle(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestController_RunTwice(t *testing.T) {
	c := runController(t, ControllerConfig{})
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.running
	}, time.Second, time.Millisecond)

	assert.Error(t, c.Run(context.Background()))
}

func TestController_NoSearcher(t *testing.T) {
	c := runController(t, ControllerConfig{})

	require.NoError(t, c.Dispatch(context.Background(), SubmitLine{Text: "q"}))
	s := waitIdle(t, c)

	require.NotNil(t, s.Err)
	assert.Equal(t, ErrorGeneric, s.Err.Kind)
}

func TestController_SessionID(t *testing.T) {
	c := NewController(ControllerConfig{SessionID: "fixed"})
	assert.Equal(t, "fixed", c.SessionID())

	generated := NewController(ControllerConfig{})
	assert.Len(t, generated.SessionID(), 36)
}
