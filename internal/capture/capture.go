package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/intervox-ai/intervox/pkg/provider/stt"
)

// ErrAlreadyRunning is returned by Start when the adapter is active.
var ErrAlreadyRunning = errors.New("capture: adapter already running")

const (
	defaultRestartBase = 500 * time.Millisecond
	defaultRestartMax  = 8 * time.Second
)

// Config tunes the Adapter.
type Config struct {
	// Sensitivity selects the noise-filter preset.
	Sensitivity Sensitivity

	// Stream is passed to the STT provider on every (re)start.
	Stream stt.StreamConfig

	// RestartBase/RestartMax bound the exponential backoff applied when the
	// stream fails repeatedly. Defaults: 500ms / 8s.
	RestartBase time.Duration
	RestartMax  time.Duration
}

// Hooks receives filtered transcripts. OnPartial may be nil; OnFinal must be
// set. Both are called from the adapter's goroutine.
type Hooks struct {
	// OnFinal receives final transcripts that passed the confidence floor.
	OnFinal func(text string)

	// OnPartial receives interim transcripts that passed noise filtering,
	// for live display.
	OnPartial func(text string)

	// OnSuppressed is called once per dropped transcript, for metrics.
	OnSuppressed func(interim bool)
}

// Adapter keeps a continuous recognition stream open against an STT provider,
// forwarding filtered transcripts to the hooks. The stream auto-restarts on
// end-of-stream while active, with exponential backoff on repeated errors.
type Adapter struct {
	provider stt.Provider
	cfg      Config
	hooks    Hooks

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an Adapter. hooks.OnFinal must be non-nil.
func New(provider stt.Provider, cfg Config, hooks Hooks) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("capture: provider must not be nil")
	}
	if hooks.OnFinal == nil {
		return nil, errors.New("capture: hooks.OnFinal must be set")
	}
	if cfg.RestartBase <= 0 {
		cfg.RestartBase = defaultRestartBase
	}
	if cfg.RestartMax <= 0 {
		cfg.RestartMax = defaultRestartMax
	}
	return &Adapter{provider: provider, cfg: cfg, hooks: hooks}, nil
}

// Start begins capturing. It returns immediately; the stream runs until Stop
// is called or ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.run(runCtx)
	return nil
}

// Stop shuts the stream down and waits for the capture goroutine to exit.
// Safe to call when not running.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the adapter is active.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// run owns the restart loop: open a stream, drain it, and reopen when it
// ends. Errors back off exponentially; a healthy stream resets the backoff.
func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)

	backoff := a.cfg.RestartBase
	for ctx.Err() == nil {
		handle, err := a.provider.StartStream(ctx, a.cfg.Stream)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("speech capture start failed, backing off",
				"error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = nextBackoff(backoff, a.cfg.RestartMax)
			continue
		}
		backoff = a.cfg.RestartBase

		a.drain(ctx, handle)
		handle.Close()

		if ctx.Err() == nil {
			slog.Debug("speech capture stream ended, restarting")
		}
	}
}

// drain forwards transcripts from one stream until it closes or ctx is done.
// Each stream gets a fresh filter so suppression streaks don't leak across
// restarts.
func (a *Adapter) drain(ctx context.Context, handle stt.SessionHandle) {
	filter := NewFilter(a.cfg.Sensitivity)
	partials, finals := handle.Partials(), handle.Finals()

	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if !filter.AcceptInterim(t) {
				a.suppressed(true)
				continue
			}
			if a.hooks.OnPartial != nil {
				a.hooks.OnPartial(t.Text)
			}
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if !filter.AcceptFinal(t) {
				a.suppressed(false)
				continue
			}
			a.hooks.OnFinal(t.Text)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Adapter) suppressed(interim bool) {
	if a.hooks.OnSuppressed != nil {
		a.hooks.OnSuppressed(interim)
	}
}

// nextBackoff doubles the wait up to the cap.
func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
