// Package app wires all Intervox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the console loop plus the optional HTTP sidecar,
// and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithAssessor,
// WithHistoryStore, WithInput/WithOutput, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/intervox-ai/intervox/internal/assess"
	"github.com/intervox-ai/intervox/internal/capture"
	"github.com/intervox-ai/intervox/internal/config"
	"github.com/intervox-ai/intervox/internal/health"
	"github.com/intervox-ai/intervox/internal/history"
	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/observe"
	"github.com/intervox-ai/intervox/internal/prefs"
	"github.com/intervox-ai/intervox/internal/resilience"
	"github.com/intervox-ai/intervox/internal/voice"
	"github.com/intervox-ai/intervox/pkg/provider/llm"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLMPrimary   llm.Provider
	LLMSecondary llm.Provider
	STT          stt.Provider
	TTS          tts.Provider
}

// eventBuffer caps how many undelivered machine events the render loop may
// fall behind by before new ones are dropped.
const eventBuffer = 64

// App owns all subsystem lifetimes and orchestrates one interview at a time.
type App struct {
	cfg       *config.Config
	providers *Providers

	assessor interview.Assessor
	client   *assess.Client // nil when running local-only
	speaker  *timedSpeaker
	capture  *capture.Adapter
	store    history.Store
	prefsDB  *prefs.Store
	metrics  *observe.Metrics

	// machine is swapped on retake; access through currentMachine.
	machineMu sync.Mutex
	machine   *interview.Machine

	in   io.Reader
	out  io.Writer
	sink voice.AudioSink

	events chan interview.Event

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAssessor injects an assessor instead of building one from the providers.
func WithAssessor(a interview.Assessor) Option {
	return func(app *App) { app.assessor = a }
}

// WithHistoryStore injects an outcome store instead of connecting from config.
func WithHistoryStore(s history.Store) Option {
	return func(app *App) { app.store = s }
}

// WithInput sets the reader for the console loop. Default: os.Stdin.
func WithInput(r io.Reader) Option {
	return func(app *App) { app.in = r }
}

// WithOutput sets the writer for all user-facing text. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(app *App) { app.out = w }
}

// WithAudioSink sets the playback sink for synthesised speech. Without it,
// audio is discarded (the interview still runs fully as text).
func WithAudioSink(sink voice.AudioSink) Option {
	return func(app *App) { app.sink = sink }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		in:        os.Stdin,
		out:       os.Stdout,
		events:    make(chan interview.Event, eventBuffer),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Assessment client ─────────────────────────────────────────────
	a.initAssessor()

	// ── 2. Preferences ───────────────────────────────────────────────────
	loadedPrefs, err := a.initPrefs()
	if err != nil {
		return nil, fmt.Errorf("app: init prefs: %w", err)
	}

	// ── 3. Speech output ─────────────────────────────────────────────────
	if err := a.initSpeaker(loadedPrefs); err != nil {
		return nil, fmt.Errorf("app: init speaker: %w", err)
	}

	// ── 4. Speech capture ────────────────────────────────────────────────
	if err := a.initCapture(loadedPrefs); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	// ── 5. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 6. State machine ─────────────────────────────────────────────────
	a.machine = a.newMachine()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initAssessor builds the failover chain, or falls back to the local tier
// when no LLM provider is configured.
func (a *App) initAssessor() {
	if a.assessor != nil {
		return
	}
	if a.providers.LLMPrimary == nil {
		slog.Info("no LLM provider configured, running on the local question bank")
		a.assessor = assess.LocalAssessor{}
		return
	}

	var opts []assess.Option
	if a.providers.LLMSecondary != nil {
		opts = append(opts, assess.WithSecondary(a.cfg.Providers.LLMSecondary.Name, a.providers.LLMSecondary))
	}
	a.client = assess.New(
		a.providers.LLMPrimary,
		a.cfg.Providers.LLMPrimary.Name,
		resilience.BreakerConfig{},
		opts...,
	)
	a.assessor = &meteredAssessor{next: a.client, metrics: a.metrics}
}

// initPrefs loads the persisted preferences file, if one is configured.
func (a *App) initPrefs() (prefs.Preferences, error) {
	if a.cfg.Prefs.Path == "" {
		return prefs.Preferences{}, nil
	}
	store, err := prefs.NewStore(a.cfg.Prefs.Path)
	if err != nil {
		return prefs.Preferences{}, err
	}
	a.prefsDB = store
	p, err := store.Load()
	if err != nil {
		return prefs.Preferences{}, err
	}
	return p, nil
}

// initSpeaker builds the speech output adapter. Persisted preferences win
// over the config file for voice selection.
func (a *App) initSpeaker(p prefs.Preferences) error {
	if a.providers.TTS == nil {
		return nil
	}

	v := tts.Voice{
		ID:       a.cfg.Voice.VoiceID,
		Name:     a.cfg.Voice.Name,
		Provider: a.cfg.Providers.TTS.Name,
		Pitch:    a.cfg.Voice.PitchShift,
		Rate:     a.cfg.Voice.SpeedFactor,
	}
	if p.VoiceID != "" {
		v.ID = p.VoiceID
		v.Name = p.VoiceName
		if p.Rate != 0 {
			v.Rate = p.Rate
		}
		if p.Pitch != 0 {
			v.Pitch = p.Pitch
		}
	}

	sink := a.sink
	if sink == nil {
		// No playback device wired; synthesis output is dropped so timing and
		// cancellation behave the same with or without audio hardware.
		sink = func([]byte) error { return nil }
	}

	sp, err := voice.NewSpeaker(a.providers.TTS, sink, voice.Config{Voice: v})
	if err != nil {
		return err
	}
	a.speaker = &timedSpeaker{Speaker: sp, metrics: a.metrics}
	return nil
}

// initCapture builds the speech capture adapter feeding the state machine.
func (a *App) initCapture(p prefs.Preferences) error {
	if a.providers.STT == nil {
		return nil
	}

	sensitivity := a.cfg.Capture.Sensitivity
	if p.Sensitivity != "" {
		sensitivity = p.Sensitivity
	}
	sampleRate := a.cfg.Capture.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	adapter, err := capture.New(a.providers.STT, capture.Config{
		Sensitivity: capture.Sensitivity(sensitivity),
		Stream: stt.StreamConfig{
			SampleRate: sampleRate,
			Channels:   1,
			Language:   a.cfg.Capture.Language,
		},
	}, capture.Hooks{
		OnFinal: func(text string) {
			a.printf("you (voice)> %s\n", text)
			if err := a.currentMachine().HandleInput(text); err != nil && !errors.Is(err, interview.ErrWrongPhase) {
				slog.Warn("voice input rejected", "error", err)
			}
		},
		OnPartial: func(text string) {
			a.printf("\r… %s", text)
		},
		OnSuppressed: func(interim bool) {
			a.metrics.RecordSuppressed(context.Background(), interim)
		},
	})
	if err != nil {
		return err
	}
	a.capture = adapter
	return nil
}

// initHistory connects the outcome store when a DSN is configured.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil || a.cfg.History.PostgresDSN == "" {
		return nil
	}
	store, pool, err := history.Connect(ctx, a.cfg.History.PostgresDSN)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	slog.Info("interview history store connected")
	return nil
}

// newMachine builds a Machine wired to this App's assessor, speaker, and
// event channel, and counts it as an active session.
func (a *App) newMachine() *interview.Machine {
	cfg := interview.Config{
		MinAnswerChars:  a.cfg.Interview.MinAnswerChars,
		LoadingTimeout:  a.cfg.Interview.LoadingTimeout.Std(),
		FeedbackTimeout: a.cfg.Interview.FeedbackTimeout.Std(),
		WaitingInterval: a.cfg.Interview.WaitingInterval.Std(),
		FallbackQuestions: func(topic string, count int) []string {
			return assess.FallbackQuestions(topic, count, nil)
		},
		FallbackFeedback: assess.FallbackFeedback,
	}
	if a.speaker != nil {
		cfg.Speaker = a.speaker
	}

	m := interview.New(a.assessor, cfg)
	m.Subscribe(interview.ObserverFunc(a.enqueue))
	a.metrics.ActiveSessions.Add(context.Background(), 1)
	return m
}

// enqueue hands a machine event to the render loop. Called under the
// machine's lock, so it never blocks: a full buffer drops the event.
func (a *App) enqueue(e interview.Event) {
	select {
	case a.events <- e:
	default:
		slog.Warn("event buffer full, dropping event", "type", e.Type)
	}
}

func (a *App) currentMachine() *interview.Machine {
	a.machineMu.Lock()
	defer a.machineMu.Unlock()
	return a.machine
}

func (a *App) swapMachine(m *interview.Machine) {
	a.machineMu.Lock()
	a.machine = m
	a.machineMu.Unlock()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the interview and blocks until ctx is cancelled, the input
// stream ends, or the user quits.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.capture != nil {
		if err := a.capture.Start(ctx); err != nil {
			return fmt.Errorf("app: start capture: %w", err)
		}
	}

	if a.cfg.Server.ListenAddr != "" {
		g.Go(func() error { return a.serveHTTP(ctx) })
	}
	g.Go(func() error { return a.renderLoop(ctx) })
	g.Go(func() error { return a.consoleLoop(ctx) })

	a.currentMachine().Start()

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// serveHTTP runs the metrics/health sidecar until ctx is done.
func (a *App) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	checkers := []health.Checker{}
	if a.client != nil {
		checkers = append(checkers, health.BreakerChecker("providers", a.client.ProviderStates))
	}
	health.New(checkers...).Register(mux)

	srv := &http.Server{Addr: a.cfg.Server.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http sidecar listening", "addr", a.cfg.Server.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http sidecar: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// saveOutcome persists the finished session in the background.
func (a *App) saveOutcome(m *interview.Machine) {
	if a.store == nil {
		return
	}
	snap := m.Snapshot()
	outcome, err := history.OutcomeFromSession(&snap)
	if err != nil {
		slog.Warn("cannot build interview outcome", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.store.SaveOutcome(ctx, outcome); err != nil {
		slog.Warn("failed to persist interview outcome", "error", err)
		return
	}
	slog.Info("interview outcome saved", "session", snap.ID, "rating", outcome.Rating)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears subsystems down in order: capture, speech, the session, then
// registered closers. Safe to call more than once.
func (a *App) Shutdown(_ context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.capture != nil {
			a.capture.Stop()
		}
		if a.speaker != nil {
			a.speaker.Stop()
		}
		a.currentMachine().End()

		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// ─── Metrics decorators ──────────────────────────────────────────────────────

// meteredAssessor wraps the assessment client and records per-operation
// latency and tier attribution.
type meteredAssessor struct {
	next    interview.Assessor
	metrics *observe.Metrics
}

var _ interview.Assessor = (*meteredAssessor)(nil)

func (m *meteredAssessor) GenerateQuestions(ctx context.Context, topic string, level interview.Level, count int) ([]string, string, error) {
	start := time.Now()
	qs, tier, err := m.next.GenerateQuestions(ctx, topic, level, count)
	m.metrics.RecordAssess(ctx, "generate_questions", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return qs, tier, err
}

func (m *meteredAssessor) ReplaceQuestion(ctx context.Context, topic string, level interview.Level, avoid []string) (string, string, error) {
	start := time.Now()
	q, tier, err := m.next.ReplaceQuestion(ctx, topic, level, avoid)
	m.metrics.RecordAssess(ctx, "replace_question", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return q, tier, err
}

func (m *meteredAssessor) CheckAnswerQuality(ctx context.Context, question, answer string) (bool, string, error) {
	start := time.Now()
	ok, tier, err := m.next.CheckAnswerQuality(ctx, question, answer)
	m.metrics.RecordAssess(ctx, "check_quality", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return ok, tier, err
}

func (m *meteredAssessor) CheckCorrectness(ctx context.Context, question, answer string) (bool, string, error) {
	start := time.Now()
	ok, tier, err := m.next.CheckCorrectness(ctx, question, answer)
	m.metrics.RecordAssess(ctx, "check_correctness", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return ok, tier, err
}

func (m *meteredAssessor) Evaluate(ctx context.Context, question, answer string, correct bool) (string, string, error) {
	start := time.Now()
	critique, tier, err := m.next.Evaluate(ctx, question, answer, correct)
	m.metrics.RecordAssess(ctx, "evaluate", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return critique, tier, err
}

func (m *meteredAssessor) GenerateFeedback(ctx context.Context, transcript []interview.QA) (interview.Feedback, string, error) {
	start := time.Now()
	fb, tier, err := m.next.GenerateFeedback(ctx, transcript)
	m.metrics.RecordAssess(ctx, "generate_feedback", tierOrNone(tier), time.Since(start).Seconds(), err != nil)
	return fb, tier, err
}

func tierOrNone(tier string) string {
	if tier == "" {
		return "none"
	}
	return tier
}

// timedSpeaker records synthesis duration per utterance.
type timedSpeaker struct {
	*voice.Speaker
	metrics *observe.Metrics
}

func (s *timedSpeaker) Speak(ctx context.Context, text string) error {
	start := time.Now()
	err := s.Speaker.Speak(ctx, text)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	return err
}
