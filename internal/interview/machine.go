package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrWrongPhase is returned when an operation is invoked in a phase that does
// not support it.
var ErrWrongPhase = errors.New("interview: operation not valid in current phase")

// ErrBadIndex is returned by Navigate for an out-of-range question index.
var ErrBadIndex = errors.New("interview: question index out of range")

// Speaker is the optional speech-output collaborator. The machine speaks
// questions and critiques through it when set; Stop is called on session end.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Config tunes a Machine. Zero values get defaults.
type Config struct {
	// SessionID identifies the session in logs and in-flight guard keys.
	// Generated from the start time when empty.
	SessionID string

	// MinAnswerChars is the minimum answer length accepted without an
	// explicit confirm-override. Default: 15.
	MinAnswerChars int

	// LoadingTimeout caps the wait for question generation before the local
	// fallback bank is used. Default: 25s.
	LoadingTimeout time.Duration

	// FeedbackTimeout caps the wait for feedback generation before the
	// templated fallback is used. Default: 25s.
	FeedbackTimeout time.Duration

	// WaitingInterval is how often waiting events fire during long AI
	// operations. Default: 5s.
	WaitingInterval time.Duration

	// Speaker, when set, voices prompts, questions, and critiques.
	Speaker Speaker

	// FallbackQuestions supplies question texts when the watchdog fires
	// during loading. Defaults to a small generic template set; the app wires
	// the assessment client's bank here.
	FallbackQuestions func(topic string, count int) []string

	// FallbackFeedback supplies the report when the watchdog fires during
	// feedback generation. Must return a structurally valid Feedback.
	FallbackFeedback func(transcript []QA) Feedback
}

func (c *Config) applyDefaults() {
	if c.SessionID == "" {
		c.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	if c.MinAnswerChars <= 0 {
		c.MinAnswerChars = 15
	}
	if c.LoadingTimeout <= 0 {
		c.LoadingTimeout = 25 * time.Second
	}
	if c.FeedbackTimeout <= 0 {
		c.FeedbackTimeout = 25 * time.Second
	}
	if c.WaitingInterval <= 0 {
		c.WaitingInterval = 5 * time.Second
	}
	if c.FallbackQuestions == nil {
		c.FallbackQuestions = defaultFallbackQuestions
	}
	if c.FallbackFeedback == nil {
		c.FallbackFeedback = defaultFallbackFeedback
	}
}

// Machine drives one interview session through its phases. All exported
// methods are safe for concurrent use; the machine processes one transition
// at a time and discards async results that arrive for a stale state.
type Machine struct {
	mu        sync.Mutex
	cfg       Config
	assessor  Assessor
	session   *Session
	observers []Observer

	// epoch invalidates in-flight async results; End and Retake bump it.
	epoch uint64

	// flight guards against overlapping AI calls for the same
	// (session, operation, question index).
	flight singleflight.Group

	// pendingIdx/pendingAnswer hold a too-short answer awaiting explicit
	// confirmation. pendingIdx is -1 when nothing is pending.
	pendingIdx    int
	pendingAnswer string

	watchdog *time.Timer
	waitStop chan struct{}

	// ctx outlives any single call; End cancels it so in-flight provider
	// requests stop consuming resources (their results are discarded either way).
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Machine with a fresh session in the topic-setup phase.
// Call Start to emit the opening prompt.
func New(assessor Assessor, cfg Config) *Machine {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		cfg:      cfg,
		assessor: assessor,
		session: &Session{
			ID:           cfg.SessionID,
			Phase:        PhaseSetupTopic,
			CurrentIndex: -1,
			Responses:    make(map[int]string),
			StartedAt:    time.Now(),
		},
		pendingIdx: -1,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Subscribe registers an observer for all session events. Not safe to call
// concurrently with event delivery; subscribe before Start.
func (m *Machine) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Start emits the opening prompt. The machine is already in the topic-setup
// phase; Start exists so callers can subscribe first.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompt("Welcome to your mock interview. What technology or topic would you like to practise?")
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *m.session
	s.Questions = append([]Question(nil), m.session.Questions...)
	s.Responses = make(map[int]string, len(m.session.Responses))
	for k, v := range m.session.Responses {
		s.Responses[k] = v
	}
	if m.session.Feedback != nil {
		fb := *m.session.Feedback
		s.Feedback = &fb
	}
	return s
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Phase
}

// HandleInput feeds one line of user input (typed or a final transcript) to
// the machine and dispatches it according to the current phase.
func (m *Machine) HandleInput(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.session.Phase {
	case PhaseSetupTopic:
		topic, err := ValidateTopic(text)
		if err != nil {
			m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
				Message: "Please name a topic with at least two characters, e.g. \"Go\" or \"system design\"."})
			return nil
		}
		m.session.Topic = topic
		m.setPhase(PhaseSetupExperience)
		m.prompt("Great, " + topic + " it is. How much experience do you have - beginner, intermediate, or expert?")

	case PhaseSetupExperience:
		m.session.Level = ParseExperienceLevel(text)
		m.setPhase(PhaseSetupCount)
		m.prompt(fmt.Sprintf("Noted: %s. How many questions would you like, from 1 to 10?", m.session.Level))

	case PhaseSetupCount:
		n, err := ParseQuestionCount(text)
		if err != nil {
			m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
				Message: "Please give a number between 1 and 10."})
			return nil
		}
		m.session.Count = n
		m.beginLoadingLocked()

	case PhaseAnswering:
		m.submitAnswerLocked(text)

	case PhaseLoadingQuestions, PhaseGeneratingFeedback:
		m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
			Message: "One moment - still working on that."})

	case PhaseFeedback:
		m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
			Message: "This session is complete. Retake the interview or end the session."})

	case PhaseEnded:
		return ErrWrongPhase
	}
	return nil
}

// ConfirmPendingAnswer accepts a previously rejected short answer as-is.
func (m *Machine) ConfirmPendingAnswer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase != PhaseAnswering {
		return ErrWrongPhase
	}
	if m.pendingIdx != m.session.CurrentIndex {
		m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
			Message: "There is no short answer waiting for confirmation."})
		return nil
	}
	m.acceptAnswerLocked(m.pendingIdx, m.pendingAnswer)
	return nil
}

// Skip stores the skip sentinel for the current question and advances.
func (m *Machine) Skip() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase != PhaseAnswering {
		return ErrWrongPhase
	}
	m.clearPendingLocked()
	m.session.Responses[m.session.CurrentIndex] = SkippedAnswer
	m.advanceLocked()
	return nil
}

// Navigate moves to an arbitrary question index, storing any pending short
// answer for the current question first.
func (m *Machine) Navigate(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase != PhaseAnswering {
		return ErrWrongPhase
	}
	if i < 0 || i >= len(m.session.Questions) {
		return ErrBadIndex
	}
	if m.pendingIdx == m.session.CurrentIndex {
		m.session.Responses[m.pendingIdx] = m.pendingAnswer
		m.clearPendingLocked()
	}
	m.session.CurrentIndex = i
	m.announceQuestionLocked()
	return nil
}

// ReplaceQuestion regenerates the text of the current question, keeping its
// index and topic. The stored response for that index, if any, is cleared.
func (m *Machine) ReplaceQuestion() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase != PhaseAnswering {
		return ErrWrongPhase
	}

	idx := m.session.CurrentIndex
	epoch := m.epoch
	topic, level := m.session.Topic, m.session.Level
	avoid := make([]string, len(m.session.Questions))
	for i, q := range m.session.Questions {
		avoid[i] = q.Text
	}
	key := m.flightKey("replace", idx)

	go func() {
		type replaced struct {
			text, served string
		}
		v, err, _ := m.flight.Do(key, func() (any, error) {
			text, served, err := m.assessor.ReplaceQuestion(m.ctx, topic, level, avoid)
			if err != nil {
				return nil, err
			}
			return replaced{text: text, served: served}, nil
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			return
		}
		if m.epoch != epoch || m.session.Phase != PhaseAnswering || m.session.CurrentIndex != idx {
			slog.Debug("discarding stale question replacement", "session", m.session.ID, "index", idx)
			return
		}
		r := v.(replaced)
		m.session.Questions[idx].Text = r.text
		m.session.ActiveProvider = r.served
		m.clearPendingLocked()
		delete(m.session.Responses, idx)
		m.announceQuestionLocked()
	}()
	return nil
}

// End terminates the session from any phase: timers cleared, speech output
// cancelled, in-flight AI results invalidated.
func (m *Machine) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase == PhaseEnded {
		return
	}
	m.epoch++
	m.stopTimersLocked()
	m.clearPendingLocked()
	if m.cfg.Speaker != nil {
		m.cfg.Speaker.Stop()
	}
	m.cancel()
	m.setPhase(PhaseEnded)
	m.notify(Event{Type: EventSessionEnded, Phase: PhaseEnded,
		Message: "Session ended."})
}

// Retake spawns a new machine preserving topic, level, and count, skipping
// setup and going straight to question loading. The current session is left
// in its terminal phase.
func (m *Machine) Retake() (*Machine, error) {
	m.mu.Lock()
	if m.session.Phase != PhaseFeedback {
		m.mu.Unlock()
		return nil, ErrWrongPhase
	}
	cfg := m.cfg
	cfg.SessionID = ""
	nm := New(m.assessor, cfg)
	nm.observers = append([]Observer(nil), m.observers...)
	topic, level, count := m.session.Topic, m.session.Level, m.session.Count
	m.mu.Unlock()

	nm.mu.Lock()
	nm.session.Topic = topic
	nm.session.Level = level
	nm.session.Count = count
	nm.beginLoadingLocked()
	nm.mu.Unlock()
	return nm, nil
}

// ─── answering flow ───

func (m *Machine) submitAnswerLocked(text string) {
	answer := strings.TrimSpace(text)
	idx := m.session.CurrentIndex

	if len(answer) < m.cfg.MinAnswerChars {
		m.pendingIdx = idx
		m.pendingAnswer = answer
		m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
			Message: "That answer is quite short. Add more detail, or confirm to submit it as-is."})
		return
	}
	m.acceptAnswerLocked(idx, answer)
}

func (m *Machine) acceptAnswerLocked(idx int, answer string) {
	m.clearPendingLocked()
	m.session.Responses[idx] = answer

	question := m.session.Questions[idx].Text
	epoch := m.epoch
	key := m.flightKey("evaluate", idx)

	go func() {
		type evalOutcome struct {
			valid    bool
			critique string
			served   string
		}
		v, err, _ := m.flight.Do(key, func() (any, error) {
			// Quality, correctness, and evaluation are strictly sequential:
			// each step consumes the previous result.
			valid, served, err := m.assessor.CheckAnswerQuality(m.ctx, question, answer)
			if err != nil {
				return nil, err
			}
			if !valid {
				return evalOutcome{valid: false, served: served}, nil
			}
			correct, _, err := m.assessor.CheckCorrectness(m.ctx, question, answer)
			if err != nil {
				return nil, err
			}
			critique, served, err := m.assessor.Evaluate(m.ctx, question, answer, correct)
			if err != nil {
				return nil, err
			}
			return evalOutcome{valid: true, critique: critique, served: served}, nil
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			// Only context cancellation reaches here; the session has moved on.
			return
		}
		if m.epoch != epoch || m.session.Phase != PhaseAnswering || m.session.CurrentIndex != idx {
			slog.Debug("discarding stale evaluation", "session", m.session.ID, "index", idx)
			return
		}

		out := v.(evalOutcome)
		if !out.valid {
			delete(m.session.Responses, idx)
			m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
				Message: "That didn't sound like an answer to the question - give it another try."})
			return
		}
		m.session.ActiveProvider = out.served
		m.prompt(out.critique)
		m.advanceLocked()
	}()
}

// advanceLocked moves to the next question, or into feedback generation once
// every index has a response.
func (m *Machine) advanceLocked() {
	if m.session.CurrentIndex < len(m.session.Questions)-1 {
		m.session.CurrentIndex++
		m.announceQuestionLocked()
		return
	}
	// Last question reached. Full submission requires a response for every
	// index; jump back to the first gap if one exists.
	if !m.session.Answered() {
		for i := range m.session.Questions {
			if _, ok := m.session.Responses[i]; !ok {
				m.session.CurrentIndex = i
				m.notify(Event{Type: EventWarning, Phase: m.session.Phase,
					Message: fmt.Sprintf("Question %d still needs an answer before we wrap up.", i+1)})
				m.announceQuestionLocked()
				return
			}
		}
	}
	m.beginFeedbackLocked()
}

// ─── loading questions ───

func (m *Machine) beginLoadingLocked() {
	m.setPhase(PhaseLoadingQuestions)
	m.startWaitingLocked("loading")

	topic, level, count := m.session.Topic, m.session.Level, m.session.Count
	epoch := m.epoch

	m.watchdog = time.AfterFunc(m.cfg.LoadingTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.session.Phase != PhaseLoadingQuestions {
			return
		}
		slog.Warn("question generation watchdog fired, using local bank",
			"session", m.session.ID, "topic", topic)
		m.installQuestionsLocked(m.cfg.FallbackQuestions(topic, count), "local")
	})

	key := m.flightKey("generate", 0)
	go func() {
		type generated struct {
			questions []string
			served    string
		}
		v, err, _ := m.flight.Do(key, func() (any, error) {
			qs, served, err := m.assessor.GenerateQuestions(m.ctx, topic, level, count)
			if err != nil {
				return nil, err
			}
			return generated{questions: qs, served: served}, nil
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			return
		}
		if m.epoch != epoch || m.session.Phase != PhaseLoadingQuestions {
			slog.Debug("discarding stale question generation", "session", m.session.ID)
			return
		}
		g := v.(generated)
		m.installQuestionsLocked(g.questions, g.served)
	}()
}

// installQuestionsLocked populates the question list and enters the
// answering phase.
func (m *Machine) installQuestionsLocked(texts []string, served string) {
	m.stopTimersLocked()

	m.session.Questions = make([]Question, len(texts))
	for i, text := range texts {
		m.session.Questions[i] = Question{Index: i, Text: text, Topic: m.session.Topic}
	}
	m.session.CurrentIndex = 0
	m.session.ActiveProvider = served
	m.setPhase(PhaseAnswering)
	m.announceQuestionLocked()
}

// ─── feedback ───

func (m *Machine) beginFeedbackLocked() {
	m.setPhase(PhaseGeneratingFeedback)
	m.startWaitingLocked("feedback")

	transcript := m.session.Transcript()
	epoch := m.epoch

	m.watchdog = time.AfterFunc(m.cfg.FeedbackTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.session.Phase != PhaseGeneratingFeedback {
			return
		}
		slog.Warn("feedback watchdog fired, using templated feedback",
			"session", m.session.ID)
		m.installFeedbackLocked(m.cfg.FallbackFeedback(transcript), "local")
	})

	key := m.flightKey("feedback", 0)
	go func() {
		type report struct {
			fb     Feedback
			served string
		}
		v, err, _ := m.flight.Do(key, func() (any, error) {
			fb, served, err := m.assessor.GenerateFeedback(m.ctx, transcript)
			if err != nil {
				return nil, err
			}
			return report{fb: fb, served: served}, nil
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			return
		}
		if m.epoch != epoch || m.session.Phase != PhaseGeneratingFeedback {
			slog.Debug("discarding stale feedback", "session", m.session.ID)
			return
		}
		r := v.(report)
		m.installFeedbackLocked(r.fb, r.served)
	}()
}

func (m *Machine) installFeedbackLocked(fb Feedback, served string) {
	m.stopTimersLocked()
	m.session.Feedback = &fb
	m.session.ActiveProvider = served
	m.setPhase(PhaseFeedback)
	m.notify(Event{Type: EventFeedbackReady, Phase: PhaseFeedback, Feedback: &fb})
	m.speakLocked(fb.Narrative)
}

// ─── helpers ───

func (m *Machine) setPhase(p Phase) {
	m.session.Phase = p
	m.notify(Event{Type: EventPhaseChanged, Phase: p})
}

func (m *Machine) notify(e Event) {
	for _, o := range m.observers {
		o.Notify(e)
	}
}

// prompt emits a prompt event and voices it.
func (m *Machine) prompt(text string) {
	m.notify(Event{Type: EventPrompt, Phase: m.session.Phase, Message: text})
	m.speakLocked(text)
}

func (m *Machine) announceQuestionLocked() {
	q := m.session.Questions[m.session.CurrentIndex]
	m.notify(Event{Type: EventQuestionChanged, Phase: m.session.Phase, Question: &q})
	m.speakLocked(fmt.Sprintf("Question %d: %s", q.Index+1, q.Text))
}

func (m *Machine) speakLocked(text string) {
	if m.cfg.Speaker == nil || text == "" {
		return
	}
	sp := m.cfg.Speaker
	ctx := m.ctx
	go func() {
		if err := sp.Speak(ctx, text); err != nil && ctx.Err() == nil {
			slog.Warn("speech output failed", "error", err)
		}
	}()
}

func (m *Machine) clearPendingLocked() {
	m.pendingIdx = -1
	m.pendingAnswer = ""
}

func (m *Machine) stopTimersLocked() {
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
	if m.waitStop != nil {
		close(m.waitStop)
		m.waitStop = nil
	}
}

func (m *Machine) flightKey(op string, idx int) string {
	return fmt.Sprintf("%s/%s/%d", m.cfg.SessionID, op, idx)
}

func (m *Machine) startWaitingLocked(op string) {
	stop := make(chan struct{})
	m.waitStop = stop
	start := time.Now()
	interval := m.cfg.WaitingInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				m.mu.Lock()
				if m.waitStop != stop {
					m.mu.Unlock()
					return
				}
				m.notify(Event{Type: EventWaiting, Phase: m.session.Phase,
					Message: waitingMessage(op, time.Since(start))})
				m.mu.Unlock()
			}
		}
	}()
}

// waitingMessage escalates as an AI operation drags on.
func waitingMessage(op string, elapsed time.Duration) string {
	var doing string
	switch op {
	case "loading":
		doing = "Preparing your questions"
	case "feedback":
		doing = "Putting your feedback together"
	default:
		doing = "Working on it"
	}
	switch {
	case elapsed < 10*time.Second:
		return doing + "..."
	case elapsed < 20*time.Second:
		return doing + " - this is taking a little longer than usual."
	default:
		return doing + " - almost there, thanks for your patience."
	}
}

// ─── default watchdog fallbacks ───

var genericQuestionTemplates = []string{
	"Describe your overall experience with %s.",
	"What was the hardest problem you solved involving %s?",
	"How would you introduce %s to a new team member?",
	"What are the most common mistakes people make with %s?",
	"How do you test and debug %s systems?",
	"What would you change about %s if you could?",
	"How do you keep up with developments in %s?",
	"Describe a production issue involving %s and how it was resolved.",
	"What trade-offs come up most often when working with %s?",
	"Where do you see %s heading over the next few years?",
}

func defaultFallbackQuestions(topic string, count int) []string {
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = strings.ReplaceAll(genericQuestionTemplates[i%len(genericQuestionTemplates)], "%s", topic)
	}
	return out
}

func defaultFallbackFeedback(transcript []QA) Feedback {
	topic := "the subject"
	if len(transcript) > 0 {
		topic = transcript[0].Question.Topic
	}
	return Feedback{
		Strengths:       []string{"You completed the full interview session."},
		Weaknesses:      []string{"A detailed assessment was not available for this session."},
		SuggestedTopics: []string{"Core concepts of " + topic},
		OverallRating:   5,
		Narrative: "Your feedback could not be generated in time, so this is a neutral summary. " +
			"Keep practising - every session builds fluency.",
	}
}
