package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAssessor is a synchronous in-memory Assessor for machine tests.
type fakeAssessor struct {
	mu          sync.Mutex
	questions   []string
	replaceText string
	valid       bool
	correct     bool
	critique    string
	feedback    Feedback

	// block, when non-nil, makes GenerateQuestions and GenerateFeedback wait
	// until the channel is closed (or ctx is done).
	block chan struct{}

	generateCalls int
}

func newFakeAssessor(questions ...string) *fakeAssessor {
	return &fakeAssessor{
		questions:   questions,
		replaceText: "What is the replacement question?",
		valid:       true,
		correct:     true,
		critique:    "Good answer, well structured.",
		feedback: Feedback{
			Strengths:       []string{"clarity"},
			Weaknesses:      []string{"depth"},
			SuggestedTopics: []string{"fundamentals"},
			OverallRating:   7,
			Narrative:       "Solid session overall.",
		},
	}
}

func (f *fakeAssessor) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAssessor) GenerateQuestions(ctx context.Context, topic string, level Level, count int) ([]string, string, error) {
	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	qs := f.questions
	if len(qs) == 0 {
		qs = make([]string, count)
		for i := range qs {
			qs[i] = fmt.Sprintf("Question %d about %s?", i+1, topic)
		}
	}
	return qs[:count], "fake", nil
}

func (f *fakeAssessor) ReplaceQuestion(ctx context.Context, topic string, level Level, avoid []string) (string, string, error) {
	if err := f.wait(ctx); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaceText, "fake", nil
}

func (f *fakeAssessor) CheckAnswerQuality(ctx context.Context, question, answer string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid, "fake", nil
}

func (f *fakeAssessor) CheckCorrectness(ctx context.Context, question, answer string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.correct, "fake", nil
}

func (f *fakeAssessor) Evaluate(ctx context.Context, question, answer string, correct bool) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.critique, "fake", nil
}

func (f *fakeAssessor) GenerateFeedback(ctx context.Context, transcript []QA) (Feedback, string, error) {
	if err := f.wait(ctx); err != nil {
		return Feedback{}, "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback, "fake", nil
}

// recorder collects events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(tp EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == tp {
			n++
		}
	}
	return n
}

func (r *recorder) lastMessage(tp EventType) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := ""
	for _, e := range r.events {
		if e.Type == tp {
			msg = e.Message
		}
	}
	return msg
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// runSetup walks a machine through topic, level, and count input.
func runSetup(t *testing.T, m *Machine, topic, level, count string) {
	t.Helper()
	for _, input := range []string{topic, level, count} {
		if err := m.HandleInput(input); err != nil {
			t.Fatalf("HandleInput(%q) error = %v", input, err)
		}
	}
}

func TestSetupScenarioReactExpertThree(t *testing.T) {
	fa := newFakeAssessor()
	m := New(fa, Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	m.Start()

	runSetup(t, m, "React", "expert", "3")

	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	s := m.Snapshot()
	if len(s.Questions) != 3 {
		t.Fatalf("len(Questions) = %d, want 3", len(s.Questions))
	}
	if s.CurrentIndex != 0 {
		t.Fatalf("CurrentIndex = %d, want 0", s.CurrentIndex)
	}
	if s.Topic != "React" || s.Level != LevelExpert || s.Count != 3 {
		t.Fatalf("setup fields = %q/%v/%d, want React/expert/3", s.Topic, s.Level, s.Count)
	}
	if rec.count(EventQuestionChanged) == 0 {
		t.Error("no question announcement emitted")
	}
}

func TestShortTopicReprompts(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	rec := &recorder{}
	m.Subscribe(rec)

	if err := m.HandleInput("x"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if got := m.Phase(); got != PhaseSetupTopic {
		t.Fatalf("Phase = %v, want setup_topic after invalid topic", got)
	}
	if rec.count(EventWarning) != 1 {
		t.Fatalf("warnings = %d, want 1", rec.count(EventWarning))
	}
}

func TestShortAnswerRequiresConfirmation(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	runSetup(t, m, "Go", "beginner", "2")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	if err := m.HandleInput("x"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}

	s := m.Snapshot()
	if s.Phase != PhaseAnswering {
		t.Fatalf("Phase = %v, want answering", s.Phase)
	}
	if _, ok := s.Responses[0]; ok {
		t.Fatal("Responses[0] set for unconfirmed short answer")
	}
	if rec.count(EventWarning) == 0 {
		t.Fatal("no warning for short answer")
	}

	// Confirming submits the short answer as-is and advances.
	if err := m.ConfirmPendingAnswer(); err != nil {
		t.Fatalf("ConfirmPendingAnswer() error = %v", err)
	}
	eventually(t, func() bool { return m.Snapshot().CurrentIndex == 1 }, "never advanced after confirm")
	if got := m.Snapshot().Responses[0]; got != "x" {
		t.Fatalf("Responses[0] = %q, want %q", got, "x")
	}
}

func TestFullRunReachesFeedback(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	runSetup(t, m, "Go", "intermediate", "3")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	for i := 0; i < 3; i++ {
		want := i
		eventually(t, func() bool {
			s := m.Snapshot()
			return s.Phase == PhaseAnswering && s.CurrentIndex == want
		}, "never reached question "+fmt.Sprint(want))
		if err := m.HandleInput("a thorough answer covering the important points in detail"); err != nil {
			t.Fatalf("HandleInput(answer %d) error = %v", i, err)
		}
	}

	eventually(t, func() bool { return m.Phase() == PhaseFeedback }, "never reached feedback")

	s := m.Snapshot()
	if s.Feedback == nil {
		t.Fatal("Feedback is nil in feedback phase")
	}
	if s.Feedback.OverallRating < 1 || s.Feedback.OverallRating > 10 {
		t.Fatalf("OverallRating = %d, want 1-10", s.Feedback.OverallRating)
	}
	if rec.count(EventFeedbackReady) != 1 {
		t.Fatalf("feedback_ready events = %d, want 1", rec.count(EventFeedbackReady))
	}

	// Invariant: all response keys are in range.
	for k := range s.Responses {
		if k < 0 || k >= len(s.Questions) {
			t.Errorf("response key %d out of range", k)
		}
	}
}

func TestInvalidAnswerIsRejected(t *testing.T) {
	fa := newFakeAssessor()
	fa.valid = false
	m := New(fa, Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	runSetup(t, m, "Go", "expert", "2")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	if err := m.HandleInput("asdf asdf asdf asdf asdf"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}

	eventually(t, func() bool {
		return strings.Contains(rec.lastMessage(EventWarning), "another try")
	}, "no rejection warning")

	s := m.Snapshot()
	if _, ok := s.Responses[0]; ok {
		t.Fatal("Responses[0] kept for rejected answer")
	}
	if s.CurrentIndex != 0 {
		t.Fatalf("CurrentIndex = %d, want 0 after rejection", s.CurrentIndex)
	}
}

func TestSkipStoresSentinelAndAdvances(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	runSetup(t, m, "Go", "beginner", "2")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	if err := m.Skip(); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	s := m.Snapshot()
	if s.Responses[0] != SkippedAnswer {
		t.Fatalf("Responses[0] = %q, want sentinel", s.Responses[0])
	}
	if s.CurrentIndex != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", s.CurrentIndex)
	}
}

func TestNavigateMovesBetweenQuestions(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	runSetup(t, m, "Go", "beginner", "3")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	if err := m.Navigate(2); err != nil {
		t.Fatalf("Navigate(2) error = %v", err)
	}
	if got := m.Snapshot().CurrentIndex; got != 2 {
		t.Fatalf("CurrentIndex = %d, want 2", got)
	}
	if err := m.Navigate(0); err != nil {
		t.Fatalf("Navigate(0) error = %v", err)
	}
	if got := m.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("CurrentIndex = %d, want 0", got)
	}
	if err := m.Navigate(5); err != ErrBadIndex {
		t.Fatalf("Navigate(5) error = %v, want ErrBadIndex", err)
	}
}

func TestReplaceQuestionKeepsIndexAndCount(t *testing.T) {
	m := New(newFakeAssessor("First question?", "Second question?"), Config{})
	runSetup(t, m, "Go", "beginner", "2")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	before := m.Snapshot()
	if err := m.ReplaceQuestion(); err != nil {
		t.Fatalf("ReplaceQuestion() error = %v", err)
	}
	eventually(t, func() bool {
		return m.Snapshot().Questions[0].Text != before.Questions[0].Text
	}, "question text never replaced")

	s := m.Snapshot()
	if len(s.Questions) != len(before.Questions) {
		t.Fatalf("question count changed: %d -> %d", len(before.Questions), len(s.Questions))
	}
	if s.CurrentIndex != before.CurrentIndex {
		t.Fatalf("CurrentIndex changed: %d -> %d", before.CurrentIndex, s.CurrentIndex)
	}
	if s.Questions[0].Index != 0 || s.Questions[0].Topic != before.Questions[0].Topic {
		t.Fatal("replacement changed index or topic")
	}
}

func TestEndDuringLoadingDiscardsLateResult(t *testing.T) {
	fa := newFakeAssessor()
	fa.block = make(chan struct{})
	m := New(fa, Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	runSetup(t, m, "Go", "expert", "3")

	if got := m.Phase(); got != PhaseLoadingQuestions {
		t.Fatalf("Phase = %v, want loading_questions", got)
	}

	m.End()
	if got := m.Phase(); got != PhaseEnded {
		t.Fatalf("Phase = %v, want ended immediately", got)
	}

	// Let the blocked generation finish; its result must be discarded.
	close(fa.block)
	time.Sleep(20 * time.Millisecond)

	s := m.Snapshot()
	if s.Phase != PhaseEnded {
		t.Fatalf("Phase = %v after late result, want ended", s.Phase)
	}
	if len(s.Questions) != 0 {
		t.Fatalf("late question generation was applied: %d questions", len(s.Questions))
	}
	if rec.count(EventSessionEnded) != 1 {
		t.Fatalf("session_ended events = %d, want 1", rec.count(EventSessionEnded))
	}
}

func TestFeedbackWatchdogForcesFallback(t *testing.T) {
	fa := newFakeAssessor()
	m := New(fa, Config{FeedbackTimeout: 30 * time.Millisecond})
	runSetup(t, m, "Go", "beginner", "1")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	// Block feedback generation so the watchdog wins.
	fa.mu.Lock()
	fa.block = make(chan struct{})
	fa.mu.Unlock()
	defer close(fa.block)

	if err := m.HandleInput("a complete answer that is certainly long enough to submit"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}

	eventually(t, func() bool { return m.Phase() == PhaseFeedback }, "watchdog never forced feedback")

	s := m.Snapshot()
	if s.Feedback == nil || !s.Feedback.Valid() {
		t.Fatalf("watchdog feedback invalid: %+v", s.Feedback)
	}
	if s.ActiveProvider != "local" {
		t.Errorf("ActiveProvider = %q, want local", s.ActiveProvider)
	}
}

func TestLoadingWatchdogUsesFallbackBank(t *testing.T) {
	fa := newFakeAssessor()
	fa.block = make(chan struct{})
	defer close(fa.block)

	m := New(fa, Config{LoadingTimeout: 30 * time.Millisecond})
	runSetup(t, m, "Go", "beginner", "2")

	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "watchdog never installed fallback questions")

	s := m.Snapshot()
	if len(s.Questions) != 2 {
		t.Fatalf("len(Questions) = %d, want 2", len(s.Questions))
	}
	if s.ActiveProvider != "local" {
		t.Errorf("ActiveProvider = %q, want local", s.ActiveProvider)
	}
}

func TestRetakePreservesSetup(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	runSetup(t, m, "SQL joins", "expert", "1")
	eventually(t, func() bool { return m.Phase() == PhaseAnswering }, "never reached answering")

	if err := m.HandleInput("a complete answer that is certainly long enough to submit"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	eventually(t, func() bool { return m.Phase() == PhaseFeedback }, "never reached feedback")

	nm, err := m.Retake()
	if err != nil {
		t.Fatalf("Retake() error = %v", err)
	}
	eventually(t, func() bool { return nm.Phase() == PhaseAnswering }, "retake never reached answering")

	s := nm.Snapshot()
	if s.Topic != "SQL joins" || s.Level != LevelExpert || s.Count != 1 {
		t.Fatalf("retake setup = %q/%v/%d, want preserved", s.Topic, s.Level, s.Count)
	}
	if s.ID == m.Snapshot().ID {
		t.Fatal("retake reused the old session ID")
	}

	// Retake is only valid from the feedback phase.
	if _, err := nm.Retake(); err != ErrWrongPhase {
		t.Fatalf("Retake() from answering error = %v, want ErrWrongPhase", err)
	}
}

func TestInputDuringLoadingWarns(t *testing.T) {
	fa := newFakeAssessor()
	fa.block = make(chan struct{})
	defer close(fa.block)
	m := New(fa, Config{})
	rec := &recorder{}
	m.Subscribe(rec)
	runSetup(t, m, "Go", "beginner", "2")

	if err := m.HandleInput("hello?"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if rec.count(EventWarning) == 0 {
		t.Fatal("no warning for input during loading")
	}
	if got := m.Phase(); got != PhaseLoadingQuestions {
		t.Fatalf("Phase = %v, want loading_questions", got)
	}
}

func TestSideOperationsRejectedOutsideAnswering(t *testing.T) {
	m := New(newFakeAssessor(), Config{})
	if err := m.Skip(); err != ErrWrongPhase {
		t.Errorf("Skip() error = %v, want ErrWrongPhase", err)
	}
	if err := m.Navigate(0); err != ErrWrongPhase {
		t.Errorf("Navigate() error = %v, want ErrWrongPhase", err)
	}
	if err := m.ReplaceQuestion(); err != ErrWrongPhase {
		t.Errorf("ReplaceQuestion() error = %v, want ErrWrongPhase", err)
	}
}

// fakeSpeaker records every text handed to Speak.
type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSpeaker) Stop() {}

func (f *fakeSpeaker) first() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.spoken) == 0 {
		return ""
	}
	return f.spoken[0]
}

func TestStartVoicesWelcomePrompt(t *testing.T) {
	sp := &fakeSpeaker{}
	m := New(newFakeAssessor(), Config{Speaker: sp})
	rec := &recorder{}
	m.Subscribe(rec)
	m.Start()

	eventually(t, func() bool { return sp.first() != "" }, "welcome prompt never spoken")

	want := rec.lastMessage(EventPrompt)
	if want == "" {
		t.Fatal("no prompt event emitted by Start")
	}
	if got := sp.first(); got != want {
		t.Fatalf("spoken = %q, want the prompt text %q", got, want)
	}
}
