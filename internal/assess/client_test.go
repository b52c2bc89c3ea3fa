package assess

import (
	"context"
	"errors"
	"testing"

	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/resilience"
	"github.com/intervox-ai/intervox/pkg/provider/llm"
	llmmock "github.com/intervox-ai/intervox/pkg/provider/llm/mock"
)

var errDown = errors.New("provider down")

func resp(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: content}
}

func newClient(primary, secondary llm.Provider) *Client {
	return New(primary, "primary", resilience.BreakerConfig{Threshold: 100},
		WithSecondary("secondary", secondary))
}

func TestGenerateQuestionsPrimary(t *testing.T) {
	primary := &llmmock.Provider{Response: resp("1. Q one?\n2. Q two?\n3. Q three?")}
	secondary := &llmmock.Provider{Err: errDown}
	c := newClient(primary, secondary)

	qs, served, err := c.GenerateQuestions(context.Background(), "go", interview.LevelExpert, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions() error = %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("len(qs) = %d, want 3", len(qs))
	}
	if served != "primary" {
		t.Errorf("served = %q, want primary", served)
	}
	if len(secondary.Calls) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.Calls))
	}
}

func TestGenerateQuestionsFailsOverOnShortList(t *testing.T) {
	// Primary returns fewer questions than requested; that counts as failure.
	primary := &llmmock.Provider{Response: resp("1. Only one?")}
	secondary := &llmmock.Provider{Response: resp("1. A?\n2. B?\n3. C?")}
	c := newClient(primary, secondary)

	qs, served, err := c.GenerateQuestions(context.Background(), "go", interview.LevelBeginner, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions() error = %v", err)
	}
	if served != "secondary" {
		t.Errorf("served = %q, want secondary", served)
	}
	if len(qs) != 3 {
		t.Fatalf("len(qs) = %d, want 3", len(qs))
	}
}

func TestGenerateQuestionsLocalFallbackExactCount(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Err: errDown}
	c := newClient(primary, secondary)

	for _, count := range []int{1, 3, 10} {
		qs, served, err := c.GenerateQuestions(context.Background(), "react", interview.LevelIntermediate, count)
		if err != nil {
			t.Fatalf("GenerateQuestions(count=%d) error = %v", count, err)
		}
		if served != TierLocal {
			t.Errorf("served = %q, want %q", served, TierLocal)
		}
		if len(qs) != count {
			t.Fatalf("len(qs) = %d, want %d", len(qs), count)
		}
		for i, q := range qs {
			if q == "" {
				t.Errorf("qs[%d] is empty", i)
			}
		}
	}
}

func TestReplaceQuestionAvoidsExisting(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Err: errDown}
	c := newClient(primary, secondary)

	first, _, err := c.ReplaceQuestion(context.Background(), "go", interview.LevelExpert, nil)
	if err != nil {
		t.Fatalf("ReplaceQuestion() error = %v", err)
	}
	second, _, err := c.ReplaceQuestion(context.Background(), "go", interview.LevelExpert, []string{first})
	if err != nil {
		t.Fatalf("ReplaceQuestion() error = %v", err)
	}
	if first == second {
		t.Fatalf("two successive replacements returned identical text %q", first)
	}
}

func TestCheckAnswerQualityFailsOpen(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Err: errDown}
	c := newClient(primary, secondary)

	ok, served, err := c.CheckAnswerQuality(context.Background(), "Q?", "gibberish")
	if err != nil {
		t.Fatalf("CheckAnswerQuality() error = %v", err)
	}
	if !ok {
		t.Fatal("CheckAnswerQuality() = false on total failure, want fail-open true")
	}
	if served != TierLocal {
		t.Errorf("served = %q, want %q", served, TierLocal)
	}
}

func TestCheckAnswerQualityRejects(t *testing.T) {
	primary := &llmmock.Provider{Response: resp("no")}
	c := New(primary, "primary", resilience.BreakerConfig{Threshold: 100})

	ok, _, err := c.CheckAnswerQuality(context.Background(), "Q?", "asdf")
	if err != nil {
		t.Fatalf("CheckAnswerQuality() error = %v", err)
	}
	if ok {
		t.Fatal("CheckAnswerQuality() = true, want false for a 'no' verdict")
	}
}

func TestCheckCorrectnessFallbackHeuristic(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	c := New(primary, "primary", resilience.BreakerConfig{Threshold: 100})

	long := "a channel is a typed conduit used for communication between goroutines in go programs"
	ok, served, err := c.CheckCorrectness(context.Background(), "Q?", long)
	if err != nil {
		t.Fatalf("CheckCorrectness() error = %v", err)
	}
	if !ok {
		t.Error("CheckCorrectness() = false for substantive answer under heuristic")
	}
	if served != TierLocal {
		t.Errorf("served = %q, want %q", served, TierLocal)
	}

	ok, _, err = c.CheckCorrectness(context.Background(), "Q?", "dunno")
	if err != nil {
		t.Fatalf("CheckCorrectness() error = %v", err)
	}
	if ok {
		t.Error("CheckCorrectness() = true for trivial answer under heuristic")
	}
}

func TestEvaluateTemplatedFallback(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	c := New(primary, "primary", resilience.BreakerConfig{Threshold: 100})

	correctCrit, _, err := c.Evaluate(context.Background(), "Q?", "A", true)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	wrongCrit, _, err := c.Evaluate(context.Background(), "Q?", "A", false)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if correctCrit == "" || wrongCrit == "" {
		t.Fatal("templated critiques must be non-empty")
	}
	if correctCrit == wrongCrit {
		t.Fatal("critiques for correct and incorrect answers should differ")
	}
}

func TestGenerateFeedbackFallbackDeterminism(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Err: errDown}
	c := newClient(primary, secondary)

	transcript := []interview.QA{
		{Question: interview.Question{Index: 0, Text: "Q1", Topic: "sql"}, Answer: "indexes speed reads"},
		{Question: interview.Question{Index: 1, Text: "Q2", Topic: "sql"}, Answer: interview.SkippedAnswer},
	}

	for i := 0; i < 3; i++ {
		fb, served, err := c.GenerateFeedback(context.Background(), transcript)
		if err != nil {
			t.Fatalf("GenerateFeedback() error = %v", err)
		}
		if served != TierLocal {
			t.Errorf("served = %q, want %q", served, TierLocal)
		}
		if !fb.Valid() {
			t.Fatalf("fallback feedback invalid: %+v", fb)
		}
	}
}

func TestGenerateFeedbackParsesSections(t *testing.T) {
	primary := &llmmock.Provider{Response: resp(
		"STRENGTHS:\n- depth\nWEAKNESSES:\n- pacing\nTOPICS:\n- joins\nRATING: 8\nSUMMARY: Nice work.")}
	c := New(primary, "primary", resilience.BreakerConfig{Threshold: 100})

	fb, served, err := c.GenerateFeedback(context.Background(), []interview.QA{
		{Question: interview.Question{Index: 0, Text: "Q", Topic: "sql"}, Answer: "A"},
	})
	if err != nil {
		t.Fatalf("GenerateFeedback() error = %v", err)
	}
	if served != "primary" {
		t.Errorf("served = %q, want primary", served)
	}
	if fb.OverallRating != 8 {
		t.Errorf("OverallRating = %d, want 8", fb.OverallRating)
	}
}

func TestCancelledContextSurfaces(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	c := New(primary, "primary", resilience.BreakerConfig{Threshold: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.GenerateQuestions(ctx, "go", interview.LevelExpert, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("GenerateQuestions() error = %v, want context.Canceled", err)
	}
}
