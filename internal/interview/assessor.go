package interview

import "context"

// Assessor is the AI client the state machine depends on. Every method is
// expected to resolve through a provider failover chain ending in a
// deterministic local tier, so implementations fail only when ctx is done.
//
// The second return value names the tier that served the result (a provider
// name or "local"); the machine records it as Session.ActiveProvider.
type Assessor interface {
	// GenerateQuestions returns exactly count non-empty question texts.
	GenerateQuestions(ctx context.Context, topic string, level Level, count int) ([]string, string, error)

	// ReplaceQuestion returns a single question text not present in avoid.
	ReplaceQuestion(ctx context.Context, topic string, level Level, avoid []string) (string, string, error)

	// CheckAnswerQuality reports whether the answer is substantive enough to
	// evaluate. Fails open: an unreachable chain reports valid.
	CheckAnswerQuality(ctx context.Context, question, answer string) (bool, string, error)

	// CheckCorrectness reports whether the answer is broadly correct.
	CheckCorrectness(ctx context.Context, question, answer string) (bool, string, error)

	// Evaluate produces a short critique of the answer, toned by the
	// correctness signal.
	Evaluate(ctx context.Context, question, answer string, correct bool) (string, string, error)

	// GenerateFeedback produces the session-level Feedback record. The result
	// always satisfies Feedback.Valid().
	GenerateFeedback(ctx context.Context, transcript []QA) (Feedback, string, error)
}
