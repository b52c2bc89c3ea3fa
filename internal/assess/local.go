package assess

import (
	"context"

	"github.com/intervox-ai/intervox/internal/interview"
)

// LocalAssessor serves every operation from the deterministic local tier:
// the static question bank and templated critiques. It is the assessor used
// when no LLM provider is configured, and the same code path the Client
// falls back to when its whole chain fails.
type LocalAssessor struct{}

// Compile-time interface assertion.
var _ interview.Assessor = LocalAssessor{}

// GenerateQuestions implements [interview.Assessor] from the question bank.
func (LocalAssessor) GenerateQuestions(_ context.Context, topic string, _ interview.Level, count int) ([]string, string, error) {
	return FallbackQuestions(topic, count, nil), TierLocal, nil
}

// ReplaceQuestion implements [interview.Assessor] from the question bank.
func (LocalAssessor) ReplaceQuestion(_ context.Context, topic string, _ interview.Level, avoid []string) (string, string, error) {
	qs := FallbackQuestions(topic, 1, avoid)
	return qs[0], TierLocal, nil
}

// CheckAnswerQuality implements [interview.Assessor]; the local tier never
// rejects an answer.
func (LocalAssessor) CheckAnswerQuality(context.Context, string, string) (bool, string, error) {
	return true, TierLocal, nil
}

// CheckCorrectness implements [interview.Assessor] with the length heuristic.
func (LocalAssessor) CheckCorrectness(_ context.Context, _, answer string) (bool, string, error) {
	return fallbackCorrectness(answer), TierLocal, nil
}

// Evaluate implements [interview.Assessor] with a templated critique.
func (LocalAssessor) Evaluate(_ context.Context, _, _ string, correct bool) (string, string, error) {
	return fallbackCritique(correct), TierLocal, nil
}

// GenerateFeedback implements [interview.Assessor] with the templated report.
func (LocalAssessor) GenerateFeedback(_ context.Context, transcript []interview.QA) (interview.Feedback, string, error) {
	return FallbackFeedback(transcript), TierLocal, nil
}
