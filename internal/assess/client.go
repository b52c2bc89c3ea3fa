// Package assess implements the AI assessment client behind the interview
// state machine: question generation, answer quality and correctness checks,
// per-answer critiques, and session-level feedback.
//
// Every operation runs a provider failover chain (primary → secondary, each
// behind a circuit breaker) and, when the whole chain fails, falls back to a
// deterministic local tier — a static question bank and templated critiques —
// so the interview always makes progress.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/resilience"
	"github.com/intervox-ai/intervox/pkg/provider/llm"
)

// TierLocal is the tier name reported when the deterministic local fallback
// served a result.
const TierLocal = "local"

const defaultTimeout = 15 * time.Second

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithSecondary registers a secondary provider tried after the primary.
func WithSecondary(name string, p llm.Provider) Option {
	return func(c *Client) {
		c.group.AddFallback(name, p)
	}
}

// WithTimeout sets the per-provider-call timeout. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is the failover-aware assessment client. It implements
// [interview.Assessor].
type Client struct {
	group   *resilience.FallbackGroup[llm.Provider]
	timeout time.Duration
}

// Compile-time interface assertion.
var _ interview.Assessor = (*Client)(nil)

// New creates a Client with primary as the first chain entry.
func New(primary llm.Provider, primaryName string, breaker resilience.BreakerConfig, opts ...Option) *Client {
	c := &Client{
		group: resilience.NewFallbackGroup(primary, primaryName, resilience.FallbackConfig{
			CircuitBreaker: breaker,
		}),
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ProviderStates exposes the per-tier breaker states for health reporting.
func (c *Client) ProviderStates() map[string]resilience.State {
	return c.group.States()
}

// complete runs one request through the failover chain with the per-call
// timeout, parsing the response with parse. A parse error counts as a
// provider failure and moves the chain along.
func complete[R any](ctx context.Context, c *Client, system, prompt string, parse func(string) (R, error)) (R, string, error) {
	return resilience.ExecuteWithResult(c.group, func(p llm.Provider) (R, error) {
		var zero R
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := p.Complete(cctx, llm.CompletionRequest{
			SystemPrompt: system,
			Messages:     []llm.Message{{Role: "user", Content: prompt}},
			Temperature:  0.7,
		})
		if err != nil {
			return zero, fmt.Errorf("assess: complete: %w", err)
		}
		return parse(resp.Content)
	})
}

// GenerateQuestions implements [interview.Assessor]. The result always has
// exactly count entries regardless of which tier served it.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, level interview.Level, count int) ([]string, string, error) {
	qs, served, err := complete(ctx, c, interviewerSystem, questionsPrompt(topic, level, count),
		func(content string) ([]string, error) {
			parsed := parseNumberedList(content)
			if len(parsed) < count {
				return nil, fmt.Errorf("assess: got %d questions, want %d", len(parsed), count)
			}
			return parsed[:count], nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		slog.Warn("question generation falling back to local bank",
			"topic", topic, "error", err)
		return FallbackQuestions(topic, count, nil), TierLocal, nil
	}
	return qs, served, nil
}

// ReplaceQuestion implements [interview.Assessor]. The returned text is never
// one of avoid, so replacing twice in a row yields two different questions.
func (c *Client) ReplaceQuestion(ctx context.Context, topic string, level interview.Level, avoid []string) (string, string, error) {
	q, served, err := complete(ctx, c, interviewerSystem, replacePrompt(topic, level, avoid),
		func(content string) (string, error) {
			parsed := parseNumberedList(content)
			if len(parsed) == 0 {
				return "", fmt.Errorf("assess: empty replacement question")
			}
			q := parsed[0]
			for _, a := range avoid {
				if strings.EqualFold(strings.TrimSpace(q), strings.TrimSpace(a)) {
					return "", fmt.Errorf("assess: replacement repeats an existing question")
				}
			}
			return q, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		slog.Warn("question replacement falling back to local bank",
			"topic", topic, "error", err)
		qs := FallbackQuestions(topic, 1, avoid)
		return qs[0], TierLocal, nil
	}
	return q, served, nil
}

// CheckAnswerQuality implements [interview.Assessor]. Fails open: if every
// tier fails, the answer is reported valid so the user is never blocked.
func (c *Client) CheckAnswerQuality(ctx context.Context, question, answer string) (bool, string, error) {
	ok, served, err := complete(ctx, c, graderSystem, qualityPrompt(question, answer), parseYesNo)
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		slog.Debug("answer quality check failing open", "error", err)
		return true, TierLocal, nil
	}
	return ok, served, nil
}

// CheckCorrectness implements [interview.Assessor]. The local fallback uses a
// length heuristic; it only shades the critique's tone, never blocks.
func (c *Client) CheckCorrectness(ctx context.Context, question, answer string) (bool, string, error) {
	ok, served, err := complete(ctx, c, graderSystem, correctnessPrompt(question, answer), parseYesNo)
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		slog.Debug("correctness check using local heuristic", "error", err)
		return fallbackCorrectness(answer), TierLocal, nil
	}
	return ok, served, nil
}

// Evaluate implements [interview.Assessor].
func (c *Client) Evaluate(ctx context.Context, question, answer string, correct bool) (string, string, error) {
	critique, served, err := complete(ctx, c, graderSystem, evaluatePrompt(question, answer, correct),
		func(content string) (string, error) {
			text := strings.TrimSpace(content)
			if text == "" {
				return "", fmt.Errorf("assess: empty critique")
			}
			return text, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		slog.Debug("evaluation falling back to template", "error", err)
		return fallbackCritique(correct), TierLocal, nil
	}
	return critique, served, nil
}

// GenerateFeedback implements [interview.Assessor]. The result always
// satisfies Feedback.Valid().
func (c *Client) GenerateFeedback(ctx context.Context, transcript []interview.QA) (interview.Feedback, string, error) {
	fb, served, err := complete(ctx, c, graderSystem, feedbackPrompt(transcript),
		func(content string) (interview.Feedback, error) {
			return parseFeedback(content)
		})
	if err != nil {
		if ctx.Err() != nil {
			return interview.Feedback{}, "", ctx.Err()
		}
		slog.Warn("feedback generation falling back to template", "error", err)
		return FallbackFeedback(transcript), TierLocal, nil
	}
	return fb, served, nil
}
