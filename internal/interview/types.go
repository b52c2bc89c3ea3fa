// Package interview implements the mock-interview session state machine.
//
// A [Session] is the aggregate for one interview attempt: setup (topic,
// experience level, question count), an answering loop over generated
// questions, and a final feedback report. The [Machine] drives phase
// transitions, invokes the assessment client asynchronously, and notifies
// observers of every user-visible change. Speech adapters are optional; every
// input the machine accepts can arrive as typed text.
package interview

import (
	"time"
)

// Phase is the current state of a session.
type Phase string

const (
	PhaseSetupTopic         Phase = "setup_topic"
	PhaseSetupExperience    Phase = "setup_experience"
	PhaseSetupCount         Phase = "setup_count"
	PhaseLoadingQuestions   Phase = "loading_questions"
	PhaseAnswering          Phase = "answering"
	PhaseGeneratingFeedback Phase = "generating_feedback"
	PhaseFeedback           Phase = "feedback"
	PhaseEnded              Phase = "ended"
)

// Terminal reports whether no further transitions leave this phase
// (a feedback-phase session can still be retaken, which creates a new session).
func (p Phase) Terminal() bool {
	return p == PhaseFeedback || p == PhaseEnded
}

// Level is the candidate's self-reported experience level.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
)

// SkippedAnswer is the sentinel stored in Session.Responses when the
// candidate skips a question.
const SkippedAnswer = "[skipped]"

// Question is a single interview question. Entries are replaced whole by the
// replace operation; index and topic never change.
type Question struct {
	Index int
	Text  string
	Topic string
}

// QA pairs a question with the answer given to it, for feedback generation.
type QA struct {
	Question Question
	Answer   string
}

// Feedback is the session-level report produced once per completed interview.
type Feedback struct {
	Strengths       []string
	Weaknesses      []string
	SuggestedTopics []string

	// OverallRating is in [1, 10].
	OverallRating int

	Narrative string
}

// Valid reports whether the feedback is structurally complete: rating in
// range and all three lists non-empty.
func (f Feedback) Valid() bool {
	return f.OverallRating >= 1 && f.OverallRating <= 10 &&
		len(f.Strengths) > 0 && len(f.Weaknesses) > 0 && len(f.SuggestedTopics) > 0
}

// Session holds the state of one interview attempt. Fields are mutated only
// by the Machine; observers receive snapshots via events.
type Session struct {
	ID        string
	Phase     Phase
	Topic     string
	Level     Level
	Count     int
	Questions []Question

	// CurrentIndex is valid only once Questions is populated.
	CurrentIndex int

	// Responses maps question index to raw answer text or SkippedAnswer.
	Responses map[int]string

	// Feedback is set once Phase reaches PhaseFeedback.
	Feedback *Feedback

	// ActiveProvider names the tier that produced the most recent AI-derived
	// content (informational only).
	ActiveProvider string

	StartedAt time.Time
}

// Answered reports whether every question index has a stored response.
func (s *Session) Answered() bool {
	if len(s.Questions) == 0 {
		return false
	}
	for i := range s.Questions {
		if _, ok := s.Responses[i]; !ok {
			return false
		}
	}
	return true
}

// Transcript assembles the question/answer pairs in order for feedback
// generation. Missing responses become SkippedAnswer.
func (s *Session) Transcript() []QA {
	out := make([]QA, len(s.Questions))
	for i, q := range s.Questions {
		ans, ok := s.Responses[i]
		if !ok {
			ans = SkippedAnswer
		}
		out[i] = QA{Question: q, Answer: ans}
	}
	return out
}
