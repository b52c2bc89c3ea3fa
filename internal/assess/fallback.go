package assess

import (
	"strconv"
	"strings"

	"github.com/intervox-ai/intervox/internal/interview"
)

// fallbackCorrectness is the local correctness heuristic used when every
// provider tier fails: a substantive answer gets the benefit of the doubt.
// It only shades the critique's tone.
func fallbackCorrectness(answer string) bool {
	return len(strings.Fields(answer)) >= 10
}

// fallbackCritique returns the templated per-answer critique keyed by the
// correctness outcome.
func fallbackCritique(correct bool) string {
	if correct {
		return "Your answer covers the main points well. To strengthen it further, " +
			"back up your statements with a concrete example from a project you have worked on."
	}
	return "Your answer misses some key aspects of the question. Review the underlying " +
		"concepts and try explaining the topic out loud step by step - teaching it is the " +
		"fastest way to find the gaps."
}

// FallbackFeedback builds the deterministic session-level feedback used when
// the whole provider chain is unreachable. The result always satisfies
// Feedback.Valid(): neutral rating, non-empty lists, topic-aware narrative.
func FallbackFeedback(transcript []interview.QA) interview.Feedback {
	answered, skipped := 0, 0
	topic := ""
	for _, qa := range transcript {
		if topic == "" {
			topic = qa.Question.Topic
		}
		if qa.Answer == interview.SkippedAnswer {
			skipped++
		} else {
			answered++
		}
	}
	if topic == "" {
		topic = "the subject"
	}

	fb := interview.Feedback{
		Strengths: []string{
			"You completed the interview session from start to finish.",
			"You engaged with questions across the breadth of " + topic + ".",
		},
		Weaknesses: []string{
			"Detailed per-answer analysis was not available for this session.",
		},
		SuggestedTopics: []string{
			"Core concepts of " + topic,
			"Common interview questions for " + topic,
		},
		OverallRating: 5,
		Narrative: "We could not generate a detailed AI assessment for this session, so this is " +
			"a neutral summary. You answered " + plural(answered, "question") + " and skipped " +
			plural(skipped, "question") + ". Keep practising - repetition under interview " +
			"conditions is what builds confidence.",
	}
	if skipped > 0 {
		fb.Weaknesses = append(fb.Weaknesses,
			"Some questions were skipped; aim to attempt every question even when unsure.")
	}
	return fb
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
