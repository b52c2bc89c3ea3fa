package assess

import (
	"fmt"
	"strings"

	"github.com/intervox-ai/intervox/internal/interview"
)

// System prompts for the two personas: the interviewer generates questions,
// the grader judges and critiques answers.
const (
	interviewerSystem = "You are a technical interviewer preparing candidates for real job interviews. " +
		"Ask clear, practical questions appropriate to the candidate's stated experience level. " +
		"Output only what is asked for, with no preamble."

	graderSystem = "You are a strict but fair technical interviewer grading a candidate's spoken answer. " +
		"Judge substance, not phrasing or filler words. " +
		"Output only what is asked for, with no preamble."
)

func questionsPrompt(topic string, level interview.Level, count int) string {
	return fmt.Sprintf(
		"Generate exactly %d interview questions about %s for a candidate with %s experience. "+
			"Return them as a numbered list, one question per line, nothing else.",
		count, topic, level)
}

func replacePrompt(topic string, level interview.Level, avoid []string) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Generate one interview question about %s for a candidate with %s experience. "+
			"Return only the question text on a single line.",
		topic, level)
	if len(avoid) > 0 {
		b.WriteString(" It must be different from all of these questions:\n")
		for _, q := range avoid {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}

func qualityPrompt(question, answer string) string {
	return fmt.Sprintf(
		"Question: %s\nAnswer: %s\n\n"+
			"Is this a genuine attempt at answering the question (as opposed to gibberish, "+
			"an empty response, or something unrelated)? Reply with exactly one word: yes or no.",
		question, answer)
}

func correctnessPrompt(question, answer string) string {
	return fmt.Sprintf(
		"Question: %s\nAnswer: %s\n\n"+
			"Is this answer broadly technically correct? Minor omissions are acceptable. "+
			"Reply with exactly one word: yes or no.",
		question, answer)
}

func evaluatePrompt(question, answer string, correct bool) string {
	tone := "The answer was judged correct; acknowledge what was right and suggest one refinement."
	if !correct {
		tone = "The answer was judged incorrect; explain the key mistake and point to the right idea, encouragingly."
	}
	return fmt.Sprintf(
		"Question: %s\nAnswer: %s\n\n"+
			"Write a short critique of this answer in 2-3 sentences, addressed to the candidate. %s",
		question, answer, tone)
}

func feedbackPrompt(transcript []interview.QA) string {
	var b strings.Builder
	b.WriteString("Here is the full transcript of a mock interview:\n\n")
	for _, qa := range transcript {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", qa.Question.Index+1, qa.Question.Text, qa.Question.Index+1, qa.Answer)
	}
	b.WriteString(
		"Write an overall assessment with exactly these sections, using these exact headers:\n" +
			"STRENGTHS:\n- one strength per line\n" +
			"WEAKNESSES:\n- one weakness per line\n" +
			"TOPICS:\n- one topic to study per line\n" +
			"RATING: a single integer from 1 to 10\n" +
			"SUMMARY: a short paragraph addressed to the candidate\n")
	return b.String()
}
