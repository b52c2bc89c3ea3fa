package assess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/intervox-ai/intervox/internal/interview"
)

// listItemRe strips numbered ("1.", "2)") and bulleted ("-", "*", "•")
// prefixes from a response line.
var listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// parseNumberedList extracts list items from a model response, tolerating
// numbered lists, bullets, and plain lines. Markdown emphasis and wrapping
// quotes are stripped. Empty lines and obvious preamble lines ending in a
// colon are ignored.
func parseNumberedList(content string) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stripped := listItemRe.ReplaceAllString(line, "")
		stripped = strings.Trim(stripped, `"'`)
		stripped = strings.Trim(stripped, "*_")
		stripped = strings.TrimSpace(stripped)
		if stripped == "" {
			continue
		}
		// Preamble like "Here are your questions:" ends with a colon and is
		// not itself a question.
		if strings.HasSuffix(stripped, ":") && !strings.Contains(stripped, "?") {
			continue
		}
		items = append(items, stripped)
	}
	return items
}

// parseYesNo interprets a yes/no model reply. The first recognisable token
// wins; anything else is a parse failure (which moves the failover chain on).
func parseYesNo(content string) (bool, error) {
	text := strings.ToLower(strings.TrimSpace(content))
	text = strings.Trim(text, `."'!`)
	switch {
	case text == "yes" || strings.HasPrefix(text, "yes,") || strings.HasPrefix(text, "yes."),
		strings.HasPrefix(text, "yes "):
		return true, nil
	case text == "no" || strings.HasPrefix(text, "no,") || strings.HasPrefix(text, "no."),
		strings.HasPrefix(text, "no "):
		return false, nil
	}
	return false, fmt.Errorf("assess: ambiguous yes/no reply %q", truncate(content, 40))
}

var ratingRe = regexp.MustCompile(`\d+`)

// parseFeedback parses the sectioned feedback format requested by
// feedbackPrompt. Headers are matched case-insensitively and tolerate
// markdown decoration. The parsed record must be structurally valid.
func parseFeedback(content string) (interview.Feedback, error) {
	var fb interview.Feedback
	section := ""
	var summary []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		header, rest := splitHeader(line)
		switch header {
		case "strengths":
			section = header
			line = rest
		case "weaknesses":
			section = header
			line = rest
		case "topics", "suggested topics":
			section = "topics"
			line = rest
		case "rating", "overall rating":
			section = ""
			if m := ratingRe.FindString(rest); m != "" {
				fb.OverallRating, _ = strconv.Atoi(m)
			}
			continue
		case "summary":
			section = "summary"
			line = rest
		}
		if line == "" {
			continue
		}

		item := strings.TrimSpace(listItemRe.ReplaceAllString(line, ""))
		switch section {
		case "strengths":
			fb.Strengths = append(fb.Strengths, item)
		case "weaknesses":
			fb.Weaknesses = append(fb.Weaknesses, item)
		case "topics":
			fb.SuggestedTopics = append(fb.SuggestedTopics, item)
		case "summary":
			summary = append(summary, line)
		}
	}

	fb.Narrative = strings.Join(summary, " ")
	if fb.Narrative == "" {
		return interview.Feedback{}, fmt.Errorf("assess: feedback missing summary")
	}
	if !fb.Valid() {
		return interview.Feedback{}, fmt.Errorf("assess: feedback structurally incomplete")
	}
	return fb, nil
}

// splitHeader checks whether a line starts with a known section header and
// returns the normalised header name plus any text after the colon.
func splitHeader(line string) (header, rest string) {
	clean := strings.Trim(line, "#* ")
	idx := strings.Index(clean, ":")
	if idx < 0 {
		return "", line
	}
	name := strings.ToLower(strings.TrimSpace(clean[:idx]))
	switch name {
	case "strengths", "weaknesses", "topics", "suggested topics", "rating", "overall rating", "summary":
		return name, strings.Trim(clean[idx+1:], "*_ ")
	}
	return "", line
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
