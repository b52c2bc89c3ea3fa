package interview

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

// ErrTopicTooShort is returned by ValidateTopic for topics under two
// characters after trimming.
var ErrTopicTooShort = errors.New("interview: topic must be at least 2 characters")

// ErrBadCount is returned by ParseQuestionCount when no integer in [1, 10]
// can be extracted from the input.
var ErrBadCount = errors.New("interview: question count must be a number from 1 to 10")

// Keyword tables for experience-level matching. These are reasonable defaults
// rather than a contract; products may tune them.
var (
	BeginnerKeywords = []string{"beginner", "junior", "new", "entry", "starting", "novice", "fresher"}
	ExpertKeywords   = []string{"expert", "senior", "advanced", "lead", "principal", "staff", "architect"}
	// Intermediate is the default, so its keywords only matter for logging.
	IntermediateKeywords = []string{"intermediate", "mid", "middle", "regular", "average"}
)

// jwThreshold is the Jaro-Winkler similarity above which a token is treated
// as a misspelled keyword ("intermedate", "beginer").
const jwThreshold = 0.92

// ValidateTopic trims the input and checks the minimum length. Returns the
// trimmed topic on success.
func ValidateTopic(input string) (string, error) {
	topic := strings.TrimSpace(input)
	if len(topic) < 2 {
		return "", ErrTopicTooShort
	}
	return topic, nil
}

// ParseExperienceLevel fuzzy-matches free text onto a Level. Keyword
// containment wins first; otherwise each token is compared against the
// keyword tables with Jaro-Winkler similarity to catch near-misses. Ambiguous
// or unmatched input defaults to intermediate.
func ParseExperienceLevel(input string) Level {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return LevelIntermediate
	}

	for _, kw := range BeginnerKeywords {
		if strings.Contains(text, kw) {
			return LevelBeginner
		}
	}
	for _, kw := range ExpertKeywords {
		if strings.Contains(text, kw) {
			return LevelExpert
		}
	}
	for _, kw := range IntermediateKeywords {
		if strings.Contains(text, kw) {
			return LevelIntermediate
		}
	}

	// Fuzzy pass over individual tokens.
	for _, tok := range strings.Fields(text) {
		if lvl, ok := fuzzyLevel(tok); ok {
			return lvl
		}
	}
	return LevelIntermediate
}

// fuzzyLevel checks a single token against all keyword tables.
func fuzzyLevel(tok string) (Level, bool) {
	type table struct {
		level Level
		words []string
	}
	for _, tbl := range []table{
		{LevelBeginner, BeginnerKeywords},
		{LevelExpert, ExpertKeywords},
		{LevelIntermediate, IntermediateKeywords},
	} {
		for _, kw := range tbl.words {
			if matchr.JaroWinkler(tok, kw, false) >= jwThreshold {
				return tbl.level, true
			}
		}
	}
	return "", false
}

var countRe = regexp.MustCompile(`\d+`)

// ParseQuestionCount extracts the first integer from free text and validates
// it against the 1–10 range.
func ParseQuestionCount(input string) (int, error) {
	m := countRe.FindString(input)
	if m == "" {
		return 0, ErrBadCount
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > 10 {
		return 0, ErrBadCount
	}
	return n, nil
}
