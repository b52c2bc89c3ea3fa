// Package capture wraps a streaming STT provider into the interview's speech
// input path: it filters noise from interim and final transcripts and keeps
// the recognition stream alive with auto-restart and backoff.
//
// The whole package is optional for correctness - typed input reaches the
// state machine through the same entry points with identical validation.
package capture

import (
	"strings"

	"github.com/intervox-ai/intervox/pkg/provider/stt"
)

// Sensitivity selects a noise-filter preset.
type Sensitivity string

const (
	// SensitivityLow lets most speech through; for quiet environments.
	SensitivityLow Sensitivity = "low"

	// SensitivityMedium is the default.
	SensitivityMedium Sensitivity = "medium"

	// SensitivityHigh drops anything marginal; for noisy environments.
	SensitivityHigh Sensitivity = "high"
)

// FilterConfig holds the thresholds behind a sensitivity preset.
type FilterConfig struct {
	// ConfidenceFloor drops final transcripts below this confidence.
	ConfidenceFloor float64

	// MinLength marks interim transcripts shorter than this as noisy.
	MinLength int

	// SuppressAfter is the number of consecutive noisy interims after which
	// further noisy interims are suppressed. The counter resets on any
	// accepted transcript.
	SuppressAfter int
}

// PresetConfig maps a sensitivity onto concrete thresholds. Unknown values
// get the medium preset.
func PresetConfig(s Sensitivity) FilterConfig {
	switch s {
	case SensitivityLow:
		return FilterConfig{ConfidenceFloor: 0.30, MinLength: 2, SuppressAfter: 3}
	case SensitivityHigh:
		return FilterConfig{ConfidenceFloor: 0.75, MinLength: 8, SuppressAfter: 3}
	default:
		return FilterConfig{ConfidenceFloor: 0.55, MinLength: 4, SuppressAfter: 3}
	}
}

// Filter applies the noise-rejection policy to a transcript stream. Not safe
// for concurrent use; each stream gets its own Filter.
type Filter struct {
	cfg         FilterConfig
	noisyStreak int
}

// NewFilter creates a Filter for the given preset.
func NewFilter(s Sensitivity) *Filter {
	return &Filter{cfg: PresetConfig(s)}
}

// AcceptInterim reports whether an interim transcript should be forwarded
// (for display only; interims never reach the state machine as answers).
// Noisy interims pass through until SuppressAfter consecutive occurrences,
// then are suppressed until an accepted transcript resets the counter.
func (f *Filter) AcceptInterim(t stt.Transcript) bool {
	if f.noisy(t.Text) {
		f.noisyStreak++
		return f.noisyStreak < f.cfg.SuppressAfter
	}
	f.noisyStreak = 0
	return true
}

// AcceptFinal reports whether a final transcript should be forwarded to the
// state machine. Finals below the confidence floor are dropped entirely.
func (f *Filter) AcceptFinal(t stt.Transcript) bool {
	if t.Confidence < f.cfg.ConfidenceFloor {
		return false
	}
	if strings.TrimSpace(t.Text) == "" {
		return false
	}
	f.noisyStreak = 0
	return true
}

// noisy applies the length and repeated-pattern heuristics.
func (f *Filter) noisy(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < f.cfg.MinLength {
		return true
	}
	return repeatedPattern(trimmed)
}

// repeatedPattern detects keyboard-mash and echo artifacts: one character
// repeated, or a long run drawn from at most two distinct characters
// ("aaaaaaaa", "ababababab").
func repeatedPattern(s string) bool {
	runes := []rune(strings.ToLower(strings.ReplaceAll(s, " ", "")))
	if len(runes) < 3 {
		return false
	}
	distinct := make(map[rune]struct{}, 4)
	for _, r := range runes {
		distinct[r] = struct{}{}
		if len(distinct) > 2 {
			return false
		}
	}
	if len(distinct) == 1 {
		return true
	}
	return len(runes) >= 6
}
