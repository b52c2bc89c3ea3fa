package capture

import (
	"testing"

	"github.com/intervox-ai/intervox/pkg/provider/stt"
)

func interim(text string) stt.Transcript {
	return stt.Transcript{Text: text, Confidence: 0.9}
}

func final(text string, conf float64) stt.Transcript {
	return stt.Transcript{Text: text, IsFinal: true, Confidence: conf}
}

func TestRepeatedCharInterimSuppressedAfterThree(t *testing.T) {
	f := NewFilter(SensitivityMedium)

	// "aaaaaaaa" (len 8, repeated char) is noisy; the first two consecutive
	// occurrences pass, the third and all later ones are suppressed.
	results := make([]bool, 0, 5)
	for i := 0; i < 5; i++ {
		results = append(results, f.AcceptInterim(interim("aaaaaaaa")))
	}
	want := []bool{true, true, false, false, false}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("occurrence %d accepted = %v, want %v", i+1, results[i], want[i])
		}
	}
}

func TestAcceptedInterimResetsStreak(t *testing.T) {
	f := NewFilter(SensitivityMedium)

	f.AcceptInterim(interim("aaaaaaaa"))
	f.AcceptInterim(interim("aaaaaaaa"))
	if !f.AcceptInterim(interim("tell me about goroutines")) {
		t.Fatal("clean interim rejected")
	}
	// Streak was reset, so the next noisy interims start counting again.
	if !f.AcceptInterim(interim("aaaaaaaa")) {
		t.Fatal("first noisy interim after reset was suppressed")
	}
}

func TestShortInterimIsNoisy(t *testing.T) {
	f := NewFilter(SensitivityMedium) // MinLength 4
	f.AcceptInterim(interim("um"))
	f.AcceptInterim(interim("uh"))
	if f.AcceptInterim(interim("hm")) {
		t.Fatal("third consecutive short interim not suppressed")
	}
}

func TestFinalBelowConfidenceFloorDropped(t *testing.T) {
	f := NewFilter(SensitivityMedium) // floor 0.55
	if f.AcceptFinal(final("a perfectly good answer", 0.40)) {
		t.Fatal("low-confidence final accepted")
	}
	if !f.AcceptFinal(final("a perfectly good answer", 0.80)) {
		t.Fatal("high-confidence final rejected")
	}
	if f.AcceptFinal(final("   ", 0.99)) {
		t.Fatal("blank final accepted")
	}
}

func TestPresetThresholds(t *testing.T) {
	tests := []struct {
		s         Sensitivity
		wantFloor float64
		wantLen   int
	}{
		{SensitivityLow, 0.30, 2},
		{SensitivityMedium, 0.55, 4},
		{SensitivityHigh, 0.75, 8},
		{Sensitivity("bogus"), 0.55, 4},
	}
	for _, tt := range tests {
		cfg := PresetConfig(tt.s)
		if cfg.ConfidenceFloor != tt.wantFloor || cfg.MinLength != tt.wantLen {
			t.Errorf("PresetConfig(%q) = %+v, want floor %v len %d",
				tt.s, cfg, tt.wantFloor, tt.wantLen)
		}
		if cfg.SuppressAfter != 3 {
			t.Errorf("PresetConfig(%q).SuppressAfter = %d, want 3", tt.s, cfg.SuppressAfter)
		}
	}
}

func TestRepeatedPattern(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"aaaaaaaa", true},
		{"aaa", true},
		{"ababababab", true},
		{"ab ab ab", true},
		{"no", false},
		{"goroutines are lightweight", false},
		{"abc", false},
	}
	for _, tt := range tests {
		if got := repeatedPattern(tt.text); got != tt.want {
			t.Errorf("repeatedPattern(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNextBackoffSchedule(t *testing.T) {
	base, max := defaultRestartBase, defaultRestartMax
	cur := base
	var schedule []string
	for i := 0; i < 6; i++ {
		schedule = append(schedule, cur.String())
		cur = nextBackoff(cur, max)
	}
	want := []string{"500ms", "1s", "2s", "4s", "8s", "8s"}
	for i := range want {
		if schedule[i] != want[i] {
			t.Fatalf("backoff step %d = %s, want %s (full: %v)", i, schedule[i], want[i], schedule)
		}
	}
}
