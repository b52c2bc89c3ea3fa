package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"stt": {"deepgram"},
	"tts": {"elevenlabs"},
}

// ValidSensitivities lists the recognised capture sensitivity presets.
var ValidSensitivities = []string{"low", "medium", "high"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLMPrimary.Name)
	validateProviderName("llm", cfg.Providers.LLMSecondary.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Provider availability warnings
	if cfg.Providers.LLMPrimary.Name == "" {
		slog.Warn("providers.llm_primary is not configured; all assessment will use the local question bank and templated feedback")
	}
	if cfg.Providers.LLMSecondary.Name != "" && cfg.Providers.LLMPrimary.Name == "" {
		errs = append(errs, errors.New("providers.llm_secondary is set without providers.llm_primary"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; answers must be typed")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; prompts will be text-only")
	}

	// Interview
	if cfg.Interview.MinAnswerChars < 0 {
		errs = append(errs, fmt.Errorf("interview.min_answer_chars %d must not be negative", cfg.Interview.MinAnswerChars))
	}
	if cfg.Interview.LoadingTimeout < 0 || cfg.Interview.FeedbackTimeout < 0 || cfg.Interview.WaitingInterval < 0 {
		errs = append(errs, errors.New("interview timeouts must not be negative"))
	}

	// Capture
	if cfg.Capture.Sensitivity != "" && !slices.Contains(ValidSensitivities, cfg.Capture.Sensitivity) {
		errs = append(errs, fmt.Errorf("capture.sensitivity %q is invalid; valid values: low, medium, high", cfg.Capture.Sensitivity))
	}
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}

	// Voice
	if cfg.Voice.SpeedFactor != 0 {
		if cfg.Voice.SpeedFactor < 0.5 || cfg.Voice.SpeedFactor > 2.0 {
			errs = append(errs, fmt.Errorf("voice.speed_factor %.2f is out of range [0.5, 2.0]", cfg.Voice.SpeedFactor))
		}
	}
	if cfg.Voice.PitchShift < -10 || cfg.Voice.PitchShift > 10 {
		errs = append(errs, fmt.Errorf("voice.pitch_shift %.2f is out of range [-10, 10]", cfg.Voice.PitchShift))
	}
	if cfg.Voice.VoiceID != "" && cfg.Providers.TTS.Name == "" {
		slog.Warn("voice.voice_id is set but providers.tts is not configured; the voice will not be used")
	}

	// History
	if cfg.History.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("history.recent_limit %d must not be negative", cfg.History.RecentLimit))
	}
	if cfg.History.RecentLimit > 0 && cfg.History.PostgresDSN == "" {
		slog.Warn("history.recent_limit is set but history.postgres_dsn is empty; outcomes will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
