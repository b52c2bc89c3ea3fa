package config

import (
	"strings"
	"testing"
	"time"
)

const fullConfig = `
server:
  listen_addr: ":8080"
  log_level: debug
providers:
  llm_primary:
    name: openai
    api_key: sk-test
    model: gpt-4o
  llm_secondary:
    name: ollama
    base_url: http://localhost:11434
    model: llama3
  stt:
    name: deepgram
    api_key: dg-test
    model: nova-2
  tts:
    name: elevenlabs
    api_key: el-test
interview:
  min_answer_chars: 20
  loading_timeout: 25s
  feedback_timeout: 30s
  waiting_interval: 5s
capture:
  sensitivity: high
  language: en-US
  sample_rate: 16000
voice:
  voice_id: pNInz6obpgDQGcFmaJgB
  name: Adam
  pitch_shift: -2
  speed_factor: 1.1
history:
  postgres_dsn: postgres://localhost:5432/intervox
  recent_limit: 20
prefs:
  path: /tmp/intervox-prefs.yaml
`

func TestLoadFromReaderFullConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("Server.LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLMPrimary.Name != "openai" || cfg.Providers.LLMPrimary.Model != "gpt-4o" {
		t.Errorf("LLMPrimary = %+v", cfg.Providers.LLMPrimary)
	}
	if cfg.Providers.LLMSecondary.BaseURL != "http://localhost:11434" {
		t.Errorf("LLMSecondary.BaseURL = %q", cfg.Providers.LLMSecondary.BaseURL)
	}
	if cfg.Interview.LoadingTimeout.Std() != 25*time.Second {
		t.Errorf("Interview.LoadingTimeout = %v, want 25s", cfg.Interview.LoadingTimeout.Std())
	}
	if cfg.Capture.Sensitivity != "high" || cfg.Capture.SampleRate != 16000 {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.Voice.SpeedFactor != 1.1 {
		t.Errorf("Voice.SpeedFactor = %v, want 1.1", cfg.Voice.SpeedFactor)
	}
	if cfg.History.RecentLimit != 20 {
		t.Errorf("History.RecentLimit = %d, want 20", cfg.History.RecentLimit)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("serverr:\n  listen_addr: ':1'\n"))
	if err == nil {
		t.Fatal("LoadFromReader() error = nil for unknown top-level field")
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("interview:\n  loading_timeout: soon\n"))
	if err == nil {
		t.Fatal("LoadFromReader() error = nil for unparseable duration")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{LogLevel: "verbose"},
		Providers: ProvidersConfig{LLMSecondary: ProviderEntry{Name: "ollama"}},
		Capture:   CaptureConfig{Sensitivity: "extreme"},
		Voice:     VoiceConfig{SpeedFactor: 3.0, PitchShift: 15},
		History:   HistoryConfig{RecentLimit: -1},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{
		"server.log_level",
		"llm_secondary",
		"capture.sensitivity",
		"voice.speed_factor",
		"voice.pitch_shift",
		"history.recent_limit",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestValidateZeroConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Fatalf("Validate(zero) error = %v", err)
	}
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("%q.IsValid() = false", l)
		}
	}
	if LogLevel("trace").IsValid() {
		t.Error(`"trace".IsValid() = true`)
	}
}
