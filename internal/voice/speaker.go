package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// AudioSink plays one chunk of raw PCM audio. It should block until the
// chunk has been handed to the output device.
type AudioSink func(pcm []byte) error

// Config tunes a Speaker.
type Config struct {
	// Voice is the TTS voice profile used for every utterance.
	Voice tts.Voice

	// MaxChunkLen caps chunk size in bytes. Default: MaxChunkLen.
	MaxChunkLen int
}

// Speaker converts text to audio through a TTS provider. Speak cancels any
// in-progress utterance first; IsSpeaking stays true for the whole
// multi-chunk utterance.
type Speaker struct {
	provider tts.Provider
	sink     AudioSink
	cfg      Config

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSpeaker creates a Speaker. sink must be non-nil.
func NewSpeaker(provider tts.Provider, sink AudioSink, cfg Config) (*Speaker, error) {
	if provider == nil {
		return nil, errors.New("voice: provider must not be nil")
	}
	if sink == nil {
		return nil, errors.New("voice: sink must not be nil")
	}
	if cfg.MaxChunkLen <= 0 {
		cfg.MaxChunkLen = MaxChunkLen
	}
	return &Speaker{provider: provider, sink: sink, cfg: cfg}, nil
}

// SetVoice changes the voice used for subsequent utterances.
func (s *Speaker) SetVoice(v tts.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Voice = v
}

// Voice returns the currently configured voice.
func (s *Speaker) Voice() tts.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Voice
}

// IsSpeaking reports whether an utterance is in progress.
func (s *Speaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Speak voices text, cancelling any utterance already in progress. It blocks
// until the utterance finishes, is cancelled by Stop, or ctx is done.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	chunks := SplitChunks(text, s.cfg.MaxChunkLen)
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	for s.cancel != nil {
		// Cancel the previous utterance and wait for it to wind down so two
		// utterances never interleave on the sink. Another Speak may have
		// installed a fresh utterance while the lock was released, so keep
		// looping until the slot is actually free.
		prevCancel, prevDone := s.cancel, s.done
		s.mu.Unlock()
		prevCancel()
		<-prevDone
		s.mu.Lock()
	}

	utterCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.speaking = true
	voice := s.cfg.Voice
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.speaking = false
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	return s.synthesize(utterCtx, chunks, voice)
}

// synthesize streams the chunks through the provider and drains audio to the
// sink.
func (s *Speaker) synthesize(ctx context.Context, chunks []string, voice tts.Voice) error {
	textCh := make(chan string)
	audioCh, err := s.provider.SynthesizeStream(ctx, textCh, voice)
	if err != nil {
		close(textCh)
		return fmt.Errorf("voice: start synthesis: %w", err)
	}

	go func() {
		defer close(textCh)
		for _, chunk := range chunks {
			select {
			case textCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case pcm, ok := <-audioCh:
			if !ok {
				return nil
			}
			if err := s.sink(pcm); err != nil {
				return fmt.Errorf("voice: playback: %w", err)
			}
		case <-ctx.Done():
			// Drain in the background so the provider's goroutines can exit.
			go func() {
				for range audioCh {
				}
			}()
			return ctx.Err()
		}
	}
}

// Stop cancels the current utterance immediately and clears IsSpeaking.
// Safe to call when nothing is playing.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Debug("speech output stopped")
}
