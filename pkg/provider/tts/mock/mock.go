// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// Call records a single SynthesizeStream invocation: the voice used and the
// text fragments consumed from the input channel.
type Call struct {
	Voice     tts.Voice
	Fragments []string
}

// Provider is a mock tts.Provider. For every text fragment it consumes it
// emits AudioPerFragment (or a single zero byte when unset) on the audio
// channel, then closes the channel when the text channel closes.
type Provider struct {
	mu sync.Mutex

	// SynthesizeErr, if non-nil, is returned by SynthesizeStream.
	SynthesizeErr error

	// AudioPerFragment is the chunk emitted for each consumed fragment.
	AudioPerFragment []byte

	// Voices is returned by ListVoices. ListVoicesErr takes precedence.
	Voices        []tts.Voice
	ListVoicesErr error

	// Calls records completed and in-flight SynthesizeStream invocations.
	Calls []*Call
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	p.mu.Lock()
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	call := &Call{Voice: voice}
	p.Calls = append(p.Calls, call)
	chunk := p.AudioPerFragment
	p.mu.Unlock()

	if chunk == nil {
		chunk = []byte{0}
	}

	audioCh := make(chan []byte, 64)
	go func() {
		defer close(audioCh)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				p.mu.Lock()
				call.Fragments = append(call.Fragments, fragment)
				p.mu.Unlock()
				select {
				case audioCh <- chunk:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioCh, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.Voices, nil
}

// FragmentsOf returns the fragments recorded for call i, or nil if out of range.
func (p *Provider) FragmentsOf(i int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.Calls) {
		return nil
	}
	out := make([]string, len(p.Calls[i].Fragments))
	copy(out, p.Calls[i].Fragments)
	return out
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
