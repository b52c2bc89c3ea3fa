// Package mock provides test doubles for the stt.Provider and
// stt.SessionHandle interfaces.
//
// The mock Session exposes its transcript channels for tests to push
// partials and finals through, simulating a live recognition stream.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/stt"
)

// Session is a mock stt.SessionHandle. Tests feed transcripts through
// EmitPartial and EmitFinal and end the stream with Close.
type Session struct {
	mu     sync.Mutex
	closed bool

	partials chan stt.Transcript
	finals   chan stt.Transcript

	// SentAudio records every chunk passed to SendAudio.
	SentAudio [][]byte
}

// NewSession creates a mock session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
	}
}

// EmitPartial pushes an interim transcript to the Partials channel.
func (s *Session) EmitPartial(text string, confidence float64) {
	s.partials <- stt.Transcript{Text: text, Confidence: confidence}
}

// EmitFinal pushes a final transcript to the Finals channel.
func (s *Session) EmitFinal(text string, confidence float64) {
	s.finals <- stt.Transcript{Text: text, IsFinal: true, Confidence: confidence}
}

// SendAudio records the chunk. Returns an error after Close.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SentAudio = append(s.SentAudio, cp)
	return nil
}

// Partials returns the partial transcript channel.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the final transcript channel.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close closes both transcript channels. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
	return nil
}

// Provider is a mock stt.Provider that hands out pre-arranged sessions.
type Provider struct {
	mu sync.Mutex

	// Sessions is consumed one entry per StartStream call, in order. When
	// exhausted (or empty), StartStream returns a fresh NewSession().
	Sessions []*Session

	// StartErr, if non-nil, is returned by StartStream instead of a session.
	// StartErrs, when non-empty, is consumed one entry per call first (a nil
	// entry means success), letting tests script transient failures.
	StartErr  error
	StartErrs []error

	// StartCalls counts StartStream invocations.
	StartCalls int

	// LastConfig is the StreamConfig from the most recent StartStream call.
	LastConfig stt.StreamConfig

	next    int
	errNext int
}

// StartStream implements stt.Provider.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.StartCalls++
	p.LastConfig = cfg

	if p.errNext < len(p.StartErrs) {
		err := p.StartErrs[p.errNext]
		p.errNext++
		if err != nil {
			return nil, err
		}
	} else if p.StartErr != nil {
		return nil, p.StartErr
	}

	if p.next < len(p.Sessions) {
		s := p.Sessions[p.next]
		p.next++
		return s, nil
	}
	return NewSession(), nil
}

// Starts returns the number of StartStream calls so far. Thread-safe.
func (p *Provider) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StartCalls
}

// Compile-time interface assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)
