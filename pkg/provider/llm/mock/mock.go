// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that callers send correct
// CompletionRequests and to feed controlled responses without a live backend.
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.CompletionResponse{Content: "1. What is a goroutine?"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// If Responses is non-empty, calls consume its entries in order (sticking on
// the last entry once exhausted); otherwise Response/Err are returned for
// every call. Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// Response is returned by Complete when Responses is empty. May be nil.
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Responses, when non-empty, is consumed one entry per call in order.
	// A nil entry means "return Err (or nil, nil)" for that call.
	Responses []*llm.CompletionResponse

	// Calls records every invocation of Complete in order.
	Calls []Call

	next int
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})

	if len(p.Responses) > 0 {
		i := p.next
		if i >= len(p.Responses) {
			i = len(p.Responses) - 1
		}
		p.next++
		if p.Responses[i] == nil {
			return nil, p.Err
		}
		return p.Responses[i], nil
	}

	if p.Err != nil {
		return nil, p.Err
	}
	return p.Response, nil
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Reset clears all recorded calls and the response cursor. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
