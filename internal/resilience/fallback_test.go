package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeProvider is a minimal stand-in for a real backend.
type fakeProvider struct {
	name string
	err  error
}

func newGroup(primaryErr, secondaryErr error) *FallbackGroup[*fakeProvider] {
	fg := NewFallbackGroup(&fakeProvider{name: "primary", err: primaryErr}, "primary", FallbackConfig{
		CircuitBreaker: BreakerConfig{Threshold: 2, Cooldown: 50 * time.Millisecond},
	})
	fg.AddFallback("secondary", &fakeProvider{name: "secondary", err: secondaryErr})
	return fg
}

func TestFallbackPrimarySucceeds(t *testing.T) {
	fg := newGroup(nil, nil)

	got, served, err := ExecuteWithResult(fg, func(p *fakeProvider) (string, error) {
		return p.name, p.err
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "primary" || served != "primary" {
		t.Fatalf("got %q served by %q, want primary/primary", got, served)
	}
}

func TestFallbackFailsOver(t *testing.T) {
	fg := newGroup(errBoom, nil)

	got, served, err := ExecuteWithResult(fg, func(p *fakeProvider) (string, error) {
		return p.name, p.err
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "secondary" || served != "secondary" {
		t.Fatalf("got %q served by %q, want secondary/secondary", got, served)
	}
}

func TestFallbackAllFail(t *testing.T) {
	fg := newGroup(errBoom, errBoom)

	_, _, err := ExecuteWithResult(fg, func(p *fakeProvider) (string, error) {
		return "", p.err
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("ExecuteWithResult() error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackSkipsOpenBreaker(t *testing.T) {
	fg := newGroup(errBoom, nil)

	// Trip the primary's breaker (threshold 2).
	for i := 0; i < 2; i++ {
		fg.Execute(func(p *fakeProvider) error { return p.err })
	}

	primaryCalls := 0
	_, served, err := ExecuteWithResult(fg, func(p *fakeProvider) (string, error) {
		if p.name == "primary" {
			primaryCalls++
		}
		return p.name, p.err
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if primaryCalls != 0 {
		t.Fatalf("primary was called %d times with open breaker, want 0", primaryCalls)
	}
	if served != "secondary" {
		t.Fatalf("served = %q, want secondary", served)
	}
}

func TestFallbackExecute(t *testing.T) {
	fg := newGroup(errBoom, nil)

	visited := []string{}
	err := fg.Execute(func(p *fakeProvider) error {
		visited = append(visited, p.name)
		return p.err
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(visited) != 2 || visited[0] != "primary" || visited[1] != "secondary" {
		t.Fatalf("visited = %v, want [primary secondary]", visited)
	}
}

func TestFallbackNamesAndStates(t *testing.T) {
	fg := newGroup(nil, nil)

	names := fg.Names()
	if len(names) != 2 || names[0] != "primary" || names[1] != "secondary" {
		t.Fatalf("Names() = %v, want [primary secondary]", names)
	}

	states := fg.States()
	if states["primary"] != StateClosed || states["secondary"] != StateClosed {
		t.Fatalf("States() = %v, want all closed", states)
	}
}
