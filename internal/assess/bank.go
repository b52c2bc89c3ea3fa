package assess

import "strings"

// questionBank is the deterministic local question tier, keyed by topic
// keywords. Topics are matched by keyword containment; unmatched topics fall
// through to the generic bank with the topic spliced in.
var questionBank = map[string][]string{
	"go": {
		"How do goroutines differ from operating system threads?",
		"When would you use a buffered channel instead of an unbuffered one?",
		"Explain how defer, panic, and recover interact.",
		"What does it mean that interfaces in Go are satisfied implicitly?",
		"How does the select statement behave when multiple cases are ready?",
		"What is the zero value of a map, and what happens when you write to it?",
		"How would you detect and fix a data race in a Go program?",
		"Explain the difference between a slice's length and its capacity.",
		"How does context cancellation propagate through an API call chain?",
		"When is it appropriate to use sync.Mutex versus a channel?",
	},
	"python": {
		"What is the difference between a list and a tuple, and when does it matter?",
		"Explain how Python's GIL affects multi-threaded programs.",
		"How do generators differ from regular functions returning lists?",
		"What are decorators and what problems do they solve?",
		"How does Python resolve attribute lookup on an instance?",
		"Explain the difference between shallow and deep copies.",
		"What is a context manager and how does the with statement use it?",
		"How would you profile a slow Python program?",
		"Explain how asyncio's event loop schedules coroutines.",
		"What are dataclasses and when would you prefer them to dicts?",
	},
	"javascript": {
		"Explain how closures work and give a practical use case.",
		"What is the event loop and how do microtasks differ from macrotasks?",
		"How does prototypal inheritance differ from classical inheritance?",
		"What problems do Promises solve compared to callbacks?",
		"Explain the difference between var, let, and const.",
		"What does the this keyword refer to in different calling contexts?",
		"How does async/await relate to Promises under the hood?",
		"What is hoisting and how does it affect function declarations?",
		"Explain how module bundlers resolve and deduplicate dependencies.",
		"What are WeakMap and WeakSet useful for?",
	},
	"react": {
		"How does the virtual DOM reconciliation process decide what to re-render?",
		"When should state live in a component versus a shared store?",
		"Explain the rules of hooks and why they exist.",
		"What problems does useMemo solve, and when is it counterproductive?",
		"How do controlled and uncontrolled form components differ?",
		"What is the purpose of keys when rendering lists?",
		"Explain how useEffect's dependency array controls when effects run?",
		"How would you prevent unnecessary re-renders in a large component tree?",
		"What are error boundaries and what can't they catch?",
		"How does server-side rendering change the component lifecycle?",
	},
	"sql": {
		"What is the difference between an INNER JOIN and a LEFT JOIN?",
		"When would you add an index, and what does it cost you?",
		"Explain the difference between WHERE and HAVING.",
		"What are transaction isolation levels and why do they matter?",
		"How would you find and eliminate an N+1 query problem?",
		"What is a covering index and when does the planner use one?",
		"Explain normalization and a case where you would denormalize.",
		"How do window functions differ from GROUP BY aggregation?",
		"What causes deadlocks in a relational database and how do you avoid them?",
		"How would you paginate a large result set efficiently?",
	},
	"system design": {
		"How would you design a URL shortener that handles a billion links?",
		"What trade-offs does horizontal scaling introduce compared to vertical scaling?",
		"Explain the CAP theorem with a concrete system as an example.",
		"When would you introduce a message queue between two services?",
		"How do you keep a cache consistent with its backing store?",
		"What is a load balancer's role, and how do health checks affect routing?",
		"How would you design rate limiting for a public API?",
		"Explain eventual consistency and a product scenario where it is acceptable.",
		"What belongs in a service's health check, and what should stay out?",
		"How would you approach sharding a relational database?",
	},
}

// genericBank covers topics with no keyword match. The %s placeholder is
// replaced with the session topic.
var genericBank = []string{
	"What attracted you to working with %s?",
	"Describe a challenging problem you solved using %s.",
	"What are the most common beginner mistakes in %s?",
	"How do you keep your %s knowledge up to date?",
	"Walk me through how you would debug a production issue in a %s system.",
	"What %s best practices do you consider non-negotiable?",
	"How would you explain %s to a non-technical colleague?",
	"What tooling do you rely on when working with %s?",
	"Describe how you would test a %s application thoroughly.",
	"Where do you see the %s ecosystem heading in the next few years?",
}

// bankFor selects the bank whose keyword appears in the topic. The generic
// bank is instantiated with the topic itself.
func bankFor(topic string) []string {
	lower := strings.ToLower(topic)
	for key, bank := range questionBank {
		if strings.Contains(lower, key) {
			return bank
		}
	}
	out := make([]string, len(genericBank))
	for i, tmpl := range genericBank {
		out[i] = strings.ReplaceAll(tmpl, "%s", topic)
	}
	return out
}

// FallbackQuestions returns exactly count questions from the local bank for
// topic, skipping any text present in avoid. If the bank runs out, entries
// are reused with an ordinal suffix so the count contract always holds.
func FallbackQuestions(topic string, count int, avoid []string) []string {
	bank := bankFor(topic)
	avoidSet := make(map[string]struct{}, len(avoid))
	for _, a := range avoid {
		avoidSet[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	out := make([]string, 0, count)
	for _, q := range bank {
		if len(out) == count {
			break
		}
		if _, skip := avoidSet[strings.ToLower(q)]; skip {
			continue
		}
		out = append(out, q)
	}
	// Pad by cycling the bank with a variation marker. Only reachable with
	// very large counts or an avoid list covering the whole bank.
	for i := 0; len(out) < count; i++ {
		out = append(out, bank[i%len(bank)]+" (in more depth)")
	}
	return out
}
