package interview

// EventType classifies state-machine notifications.
type EventType string

const (
	// EventPhaseChanged fires on every phase transition.
	EventPhaseChanged EventType = "phase_changed"

	// EventQuestionChanged fires when the current question changes (advance,
	// navigate, skip, replace).
	EventQuestionChanged EventType = "question_changed"

	// EventPrompt carries text the user should read or hear (setup prompts,
	// critiques).
	EventPrompt EventType = "prompt"

	// EventWarning carries a transient validation message; the phase did not
	// change.
	EventWarning EventType = "warning"

	// EventWaiting fires periodically while a long-running AI operation is in
	// flight, with escalating messaging.
	EventWaiting EventType = "waiting"

	// EventFeedbackReady fires once when the session reaches the feedback
	// phase. Event.Feedback is set.
	EventFeedbackReady EventType = "feedback_ready"

	// EventSessionEnded fires once when the session is explicitly ended.
	EventSessionEnded EventType = "session_ended"
)

// Event is a state-machine notification. Only the fields relevant to the
// event type are set.
type Event struct {
	Type    EventType
	Phase   Phase
	Message string

	// Question is set for EventQuestionChanged.
	Question *Question

	// Feedback is set for EventFeedbackReady.
	Feedback *Feedback
}

// Observer receives state-machine events. Notify is called synchronously
// while the machine holds its lock, so implementations must return quickly
// and must not call back into the machine; hand expensive work to a
// goroutine or channel.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }
