package viewbridge

import (
	"sync"

	"github.com/bytedance/sonic"
)

// EventKind tags an Event. Numeric values are part of the host contract.
type EventKind int

const (
	// EventCommand is a script-originated host command call.
	EventCommand EventKind = iota
	// EventConsole is a console message from page script.
	EventConsole
	// EventCursor signals a cursor change.
	EventCursor
	// EventLoad is a load lifecycle notification.
	EventLoad
	// EventLog is an internal log line.
	EventLog
	// EventError is an internal error line.
	EventError
	// EventViewCreated announces a new view and its capability token.
	EventViewCreated
)

// String returns the kind's wire name.
func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "Command"
	case EventConsole:
		return "Console"
	case EventCursor:
		return "Cursor"
	case EventLoad:
		return "Load"
	case EventLog:
		return "Log"
	case EventError:
		return "Error"
	case EventViewCreated:
		return "ViewCreated"
	default:
		return "Unknown"
	}
}

// Event is one observation delivered to the host. ViewName is empty for
// process-wide events. Data holds the kind's payload struct; events are
// immutable once queued.
type Event struct {
	Kind     EventKind
	ViewName string
	Data     any
}

// EncodeData returns the payload as JSON.
func (e Event) EncodeData() (string, error) {
	return sonic.MarshalString(e.Data)
}

// EventHandler receives drained events, one call per event, in queue order.
type EventHandler func(Event)

// CommandPayload carries a script-originated host command.
type CommandPayload struct {
	Command string `json:"command"`
	Args    string `json:"args"`
}

// ConsolePayload carries a page console message.
type ConsolePayload struct {
	Level    int    `json:"level"`
	Message  string `json:"message"`
	SourceID string `json:"sourceId"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// CursorPayload carries a cursor change.
type CursorPayload struct {
	CursorType int `json:"cursorType"`
}

// LoadPhase identifies a point in the load lifecycle.
type LoadPhase int

const (
	LoadBegin LoadPhase = iota
	LoadFinish
	LoadFail
	LoadDOMReady
	LoadWindowObjectReady
)

// LoadPayload carries a load lifecycle notification. The error fields are
// populated only for LoadFail.
type LoadPayload struct {
	Phase            LoadPhase `json:"loadEventType"`
	FrameID          string    `json:"frameId"`
	URL              string    `json:"url"`
	ErrorDescription string    `json:"errorDescription,omitempty"`
	ErrorDomain      string    `json:"errorDomain,omitempty"`
	ErrorCode        int       `json:"errorCode,omitempty"`
}

// MessagePayload carries Log and Error event text.
type MessagePayload struct {
	Message string `json:"message"`
}

// ViewCreatedPayload carries the capability token for a freshly created view.
type ViewCreatedPayload struct {
	SecurityToken string `json:"securityToken"`
}

// eventQueue is the ordered outbox from the render thread to the host.
// Queue may be called from the render goroutine at any point, including from
// inside engine callbacks; drain swaps the backlog out under the lock so
// delivery runs without holding it.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

func (q *eventQueue) queue(evt Event) {
	q.mu.Lock()
	q.events = append(q.events, evt)
	q.mu.Unlock()
}

func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	drained := q.events
	q.events = nil
	q.mu.Unlock()
	return drained
}
