package engine

import "time"

// EventKind identifies the event kinds this engine emits. Unlike a
// step-through debugger, there is nothing here to pause, resume, or
// skip — the engine runs a request to completion or failure.
type EventKind string

const (
	EventRunStarted  EventKind = "run.started"
	EventNodeStarted EventKind = "node.started"
	EventNodeFinished EventKind = "node.finished"
	EventNodeFailed  EventKind = "node.failed"
	EventRunFinished EventKind = "run.finished"
)

// Event is a small, structured record of what happened during one
// Execute call. RunID identifies the request; NodeID/NodeType are empty
// on run-level events.
type Event struct {
	Kind     EventKind
	RunID    string
	NodeID   string
	NodeType string
	Time     time.Time
	Elapsed  time.Duration
	Err      error
}

// EventHandler receives Events as they're emitted. A nil handler is
// equivalent to a no-op.
type EventHandler func(Event)
