package events

import "time"

// EventType identifies the kind of event emitted during a run.
type EventType string

const (
	EventSuiteStart     EventType = "suite.start"
	EventSuiteEnd       EventType = "suite.end"
	EventCheckStart     EventType = "check.start"
	EventCheckPass      EventType = "check.pass"
	EventCheckFail      EventType = "check.fail"
	EventCheckError     EventType = "check.error"
	EventCheckSkipped   EventType = "check.skipped"
	EventHistorySaved   EventType = "history.saved"
	EventIssuePublished EventType = "issue.published"
	EventWatchTriggered EventType = "watch.triggered"
)

// Event represents a single run event.
type Event struct {
	Type       EventType     `json:"type"`
	Timestamp  time.Time     `json:"timestamp"`
	Data       any           `json:"data"`
	CheckIndex int           `json:"check_index,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}
