package onboard

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// JournalEventType defines what happened to an operation.
type JournalEventType int

const (
	EventStarted JournalEventType = iota
	EventSucceeded
	EventFailed
	EventUndoStarted
	EventUndoFinished
	EventUndoFailed
)

// String returns the string representation of the JournalEventType.
func (e JournalEventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventUndoStarted:
		return "undo_started"
	case EventUndoFinished:
		return "undo_finished"
	case EventUndoFailed:
		return "undo_failed"
	default:
		return fmt.Sprintf("Unknown JournalEventType: %d", e)
	}
}

// JournalEvent is one entry in the journal.
type JournalEvent struct {
	OperationID string
	Type        OperationType
	Event       JournalEventType
	At          time.Time
}

// String implements the fmt.Stringer interface for JournalEvent.
func (e JournalEvent) String() string {
	return fmt.Sprintf("%s %s %s", e.Type, e.OperationID, e.Event)
}

// OperationStatus is the status of one operation derived from its events.
type OperationStatus int

const (
	StatusNeverStarted OperationStatus = iota
	StatusStarted
	StatusSucceeded
	StatusFailed
	StatusUndoStarted
	StatusUndoFinished
	StatusUndoFailed
)

// String returns the string representation of the OperationStatus.
func (s OperationStatus) String() string {
	switch s {
	case StatusNeverStarted:
		return "NeverStarted"
	case StatusStarted:
		return "Started"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusUndoStarted:
		return "UndoStarted"
	case StatusUndoFinished:
		return "UndoFinished"
	case StatusUndoFailed:
		return "UndoFailed"
	default:
		return fmt.Sprintf("Unknown OperationStatus: %d", s)
	}
}

// nextStatus returns the new status for an operation after recording event.
func (s OperationStatus) nextStatus(event JournalEventType) (OperationStatus, error) {
	switch s {
	case StatusNeverStarted:
		if event == EventStarted {
			return StatusStarted, nil
		}
	case StatusStarted:
		switch event {
		case EventSucceeded:
			return StatusSucceeded, nil
		case EventFailed:
			return StatusFailed, nil
		}
	case StatusSucceeded:
		if event == EventUndoStarted {
			return StatusUndoStarted, nil
		}
	case StatusUndoStarted:
		switch event {
		case EventUndoFinished:
			return StatusUndoFinished, nil
		case EventUndoFailed:
			return StatusUndoFailed, nil
		}
	}
	return StatusNeverStarted, fmt.Errorf("illegal event %s for current status %v", event, s)
}

// Journal is the in-memory event log of one saga. It is diagnostic only:
// the ledger, not the journal, drives compensation.
type Journal struct {
	mu        sync.Mutex
	sagaID    string
	unwinding bool
	events    []JournalEvent
	status    map[string]OperationStatus
	now       func() time.Time
}

// NewJournal creates an empty journal.
func NewJournal(sagaID string) *Journal {
	return &Journal{
		sagaID: sagaID,
		status: make(map[string]OperationStatus),
		now:    time.Now,
	}
}

// Record appends an event, rejecting transitions that make no sense for the
// operation's current status.
func (j *Journal) Record(operationID string, t OperationType, event JournalEventType) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	next, err := j.status[operationID].nextStatus(event)
	if err != nil {
		return fmt.Errorf("operation %s: %w", operationID, err)
	}
	if next == StatusUndoStarted {
		j.unwinding = true
	}
	j.status[operationID] = next
	j.events = append(j.events, JournalEvent{
		OperationID: operationID,
		Type:        t,
		Event:       event,
		At:          j.now(),
	})
	return nil
}

// Status returns the current status of an operation.
func (j *Journal) Status(operationID string) OperationStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status[operationID]
}

// Unwinding reports whether any compensation has started.
func (j *Journal) Unwinding() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.unwinding
}

// Events returns a copy of the recorded events.
func (j *Journal) Events() []JournalEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEvent(nil), j.events...)
}

// Filter returns the events of the given type, in order.
func (j *Journal) Filter(event JournalEventType) []JournalEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []JournalEvent
	for _, e := range j.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// String pretty-prints the journal.
func (j *Journal) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("SAGA JOURNAL:\n")
	sb.WriteString(fmt.Sprintf("saga id:   %s\n", j.sagaID))
	direction := "forward"
	if j.unwinding {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction: %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(j.events)))
	sb.WriteString("\n")
	for i, e := range j.events {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, e.String()))
	}
	return sb.String()
}
