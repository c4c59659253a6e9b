package onboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		events  []JournalEventType
		want    OperationStatus
		wantErr bool
	}{
		{"started", []JournalEventType{EventStarted}, StatusStarted, false},
		{"succeeded", []JournalEventType{EventStarted, EventSucceeded}, StatusSucceeded, false},
		{"failed", []JournalEventType{EventStarted, EventFailed}, StatusFailed, false},
		{"undone", []JournalEventType{EventStarted, EventSucceeded, EventUndoStarted, EventUndoFinished}, StatusUndoFinished, false},
		{"undo failed", []JournalEventType{EventStarted, EventSucceeded, EventUndoStarted, EventUndoFailed}, StatusUndoFailed, false},
		{"success before start", []JournalEventType{EventSucceeded}, StatusNeverStarted, true},
		{"undo of failed step", []JournalEventType{EventStarted, EventFailed, EventUndoStarted}, StatusFailed, true},
		{"double start", []JournalEventType{EventStarted, EventStarted}, StatusStarted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJournal("saga-1")
			var err error
			for _, e := range tt.events {
				if err = j.Record("op-1", TypeCreateOrgUnit, e); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, j.Status("op-1"))
		})
	}
}

func TestJournalEvents(t *testing.T) {
	j := NewJournal("saga-1")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return at }

	require.NoError(t, j.Record("op-1", TypeCreateOwnerProfile, EventStarted))
	require.NoError(t, j.Record("op-1", TypeCreateOwnerProfile, EventSucceeded))
	require.NoError(t, j.Record("op-2", TypeAssignOwnerRole, EventStarted))
	assert.False(t, j.Unwinding())
	require.NoError(t, j.Record("op-1", TypeCreateOwnerProfile, EventUndoStarted))
	assert.True(t, j.Unwinding())

	events := j.Events()
	require.Len(t, events, 4)
	assert.Equal(t, at, events[0].At)
	assert.Equal(t, "create_owner_profile op-1 succeeded", events[1].String())

	started := j.Filter(EventStarted)
	require.Len(t, started, 2)
	assert.Equal(t, "op-2", started[1].OperationID)

	// Events returns a copy.
	events[0].OperationID = "changed"
	assert.Equal(t, "op-1", j.Events()[0].OperationID)

	out := j.String()
	assert.Contains(t, out, "saga id:   saga-1")
	assert.Contains(t, out, "direction: unwinding")
	assert.Contains(t, out, "004 create_owner_profile op-1 undo_started")
}

func TestJournalStringers(t *testing.T) {
	assert.Equal(t, "undo_finished", EventUndoFinished.String())
	assert.Equal(t, "UndoFailed", StatusUndoFailed.String())
	assert.Contains(t, JournalEventType(42).String(), "Unknown")
	assert.Equal(t, StatusNeverStarted, NewJournal("s").Status("missing"))
}
