package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"initializing to running", StatusInitializing, StatusRunning, true},
		{"initializing to waiting", StatusInitializing, StatusWaiting, false},
		{"running to waiting", StatusRunning, StatusWaiting, true},
		{"waiting to running", StatusWaiting, StatusRunning, true},
		{"running to stopped", StatusRunning, StatusStopped, true},
		{"waiting to stopped", StatusWaiting, StatusStopped, true},
		{"stopped to running (resume)", StatusStopped, StatusRunning, true},
		{"error to running (resume)", StatusError, StatusRunning, true},
		{"stopped to waiting", StatusStopped, StatusWaiting, false},
		{"any to error", StatusRunning, StatusError, true},
		{"initializing to error", StatusInitializing, StatusError, true},
		{"any to archived", StatusWaiting, StatusArchived, true},
		{"stopped to archived", StatusStopped, StatusArchived, true},
		{"archived to running", StatusArchived, StatusRunning, false},
		{"archived to error", StatusArchived, StatusError, false},
		{"archived to archived", StatusArchived, StatusArchived, false},
		{"self transition", StatusRunning, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionTo_LegalUpdatesStatus(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusInitializing}

	require.NoError(t, s.TransitionTo(StatusRunning))
	assert.Equal(t, StatusRunning, s.Status)

	require.NoError(t, s.TransitionTo(StatusWaiting))
	assert.Equal(t, StatusWaiting, s.Status)
}

func TestTransitionTo_IllegalKeepsStatus(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusArchived}

	err := s.TransitionTo(StatusRunning)

	require.Error(t, err)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusArchived, terr.From)
	assert.Equal(t, StatusArchived, s.Status, "status must not change on illegal transition")
}

func TestTransitionTo_ArchiveSetsFlag(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusStopped}

	require.NoError(t, s.TransitionTo(StatusArchived))

	assert.True(t, s.IsArchived)
}
