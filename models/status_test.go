package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Pending":     StatusPending,
		"accepted":    StatusAccepted,
		"In Progress": StatusInProgress,
		"in_progress": StatusInProgress,
		"in-progress": StatusInProgress,
		" RESOLVED ":  StatusResolved,
		"rejected":    StatusRejected,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("Closed")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to Status
		role     Role
	}{
		{StatusPending, StatusAccepted, RoleAdmin},
		{StatusPending, StatusRejected, RoleAdmin},
		{StatusAccepted, StatusInProgress, RoleWorker},
		{StatusInProgress, StatusResolved, RoleWorker},
	}
	for _, c := range allowed {
		assert.NoError(t, CanTransition(c.from, c.to, c.role), "%s->%s as %s", c.from, c.to, c.role)
	}

	assert.ErrorIs(t, CanTransition(StatusPending, StatusAccepted, RoleWorker), ErrForbiddenTransition)
	assert.ErrorIs(t, CanTransition(StatusPending, StatusAccepted, RoleCitizen), ErrForbiddenTransition)
	assert.ErrorIs(t, CanTransition(StatusInProgress, StatusResolved, RoleAdmin), ErrForbiddenTransition)

	assert.ErrorIs(t, CanTransition(StatusPending, StatusResolved, RoleAdmin), ErrInvalidTransition)
	assert.ErrorIs(t, CanTransition(StatusAccepted, StatusPending, RoleAdmin), ErrInvalidTransition)
	assert.ErrorIs(t, CanTransition(StatusRejected, StatusAccepted, RoleAdmin), ErrInvalidTransition)
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, tr := range Transitions() {
		assert.False(t, tr.From.Terminal(), "terminal status %s has outgoing edge", tr.From)
	}
	for _, role := range []Role{RoleCitizen, RoleAdmin, RoleWorker} {
		assert.Empty(t, NextStatuses(StatusResolved, role))
		assert.Empty(t, NextStatuses(StatusRejected, role))
	}
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusAccepted, StatusRejected}, NextStatuses(StatusPending, RoleAdmin))
	assert.Empty(t, NextStatuses(StatusPending, RoleWorker))
	assert.Equal(t, []Status{StatusInProgress}, NextStatuses(StatusAccepted, RoleWorker))
	assert.Empty(t, NextStatuses(StatusAccepted, RoleCitizen))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Worker ")
	require.NoError(t, err)
	assert.Equal(t, RoleWorker, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestMarkerFromReport(t *testing.T) {
	lat, lng := 14.7566, 120.9466
	r := Report{ID: primitive.NewObjectID(), Title: "Pothole", Status: StatusResolved, Latitude: &lat, Longitude: &lng}

	m, ok := MarkerFromReport(r)
	require.True(t, ok)
	assert.Equal(t, r.ID.Hex(), m.ID)
	assert.True(t, m.Resolved)
	assert.Equal(t, lat, m.Latitude)

	r.Longitude = nil
	_, ok = MarkerFromReport(r)
	assert.False(t, ok)
}

func TestNewStatsHasEveryStatus(t *testing.T) {
	s := NewStats()
	assert.Len(t, s.ByStatus, len(AllStatuses))
	assert.Zero(t, s.ByStatus[StatusInProgress])
}
