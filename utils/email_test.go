package utils

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"community-help/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyStatusChange(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com", "587", "bot@example.com", "pw", "")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	r := models.Report{Title: "Broken streetlight", Status: models.StatusRejected, RejectionReason: "Duplicate report"}
	err := n.NotifyStatusChange(context.Background(), models.User{Name: "Ana", Email: "ana@example.com"}, r)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Community Help - report Rejected")
	assert.Contains(t, string(gotMsg), "Reason: Duplicate report")
}

func TestNotifySkipsUsersWithoutEmail(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com", "587", "", "", "noreply@example.com")
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called")
		return nil
	}
	assert.NoError(t, n.NotifyStatusChange(context.Background(), models.User{}, models.Report{}))
}

func TestNotifyWrapsSendError(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com", "587", "", "", "noreply@example.com")
	boom := errors.New("535 authentication failed")
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := n.NotifyStatusChange(context.Background(), models.User{Email: "ana@example.com"}, models.Report{})
	assert.ErrorIs(t, err, boom)
}

func TestStatusChangeEmailResolved(t *testing.T) {
	msg := StatusChangeEmail("noreply@example.com", models.User{Name: "Ana", Email: "ana@example.com"}, models.Report{
		Title:              "Pothole",
		Status:             models.StatusResolved,
		ResolutionNotes:    "Filled with asphalt",
		ResolutionImageURL: "https://storage.googleapis.com/b/resolutions/x.jpeg",
	})
	assert.Contains(t, msg, "Your report \"Pothole\" is now Resolved.")
	assert.Contains(t, msg, "What was done: Filled with asphalt")
	assert.Contains(t, msg, "Photo: https://storage.googleapis.com/b/resolutions/x.jpeg")
}
