package utils

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"community-help/models"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails reporters when their report changes status.
type EmailNotifier struct {
	host string
	port string
	from string
	auth smtp.Auth
	send sendFunc
}

func NewEmailNotifier(host, port, user, pass, from string) *EmailNotifier {
	if from == "" {
		from = user
	}
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &EmailNotifier{host: host, port: port, from: from, auth: auth, send: smtp.SendMail}
}

func (n *EmailNotifier) NotifyStatusChange(_ context.Context, to models.User, r models.Report) error {
	if to.Email == "" {
		return nil
	}
	msg := StatusChangeEmail(n.from, to, r)
	if err := n.send(n.host+":"+n.port, n.auth, n.from, []string{to.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", to.Email, err)
	}
	return nil
}

// StatusChangeEmail renders the message sent for r's current status.
func StatusChangeEmail(from string, to models.User, r models.Report) string {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\r\n\r\n", to.Name)
	fmt.Fprintf(&body, "Your report \"%s\" is now %s.\r\n", r.Title, r.Status)

	switch r.Status {
	case models.StatusAccepted:
		if r.PlanNotes != "" {
			fmt.Fprintf(&body, "\r\nPlanned action: %s\r\n", r.PlanNotes)
		}
	case models.StatusRejected:
		if r.RejectionReason != "" {
			fmt.Fprintf(&body, "\r\nReason: %s\r\n", r.RejectionReason)
		}
	case models.StatusResolved:
		if r.ResolutionNotes != "" {
			fmt.Fprintf(&body, "\r\nWhat was done: %s\r\n", r.ResolutionNotes)
		}
		if r.ResolutionImageURL != "" {
			fmt.Fprintf(&body, "Photo: %s\r\n", r.ResolutionImageURL)
		}
	}
	body.WriteString("\r\nThank you for helping your community,\r\nCommunity Help Team\r\n")

	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Community Help - report %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to.Email, r.Status, body.String())
}
