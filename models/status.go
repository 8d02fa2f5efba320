package models

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a report. The string values are stored
// in MongoDB and sent to clients as-is.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAccepted   Status = "Accepted"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusInProgress, StatusResolved, StatusRejected}

var (
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrForbiddenTransition = errors.New("role may not perform this status transition")
	ErrUnknownStatus       = errors.New("unknown status")
)

// ParseStatus accepts the canonical value case-insensitively, plus the
// snake/kebab spellings mobile clients tend to send ("in_progress").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, st := range AllStatuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Transition is one edge of the report workflow.
type Transition struct {
	From  Status
	To    Status
	Roles []Role
}

var transitions = []Transition{
	{From: StatusPending, To: StatusAccepted, Roles: []Role{RoleAdmin}},
	{From: StatusPending, To: StatusRejected, Roles: []Role{RoleAdmin}},
	{From: StatusAccepted, To: StatusInProgress, Roles: []Role{RoleWorker}},
	{From: StatusInProgress, To: StatusResolved, Roles: []Role{RoleWorker}},
}

// Transitions returns a copy of the workflow table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// CanTransition checks the edge from -> to for role.
func CanTransition(from, to Status, role Role) error {
	for _, t := range transitions {
		if t.From != from || t.To != to {
			continue
		}
		for _, r := range t.Roles {
			if r == role {
				return nil
			}
		}
		return fmt.Errorf("%w: %s cannot move %q to %q", ErrForbiddenTransition, role, from, to)
	}
	return fmt.Errorf("%w: %q to %q", ErrInvalidTransition, from, to)
}

// NextStatuses lists the statuses role may move a report in status from to.
func NextStatuses(from Status, role Role) []Status {
	next := []Status{}
	for _, t := range transitions {
		if t.From != from {
			continue
		}
		for _, r := range t.Roles {
			if r == role {
				next = append(next, t.To)
				break
			}
		}
	}
	return next
}
