package models

import (
	"fmt"
	"strings"
)

// Role decides which parts of the API (and which app screens) a user reaches.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
	RoleWorker  Role = "worker"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleWorker:
		return true
	}
	return false
}
