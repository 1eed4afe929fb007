// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxMemberIDLen    = 64
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrMemberIDEmpty      = errors.New("member id empty")
	ErrMemberIDTooLong    = errors.New("member id too long")
)

type MemberID string

// Identity is what the identity provider hands to the core.
type Identity struct {
	MemberID    MemberID `json:"member_id"`
	DisplayName string   `json:"display_name"`
	CanHost     bool     `json:"can_host"`
}

// NewIdentity validates provider input so adapters don't build raw literals.
func NewIdentity(id, displayName string, canHost bool) (Identity, error) {
	if id == "" {
		return Identity{}, ErrMemberIDEmpty
	}
	if len(id) > MaxMemberIDLen {
		return Identity{}, ErrMemberIDTooLong
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{MemberID: MemberID(id), DisplayName: displayName, CanHost: canHost}, nil
}
