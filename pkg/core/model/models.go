package model

import "strings"

type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleOverseer          Role = "OVERSEER"
	RoleAssistantOverseer Role = "ASSISTANT_OVERSEER"
	RoleKeyman            Role = "KEYMAN"
	RoleAttendant         Role = "ATTENDANT"
)

// ParseRole normalises a role string; the identity provider is inconsistent about case
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOverseer, RoleAssistantOverseer, RoleKeyman, RoleAttendant:
		return true
	}
	return false
}

// Identity is a person known to the identity provider
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// DisplayName returns "First Last"
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Caller is the identity on whose behalf an operation runs
type Caller struct {
	ID   string
	Role Role
}

// HasRole reports whether the caller holds one of the given roles
func (c Caller) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
