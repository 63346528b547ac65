package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind the opaque cookie. It holds a
// snapshot of the principal taken at login; nothing in it is trusted
// from the client beyond the token itself.
type Session struct {
	Token                  string      `json:"-"`
	UserID                 uuid.UUID   `json:"user_id"`
	Username               string      `json:"username"`
	Email                  string      `json:"email"`
	Role                   Role        `json:"role"`
	CustomRoleID           *uuid.UUID  `json:"custom_role_id,omitempty"`
	OrganizationID         uuid.UUID   `json:"organization_id"`
	SelectedOrganizationID uuid.UUID   `json:"selected_organization_id"`
	Memberships            []uuid.UUID `json:"memberships,omitempty"`
	LastActivity           time.Time   `json:"last_activity"`
}

// MemberOf reports whether orgID is the session principal's primary
// organization or one of its secondary memberships.
func (s *Session) MemberOf(orgID uuid.UUID) bool {
	if s.OrganizationID == orgID {
		return true
	}
	for _, id := range s.Memberships {
		if id == orgID {
			return true
		}
	}
	return false
}
