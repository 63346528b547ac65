package rbac

import (
	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/model"
)

// Evaluator answers permission queries for a session principal.
//
// Resolution order: super-role wildcard, then the custom-role override
// table, then the coarse-role default table, then deny. An override
// entry replaces the default set entirely; a custom role can therefore
// grant less than its bearer's coarse role would.
type Evaluator struct {
	overrides map[uuid.UUID][]string
}

// NewEvaluator builds an evaluator over an immutable override table
// (custom-role id to permission set), typically loaded from the
// repository at startup.
func NewEvaluator(overrides map[uuid.UUID][]string) *Evaluator {
	if overrides == nil {
		overrides = make(map[uuid.UUID][]string)
	}
	return &Evaluator{overrides: overrides}
}

// EffectivePermissions resolves the principal's full permission set.
// Super-roles yield the wildcard sentinel alone.
func (e *Evaluator) EffectivePermissions(s *model.Session) []string {
	if s == nil {
		return nil
	}
	if s.Role.IsSuperRole() {
		return []string{Wildcard}
	}
	if s.CustomRoleID != nil {
		if perms, ok := e.overrides[*s.CustomRoleID]; ok {
			out := make([]string, len(perms))
			copy(out, perms)
			return out
		}
	}
	return DefaultPermissions(s.Role)
}

// Has reports whether the principal holds the named permission.
func (e *Evaluator) Has(s *model.Session, name string) bool {
	if s == nil {
		return false
	}
	if s.Role.IsSuperRole() {
		return true
	}
	for _, p := range e.EffectivePermissions(s) {
		if p == name || p == Wildcard {
			return true
		}
	}
	return false
}

// HasAny reports whether the principal holds at least one of the named
// permissions. An empty list denies.
func (e *Evaluator) HasAny(s *model.Session, names []string) bool {
	for _, n := range names {
		if e.Has(s, n) {
			return true
		}
	}
	return false
}

// HasAll reports whether the principal holds every named permission.
// An empty list grants.
func (e *Evaluator) HasAll(s *model.Session, names []string) bool {
	if s == nil {
		return false
	}
	for _, n := range names {
		if !e.Has(s, n) {
			return false
		}
	}
	return true
}

// HasRole is the coarse guard: exact role match with the super-role
// bypass. Used where a named permission would be overkill.
func (e *Evaluator) HasRole(s *model.Session, role model.Role) bool {
	if s == nil {
		return false
	}
	return s.Role == role || s.Role.IsSuperRole()
}

// HasAnyRole is the set form of HasRole, same bypass.
func (e *Evaluator) HasAnyRole(s *model.Session, roles []model.Role) bool {
	if s == nil {
		return false
	}
	if s.Role.IsSuperRole() {
		return true
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
