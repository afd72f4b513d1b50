package entities

import (
	"strings"
	"time"
)

// Role strings as stored by the authentication service.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RolePatient    = "patient"
)

// AdminRoles may manage the directory and establishments.
var AdminRoles = []string{RoleAdmin, RoleSuperAdmin}

// ProfessionalRoles belong to health professionals using the pro portal.
var ProfessionalRoles = []string{"professional", "doctor", "nurse", "pharmacist", "lab_technician", "midwife"}

// Session is the handle returned by the authentication service after sign-in.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Roles       []string  `json:"roles"`
}

// HasAnyRole reports whether the session carries one of roles.
func (s *Session) HasAnyRole(roles ...string) bool {
	if s == nil {
		return false
	}
	for _, have := range s.Roles {
		for _, want := range roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the session may use admin endpoints.
func (s *Session) IsAdmin() bool {
	return s.HasAnyRole(AdminRoles...)
}

// IsPatientOnly reports whether the session may use patient-only pages:
// no admin role and no professional role.
func (s *Session) IsPatientOnly() bool {
	return !s.HasAnyRole(AdminRoles...) && !s.HasAnyRole(ProfessionalRoles...)
}
