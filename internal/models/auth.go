package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the enrollment API.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims is the principal supplied by the identity provider.
// StudentID is set for STUDENT tokens; ProgramID scopes the student's study program.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
	ProgramID string   `json:"program_id,omitempty"`
	FullName  string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the principal may run admin-scoped operations.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleSuperAdmin)
}
