package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AppMetadata is the server-controlled metadata Supabase embeds in access
// tokens. Only service-role writes can change it.
type AppMetadata struct {
	Provider string   `json:"provider,omitempty"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// SupabaseClaims is the subset of a Supabase Auth access token we rely on.
type SupabaseClaims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// HasRole reports whether app_metadata grants role.
func (c *SupabaseClaims) HasRole(role string) bool {
	if role == "" {
		return false
	}
	if c.AppMetadata.Role == role {
		return true
	}
	for _, candidate := range c.AppMetadata.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Principal identifies the operator behind an admin request.
type Principal struct {
	Subject string
	Email   string
}

// Actor renders the principal for audit columns.
func (p Principal) Actor() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Subject
}
