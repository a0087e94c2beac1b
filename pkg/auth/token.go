package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/r2blaze/r2blaze-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNotAdmin     = errors.New("token does not carry the admin role")
)

// ParseAdminToken validates a Supabase access token and requires the
// configured admin role in app_metadata.
func ParseAdminToken(cfg config.SupabaseConfig, tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims, err := ParseSupabaseToken(cfg, tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.HasRole(cfg.AdminRole) {
		return nil, ErrNotAdmin
	}
	return &Principal{Subject: claims.Subject, Email: claims.Email}, nil
}

// ParseSupabaseToken checks signature, expiry and audience.
func ParseSupabaseToken(cfg config.SupabaseConfig, tokenString string) (*SupabaseClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("supabase jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	claims := &SupabaseClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	return claims, nil
}

// MintSupabaseToken signs claims the way Supabase Auth does. Used by local
// tooling and tests; production tokens come from Supabase.
func MintSupabaseToken(cfg config.SupabaseConfig, now time.Time, ttl time.Duration, subject, email string, meta AppMetadata) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("supabase jwt secret is required")
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := SupabaseClaims{
		Email:       email,
		Role:        "authenticated",
		AppMetadata: meta,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.JWTAudience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.JWTAudience}
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
