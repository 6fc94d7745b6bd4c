// Package auth verifies the opaque bearer credential issued by the
// identity collaborator. Tokens are only verified here, never issued for
// login flows.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// Verify parses a bearer token and returns the actor it identifies.
func (v *Verifier) Verify(token string) (Actor, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Actor{}, errors.New("missing bearer token")
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("parse bearer token: %w", err)
	}
	if !parsed.Valid || c.Subject == "" {
		return Actor{}, errors.New("invalid bearer token")
	}
	role := Role(c.Role)
	if role != RoleAdmin {
		role = RoleCustomer
	}
	return Actor{UserID: c.Subject, Role: role}, nil
}

// Issue mints a token for an actor. Used by tests and local tooling; the
// production credential comes from the identity service.
func (v *Verifier) Issue(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
