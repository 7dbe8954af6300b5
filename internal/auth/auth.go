// Package auth holds the credential check applied before a relay
// connection or a room mutation is accepted.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer decides whether a request carries acceptable credentials.
type Authorizer interface {
	Authorized(r *http.Request) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) bool

// Authorized implements Authorizer.
func (f AuthorizerFunc) Authorized(r *http.Request) bool { return f(r) }

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(h http.Header) (string, bool) {
	v := h.Get("Authorization")
	const prefix = "Bearer "
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(v[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// StaticToken accepts requests whose bearer token equals one shared secret.
type StaticToken struct {
	token []byte
}

// NewStaticToken returns a StaticToken. An empty secret rejects everything.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: []byte(strings.TrimSpace(token))}
}

// Authorized implements Authorizer.
func (s *StaticToken) Authorized(r *http.Request) bool {
	if len(s.token) == 0 {
		return false
	}
	got, ok := BearerToken(r.Header)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), s.token) == 1
}
