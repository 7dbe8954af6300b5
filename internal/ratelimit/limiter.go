package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Scope selects which arrivals share one window.
type Scope string

const (
	// ScopeConnection gives every connection its own window.
	ScopeConnection Scope = "connection"
	// ScopeProcess shares one window across every connection.
	ScopeProcess Scope = "process"
)

// ParseScope converts a config value into a Scope. Empty means connection.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeConnection:
		return ScopeConnection, nil
	case ScopeProcess:
		return ScopeProcess, nil
	default:
		return "", fmt.Errorf("unknown rate limit scope %q", s)
	}
}

// Limiter hands out windows according to its scope.
type Limiter struct {
	scope  Scope
	limit  int
	length time.Duration
	shared *Window
}

// NewLimiter builds a limiter. In process scope every ForConnection call
// returns the same window.
func NewLimiter(scope Scope, limit int, length time.Duration) *Limiter {
	l := &Limiter{scope: scope, limit: limit, length: length}
	if scope == ScopeProcess {
		l.shared = NewWindow(limit, length)
	}
	return l
}

// ForConnection returns the window a new connection must consult.
func (l *Limiter) ForConnection() *Window {
	if l.shared != nil {
		return l.shared
	}
	return NewWindow(l.limit, l.length)
}

// Scope returns the configured scope.
func (l *Limiter) Scope() Scope { return l.scope }
