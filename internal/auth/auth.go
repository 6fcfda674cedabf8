package auth

import (
	"path"
	"strings"
)

// Permission paths checked by the alert instance screen.
const (
	PermAlertInstanceNew    = "/registration/alert/instance/new"
	PermAlertInstanceEdit   = "/registration/alert/instance/edit"
	PermAlertInstanceDelete = "/registration/alert/instance/delete"
)

// Authorizer decides whether the current user may perform the action at a
// permission path.
type Authorizer interface {
	Allowed(permission string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(permission string) bool

func (f AuthorizerFunc) Allowed(permission string) bool { return f(permission) }

// AllowAll grants every permission.
var AllowAll Authorizer = AuthorizerFunc(func(string) bool { return true })

// DenyAll grants nothing.
var DenyAll Authorizer = AuthorizerFunc(func(string) bool { return false })

// Static grants a fixed set of permission patterns. A pattern is a
// permission path where "*" matches a single segment, for example
// "/registration/alert/instance/*".
type Static struct {
	patterns []string
}

func NewStatic(patterns ...string) *Static {
	s := &Static{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			s.patterns = append(s.patterns, p)
		}
	}
	return s
}

func (s *Static) Allowed(permission string) bool {
	for _, p := range s.patterns {
		if p == permission {
			return true
		}
		if ok, err := path.Match(p, permission); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (s *Static) Patterns() []string {
	return append([]string(nil), s.patterns...)
}
