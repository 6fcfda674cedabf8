package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticAllowed(t *testing.T) {
	testCases := []struct {
		name       string
		patterns   []string
		permission string
		expected   bool
	}{
		{"exact_match", []string{PermAlertInstanceEdit}, PermAlertInstanceEdit, true},
		{"exact_other", []string{PermAlertInstanceEdit}, PermAlertInstanceDelete, false},
		{"segment_glob", []string{"/registration/alert/instance/*"}, PermAlertInstanceDelete, true},
		{"glob_does_not_cross_segments", []string{"/registration/*"}, PermAlertInstanceNew, false},
		{"empty_patterns", nil, PermAlertInstanceNew, false},
		{"blank_patterns_ignored", []string{"  ", ""}, "", false},
		{"malformed_pattern", []string{"/registration/["}, "/registration/[", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NewStatic(tc.patterns...).Allowed(tc.permission))
		})
	}
}

func TestBuiltins(t *testing.T) {
	assert.True(t, AllowAll.Allowed(PermAlertInstanceDelete))
	assert.False(t, DenyAll.Allowed(PermAlertInstanceDelete))

	only := AuthorizerFunc(func(p string) bool { return p == PermAlertInstanceNew })
	assert.True(t, only.Allowed(PermAlertInstanceNew))
	assert.False(t, only.Allowed(PermAlertInstanceEdit))
}

func TestPatternsCopy(t *testing.T) {
	s := NewStatic("/a", " /b ")
	p := s.Patterns()
	assert.Equal(t, []string{"/a", "/b"}, p)
	p[0] = "/changed"
	assert.True(t, s.Allowed("/a"))
}
