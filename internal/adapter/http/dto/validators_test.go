package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"alice",
		"user-001",
		"USER_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"user 001",    // space
		"user<001>",   // angle brackets
		"user;DROP",   // semicolon
		"",            // empty
		"hello world", // space
		"user\n001",   // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
