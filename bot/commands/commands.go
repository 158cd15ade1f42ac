// Package commands assembles the conversation command set of the education
// platform: group management, student onboarding, access control,
// broadcasts and certificates.
package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/m3rciful/edubot/core/conversation"
)

// Platform roles checked by command authorization.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email validates a plausible email address and stores it lower-cased.
func Email(what string) conversation.ValidateFunc {
	return func(_ context.Context, _ *conversation.Turn, input string) (any, error) {
		trimmed := strings.ToLower(strings.TrimSpace(input))
		if !emailRe.MatchString(trimmed) {
			return nil, fmt.Errorf("%s must be a valid email address.", what)
		}
		return trimmed, nil
	}
}

// EmailOrPhone accepts either an email address or a phone number with at
// least seven digits.
func EmailOrPhone(what string) conversation.ValidateFunc {
	return func(_ context.Context, _ *conversation.Turn, input string) (any, error) {
		trimmed := strings.TrimSpace(input)
		if emailRe.MatchString(strings.ToLower(trimmed)) {
			return strings.ToLower(trimmed), nil
		}
		digits := 0
		for _, r := range trimmed {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 {
			return trimmed, nil
		}
		return nil, fmt.Errorf("%s must be an email address or a phone number.", what)
	}
}

func isEmail(s string) bool {
	return emailRe.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// RegisterAll wires every platform command into the registry. The registry
// panics on duplicate tokens, which here would be a programming error.
func RegisterAll(reg *conversation.Registry) {
	reg.MustRegister(CreateGroup())
	reg.MustRegister(Invite())
	reg.MustRegister(Groups())
	reg.MustRegister(AddStudent())
	reg.MustRegister(Block())
	reg.MustRegister(Unblock())
	reg.MustRegister(Broadcast())
	reg.MustRegister(Certificate())
	reg.MustRegister(Help(reg))
}

// mustString reads a prompt-collected attribute; a missing key means the
// state sequence is inconsistent and is a programming error.
func mustString(t *conversation.Turn, key string) string {
	v, ok := t.Attrs.String(key)
	if !ok {
		panic(fmt.Sprintf("commands: attribute %q missing", key))
	}
	return v
}
