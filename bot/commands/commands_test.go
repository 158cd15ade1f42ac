package commands

import (
	"context"
	"testing"

	"github.com/m3rciful/edubot/core/conversation"
)

func TestEmailValidator(t *testing.T) {
	validate := Email("Email")
	ctx := context.Background()

	v, err := validate(ctx, nil, "  Student@Example.COM ")
	if err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if v != "student@example.com" {
		t.Fatalf("email not normalized: %v", v)
	}

	for _, bad := range []string{"", "plain", "a@b", "two @words.com"} {
		if _, err := validate(ctx, nil, bad); err == nil {
			t.Errorf("accepted %q", bad)
		}
	}
}

func TestEmailOrPhoneValidator(t *testing.T) {
	validate := EmailOrPhone("Contact")
	ctx := context.Background()

	if v, err := validate(ctx, nil, "a@b.com"); err != nil || v != "a@b.com" {
		t.Fatalf("email path: %v, %v", v, err)
	}
	if v, err := validate(ctx, nil, "+7 (900) 123-45-67"); err != nil || v != "+7 (900) 123-45-67" {
		t.Fatalf("phone path: %v, %v", v, err)
	}
	if _, err := validate(ctx, nil, "12345"); err == nil {
		t.Fatalf("accepted a too-short number")
	}
}

func TestRegisterAll(t *testing.T) {
	reg := conversation.NewRegistry()
	RegisterAll(reg)

	wantTokens := []string{
		"/addstudent", "/block", "/broadcast", "/certificate",
		"/creategroup", "/groups", "/help", "/invite", "/unblock",
	}
	if reg.Len() != len(wantTokens) {
		t.Fatalf("registered %d commands, want %d", reg.Len(), len(wantTokens))
	}
	for _, token := range wantTokens {
		if _, ok := reg.Resolve(token); !ok {
			t.Errorf("missing %s", token)
		}
	}
}

func TestCommandRoles(t *testing.T) {
	reg := conversation.NewRegistry()
	RegisterAll(reg)

	adminOnly := []string{"/block", "/unblock", "/broadcast"}
	for _, token := range adminOnly {
		def, _ := reg.Resolve(token)
		if def.Allowed(RoleStudent) || def.Allowed(RoleTeacher) {
			t.Errorf("%s reachable below admin", token)
		}
		if !def.Allowed(RoleAdmin) {
			t.Errorf("%s blocked for admin", token)
		}
	}

	teaching := []string{"/creategroup", "/addstudent", "/invite", "/certificate", "/groups"}
	for _, token := range teaching {
		def, _ := reg.Resolve(token)
		if !def.Allowed(RoleTeacher) || !def.Allowed(RoleAdmin) {
			t.Errorf("%s blocked for staff", token)
		}
		if def.Allowed(RoleStudent) {
			t.Errorf("%s reachable for students", token)
		}
	}

	help, _ := reg.Resolve("/help")
	if !help.Allowed("") {
		t.Errorf("/help must be open to everyone")
	}
}
