package conversation

import (
	"context"
	"errors"
	"testing"
)

func noopDef(token string) *Definition {
	return &Definition{
		Token: token,
		States: []State{
			ActionState{Name: "noop", Run: func(context.Context, *Turn) error { return nil }},
		},
	}
}

func TestRegistryDuplicateToken(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(noopDef("/dup")); err != nil {
		t.Fatalf("first register: %v", err)
	}

	err := reg.Register(noopDef("/dup"))
	var dup *DuplicateTokenError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTokenError, got %v", err)
	}
	if dup.Token != "/dup" {
		t.Fatalf("token = %q", dup.Token)
	}
}

func TestRegistryValidation(t *testing.T) {
	cases := []struct {
		name string
		def  *Definition
	}{
		{"missing slash", noopDef("x")},
		{"whitespace", noopDef("/two words")},
		{"empty token", noopDef("")},
		{"no states", &Definition{Token: "/empty"}},
		{"prompt without key", &Definition{
			Token:  "/nokey",
			States: []State{PromptState{Prompt: "?"}},
		}},
		{"duplicate keys", &Definition{
			Token: "/dupkey",
			States: []State{
				PromptState{Prompt: "a?", Key: "k"},
				PromptState{Prompt: "b?", Key: "k"},
			},
		}},
	}
	reg := NewRegistry()
	for _, tc := range cases {
		if err := reg.Register(tc.def); err == nil {
			t.Errorf("%s: accepted invalid definition", tc.name)
		}
	}
}

func TestRegistryAllSorted(t *testing.T) {
	reg := NewRegistry()
	for _, token := range []string{"/zeta", "/alpha", "/mid"} {
		reg.MustRegister(noopDef(token))
	}

	defs := reg.All()
	if len(defs) != 3 {
		t.Fatalf("len = %d", len(defs))
	}
	want := []string{"/alpha", "/mid", "/zeta"}
	for i, def := range defs {
		if def.Token != want[i] {
			t.Fatalf("All()[%d] = %s, want %s", i, def.Token, want[i])
		}
	}
}

func TestDefinitionAllowed(t *testing.T) {
	open := noopDef("/open")
	if !open.Allowed("") || !open.Allowed("student") {
		t.Fatalf("empty roles must admit everyone")
	}

	restricted := noopDef("/admin")
	restricted.Roles = []string{"admin", "teacher"}
	if !restricted.Allowed("ADMIN") {
		t.Fatalf("role match must ignore case")
	}
	if restricted.Allowed("student") {
		t.Fatalf("student admitted to admin command")
	}
}
