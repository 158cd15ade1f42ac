package conversation

import (
	"fmt"
	"strings"
)

// Definition describes one chat command: the token that invokes it, a short
// description for listings, the roles allowed to run it, and the ordered
// state sequence. Definitions are assembled at startup and never mutated,
// so one instance serves every principal concurrently.
type Definition struct {
	Token       string
	Description string
	// Roles restricts invocation; an empty slice admits any principal.
	Roles  []string
	Hidden bool
	States []State
}

// Allowed reports whether a principal with the given role may invoke the
// command.
func (d *Definition) Allowed(role string) bool {
	if len(d.Roles) == 0 {
		return true
	}
	for _, r := range d.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (d *Definition) validate() error {
	if d == nil {
		return fmt.Errorf("conversation: nil definition")
	}
	token := strings.TrimSpace(d.Token)
	if token == "" {
		return fmt.Errorf("conversation: definition missing token")
	}
	if !strings.HasPrefix(token, "/") {
		return fmt.Errorf("conversation: token %q missing slash prefix", token)
	}
	if strings.ContainsAny(token, " \t\n") {
		return fmt.Errorf("conversation: token %q contains whitespace", token)
	}
	if len(d.States) == 0 {
		return fmt.Errorf("conversation: command %s has no states", token)
	}
	seen := make(map[string]struct{})
	for i, st := range d.States {
		prompt, ok := st.(PromptState)
		if !ok {
			continue
		}
		if strings.TrimSpace(prompt.Key) == "" {
			return fmt.Errorf("conversation: command %s state %d has no attribute key", token, i)
		}
		if _, dup := seen[prompt.Key]; dup {
			return fmt.Errorf("conversation: command %s reuses attribute key %q", token, prompt.Key)
		}
		seen[prompt.Key] = struct{}{}
	}
	return nil
}
