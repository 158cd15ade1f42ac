package conversation

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps invocation tokens to command definitions. It is populated
// during startup assembly and read-only afterwards, so lookups need no
// synchronization.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. It fails with DuplicateTokenError when the
// token is already taken and with a plain error when the definition itself
// is malformed.
func (r *Registry) Register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	token := strings.TrimSpace(def.Token)
	if _, exists := r.defs[token]; exists {
		return &DuplicateTokenError{Token: token}
	}
	r.defs[token] = def
	return nil
}

// MustRegister registers a definition and panics on failure. Intended for
// startup wiring where a bad definition is a programming error.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("conversation: register %s: %v", def.Token, err))
	}
}

// Resolve returns the definition registered under the exact token.
func (r *Registry) Resolve(token string) (*Definition, bool) {
	def, ok := r.defs[token]
	return def, ok
}

// All returns every definition sorted by token so generated listings stay
// deterministic.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Len reports the number of registered commands.
func (r *Registry) Len() int { return len(r.defs) }
