package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Outcome reports how a prompting state judged the current inbound message.
// It is an explicit result rather than an error: invalid input is the
// expected path of every prompt and only repeats the prompt.
type Outcome struct {
	advance bool
	reason  string
}

// Advance signals that the input was accepted and the command moves on.
func Advance() Outcome { return Outcome{advance: true} }

// Invalid signals rejected input; reason is echoed before the re-prompt.
func Invalid(reason string) Outcome { return Outcome{reason: reason} }

// Advanced reports whether the state accepted the input.
func (o Outcome) Advanced() bool { return o.advance }

// Reason returns the rejection text for invalid input.
func (o Outcome) Reason() string { return o.reason }

// ValidateFunc parses one inbound message for a prompting state. The
// returned value is written into the session attributes on success.
type ValidateFunc func(ctx context.Context, t *Turn, input string) (any, error)

// State is one step of a command. The two implementations are PromptState
// and ActionState; the engine switches on the concrete type.
type State interface {
	isState()
}

// PromptState asks the principal a question and suspends the command until
// the next inbound message, which it validates and stores under Key.
// Instances hold no per-conversation data and are shared by all sessions.
type PromptState struct {
	Prompt   string
	Key      string
	Validate ValidateFunc
}

func (PromptState) isState() {}

// consume validates the inbound text and stores the parsed value.
func (s PromptState) consume(ctx context.Context, t *Turn) Outcome {
	input := strings.TrimSpace(t.Text)
	if s.Validate == nil {
		if input == "" {
			return Invalid("This cannot be empty.")
		}
		t.Attrs.Set(s.Key, input)
		return Advance()
	}
	value, err := s.Validate(ctx, t, input)
	if err != nil {
		return Invalid(err.Error())
	}
	t.Attrs.Set(s.Key, value)
	return Advance()
}

// ActionState runs immediately without waiting for input, typically calling
// a collaborator through the Turn. Name labels the state in logs.
type ActionState struct {
	Name string
	Run  func(ctx context.Context, t *Turn) error
}

func (ActionState) isState() {}

// NonBlank validates that input contains at least one non-space character.
func NonBlank(what string) ValidateFunc {
	return func(_ context.Context, _ *Turn, input string) (any, error) {
		if strings.TrimSpace(input) == "" {
			return nil, fmt.Errorf("%s cannot be empty.", what)
		}
		return strings.TrimSpace(input), nil
	}
}

// Integer validates that input parses as a base-10 integer.
func Integer(what string) ValidateFunc {
	return func(_ context.Context, _ *Turn, input string) (any, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a whole number.", what)
		}
		return n, nil
	}
}

// OneOf validates that input matches one of the given options, ignoring
// case. The stored value is the canonical option.
func OneOf(what string, options ...string) ValidateFunc {
	return func(_ context.Context, _ *Turn, input string) (any, error) {
		trimmed := strings.TrimSpace(input)
		for _, opt := range options {
			if strings.EqualFold(trimmed, opt) {
				return opt, nil
			}
		}
		return nil, fmt.Errorf("%s must be one of: %s.", what, strings.Join(options, ", "))
	}
}
