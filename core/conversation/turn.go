package conversation

import "context"

// Sender delivers outbound messages to principals. The Telegram adapter is
// the production implementation; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, principalID int64, text string) error
}

// Principal identifies one conversation and its access level.
type Principal struct {
	ID   int64
	Role string
	Name string
}

// Inbound is one message delivered by the transport.
type Inbound struct {
	Principal Principal
	Text      string
}

// Turn is the per-message façade handed to states: the inbound text, the
// principal, the session attributes, the send capability, and the
// collaborator services. A Turn is built fresh for every message and holds
// no state of its own.
type Turn struct {
	Principal Principal
	Text      string
	Attrs     *Attrs
	Services  *Services

	sender Sender
}

// Send delivers text to the principal driving this turn.
func (t *Turn) Send(ctx context.Context, text string) error {
	return t.sender.Send(ctx, t.Principal.ID, text)
}

// SendTo delivers text to an arbitrary principal, e.g. a notification to
// an affected user.
func (t *Turn) SendTo(ctx context.Context, principalID int64, text string) error {
	return t.sender.Send(ctx, principalID, text)
}
