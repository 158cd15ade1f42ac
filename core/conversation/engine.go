package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/edubot/core/logger"
)

// Reply texts the engine sends on its own behalf. Command states send their
// own wording; these cover the protocol-level outcomes.
const (
	replyCancelled       = "Okay, cancelled."
	replyNothingToCancel = "There is nothing to cancel."
	replyDenied          = "You are not allowed to use this command."
	replyInternal        = "Something went wrong on our side. Please try the command again."
)

// DefaultCancelToken aborts an active session when received as a message.
const DefaultCancelToken = "/cancel"

// Options configure a new Engine. Registry, Store and Sender are required.
type Options struct {
	Registry *Registry
	Store    Store
	Sender   Sender
	Services *Services

	// CancelToken defaults to DefaultCancelToken.
	CancelToken string
	// IdleTTL discards sessions that received no message for this long.
	// Zero disables the engine-side check (the store may still expire).
	IdleTTL time.Duration
	Metrics *Metrics
	// OnUnknown handles messages that match no token while the principal
	// is idle. Nil ignores them.
	OnUnknown func(ctx context.Context, in Inbound)
}

// Engine resolves inbound messages to sessions and drives command state
// sequences forward, one message per turn. It is the only writer of the
// session store and serializes turns per principal, so states never see
// concurrent access to one session.
type Engine struct {
	reg         *Registry
	store       Store
	sender      Sender
	services    *Services
	cancelToken string
	idleTTL     time.Duration
	metrics     *Metrics
	onUnknown   func(ctx context.Context, in Inbound)

	locks lockTable
}

// NewEngine validates the options and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("conversation: nil registry")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("conversation: nil session store")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("conversation: nil sender")
	}
	cancel := strings.TrimSpace(opts.CancelToken)
	if cancel == "" {
		cancel = DefaultCancelToken
	}
	return &Engine{
		reg:         opts.Registry,
		store:       opts.Store,
		sender:      opts.Sender,
		services:    opts.Services,
		cancelToken: cancel,
		idleTTL:     opts.IdleTTL,
		metrics:     opts.Metrics,
		onUnknown:   opts.OnUnknown,
		locks:       lockTable{entries: make(map[int64]*lockEntry)},
	}, nil
}

// CancelToken returns the token that aborts an active session.
func (e *Engine) CancelToken() string { return e.cancelToken }

// HandleMessage processes one inbound message for its principal: it resumes
// the active session or starts a new command, then advances the state
// sequence until the next prompt or completion. Messages from the same
// principal are serialized; different principals proceed concurrently.
//
// Every turn ends in a defined way: an advance, a re-prompt, or a discarded
// session plus a user-visible message. Panics from states are contained
// here and fail the session closed.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (err error) {
	unlock := e.locks.acquire(in.Principal.ID)
	defer unlock()

	// sessionLive flips once a session exists for this turn, so the panic
	// path only tears down (and counts) sessions that were actually started.
	sessionLive := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "engine", "turn.panic",
				slog.Int64("principal_id", in.Principal.ID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			if sessionLive {
				e.discard(ctx, in.Principal.ID, "fail")
			}
			e.say(ctx, in.Principal.ID, replyInternal)
			e.metrics.turn("panic")
			err = nil
		}
	}()

	text := strings.TrimSpace(in.Text)
	now := time.Now()

	sess, err := e.store.Get(ctx, in.Principal.ID)
	if err != nil {
		logger.Error(ctx, "engine", "session.load",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("err", err.Error()),
		)
		e.say(ctx, in.Principal.ID, replyInternal)
		return fmt.Errorf("conversation: load session: %w", err)
	}

	if sess != nil && e.idleTTL > 0 && sess.IdleFor(now) > e.idleTTL {
		logger.Info(ctx, "engine", "session.expired",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
			slog.Duration("idle", sess.IdleFor(now)),
		)
		e.discard(ctx, in.Principal.ID, "evicted")
		sess = nil
	}

	if sess == nil {
		return e.startTurn(ctx, in, text, now, &sessionLive)
	}
	sessionLive = true
	return e.resumeTurn(ctx, in, sess, text, now)
}

// startTurn handles a message from an idle principal.
func (e *Engine) startTurn(ctx context.Context, in Inbound, text string, now time.Time, sessionLive *bool) error {
	if text == e.cancelToken {
		e.say(ctx, in.Principal.ID, replyNothingToCancel)
		e.metrics.turn("noop")
		return nil
	}

	token := firstToken(text)
	def, ok := e.reg.Resolve(token)
	if !ok {
		if e.onUnknown != nil {
			e.onUnknown(ctx, in)
		}
		e.metrics.turn("unknown")
		return nil
	}

	if !def.Allowed(in.Principal.Role) {
		logger.Warn(ctx, "engine", "command.denied",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", def.Token),
			slog.String("role", in.Principal.Role),
		)
		e.say(ctx, in.Principal.ID, replyDenied)
		e.metrics.turn("denied")
		return nil
	}

	sess := newSession(in.Principal.ID, def.Token, now)
	e.metrics.sessionStarted()
	*sessionLive = true
	logger.Info(ctx, "engine", "command.start",
		slog.Int64("principal_id", in.Principal.ID),
		slog.String("command", def.Token),
		slog.String("role", in.Principal.Role),
	)
	return e.drive(ctx, in.Principal, sess, def, now)
}

// resumeTurn treats the message as input for the session's pending prompt.
func (e *Engine) resumeTurn(ctx context.Context, in Inbound, sess *Session, text string, now time.Time) error {
	if text == e.cancelToken {
		logger.Info(ctx, "engine", "command.cancel",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
			slog.Int("state_index", sess.StateIndex),
		)
		e.discard(ctx, in.Principal.ID, "cancelled")
		e.say(ctx, in.Principal.ID, replyCancelled)
		e.metrics.turn("cancelled")
		return nil
	}

	def, ok := e.reg.Resolve(sess.Command)
	if !ok {
		// A stored session can outlive its command only when the command
		// set changed between deployments.
		logger.Error(ctx, "engine", "session.orphaned",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
		)
		e.discard(ctx, in.Principal.ID, "fail")
		e.say(ctx, in.Principal.ID, replyInternal)
		e.metrics.turn("fail")
		return nil
	}

	if sess.StateIndex < 0 || sess.StateIndex >= len(def.States) {
		logger.Error(ctx, "engine", "session.cursor_invalid",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
			slog.Int("state_index", sess.StateIndex),
		)
		e.discard(ctx, in.Principal.ID, "fail")
		e.say(ctx, in.Principal.ID, replyInternal)
		e.metrics.turn("fail")
		return nil
	}

	prompt, ok := def.States[sess.StateIndex].(PromptState)
	if !ok {
		// The engine only ever pauses on prompting states.
		logger.Error(ctx, "engine", "session.cursor_invalid",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
			slog.Int("state_index", sess.StateIndex),
		)
		e.discard(ctx, in.Principal.ID, "fail")
		e.say(ctx, in.Principal.ID, replyInternal)
		e.metrics.turn("fail")
		return nil
	}

	turn := e.newTurn(in.Principal, text, sess)
	out := prompt.consume(ctx, turn)
	if !out.Advanced() {
		e.metrics.validationFailed()
		e.metrics.turn("invalid")
		logger.Debug(ctx, "engine", "prompt.rejected",
			slog.Int64("principal_id", in.Principal.ID),
			slog.String("command", sess.Command),
			slog.Int("state_index", sess.StateIndex),
			slog.String("reason", out.Reason()),
		)
		reply := prompt.Prompt
		if out.Reason() != "" {
			reply = out.Reason() + "\n" + prompt.Prompt
		}
		e.say(ctx, in.Principal.ID, reply)
		sess.touch(now)
		if err := e.store.Put(ctx, sess); err != nil {
			return fmt.Errorf("conversation: persist session: %w", err)
		}
		return nil
	}

	sess.StateIndex++
	return e.drive(ctx, in.Principal, sess, def, now)
}

// drive runs consecutive acting states until the next prompting state or
// the end of the sequence, then either suspends or completes the session.
func (e *Engine) drive(ctx context.Context, p Principal, sess *Session, def *Definition, now time.Time) error {
	turn := e.newTurn(p, "", sess)
	for sess.StateIndex < len(def.States) {
		switch st := def.States[sess.StateIndex].(type) {
		case ActionState:
			if err := e.runAction(ctx, st, turn); err != nil {
				return e.failSession(ctx, p, sess, st, err)
			}
			sess.StateIndex++

		case PromptState:
			e.say(ctx, p.ID, st.Prompt)
			sess.touch(now)
			if err := e.store.Put(ctx, sess); err != nil {
				logger.Error(ctx, "engine", "session.persist",
					slog.Int64("principal_id", p.ID),
					slog.String("command", sess.Command),
					slog.String("err", err.Error()),
				)
				e.say(ctx, p.ID, replyInternal)
				return fmt.Errorf("conversation: persist session: %w", err)
			}
			e.metrics.turn("ok")
			return nil

		default:
			// Unreachable while State stays sealed.
			e.discard(ctx, p.ID, "fail")
			e.say(ctx, p.ID, replyInternal)
			e.metrics.turn("fail")
			return fmt.Errorf("conversation: unknown state kind %T", st)
		}
	}

	e.discard(ctx, p.ID, "completed")
	e.metrics.turn("ok")
	logger.Info(ctx, "engine", "command.done",
		slog.Int64("principal_id", p.ID),
		slog.String("command", sess.Command),
		slog.Duration("duration", logger.RoundMS(time.Since(sess.StartedAt))),
	)
	return nil
}

// runAction executes one acting state, converting a panic into an error so
// a misbehaving command cannot take the worker down.
func (e *Engine) runAction(ctx context.Context, st ActionState, turn *Turn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "engine", "action.panic",
				slog.String("action", st.Name),
				slog.Int64("principal_id", turn.Principal.ID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("conversation: action %s panicked: %v", st.Name, r)
		}
	}()
	if st.Run == nil {
		return fmt.Errorf("conversation: action %s has no run function", st.Name)
	}
	return st.Run(ctx, turn)
}

// failSession ends the session after a failed acting state. Collaborator
// failures carry their own reply; anything else gets the generic one. The
// principal is never left stuck mid-sequence.
func (e *Engine) failSession(ctx context.Context, p Principal, sess *Session, st ActionState, actErr error) error {
	e.discard(ctx, p.ID, "fail")

	var collab *CollaboratorError
	if errors.As(actErr, &collab) {
		logger.Warn(ctx, "engine", "action.collaborator_failed",
			slog.String("action", st.Name),
			slog.Int64("principal_id", p.ID),
			slog.String("command", sess.Command),
			slog.String("err", actErr.Error()),
		)
		reply := collab.Reply
		if reply == "" {
			reply = replyInternal
		}
		e.say(ctx, p.ID, reply)
		e.metrics.turn("collaborator_failed")
		return nil
	}

	logger.Error(ctx, "engine", "action.failed",
		slog.String("action", st.Name),
		slog.Int64("principal_id", p.ID),
		slog.String("command", sess.Command),
		slog.String("err", actErr.Error()),
	)
	e.say(ctx, p.ID, replyInternal)
	e.metrics.turn("fail")
	return nil
}

func (e *Engine) newTurn(p Principal, text string, sess *Session) *Turn {
	return &Turn{
		Principal: p,
		Text:      text,
		Attrs:     sess.Attrs,
		Services:  e.services,
		sender:    e.sender,
	}
}

// discard removes the principal's session and records why it ended.
// Sessions that never reached a prompt were never stored; Delete is a
// no-op then.
func (e *Engine) discard(ctx context.Context, principalID int64, reason string) {
	if err := e.store.Delete(ctx, principalID); err != nil {
		logger.Warn(ctx, "engine", "session.delete",
			slog.Int64("principal_id", principalID),
			slog.String("err", err.Error()),
		)
	}
	e.metrics.sessionEnded(reason)
}

func (e *Engine) say(ctx context.Context, principalID int64, text string) {
	if err := e.sender.Send(ctx, principalID, text); err != nil {
		logger.Warn(ctx, "engine", "send.failed",
			slog.Int64("principal_id", principalID),
			slog.String("err", err.Error()),
		)
	}
}

// firstToken extracts the command word from an invocation message so
// "/creategroup now" still resolves /creategroup.
func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// lockTable hands out one mutex per principal with reference counting, so
// turns for one conversation serialize while idle principals cost nothing.
type lockTable struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (t *lockTable) acquire(principalID int64) func() {
	t.mu.Lock()
	entry, ok := t.entries[principalID]
	if !ok {
		entry = &lockEntry{}
		t.entries[principalID] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, principalID)
		}
		t.mu.Unlock()
	}
}
