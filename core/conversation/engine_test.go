package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type sentMsg struct {
	principalID int64
	text        string
}

// recordingSender captures outbound messages for assertions.
type recordingSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (s *recordingSender) Send(_ context.Context, principalID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sentMsg{principalID: principalID, text: text})
	return nil
}

func (s *recordingSender) sentTo(principalID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		if m.principalID == principalID {
			out = append(out, m.text)
		}
	}
	return out
}

func (s *recordingSender) last(principalID int64) string {
	msgs := s.sentTo(principalID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// fakeGroups records group creations and can be told to fail.
type fakeGroups struct {
	mu      sync.Mutex
	created []string
	failErr error
}

func (f *fakeGroups) Create(_ context.Context, name string) (Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return Group{}, f.failErr
	}
	f.created = append(f.created, name)
	return Group{ID: int64(len(f.created)), Name: name}, nil
}

func (f *fakeGroups) ByName(_ context.Context, name string) (Group, error) {
	return Group{}, ErrNotFound
}
func (f *fakeGroups) AddMember(context.Context, int64, int64) error    { return nil }
func (f *fakeGroups) RemoveMember(context.Context, int64, int64) error { return nil }
func (f *fakeGroups) Names(context.Context) ([]string, error)          { return nil, nil }

func (f *fakeGroups) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func newTestEngine(t *testing.T, defs ...*Definition) (*Engine, *recordingSender, *MemoryStore, *fakeGroups) {
	t.Helper()
	reg := NewRegistry()
	for _, def := range defs {
		reg.MustRegister(def)
	}
	sender := &recordingSender{}
	store := NewMemoryStore(0)
	groups := &fakeGroups{}
	engine, err := NewEngine(Options{
		Registry: reg,
		Store:    store,
		Sender:   sender,
		Services: &Services{Groups: groups},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, sender, store, groups
}

// groupCommand is the two-state command of Scenario A: prompt for a name,
// then create a group with it.
func groupCommand(roles ...string) *Definition {
	return &Definition{
		Token:       "/x",
		Description: "create a group",
		Roles:       roles,
		States: []State{
			PromptState{Prompt: "Name?", Key: "n", Validate: NonBlank("Name")},
			ActionState{
				Name: "create_group",
				Run: func(ctx context.Context, t *Turn) error {
					name, _ := t.Attrs.String("n")
					_, err := t.Services.Groups.Create(ctx, name)
					return err
				},
			},
		},
	}
}

func handle(t *testing.T, e *Engine, principal Principal, text string) {
	t.Helper()
	if err := e.HandleMessage(context.Background(), Inbound{Principal: principal, Text: text}); err != nil {
		t.Fatalf("HandleMessage(%q): %v", text, err)
	}
}

func TestSequentialProgress(t *testing.T) {
	var visited []string
	def := &Definition{
		Token: "/multi",
		States: []State{
			ActionState{Name: "first", Run: func(ctx context.Context, tr *Turn) error {
				visited = append(visited, "first")
				return nil
			}},
			PromptState{Prompt: "Email?", Key: "email"},
			PromptState{Prompt: "Course?", Key: "course"},
			ActionState{Name: "last", Run: func(ctx context.Context, tr *Turn) error {
				email, _ := tr.Attrs.String("email")
				course, _ := tr.Attrs.String("course")
				visited = append(visited, "last:"+email+":"+course)
				return nil
			}},
		},
	}
	engine, sender, store, _ := newTestEngine(t, def)
	p := Principal{ID: 1}

	handle(t, engine, p, "/multi")
	handle(t, engine, p, "a@b.com")
	handle(t, engine, p, "Go 101")

	want := []string{"first", "last:a@b.com:Go 101"}
	if len(visited) != len(want) || visited[0] != want[0] || visited[1] != want[1] {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
	if store.Len() != 0 {
		t.Fatalf("session not removed after completion: %d live", store.Len())
	}
	prompts := sender.sentTo(1)
	if len(prompts) != 2 || prompts[0] != "Email?" || prompts[1] != "Course?" {
		t.Fatalf("prompts = %v", prompts)
	}
}

func TestScenarioACreateGroup(t *testing.T) {
	engine, _, store, groups := newTestEngine(t, groupCommand())
	p := Principal{ID: 7}

	handle(t, engine, p, "/x")
	handle(t, engine, p, "Alpha")

	if got := groups.names(); len(got) != 1 || got[0] != "Alpha" {
		t.Fatalf("created groups = %v, want [Alpha]", got)
	}
	if store.Len() != 0 {
		t.Fatalf("session survived completion")
	}
}

func TestValidationRetry(t *testing.T) {
	engine, sender, store, groups := newTestEngine(t, groupCommand())
	p := Principal{ID: 7}

	handle(t, engine, p, "/x")
	handle(t, engine, p, "   ")

	if len(groups.names()) != 0 {
		t.Fatalf("group created from blank input")
	}
	sess, _ := store.Get(context.Background(), 7)
	if sess == nil || sess.StateIndex != 0 {
		t.Fatalf("state index advanced on invalid input: %+v", sess)
	}
	if reply := sender.last(7); !strings.Contains(reply, "Name?") {
		t.Fatalf("expected re-prompt, got %q", reply)
	}
	if reply := sender.last(7); !strings.Contains(reply, "cannot be empty") {
		t.Fatalf("expected rejection reason, got %q", reply)
	}

	handle(t, engine, p, "Alpha")
	if got := groups.names(); len(got) != 1 || got[0] != "Alpha" {
		t.Fatalf("valid retry did not complete: %v", got)
	}
}

func TestAuthorizationGate(t *testing.T) {
	engine, sender, store, groups := newTestEngine(t, groupCommand("admin"))

	handle(t, engine, Principal{ID: 1, Role: "student"}, "/x")
	if store.Len() != 0 {
		t.Fatalf("session created for denied principal")
	}
	if len(groups.names()) != 0 {
		t.Fatalf("state executed for denied principal")
	}
	if reply := sender.last(1); reply != replyDenied {
		t.Fatalf("denial reply = %q", reply)
	}

	admin := Principal{ID: 2, Role: "admin"}
	handle(t, engine, admin, "/x")
	handle(t, engine, admin, "Alpha")
	if got := groups.names(); len(got) != 1 {
		t.Fatalf("admin run did not complete: %v", got)
	}
}

func TestCancellation(t *testing.T) {
	engine, sender, store, groups := newTestEngine(t, groupCommand())
	p := Principal{ID: 5}

	handle(t, engine, p, "/cancel")
	if reply := sender.last(5); reply != replyNothingToCancel {
		t.Fatalf("idle cancel reply = %q", reply)
	}

	handle(t, engine, p, "/x")
	handle(t, engine, p, "/cancel")
	if reply := sender.last(5); reply != replyCancelled {
		t.Fatalf("cancel reply = %q", reply)
	}
	if store.Len() != 0 {
		t.Fatalf("session survived cancel")
	}

	// A fresh invocation starts at index 0 with clean attributes.
	handle(t, engine, p, "/x")
	sess, _ := store.Get(context.Background(), 5)
	if sess == nil || sess.StateIndex != 0 || sess.Attrs.Len() != 0 {
		t.Fatalf("restart not fresh: %+v", sess)
	}
	handle(t, engine, p, "Beta")
	if got := groups.names(); len(got) != 1 || got[0] != "Beta" {
		t.Fatalf("post-cancel run = %v", got)
	}
}

func TestPrincipalIsolation(t *testing.T) {
	results := make(map[int64]string)
	var mu sync.Mutex
	record := func(token string) *Definition {
		return &Definition{
			Token: token,
			States: []State{
				PromptState{Prompt: "Value?", Key: "v"},
				ActionState{Name: "record", Run: func(ctx context.Context, tr *Turn) error {
					v, _ := tr.Attrs.String("v")
					mu.Lock()
					results[tr.Principal.ID] = v
					mu.Unlock()
					return nil
				}},
			},
		}
	}
	engine, _, _, _ := newTestEngine(t, record("/a"), record("/b"))

	alice := Principal{ID: 100}
	bob := Principal{ID: 200}

	// Interleave the two conversations turn by turn.
	handle(t, engine, alice, "/a")
	handle(t, engine, bob, "/b")
	handle(t, engine, bob, "from-bob")
	handle(t, engine, alice, "from-alice")

	if results[100] != "from-alice" || results[200] != "from-bob" {
		t.Fatalf("cross-principal leak: %v", results)
	}
}

func TestPrincipalIsolationConcurrent(t *testing.T) {
	engine, _, store, groups := newTestEngine(t, groupCommand())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			p := Principal{ID: id}
			ctx := context.Background()
			_ = engine.HandleMessage(ctx, Inbound{Principal: p, Text: "/x"})
			_ = engine.HandleMessage(ctx, Inbound{Principal: p, Text: fmt.Sprintf("group-%d", id)})
		}(int64(i + 1))
	}
	wg.Wait()

	if store.Len() != 0 {
		t.Fatalf("%d sessions leaked", store.Len())
	}
	if got := len(groups.names()); got != 20 {
		t.Fatalf("created %d groups, want 20", got)
	}
}

func TestCollaboratorFailureDiscardsSession(t *testing.T) {
	engine, sender, store, groups := newTestEngine(t, &Definition{
		Token: "/y",
		States: []State{
			PromptState{Prompt: "Name?", Key: "n"},
			ActionState{Name: "boom", Run: func(ctx context.Context, tr *Turn) error {
				return Collab("group.create", "The directory is unavailable right now.", errors.New("dial tcp: refused"))
			}},
		},
	})
	p := Principal{ID: 9}

	handle(t, engine, p, "/y")
	handle(t, engine, p, "Alpha")

	if reply := sender.last(9); reply != "The directory is unavailable right now." {
		t.Fatalf("collaborator reply = %q", reply)
	}
	if store.Len() != 0 {
		t.Fatalf("session survived collaborator failure")
	}

	// The same answer again must not resume anything.
	handle(t, engine, p, "Alpha")
	if store.Len() != 0 || len(groups.names()) != 0 {
		t.Fatalf("stray answer resumed a dead session")
	}
}

func TestActionPanicContained(t *testing.T) {
	engine, sender, store, _ := newTestEngine(t, &Definition{
		Token: "/panic",
		States: []State{
			ActionState{Name: "explode", Run: func(ctx context.Context, tr *Turn) error {
				panic("boom")
			}},
		},
	})
	p := Principal{ID: 3}

	handle(t, engine, p, "/panic")

	if reply := sender.last(3); reply != replyInternal {
		t.Fatalf("panic reply = %q", reply)
	}
	if store.Len() != 0 {
		t.Fatalf("session survived panic")
	}
}

func TestPanicBeforeSessionKeepsGaugeBalanced(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(groupCommand())
	sender := &recordingSender{}
	metrics := NewMetrics(nil)
	engine, err := NewEngine(Options{
		Registry: reg,
		Store:    NewMemoryStore(0),
		Sender:   sender,
		Metrics:  metrics,
		OnUnknown: func(ctx context.Context, in Inbound) {
			panic("boom")
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// No session exists when the fallback panics, so no session may be
	// counted as ended.
	handle(t, engine, Principal{ID: 6}, "not a command")

	if reply := sender.last(6); reply != replyInternal {
		t.Fatalf("panic reply = %q", reply)
	}
	if got := testutil.ToFloat64(metrics.activeSessions); got != 0 {
		t.Fatalf("active sessions gauge = %v after idle panic, want 0", got)
	}
}

func TestPanicWithLiveSessionEndsIt(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{
		Token: "/v",
		States: []State{
			PromptState{Prompt: "Value?", Key: "v", Validate: func(ctx context.Context, tr *Turn, input string) (any, error) {
				panic("boom")
			}},
		},
	})
	sender := &recordingSender{}
	store := NewMemoryStore(0)
	metrics := NewMetrics(nil)
	engine, err := NewEngine(Options{
		Registry: reg,
		Store:    store,
		Sender:   sender,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	p := Principal{ID: 12}

	handle(t, engine, p, "/v")
	if got := testutil.ToFloat64(metrics.activeSessions); got != 1 {
		t.Fatalf("active sessions gauge = %v while awaiting input, want 1", got)
	}

	handle(t, engine, p, "anything")
	if reply := sender.last(12); reply != replyInternal {
		t.Fatalf("panic reply = %q", reply)
	}
	if store.Len() != 0 {
		t.Fatalf("session survived panic")
	}
	if got := testutil.ToFloat64(metrics.activeSessions); got != 0 {
		t.Fatalf("active sessions gauge = %v after panic, want 0", got)
	}
}

func TestUnknownCommandFallback(t *testing.T) {
	var unknown []string
	reg := NewRegistry()
	reg.MustRegister(groupCommand())
	sender := &recordingSender{}
	engine, err := NewEngine(Options{
		Registry: reg,
		Store:    NewMemoryStore(0),
		Sender:   sender,
		OnUnknown: func(ctx context.Context, in Inbound) {
			unknown = append(unknown, in.Text)
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	handle(t, engine, Principal{ID: 1}, "/nosuch")
	handle(t, engine, Principal{ID: 1}, "hello there")

	if len(unknown) != 2 {
		t.Fatalf("fallback calls = %v", unknown)
	}
	if len(sender.sentTo(1)) != 0 {
		t.Fatalf("engine replied to unknown input on its own")
	}
}

func TestIdleSessionExpires(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(groupCommand())
	sender := &recordingSender{}
	store := NewMemoryStore(0)
	groups := &fakeGroups{}
	engine, err := NewEngine(Options{
		Registry: reg,
		Store:    store,
		Sender:   sender,
		Services: &Services{Groups: groups},
		IdleTTL:  30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	p := Principal{ID: 4}

	handle(t, engine, p, "/x")
	sess, _ := store.Get(context.Background(), 4)
	if sess == nil {
		t.Fatalf("no session after invocation")
	}
	sess.LastActiveAt = time.Now().Add(-time.Hour)
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The would-be answer lands after expiry and must not reach the prompt.
	handle(t, engine, p, "Alpha")
	if len(groups.names()) != 0 {
		t.Fatalf("expired session consumed input")
	}
	if store.Len() != 0 {
		t.Fatalf("expired session still stored")
	}
}

func TestCommandArgumentsIgnored(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, groupCommand())
	handle(t, engine, Principal{ID: 8}, "/x please")
	if reply := sender.last(8); reply != "Name?" {
		t.Fatalf("token with arguments did not resolve: %q", reply)
	}
}
