package conversation

import (
	"context"
	"time"
)

// The engine exposes collaborator services to acting states through the
// Turn. The interfaces below define the call contract only; sqlx-backed
// implementations live with the application.

// User is a platform account as seen by conversation states.
type User struct {
	ID      int64
	ChatID  int64
	Name    string
	Email   string
	Phone   string
	Role    string
	Blocked bool
}

// Group is a study group as seen by conversation states.
type Group struct {
	ID         int64
	Name       string
	InviteCode string
}

// Certificate is an issued course certificate.
type Certificate struct {
	Serial   string
	UserID   int64
	Course   string
	IssuedAt time.Time
}

// UserDirectory looks up and mutates platform accounts. Lookups return
// ErrNotFound when nothing matches; Create returns ErrConflict on a
// duplicate email.
type UserDirectory interface {
	ByEmail(ctx context.Context, email string) (User, error)
	ByPhone(ctx context.Context, phone string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	ActiveChatIDs(ctx context.Context) ([]int64, error)
}

// GroupDirectory manages study groups and their membership.
type GroupDirectory interface {
	Create(ctx context.Context, name string) (Group, error)
	ByName(ctx context.Context, name string) (Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	Names(ctx context.Context) ([]string, error)
}

// InviteSource mints fresh invite codes for a group.
type InviteSource interface {
	NewCode(ctx context.Context, groupID int64) (string, error)
}

// Broadcaster fans a message out to every active chat and reports how many
// recipients it reached.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (int, error)
}

// CertificateIssuer records a course certificate for a user.
type CertificateIssuer interface {
	Issue(ctx context.Context, userID int64, course string) (Certificate, error)
}

// Services bundles the collaborators reachable from acting states. Fields
// a deployment does not need may stay nil as long as no registered command
// touches them.
type Services struct {
	Users        UserDirectory
	Groups       GroupDirectory
	Invites      InviteSource
	Notifier     Broadcaster
	Certificates CertificateIssuer
}
