package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"log/slog"
)

// userRow mirrors the users table.
type userRow struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Role      string    `db:"role"`
	Blocked   bool      `db:"blocked"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toUser() conversation.User {
	return conversation.User{
		ID:      r.ID,
		ChatID:  r.ChatID,
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Role:    r.Role,
		Blocked: r.Blocked,
	}
}

// Users is the Postgres-backed user directory.
type Users struct {
	db *sqlx.DB
}

// NewUsers wraps the shared database handle.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

// ByEmail finds a user by exact email, case-insensitive.
func (d *Users) ByEmail(ctx context.Context, email string) (conversation.User, error) {
	var row userRow
	err := d.db.GetContext(ctx, &row,
		`SELECT id, chat_id, name, email, phone, role, blocked, created_at
		   FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.User{}, conversation.ErrNotFound
	}
	if err != nil {
		return conversation.User{}, fmt.Errorf("directory: user by email: %w", err)
	}
	return row.toUser(), nil
}

// ByPhone finds a user by phone with non-digit characters stripped.
func (d *Users) ByPhone(ctx context.Context, phone string) (conversation.User, error) {
	var row userRow
	err := d.db.GetContext(ctx, &row,
		`SELECT id, chat_id, name, email, phone, role, blocked, created_at
		   FROM users WHERE regexp_replace(phone, '\D', '', 'g') = regexp_replace($1, '\D', '', 'g')`,
		strings.TrimSpace(phone),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.User{}, conversation.ErrNotFound
	}
	if err != nil {
		return conversation.User{}, fmt.Errorf("directory: user by phone: %w", err)
	}
	return row.toUser(), nil
}

// Create inserts a new user. A duplicate email maps to ErrConflict.
func (d *Users) Create(ctx context.Context, u conversation.User) (conversation.User, error) {
	role := u.Role
	if role == "" {
		role = "student"
	}
	var row userRow
	err := d.db.GetContext(ctx, &row,
		`INSERT INTO users (chat_id, name, email, phone, role, blocked)
		 VALUES ($1, $2, $3, $4, $5, FALSE)
		 RETURNING id, chat_id, name, email, phone, role, blocked, created_at`,
		u.ChatID, strings.TrimSpace(u.Name), strings.TrimSpace(u.Email), strings.TrimSpace(u.Phone), role,
	)
	if isUniqueViolation(err) {
		return conversation.User{}, conversation.ErrConflict
	}
	if err != nil {
		return conversation.User{}, fmt.Errorf("directory: create user: %w", err)
	}
	logger.DIR.Info("user created",
		slog.String("event", "user.create"),
		slog.Int64("user_id", row.ID),
		slog.String("role", row.Role),
	)
	return row.toUser(), nil
}

// SetBlocked flips the access flag for a user.
func (d *Users) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET blocked = $2 WHERE id = $1`, userID, blocked)
	if err != nil {
		return fmt.Errorf("directory: set blocked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("directory: set blocked: %w", err)
	}
	if affected == 0 {
		return conversation.ErrNotFound
	}
	logger.DIR.Info("user access changed",
		slog.String("event", "user.blocked"),
		slog.Int64("user_id", userID),
		slog.Bool("blocked", blocked),
	)
	return nil
}

// ActiveChatIDs lists chat ids of users that are not blocked and have a
// bound chat.
func (d *Users) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids,
		`SELECT chat_id FROM users WHERE NOT blocked AND chat_id <> 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("directory: active chat ids: %w", err)
	}
	return ids, nil
}

// BindChat attaches a Telegram chat id to a user account, used when a
// student first messages the bot with an invite code.
func (d *Users) BindChat(ctx context.Context, userID, chatID int64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE users SET chat_id = $2 WHERE id = $1`, userID, chatID)
	if err != nil {
		return fmt.Errorf("directory: bind chat: %w", err)
	}
	return nil
}

// ByChatID resolves the account bound to a Telegram chat, used for role
// resolution on every update.
func (d *Users) ByChatID(ctx context.Context, chatID int64) (conversation.User, error) {
	var row userRow
	err := d.db.GetContext(ctx, &row,
		`SELECT id, chat_id, name, email, phone, role, blocked, created_at
		   FROM users WHERE chat_id = $1`,
		chatID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.User{}, conversation.ErrNotFound
	}
	if err != nil {
		return conversation.User{}, fmt.Errorf("directory: user by chat: %w", err)
	}
	return row.toUser(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
