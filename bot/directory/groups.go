package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"

	"github.com/jmoiron/sqlx"
	"log/slog"
)

type groupRow struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	InviteCode string `db:"invite_code"`
}

func (r groupRow) toGroup() conversation.Group {
	return conversation.Group{ID: r.ID, Name: r.Name, InviteCode: r.InviteCode}
}

// Groups is the Postgres-backed study-group directory.
type Groups struct {
	db *sqlx.DB
}

// NewGroups wraps the shared database handle.
func NewGroups(db *sqlx.DB) *Groups {
	return &Groups{db: db}
}

// Create inserts a study group. A duplicate name maps to ErrConflict.
func (d *Groups) Create(ctx context.Context, name string) (conversation.Group, error) {
	var row groupRow
	err := d.db.GetContext(ctx, &row,
		`INSERT INTO groups (name, invite_code) VALUES ($1, '')
		 RETURNING id, name, invite_code`,
		strings.TrimSpace(name),
	)
	if isUniqueViolation(err) {
		return conversation.Group{}, conversation.ErrConflict
	}
	if err != nil {
		return conversation.Group{}, fmt.Errorf("directory: create group: %w", err)
	}
	logger.DIR.Info("group created",
		slog.String("event", "group.create"),
		slog.Int64("group_id", row.ID),
	)
	return row.toGroup(), nil
}

// ByName finds a group by exact name, case-insensitive.
func (d *Groups) ByName(ctx context.Context, name string) (conversation.Group, error) {
	var row groupRow
	err := d.db.GetContext(ctx, &row,
		`SELECT id, name, invite_code FROM groups WHERE lower(name) = lower($1)`,
		strings.TrimSpace(name),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Group{}, conversation.ErrNotFound
	}
	if err != nil {
		return conversation.Group{}, fmt.Errorf("directory: group by name: %w", err)
	}
	return row.toGroup(), nil
}

// AddMember joins a user into a group; re-adding is a no-op.
func (d *Groups) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (group_id, user_id) DO NOTHING`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("directory: add member: %w", err)
	}
	return nil
}

// RemoveMember drops a user from a group; absence is a no-op.
func (d *Groups) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("directory: remove member: %w", err)
	}
	return nil
}

// Names lists group names in alphabetic order.
func (d *Groups) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := d.db.SelectContext(ctx, &names,
		`SELECT name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: group names: %w", err)
	}
	return names, nil
}

// SetInviteCode stores a freshly minted invite code on a group.
func (d *Groups) SetInviteCode(ctx context.Context, groupID int64, code string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE groups SET invite_code = $2 WHERE id = $1`, groupID, code)
	if err != nil {
		return fmt.Errorf("directory: set invite code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("directory: set invite code: %w", err)
	}
	if affected == 0 {
		return conversation.ErrNotFound
	}
	return nil
}
