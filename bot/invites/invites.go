// Package invites mints invite codes for study groups.
package invites

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CodeStore persists the current invite code of a group.
type CodeStore interface {
	SetInviteCode(ctx context.Context, groupID int64, code string) error
}

// Generator mints random invite codes and records them against the group.
// Codes are short uuid prefixes; a fresh code replaces the previous one, so
// stale invites stop working.
type Generator struct {
	store CodeStore
}

// NewGenerator wires the code persistence.
func NewGenerator(store CodeStore) *Generator {
	return &Generator{store: store}
}

// NewCode mints and stores a fresh code for the group.
func (g *Generator) NewCode(ctx context.Context, groupID int64) (string, error) {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	code := strings.ToUpper(raw[:8])
	if g.store != nil {
		if err := g.store.SetInviteCode(ctx, groupID, code); err != nil {
			return "", fmt.Errorf("invites: store code: %w", err)
		}
	}
	return code, nil
}
