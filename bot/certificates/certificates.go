// Package certificates keeps the ledger of issued course certificates.
package certificates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"log/slog"
)

type certRow struct {
	Serial   string    `db:"serial"`
	UserID   int64     `db:"user_id"`
	Course   string    `db:"course"`
	IssuedAt time.Time `db:"issued_at"`
}

// Ledger is the Postgres-backed certificate issuer.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger wraps the shared database handle.
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Issue records a certificate and returns it with its serial number. The
// serial embeds the issue year for human readability.
func (l *Ledger) Issue(ctx context.Context, userID int64, course string) (conversation.Certificate, error) {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	serial := fmt.Sprintf("CERT-%d-%s", time.Now().Year(), strings.ToUpper(raw[:10]))

	var row certRow
	err := l.db.GetContext(ctx, &row,
		`INSERT INTO certificates (serial, user_id, course)
		 VALUES ($1, $2, $3)
		 RETURNING serial, user_id, course, issued_at`,
		serial, userID, strings.TrimSpace(course),
	)
	if err != nil {
		return conversation.Certificate{}, fmt.Errorf("certificates: issue: %w", err)
	}

	logger.DIR.Info("certificate issued",
		slog.String("event", "certificate.issue"),
		slog.Int64("user_id", row.UserID),
		slog.String("serial", row.Serial),
	)
	return conversation.Certificate{
		Serial:   row.Serial,
		UserID:   row.UserID,
		Course:   row.Course,
		IssuedAt: row.IssuedAt,
	}, nil
}
