package app

import (
	"context"
	"fmt"

	"github.com/m3rciful/edubot/core/bootstrap"
	"github.com/m3rciful/edubot/core/logger"

	"github.com/jmoiron/sqlx"
	"log/slog"
)

// adminSeeder makes sure the configured admin chat has a directory account,
// so role resolution and broadcasts include the admin from day one.
func adminSeeder(adminID int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if adminID == 0 {
			return nil
		}

		var exists bool
		err := db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM users WHERE chat_id = $1)`, adminID)
		if err != nil {
			return fmt.Errorf("seed: check admin account: %w", err)
		}
		if exists {
			return nil
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO users (chat_id, name, email, phone, role, blocked)
			 VALUES ($1, 'Administrator', $2, '', 'admin', FALSE)`,
			adminID, fmt.Sprintf("admin-%d@edubot.local", adminID),
		)
		if err != nil {
			return fmt.Errorf("seed: create admin account: %w", err)
		}

		logger.DIR.Info("admin account seeded",
			slog.String("event", "seed.admin"),
			slog.Int64("chat_id", adminID),
		)
		return nil
	})
}
