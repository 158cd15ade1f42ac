// Package app assembles the education bot: configuration, database,
// conversation engine, command set and Telegram wiring.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/edubot/bot/broadcast"
	"github.com/m3rciful/edubot/bot/certificates"
	"github.com/m3rciful/edubot/bot/commands"
	"github.com/m3rciful/edubot/bot/directory"
	"github.com/m3rciful/edubot/bot/invites"
	"github.com/m3rciful/edubot/core/bootstrap"
	coreconfig "github.com/m3rciful/edubot/core/config"
	"github.com/m3rciful/edubot/core/conversation"
	"github.com/m3rciful/edubot/core/logger"
	coretelegram "github.com/m3rciful/edubot/core/telegram"
	"github.com/m3rciful/edubot/core/telegram/middleware"
	"github.com/m3rciful/edubot/core/telegram/router"
	tgsender "github.com/m3rciful/edubot/core/telegram/sender"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// App holds the assembled application.
type App struct {
	cfg *Config
	db  *sqlx.DB

	users      *directory.Users
	registry   *conversation.Registry
	store      conversation.Store
	engine     *conversation.Engine
	dispatcher *tgsender.Dispatcher
	chatSender *coretelegram.ChatSender
}

// Bootstrap initializes infrastructure and wires the conversation engine.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	result, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{adminSeeder(cfg.Core.Telegram.AdminID)},
	})
	if err != nil {
		return nil, err
	}
	db := result.DB

	users := directory.NewUsers(db)
	groups := directory.NewGroups(db)

	dispatcher := tgsender.NewDispatcher(tgsender.Options{})
	chatSender := coretelegram.NewChatSender(dispatcher)

	services := &conversation.Services{
		Users:        users,
		Groups:       groups,
		Invites:      invites.NewGenerator(groups),
		Notifier:     broadcast.NewNotifier(users, chatSender),
		Certificates: certificates.NewLedger(db),
	}

	registry := conversation.NewRegistry()
	commands.RegisterAll(registry)

	metrics := conversation.NewMetrics(prometheus.DefaultRegisterer)
	idleTTL := time.Duration(cfg.Core.Session.IdleTTLMinutes) * time.Minute

	store, err := buildSessionStore(&cfg.Core.Session, idleTTL, metrics)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	engine, err := conversation.NewEngine(conversation.Options{
		Registry: registry,
		Store:    store,
		Sender:   chatSender,
		Services: services,
		IdleTTL:  idleTTL,
		Metrics:  metrics,
		OnUnknown: func(ctx context.Context, in conversation.Inbound) {
			if !strings.HasPrefix(strings.TrimSpace(in.Text), "/") {
				return
			}
			if err := chatSender.Send(ctx, in.Principal.ID, "I do not know that command. Try /help."); err != nil {
				logger.Warn(ctx, "app", "unknown.reply",
					slog.String("err", err.Error()),
				)
			}
		},
	})
	if err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		db:         db,
		users:      users,
		registry:   registry,
		store:      store,
		engine:     engine,
		dispatcher: dispatcher,
		chatSender: chatSender,
	}, nil
}

func buildSessionStore(cfg *coreconfig.SessionConfig, idleTTL time.Duration, metrics *conversation.Metrics) (conversation.Store, error) {
	switch cfg.Store {
	case coreconfig.SessionStoreRedis:
		opts := []conversation.RedisOption{conversation.WithTTL(idleTTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, conversation.WithPrefix(cfg.Redis.Prefix))
		}
		return conversation.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...), nil
	case coreconfig.SessionStoreMemory, "":
		store := conversation.NewMemoryStore(idleTTL)
		store.SetEvictHook(metrics.Evicted)
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown session store %q", cfg.Store)
	}
}

// TelegramRunOptions builds the bot runtime wiring for the runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	var middlewares []coretelegram.Middleware
	if interval := a.cfg.Core.RateLimit.IntervalMS; interval > 0 {
		rateLimit := middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval: time.Duration(interval) * time.Millisecond,
		})
		middlewares = append(middlewares, coretelegram.Middleware{
			Name: "rate_limit",
			Use:  rateLimit,
		})
	}

	return coretelegram.RunOptions{
		Config:       &a.cfg.Core,
		Dispatcher:   a.dispatcher,
		Middlewares:  middlewares,
		Routes:       router.EngineRoutes(a.engine, a.resolvePrincipal),
		MenuCommands: a.menuCommands(),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.chatSender.Bind(rt.Bot)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// menuCommands publishes the visible command set to the Telegram menu.
func (a *App) menuCommands() []tele.Command {
	var cmds []tele.Command
	for _, def := range a.registry.All() {
		if def.Hidden {
			continue
		}
		cmds = append(cmds, tele.Command{
			Text:        strings.TrimPrefix(def.Token, "/"),
			Description: def.Description,
		})
	}
	cmds = append(cmds, tele.Command{Text: "help", Description: "List available commands"})
	return cmds
}

// Close releases the session store and the database handle.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = err
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
