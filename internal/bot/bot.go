// Package bot wires the application components together and manages their
// lifecycle: the Telegram listener, the backup loop, the async store writer,
// and the maintenance scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/telewatch/telewatch/internal/backup"
	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
)

// Bot is the application orchestrator.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	tgBot     *tgbot.Bot
	writer    *database.AsyncWriter
	backupMgr *backup.Manager
	scheduler *Scheduler
}

// NewBot assembles the orchestrator from already-constructed components.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	tgBot *tgbot.Bot,
	writer *database.AsyncWriter,
	backupMgr *backup.Manager,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		tgBot:     tgBot,
		writer:    writer,
		backupMgr: backupMgr,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails. Shutdown order matters: the listener stops first, the
// backup loop runs its final cycle, and the write queue drains last so that
// nothing enqueued during shutdown is lost.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")

	g, gCtx := errgroup.WithContext(ctx)

	b.writer.Run(gCtx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram listener")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram listener stopped")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		err := b.backupMgr.Run(gCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("backup loop failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running")
	err := g.Wait()

	b.writer.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
