// Package main contains the entrypoint for the business message tracker bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/telewatch/telewatch/internal/archive"
	"github.com/telewatch/telewatch/internal/backup"
	"github.com/telewatch/telewatch/internal/bot"
	"github.com/telewatch/telewatch/internal/bot/handlers"
	"github.com/telewatch/telewatch/internal/bot/tasks"
	"github.com/telewatch/telewatch/internal/cache"
	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/history"
	"github.com/telewatch/telewatch/internal/logger"
	"github.com/telewatch/telewatch/internal/notify"
	"github.com/telewatch/telewatch/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, starts the orchestrator, and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	archiveClient, err := archive.NewClient(cfg.Archive, log)
	if err != nil {
		log.Error("Failed to initialize archive client", "error", err)
		return 1
	}

	messageCache := cache.New(cfg.Cache.Capacity)
	writer := database.NewAsyncWriter(store, cfg.Backup.WriteQueueLen, log)
	backupMgr := backup.NewManager(store, archiveClient, cfg.Backup, log)
	renderer := notify.NewRenderer(cfg.Location())
	historySvc := history.NewService(store, archiveClient, cfg.ArchiveEpoch(),
		cfg.Archive.ScanWorkers, cfg.History.MaxResults, log)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Cache:    messageCache,
		Writer:   writer,
		Backup:   backupMgr,
		Renderer: renderer,
		History:  historySvc,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewBusinessRouter(hDeps)),
		tgbot.WithAllowedUpdates([]string{
			"message", "callback_query", "business_connection",
			"business_message", "edited_business_message", "deleted_business_messages",
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, tg, writer, backupMgr, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	time.Sleep(time.Second)
	return 0
}
