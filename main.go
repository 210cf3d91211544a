package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/retention/internal/app"
	"github.com/example/retention/internal/config"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/internal/notify"
	"github.com/example/retention/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is configured from cfg, so this one goes to stderr
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "type", cfg.Database.Type, "error", err)
	}
	defer database.Close()

	a := app.New(db, cfg, log)
	if err := a.ImportCatalog(ctx); err != nil {
		log.Fatal("failed to import concept catalog", "file", cfg.ImportFile, "error", err)
	}

	var notifier scheduler.Notifier
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, log)
		if err != nil {
			log.Fatal("failed to create telegram notifier", "error", err)
		}
		notifier = tg
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, reminders will only be logged")
		notifier = notify.NewLog(log)
	}

	sched := a.NewScheduler(notifier)
	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}

	log.Info("retention service started", "db", cfg.Database.Type, "model_key", cfg.ModelKey)

	sig := <-sigChan
	log.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	sched.Stop()
	log.Info("retention service stopped")
}
