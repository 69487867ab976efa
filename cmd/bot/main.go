package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hfi/postlink-bot/internal/authz"
	"github.com/hfi/postlink-bot/internal/command"
	"github.com/hfi/postlink-bot/internal/config"
	"github.com/hfi/postlink-bot/internal/dispatch"
	"github.com/hfi/postlink-bot/internal/logging"
	"github.com/hfi/postlink-bot/internal/resolver"
	"github.com/hfi/postlink-bot/internal/server"
	"github.com/hfi/postlink-bot/internal/storage"
	"github.com/hfi/postlink-bot/internal/telegram"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		printVersion()
		os.Exit(0)
	}

	flags := pflag.NewFlagSet("postlink-bot", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to YAML config file (default $CONFIG_PATH or config.yaml)")
	showVersion := flags.Bool("version", false, "print version information and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("bot stopped with error")
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Post Link Bot %s\n", Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Build Time: %s\n", BuildTime)
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info().
		Str("version", Version).
		Str("storage", cfg.Storage.Type).
		Int("max_post", cfg.Links.MaxPost).
		Int("admins", len(cfg.Bot.AdminIDs)).
		Msg("post link bot starting")

	persister, err := openPersister(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	store := storage.Open(ctx, persister, cfg.Links.MaxPost, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close link store")
		}
	}()

	dispatcher := dispatch.New(
		command.NewParser(cfg.Bot.Username),
		authz.NewGuard(cfg.Bot.AdminIDs),
		resolver.New(store, cfg.Links.BaseURL),
		store,
		cfg.Links.MaxPost,
		logger,
	)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.ListenAddr()
	srvCfg.MetricsPath = cfg.Server.MetricsPath
	srvCfg.Version = Version
	srv := server.New(srvCfg, store.Len, logger)
	srv.RegisterHealthCheck("storage", func() (bool, string) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Check(checkCtx); err != nil {
			return false, err.Error()
		}
		return true, ""
	})

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("health server shutdown")
		}
	}()

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized with telegram")

	poller := telegram.NewPoller(bot, dispatcher, telegram.Options{
		PollTimeout: cfg.Bot.PollTimeout,
		Workers:     cfg.Bot.Workers,
	}, logger)

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- poller.Run(ctx)
	}()

	select {
	case err := <-pollErr:
		logger.Info().Msg("polling stopped, shutting down")
		return err
	case err := <-srvErr:
		cancel()
		<-pollErr
		if err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	}
}
