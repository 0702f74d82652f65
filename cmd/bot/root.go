package main

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_lesson_bot/internal/app"
	"github.com/Freeeeeet/trial_lesson_bot/internal/config"
	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trial-lesson-bot",
		Short:         "Telegram bot for booking trial lessons against CRM calendars",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newPingCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot, reminder scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", Version, CommitSHA)
		},
	}
}

// bootstrap общая часть всех команд: конфиг, проверка переменных и логгер
func bootstrap(required ...string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Require(required...); err != nil {
		return nil, nil, err
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.EnvFileLoaded {
		logger.Debug("Loaded .env file")
	}
	return cfg, logger, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func newCRMClient(cfg *config.Config) (*crm.Client, error) {
	return crm.New(crm.Config{
		WebhookURL: cfg.WebhookURL,
		GroupID:    cfg.GroupID,
		SectionID:  cfg.CalendarSection,
		Timeout:    cfg.RemoteTimeout,
	})
}
