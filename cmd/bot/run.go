package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/trial_lesson_bot/internal/api"
	"github.com/Freeeeeet/trial_lesson_bot/internal/app"
	"github.com/Freeeeeet/trial_lesson_bot/internal/config"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/state"
	"github.com/Freeeeeet/trial_lesson_bot/internal/notifier"
	"github.com/Freeeeeet/trial_lesson_bot/internal/repository"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runBot(parent context.Context) error {
	cfg, logger, err := bootstrap("TELEGRAM_TOKEN", "DB_DSN", "BITRIX24_WEBHOOK_URL")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting trial lesson bot",
		zap.String("environment", cfg.Environment),
		zap.String("version", Version),
		zap.Int("teachers", len(cfg.Teachers)),
		zap.String("timezone", cfg.Location.String()),
	)
	if len(cfg.Teachers) == 0 {
		logger.Warn("TEACHERS is empty, no slots will be offered")
	}
	if len(cfg.AdminIDs) == 0 {
		logger.Warn("ADMIN_IDS is empty, escalations will only be logged")
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("✅ Connected to database")

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	err = migrator.Run(ctx)
	_ = migrator.Close()
	if err != nil {
		return err
	}

	crmClient, err := newCRMClient(cfg)
	if err != nil {
		return err
	}

	botInstance, err := bot.New(cfg.TelegramToken,
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			logger.Debug("Unhandled update", zap.Int64("update_id", update.ID))
		}),
		bot.WithErrorsHandler(func(err error) {
			logger.Warn("Telegram polling error", zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	tg := notifier.NewTelegram(botInstance, cfg.AdminIDs, cfg.Location, logger)

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)

	// Сервисы
	availability := service.NewAvailabilityService(crmClient, cfg.WorkingHours, cfg.Location, cfg.RetryPolicy(), logger)
	reservations := service.NewReservationService(
		crmClient,
		reservationRepo,
		userRepo,
		availability,
		tg,
		service.ReservationConfig{
			Resources:       cfg.Teachers,
			LessonDuration:  cfg.LessonDuration,
			Retry:           cfg.RetryPolicy(),
			ReminderMinutes: cfg.CRMReminderMinutes,
		},
		logger,
	)
	users := service.NewUserService(userRepo, logger)
	reminders := service.NewReminderService(reservationRepo, userRepo, tg, cfg.Teachers, cfg.ReminderLead, logger)

	botController := controller.NewBotController(
		botInstance,
		users,
		reservations,
		state.NewManager(cfg.DialogTTL),
		controller.Options{HorizonDays: cfg.HorizonDays, Hours: cfg.WorkingHours},
		logger,
	)
	if err := botController.RegisterHandlers(ctx); err != nil {
		// Без меню команд бот всё равно работает
		logger.Warn("Bot started without commands menu", zap.Error(err))
	}

	scheduler := app.NewScheduler(reminders, cfg.ReminderInterval, logger)
	scheduler.AddHousekeeping(botController.PruneDialogs)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return botController.Start(gctx)
	})

	if apiEnabled(cfg) {
		server := api.NewServer(api.Config{
			Addr:         cfg.APIAddr,
			StaticTokens: cfg.APIStaticTokens,
			JWTSecret:    cfg.APIJWTSecret,
			DefaultDays:  cfg.HorizonDays,
		}, reservations, users, logger)
		g.Go(func() error {
			return server.Run(gctx)
		})
	} else {
		logger.Info("HTTP API disabled, set API_STATIC_TOKENS or API_JWT_SECRET to enable it")
	}

	err = g.Wait()
	logger.Info("Shutting down")
	return err
}

// apiEnabled API без учётных данных не поднимаем
func apiEnabled(cfg *config.Config) bool {
	return cfg.APIAddr != "" && (len(cfg.APIStaticTokens) > 0 || cfg.APIJWTSecret != "")
}
