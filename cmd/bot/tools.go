package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Freeeeeet/trial_lesson_bot/internal/app"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/render"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [status]",
		Short: "Apply database migrations or print their status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := len(args) == 1 && args[0] == "status"
			if len(args) == 1 && !status {
				return fmt.Errorf("unknown migrate action %q", args[0])
			}

			cfg, logger, err := bootstrap("DB_DSN")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
			if err != nil {
				return err
			}
			defer func() { _ = migrator.Close() }()

			if status {
				return migrator.Status(ctx)
			}
			return migrator.Run(ctx)
		},
	}
	return cmd
}

func newSlotsCmd() *cobra.Command {
	var (
		days      int
		imagePath string
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free slots computed from CRM calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap("BITRIX24_WEBHOOK_URL")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if days <= 0 {
				days = cfg.HorizonDays
			}

			crmClient, err := newCRMClient(cfg)
			if err != nil {
				return err
			}
			availability := service.NewAvailabilityService(crmClient, cfg.WorkingHours, cfg.Location, cfg.RetryPolicy(), logger)

			from, to := availability.Horizon(days)
			slots, err := availability.ComputeFreeSlots(cmd.Context(), cfg.Teachers, from, to, cfg.LessonDuration)
			if err != nil {
				return err
			}

			printSlots(cmd, slots, cfg.Location.String())

			if imagePath == "" {
				return nil
			}
			png, err := render.AvailabilityImage(slots, render.Grid{
				From:      from,
				Days:      days + 1,
				StartHour: cfg.WorkingHours.StartHour,
				EndHour:   cfg.WorkingHours.EndHour,
				DaysOff:   cfg.WorkingHours.DaysOff,
				Now:       from,
			})
			if err != nil {
				return fmt.Errorf("render image: %w", err)
			}
			if err := os.WriteFile(imagePath, png, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			logger.Info("Availability image saved", zap.String("path", imagePath), zap.Int("bytes", len(png)))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "how many days ahead to look (default BOOKING_HORIZON_DAYS)")
	cmd.Flags().StringVar(&imagePath, "image", "", "also render the week grid into this PNG file")
	return cmd
}

func printSlots(cmd *cobra.Command, slots map[string][]model.Slot, tz string) {
	out := cmd.OutOrStdout()
	if len(slots) == 0 {
		fmt.Fprintln(out, "No free slots")
		return
	}

	keys := make([]string, 0, len(slots))
	for key := range slots {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DATE\tTIME (%s)\tTEACHERS\n", tz)
	for _, key := range keys {
		for _, slot := range slots[key] {
			fmt.Fprintf(w, "%s\t%s-%s\t%s\n",
				key,
				slot.StartTime.Format("15:04"),
				slot.EndTime.Format("15:04"),
				strings.Join(slot.ResourceIDs, ","),
			)
		}
	}
	_ = w.Flush()
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check CRM webhook and database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap("BITRIX24_WEBHOOK_URL")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			crmClient, err := newCRMClient(cfg)
			if err != nil {
				return err
			}
			if err := crmClient.Ping(ctx); err != nil {
				return err
			}
			logger.Info("✅ CRM webhook is reachable")

			if cfg.DBDSN == "" {
				return nil
			}
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool.Close()
			logger.Info("✅ Database is reachable")
			return nil
		},
	}
}
