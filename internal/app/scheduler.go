package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReminderSender то, что планировщик дёргает на каждом тике
type ReminderSender interface {
	SendDue(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reminders    ReminderSender
	housekeeping []func()
	interval     time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(reminders ReminderSender, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		reminders: reminders,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// AddHousekeeping добавляет задачу, выполняемую на каждом тике. Вызывать до Start.
func (s *Scheduler) AddHousekeeping(fn func()) {
	s.housekeeping = append(s.housekeeping, fn)
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	go s.runReminderTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего тика
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	<-s.done
}

func (s *Scheduler) runReminderTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.sendReminders(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendReminders(ctx)
		case <-s.stopChan:
			s.logger.Info("Reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reminder task cancelled")
			return
		}
	}
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	for _, fn := range s.housekeeping {
		fn()
	}

	sent, err := s.reminders.SendDue(ctx)
	if err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Reminders sent", zap.Int("count", sent))
	}
}
