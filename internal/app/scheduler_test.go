package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingSender struct {
	calls atomic.Int32
	err   error
}

func (c *countingSender) SendDue(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	sender := &countingSender{}
	s := NewScheduler(sender, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return sender.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := sender.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sender.calls.Load())

	// Повторный Stop безопасен
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	sender := &countingSender{err: errors.New("db down")}
	s := NewScheduler(sender, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return sender.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}

func TestScheduler_Housekeeping(t *testing.T) {
	sender := &countingSender{}
	s := NewScheduler(sender, 10*time.Millisecond, zap.NewNop())

	var pruned atomic.Int32
	s.AddHousekeeping(func() { pruned.Add(1) })

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return pruned.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("production", "warn")
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = NewLogger("development", "loud")
	assert.Error(t, err)
}
