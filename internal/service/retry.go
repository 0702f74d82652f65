package service

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RetryPolicy ограничения на обращения к CRM
type RetryPolicy struct {
	MaxAttempts int           // Всего попыток на чтение и идемпотентную запись
	Timeout     time.Duration // Таймаут одной попытки
	Backoff     time.Duration // Пауза между попытками
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	return p
}

type retrier struct {
	policy RetryPolicy
	logger *zap.Logger
}

func newRetrier(policy RetryPolicy, logger *zap.Logger) *retrier {
	return &retrier{policy: policy.normalized(), logger: logger}
}

// do выполняет идемпотентный вызов с повторами.
// ErrNotFound и отмена внешнего контекста не повторяются.
func (r *retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(r.policy.MaxAttempts-1), retry.NewConstant(r.policy.Backoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.once(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, crm.ErrNotFound) || ctx.Err() != nil {
			return err
		}

		r.logger.Warn("Remote call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Error(err),
		)
		return retry.RetryableError(err)
	})
}

// once одна попытка с таймаутом. Для create-вызовов: повтор после таймаута может создать дубль.
func (r *retrier) once(ctx context.Context, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	return fn(attemptCtx)
}
