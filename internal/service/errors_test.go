package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"slot taken", fmt.Errorf("book: %w", ErrSlotTaken), "только что заняли"},
		{"remote", &RemoteError{Op: "create work item", Err: errors.New("boom")}, "Администратор уже уведомлён"},
		{"inconsistent", &InconsistentStateError{Op: "x", Err: errors.New("a"), CompensationErr: errors.New("b")}, "Администратор уже уведомлён"},
		{"not found", ErrReservationNotFound, "Запись не найдена"},
		{"outside hours", ErrOutsideWorkingHours, "не проводятся"},
		{"success", nil, "Готово"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, UserMessage(tt.err), tt.want)
		})
	}
}

func TestInconsistentStateError_Unwrap(t *testing.T) {
	cause := errors.New("update failed")
	comp := errors.New("rollback failed")
	err := fmt.Errorf("reschedule: %w", &InconsistentStateError{Op: "update work item", Err: cause, CompensationErr: comp})

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, comp)
	assert.Contains(t, err.Error(), "compensation: rollback failed")
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrSlotInPast))
	assert.True(t, IsValidation(fmt.Errorf("x: %w", ErrUnknownResource)))
	assert.False(t, IsValidation(ErrSlotTaken))
	assert.False(t, IsValidation(&RemoteError{Op: "x", Err: errors.New("y")}))
}
