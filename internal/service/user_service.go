package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"go.uber.org/zap"
)

type UserService struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error) {
	existingUser, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		existingUser.LanguageCode = languageCode

		if err := s.users.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		s.logger.Debug("User updated",
			zap.Int64("telegram_id", telegramID),
			zap.String("username", username),
		)

		return existingUser, nil
	}

	user := &model.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		LanguageCode: languageCode,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile сохраняет анкету. Пустые поля не затирают уже заполненные.
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, profile model.Profile) error {
	merged := mergeProfile(user.Profile, profile)
	if merged == user.Profile {
		return nil
	}

	if err := s.users.UpdateProfile(ctx, user.ID, merged); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	user.Profile = merged

	s.logger.Info("Profile updated", zap.Int64("user_id", user.ID))
	return nil
}

func mergeProfile(base, patch model.Profile) model.Profile {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.ChildName, patch.ChildName)
	set(&base.ChildAge, patch.ChildAge)
	set(&base.ChildInterests, patch.ChildInterests)
	set(&base.ParentName, patch.ParentName)
	set(&base.ParentContact, patch.ParentContact)
	return base
}
