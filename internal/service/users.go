package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/pkg/log"
	"github.com/pribylovaa/mflix-service/internal/pkg/redact"
	"github.com/pribylovaa/mflix-service/internal/storage"
)

// AddUser регистрирует пользователя (write concern majority на стороне хранилища).
//
// Поведение/ошибки:
//   - ErrConflict - пользователь с таким email уже есть;
//   - ErrInternal - иные ошибки хранилища, исходная ошибка не теряется.
func (s *Service) AddUser(ctx context.Context, user models.User) (err error) {
	const op = "service/users/AddUser"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "email", redact.Email(user.Email))

	if err := s.storage.InsertUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			lg.Warn("user already exists")
			return fmt.Errorf("%s: user already exists: %w", op, ErrConflict)
		}

		return storageError(lg, op, err)
	}

	return nil
}

// UserByEmail возвращает пользователя; отсутствие - ErrNotFound.
func (s *Service) UserByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	const op = "service/users/UserByEmail"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "email", redact.Email(email))

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		return nil, storageError(lg, op, err)
	}

	return user, nil
}

// UpdateUserPreferences целиком заменяет preferences пользователя.
//
// Валидация:
//   - пустой email или nil preferences - ErrValidation до обращения к хранилищу.
//
// Ошибки записи не поглощаются: вызывающий получает ErrInternal с исходной ошибкой.
func (s *Service) UpdateUserPreferences(ctx context.Context, email string, prefs map[string]any) (_ models.WriteResult, err error) {
	const op = "service/users/UpdateUserPreferences"
	defer s.track(op, time.Now(), &err)

	lg := log.Op(ctx, op, "email", redact.Email(email))

	if strings.TrimSpace(email) == "" {
		lg.Warn("validation: email is empty")
		return models.WriteResult{}, fmt.Errorf("%s: email is empty: %w", op, ErrValidation)
	}

	if prefs == nil {
		lg.Warn("validation: preferences are nil")
		return models.WriteResult{}, fmt.Errorf("%s: preferences are nil: %w", op, ErrValidation)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.storage.ReplacePreferences(ctx, email, prefs)
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	return res, nil
}

// DeleteUser удаляет сессии пользователя, затем самого пользователя.
// Возвращаемый WriteResult относится к удалению пользователя. Если шаг с сессиями
// упал, пользователь не удаляется и операцию можно повторить.
func (s *Service) DeleteUser(ctx context.Context, email string) (_ models.WriteResult, err error) {
	const op = "service/users/DeleteUser"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "email", redact.Email(email))

	res, err := s.storage.DeleteUser(ctx, email)
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	s.invalidateSession(ctx, lg, email)

	return res, nil
}
