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

// criticsLimit - сколько самых активных авторов возвращает отчёт.
const criticsLimit = 20

// CommentByID - получить комментарий по ID.
//
// Поведение/ошибки:
//   - ErrInvalidArgument - id не является ObjectID;
//   - ErrNotFound - комментария нет (штатный «пустой» результат);
//   - ErrInternal - иные ошибки хранилища.
func (s *Service) CommentByID(ctx context.Context, id string) (_ *models.Comment, err error) {
	const op = "service/comments/CommentByID"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "id", id)

	comment, err := s.storage.CommentByID(ctx, id)
	if err != nil {
		return nil, storageError(lg, op, err)
	}

	return comment, nil
}

// AddComment вставляет новый комментарий и возвращает его в том виде, в котором он
// сохранён: Date приводится к UTC с точностью до миллисекунд (точность BSON DateTime),
// поэтому результат равен тому, что затем вернёт CommentByID.
//
// Валидация:
//   - ID обязателен: пустой ID - ErrValidation, хранилище не вызывается.
//
// Поведение/ошибки:
//   - ErrInvalidArgument - ID или MovieID не являются ObjectID;
//   - ErrConflict - комментарий с таким ID уже есть;
//   - ErrInternal - иные ошибки хранилища.
func (s *Service) AddComment(ctx context.Context, comment models.Comment) (_ *models.Comment, err error) {
	const op = "service/comments/AddComment"
	defer s.track(op, time.Now(), &err)

	lg := log.Op(ctx, op, "id", comment.ID, "email", redact.Email(comment.Email))

	if strings.TrimSpace(comment.ID) == "" {
		lg.Warn("validation: comment has no id")
		return nil, fmt.Errorf("%s: comment has no id: %w", op, ErrValidation)
	}

	comment.Date = comment.Date.UTC().Truncate(time.Millisecond)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.storage.InsertComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			lg.Warn("comment already exists")
			return nil, fmt.Errorf("%s: comment %s already exists: %w", op, comment.ID, ErrConflict)
		}

		return nil, storageError(lg, op, err)
	}

	return &comment, nil
}

// UpdateComment заменяет текст комментария и обновляет его дату.
//
// Авторизация встроена в фильтр: обновляется только документ с данными id И email автора.
// WriteResult.Applied() == false одинаково означает «нет такого комментария» и
// «комментарий чужой»; различить их можно предварительным CommentByID.
//
// Поведение/ошибки:
//   - ErrInvalidArgument - id не является ObjectID;
//   - ErrInternal - сбой записи (в т.ч. неудовлетворимый write concern).
func (s *Service) UpdateComment(ctx context.Context, id, text, email string) (_ models.WriteResult, err error) {
	const op = "service/comments/UpdateComment"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "id", id, "email", redact.Email(email))

	res, err := s.storage.UpdateComment(ctx, id, email, text, s.now())
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	if !res.Applied() {
		lg.Debug("comment not found or not owned by caller")
	}

	return res, nil
}

// DeleteComment удаляет комментарий автора.
//
// Как и в UpdateComment, Applied() == false означает «не найден или чужой».
func (s *Service) DeleteComment(ctx context.Context, id, email string) (_ models.WriteResult, err error) {
	const op = "service/comments/DeleteComment"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "id", id, "email", redact.Email(email))

	res, err := s.storage.DeleteComment(ctx, id, email)
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	if !res.Applied() {
		lg.Debug("comment not found or not owned by caller")
	}

	return res, nil
}

// MostActiveCommenters - отчёт: до 20 авторов с наибольшим числом комментариев,
// по убыванию. Пустая коллекция даёт пустой (не nil) срез.
func (s *Service) MostActiveCommenters(ctx context.Context) (_ []models.Critic, err error) {
	const op = "service/comments/MostActiveCommenters"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op)

	critics, err := s.storage.MostActiveCommenters(ctx, criticsLimit)
	if err != nil {
		return nil, storageError(lg, op, err)
	}

	if critics == nil {
		critics = []models.Critic{}
	}

	return critics, nil
}
