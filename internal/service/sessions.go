package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/pkg/log"
	"github.com/pribylovaa/mflix-service/internal/pkg/redact"
)

// CreateUserSession создаёт сессию пользователя или заменяет её токен.
// Запись атомарна (условный upsert), поэтому на пользователя остаётся одна сессия.
func (s *Service) CreateUserSession(ctx context.Context, userID, jwt string) (_ models.WriteResult, err error) {
	const op = "service/sessions/CreateUserSession"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "user_id", redact.Email(userID), "jwt", redact.Token(jwt))

	res, err := s.storage.UpsertSession(ctx, userID, jwt)
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	// Кэш только инвалидируется: следующее чтение подтянет актуальный токен из БД.
	s.invalidateSession(ctx, lg, userID)

	return res, nil
}

// UserSession возвращает сессию пользователя; отсутствие - ErrNotFound.
// При подключённом кэше читает сначала из него; ошибки кэша не фатальны.
//
// Промах заполняется условно: поколение берётся до чтения из БД, и если между
// чтением и заполнением прошла запись (CreateUserSession, DeleteUserSessions,
// DeleteUser), прочитанный снимок в кэш не попадает.
func (s *Service) UserSession(ctx context.Context, userID string) (_ *models.Session, err error) {
	const op = "service/sessions/UserSession"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "user_id", redact.Email(userID))

	fillable := false
	var gen int64
	if s.cache != nil {
		cached, ok, cerr := s.cache.Get(ctx, userID)
		switch {
		case cerr != nil:
			lg.Warn("session cache get failed", "err", cerr)
		case ok:
			return cached, nil
		}

		if gen, cerr = s.cache.Generation(ctx, userID); cerr != nil {
			lg.Warn("session cache generation failed", "err", cerr)
		} else {
			fillable = true
		}
	}

	session, err := s.storage.SessionByUserID(ctx, userID)
	if err != nil {
		return nil, storageError(lg, op, err)
	}

	if fillable {
		filled, cerr := s.cache.Fill(ctx, *session, gen, s.cfg.Cache.TTL)
		switch {
		case cerr != nil:
			lg.Warn("session cache fill failed", "err", cerr)
		case !filled:
			lg.Debug("session changed during read, cache fill skipped")
		}
	}

	return session, nil
}

// DeleteUserSessions удаляет все сессии пользователя.
// Ноль удалённых документов - тоже успех (Applied() == false, err == nil).
func (s *Service) DeleteUserSessions(ctx context.Context, userID string) (_ models.WriteResult, err error) {
	const op = "service/sessions/DeleteUserSessions"
	defer s.track(op, time.Now(), &err)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lg := log.Op(ctx, op, "user_id", redact.Email(userID))

	res, err := s.storage.DeleteSessions(ctx, userID)
	if err != nil {
		return models.WriteResult{}, storageError(lg, op, err)
	}

	s.invalidateSession(ctx, lg, userID)

	return res, nil
}

// invalidateSession сбрасывает сессию в кэше и закрывает окно для заполнений,
// начатых до записи. Если сам вызов упал, устаревшая запись живёт не дольше cfg.Cache.TTL.
func (s *Service) invalidateSession(ctx context.Context, lg *slog.Logger, userID string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		lg.Warn("session cache invalidate failed", "err", err)
	}
}
