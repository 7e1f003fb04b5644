// Package service реализует DAO-операции mflix поверх storage: валидацию входа,
// перевод ошибок хранилища в сервисные, логирование и метрики.
//
// Service не хранит состояния запроса и безопасен для конкурентного использования
// при условии, что потокобезопасны переданные storage и cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/mflix-service/internal/cache"
	"github.com/pribylovaa/mflix-service/internal/config"
	"github.com/pribylovaa/mflix-service/internal/metrics"
	"github.com/pribylovaa/mflix-service/internal/storage"
)

var (
	// ErrValidation - не передан обязательный аргумент; проверяется до обращения к хранилищу.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidArgument - аргумент передан, но хранилище не может его разобрать (формат id).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict - хранилище отклонило запись из-за уникальности.
	ErrConflict = errors.New("conflict")
	// ErrNotFound - документ отсутствует. Для поиска это штатный «пустой» ответ, а не сбой.
	ErrNotFound = errors.New("not found")
	// ErrInternal - прочие ошибки хранилища; исходная ошибка драйвера доступна через errors.As.
	ErrInternal = errors.New("internal")
)

// Service - DAO-операции над комментариями, пользователями и сессиями.
type Service struct {
	storage storage.Storage
	cfg     config.Config
	cache   cache.SessionCache // может быть nil, если кэш не сконфигурирован
	metrics *metrics.DAO       // может быть nil
	now     func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.Config) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetSessionCache подключает кэш сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.cache = c
}

// SetMetrics подключает метрики операций (опционально).
func (s *Service) SetMetrics(m *metrics.DAO) {
	s.metrics = m
}

// withTimeout навешивает cfg.Timeouts.Service, если у ctx ещё нет дедлайна.
// Существующий дедлайн вызывающего не переопределяется.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.cfg.Timeouts.Service
	if d <= 0 {
		return ctx, func() {}
	}

	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, d)
}

// track пишет метрику по итоговой ошибке операции; вызывается через defer.
func (s *Service) track(op string, start time.Time, errp *error) {
	s.metrics.Observe(op, outcome(*errp), start)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

// storageError переводит ошибку storage в сервисную и пишет её в лог.
// Неизвестные ошибки оборачиваются вместе с ErrInternal, исходная цепочка сохраняется.
func storageError(lg *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		lg.Debug("not found")
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrInvalidID):
		lg.Warn("invalid id")
		return fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	case errors.Is(err, storage.ErrAlreadyExists):
		lg.Warn("conflict")
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		lg.Error("storage error", "err", err)
		return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}
}
