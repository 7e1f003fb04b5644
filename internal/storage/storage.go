package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/mflix-service/internal/models"
)

var (
	// ErrNotFound - документ отсутствует в коллекции.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникального индекса (_id комментария, email пользователя).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidID - идентификатор не разбирается как ObjectID.
	ErrInvalidID = errors.New("invalid id")
)

// CommentStorage описывает операции над коллекцией comments.
type CommentStorage interface {
	// CommentByID возвращает комментарий по hex ObjectID.
	// Возможные ошибки: ErrInvalidID, ErrNotFound.
	CommentByID(ctx context.Context, id string) (*models.Comment, error)

	// InsertComment вставляет комментарий с уже заданным ID.
	// Возможные ошибки: ErrInvalidID, ErrAlreadyExists.
	InsertComment(ctx context.Context, comment models.Comment) error

	// UpdateComment заменяет текст и дату комментария, если совпали и id, и email автора.
	// Несовпадение фильтра ошибкой не является: WriteResult будет нулевым.
	UpdateComment(ctx context.Context, id, email, text string, at time.Time) (models.WriteResult, error)

	// DeleteComment удаляет комментарий по паре (id, email автора).
	DeleteComment(ctx context.Context, id, email string) (models.WriteResult, error)

	// MostActiveCommenters возвращает не более limit авторов по убыванию числа комментариев.
	MostActiveCommenters(ctx context.Context, limit int64) ([]models.Critic, error)
}

// UserStorage описывает операции над коллекцией users.
type UserStorage interface {
	// InsertUser создаёт пользователя. Дубликат email - ErrAlreadyExists.
	InsertUser(ctx context.Context, user models.User) error

	// UserByEmail находит пользователя по email. Если нет - ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	// ReplacePreferences целиком заменяет preferences у всех пользователей с данным email.
	ReplacePreferences(ctx context.Context, email string, prefs map[string]any) (models.WriteResult, error)

	// DeleteUser удаляет сессии пользователя, затем самого пользователя.
	// WriteResult отражает только удаление пользователя.
	DeleteUser(ctx context.Context, email string) (models.WriteResult, error)
}

// SessionStorage описывает операции над коллекцией sessions.
type SessionStorage interface {
	// UpsertSession атомарно создаёт сессию или заменяет в ней токен.
	UpsertSession(ctx context.Context, userID, jwt string) (models.WriteResult, error)

	// SessionByUserID возвращает сессию пользователя. Если нет - ErrNotFound.
	SessionByUserID(ctx context.Context, userID string) (*models.Session, error)

	// DeleteSessions удаляет все сессии пользователя; ноль удалённых - не ошибка.
	DeleteSessions(ctx context.Context, userID string) (models.WriteResult, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	CommentStorage
	UserStorage
	SessionStorage
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
