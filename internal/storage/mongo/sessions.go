package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sessionDoc - BSON-представление документа коллекции sessions.
type sessionDoc struct {
	UserID string `bson:"user_id"`
	JWT    string `bson:"jwt"`
}

// UpsertSession одним условным запросом создаёт сессию или заменяет токен.
//
// Два параллельных upsert на одного пользователя могут оба не найти документ и оба
// попытаться вставить; уникальный индекс user_id пропустит только одну вставку.
// Проигравший получает duplicate key и повторяет запрос, который теперь находит
// документ и обновляет токен.
func (m *Mongo) UpsertSession(ctx context.Context, userID, jwt string) (models.WriteResult, error) {
	const op = "storage/mongo/UpsertSession"

	filter := bson.D{{Key: "user_id", Value: userID}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "jwt", Value: jwt}}}}
	opts := options.Update().SetUpsert(true)

	res, err := m.sessions.UpdateOne(ctx, filter, update, opts)
	if mongodriver.IsDuplicateKeyError(err) {
		res, err = m.sessions.UpdateOne(ctx, filter, update, opts)
	}

	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.WriteResult{
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
		Upserted: res.UpsertedCount,
	}, nil
}

// SessionByUserID возвращает сессию пользователя.
func (m *Mongo) SessionByUserID(ctx context.Context, userID string) (*models.Session, error) {
	const op = "storage/mongo/SessionByUserID"

	var doc sessionDoc
	if err := m.sessions.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Session{UserID: doc.UserID, JWT: doc.JWT}, nil
}

// DeleteSessions удаляет все сессии пользователя.
func (m *Mongo) DeleteSessions(ctx context.Context, userID string) (models.WriteResult, error) {
	const op = "storage/mongo/DeleteSessions"

	res, err := m.sessions.DeleteMany(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.WriteResult{Deleted: res.DeletedCount}, nil
}
