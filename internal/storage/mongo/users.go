package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// userDoc - BSON-представление документа коллекции users.
type userDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Password    string             `bson:"password"`
	Preferences map[string]any     `bson:"preferences,omitempty"`
}

// InsertUser создаёт пользователя с write concern majority: регистрация не должна
// потеряться при смене primary.
func (m *Mongo) InsertUser(ctx context.Context, user models.User) error {
	const op = "storage/mongo/InsertUser"

	coll := m.db.Collection(usersCollection,
		options.Collection().SetWriteConcern(writeconcern.Majority()))

	_, err := coll.InsertOne(ctx, userDoc{
		Name:        user.Name,
		Email:       user.Email,
		Password:    user.HashedPassword,
		Preferences: user.Preferences,
	})
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/UserByEmail"

	var doc userDoc
	if err := m.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.User{
		Name:           doc.Name,
		Email:          doc.Email,
		HashedPassword: doc.Password,
		Preferences:    plainPreferences(doc.Preferences),
	}, nil
}

// plainPreferences приводит вложенные значения preferences к map[string]any и []any.
// Без этого вложенные документы декодируются как primitive.D, массивы - как primitive.A.
func plainPreferences(prefs map[string]any) map[string]any {
	if prefs == nil {
		return nil
	}

	out := make(map[string]any, len(prefs))
	for k, v := range prefs {
		out[k] = plainValue(v)
	}

	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case primitive.M:
		return plainPreferences(t)
	case map[string]any:
		return plainPreferences(t)
	case primitive.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plainValue(x)
		}
		return out
	default:
		return v
	}
}

// ReplacePreferences заменяет поле preferences целиком (без слияния ключей)
// у всех документов с данным email.
func (m *Mongo) ReplacePreferences(ctx context.Context, email string, prefs map[string]any) (models.WriteResult, error) {
	const op = "storage/mongo/ReplacePreferences"

	res, err := m.users.UpdateMany(ctx,
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "preferences", Value: prefs}}}},
	)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.WriteResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// DeleteUser удаляет сессии пользователя, затем сам документ пользователя.
//
// Порядок фиксирован: сначала зависимые сессии, потом пользователь. Оба шага
// идемпотентны, поэтому при падении между ними операцию можно просто повторить.
// При cfg.DB.Transactions оба шага выполняются в одной транзакции (нужен replica set).
// Ошибка на шаге сессий прерывает операцию до удаления пользователя.
func (m *Mongo) DeleteUser(ctx context.Context, email string) (models.WriteResult, error) {
	const op = "storage/mongo/DeleteUser"

	if !m.cfg.DB.Transactions {
		res, err := m.deleteUserCascade(ctx, email)
		if err != nil {
			return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
		}

		return res, nil
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: start session: %w", op, err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (any, error) {
		return m.deleteUserCascade(sc, email)
	})
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: transaction: %w", op, err)
	}

	res, _ := out.(models.WriteResult)
	return res, nil
}

// deleteUserCascade - два шага каскада; ctx может быть SessionContext транзакции.
func (m *Mongo) deleteUserCascade(ctx context.Context, email string) (models.WriteResult, error) {
	// Principal сессии совпадает с email пользователя.
	if _, err := m.DeleteSessions(ctx, email); err != nil {
		return models.WriteResult{}, fmt.Errorf("delete sessions: %w", err)
	}

	res, err := m.users.DeleteMany(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("delete user: %w", err)
	}

	return models.WriteResult{Deleted: res.DeletedCount}, nil
}
