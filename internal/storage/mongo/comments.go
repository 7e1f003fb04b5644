package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// commentDoc - BSON-представление документа коллекции comments.
type commentDoc struct {
	ID      primitive.ObjectID  `bson:"_id"`
	Name    string              `bson:"name,omitempty"`
	Email   string              `bson:"email"`
	MovieID *primitive.ObjectID `bson:"movie_id,omitempty"`
	Text    string              `bson:"text"`
	Date    time.Time           `bson:"date"`
}

// criticDoc - строка результата агрегации по авторам.
type criticDoc struct {
	Email string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (d commentDoc) toModel() *models.Comment {
	c := &models.Comment{
		ID:    d.ID.Hex(),
		Name:  d.Name,
		Email: d.Email,
		Text:  d.Text,
		Date:  d.Date.UTC(),
	}

	if d.MovieID != nil {
		c.MovieID = d.MovieID.Hex()
	}

	return c
}

// parseObjectID разбирает hex ObjectID; любая ошибка формата - storage.ErrInvalidID.
func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, storage.ErrInvalidID
	}

	return oid, nil
}

// CommentByID возвращает комментарий по идентификатору.
func (m *Mongo) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const op = "storage/mongo/CommentByID"

	oid, err := parseObjectID(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var doc commentDoc
	if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

// InsertComment вставляет комментарий. Идентификатор задаёт вызывающий.
func (m *Mongo) InsertComment(ctx context.Context, comment models.Comment) error {
	const op = "storage/mongo/InsertComment"

	oid, err := parseObjectID(comment.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	doc := commentDoc{
		ID:    oid,
		Name:  comment.Name,
		Email: comment.Email,
		Text:  comment.Text,
		// MongoDB DateTime хранит миллисекунды.
		Date: comment.Date.UTC().Truncate(time.Millisecond),
	}

	if strings.TrimSpace(comment.MovieID) != "" {
		movieOID, err := parseObjectID(comment.MovieID)
		if err != nil {
			return fmt.Errorf("%s: movie_id: %w", op, err)
		}
		doc.MovieID = &movieOID
	}

	if _, err := m.comments.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateComment выставляет text и date документу, совпавшему по (_id, email).
// Запись идёт с write concern majority. Upsert управляется cfg.Comments.UpsertOnUpdate;
// при включённом upsert обновление чужого комментария тоже возвращает нулевой WriteResult.
func (m *Mongo) UpdateComment(ctx context.Context, id, email, text string, at time.Time) (models.WriteResult, error) {
	const op = "storage/mongo/UpdateComment"

	oid, err := parseObjectID(id)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "email", Value: email},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "text", Value: text},
		// MongoDB DateTime хранит миллисекунды.
		{Key: "date", Value: at.UTC().Truncate(time.Millisecond)},
	}}}

	coll := m.db.Collection(commentsCollection,
		options.Collection().SetWriteConcern(writeconcern.Majority()))

	res, err := coll.UpdateOne(ctx, filter, update,
		options.Update().SetUpsert(m.cfg.Comments.UpsertOnUpdate))
	if err != nil {
		// С upsert промах по чужому email превращается во вставку с занятым _id.
		// Это тот же «не найден или чужой», а не сбой.
		if m.cfg.Comments.UpsertOnUpdate && mongodriver.IsDuplicateKeyError(err) {
			return models.WriteResult{}, nil
		}

		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.WriteResult{
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
		Upserted: res.UpsertedCount,
	}, nil
}

// DeleteComment удаляет документ, совпавший по (_id, email).
func (m *Mongo) DeleteComment(ctx context.Context, id, email string) (models.WriteResult, error) {
	const op = "storage/mongo/DeleteComment"

	oid, err := parseObjectID(id)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := m.comments.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: oid},
		{Key: "email", Value: email},
	})
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.WriteResult{Deleted: res.DeletedCount}, nil
}

// MostActiveCommenters группирует комментарии по email, сортирует по убыванию
// количества и режет до limit. Чтение с read concern majority: отчёт видит только
// данные, подтверждённые большинством реплик.
func (m *Mongo) MostActiveCommenters(ctx context.Context, limit int64) ([]models.Critic, error) {
	const op = "storage/mongo/MostActiveCommenters"

	pipeline := mongodriver.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$email"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: int64(1)}}},
		}}},
		// Вторичный ключ по email делает порядок при равных count детерминированным.
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	coll := m.db.Collection(commentsCollection,
		options.Collection().SetReadConcern(readconcern.Majority()))

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	critics := make([]models.Critic, 0, limit)
	for cur.Next(ctx) {
		var row criticDoc
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		critics = append(critics, models.Critic{Email: row.Email, Count: row.Count})
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return critics, nil
}
