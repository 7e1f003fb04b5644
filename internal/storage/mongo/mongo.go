package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pribylovaa/mflix-service/internal/config"
	"github.com/pribylovaa/mflix-service/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	commentsCollection = "comments"
	usersCollection    = "users"
	sessionsCollection = "sessions"
	defaultDBName      = "sample_mflix"
)

// Mongo - базовый DAO: держит клиент и рабочую БД, которая резолвится один раз
// при создании; коллекции comments/users/sessions берутся из неё.
// Внутреннего изменяемого состояния нет, методы безопасны для конкурентного вызова.
type Mongo struct {
	cfg      *config.Config
	client   *mongodriver.Client
	db       *mongodriver.Database
	comments *mongodriver.Collection
	users    *mongodriver.Collection
	sessions *mongodriver.Collection
}

// New подключается к MongoDB, проверяет соединение, подготавливает коллекции и индексы.
// Ошибки подключения возвращаются как есть (с префиксом операции).
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	const op = "storage/mongo/New"

	if cfg == nil {
		return nil, fmt.Errorf("%s: nil config", op)
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("%s: empty cfg.DB.URL", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := cli.Database(databaseName(cfg.DB))

	m := &Mongo{
		cfg:      cfg,
		client:   cli,
		db:       db,
		comments: db.Collection(commentsCollection),
		users:    db.Collection(usersCollection),
		sessions: db.Collection(sessionsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

// Ping проверяет доступность primary (для readiness).
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close закрывает соединения клиента.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes создаёт индексы:
//   - users.email unique - уникальность пользователя обеспечивается хранилищем;
//   - sessions.user_id unique - не более одной сессии на пользователя, опора для upsert;
//   - comments.email - отчёт по авторам и фильтр владельца;
//   - comments.movie_id + date(desc) - выборка комментариев фильма.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	sets := []struct {
		coll   *mongodriver.Collection
		models []mongodriver.IndexModel
	}{
		{m.users, []mongodriver.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}}},
		{m.sessions, []mongodriver.IndexModel{{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id_unique").SetUnique(true),
		}}},
		{m.comments, []mongodriver.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email"),
			},
			{
				Keys:    bson.D{{Key: "movie_id", Value: 1}, {Key: "date", Value: -1}},
				Options: options.Index().SetName("movie_date_desc"),
			},
		}},
	}

	for _, s := range sets {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", s.coll.Name(), err)
		}
	}

	return nil
}

// databaseName выбирает рабочую БД: явное имя, затем путь из URI, затем значение по умолчанию.
func databaseName(cfg config.DBConfig) string {
	if name := strings.TrimSpace(cfg.Name); name != "" {
		return name
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Mongo)(nil)
