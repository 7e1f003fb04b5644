package mongo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/mflix-service/internal/config"
	"github.com/stretchr/testify/require"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Интеграционные тесты пакета mongo:
//   - поднимают MongoDB (mongo:7.0) через testcontainers-go один раз на пакет,
//     одноузловым replica set rs0, чтобы работали транзакции;
//   - каждый тест работает в своей БД с уникальным именем (см. newTestConfig);
//   - без GO_TEST_INTEGRATION интеграционные тесты пропускаются, юнит-тесты идут всегда.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/mongo -v -race -count=1

// testTimeout - общий дедлайн на операции с БД в тестах.
const testTimeout = 10 * time.Second

func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	// directConnection: член replica set объявлен как localhost:27017 внутри контейнера,
	// discovery с хоста по этому адресу невозможен.
	uri := fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port())
	if err := initReplicaSet(ctx, uri); err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to init replica set: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", uri)

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// initReplicaSet инициализирует rs0 из одного узла и ждёт, пока он станет primary.
func initReplicaSet(ctx context.Context, uri string) error {
	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer cli.Disconnect(context.Background())

	admin := cli.Database("admin")
	err = admin.RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: bson.D{
		{Key: "_id", Value: "rs0"},
		{Key: "members", Value: bson.A{bson.D{{Key: "_id", Value: 0}, {Key: "host", Value: "localhost:27017"}}}},
	}}}).Err()
	if err != nil {
		return fmt.Errorf("replSetInitiate: %w", err)
	}

	for {
		var hello struct {
			IsWritablePrimary bool `bson:"isWritablePrimary"`
		}
		if err := admin.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err == nil && hello.IsWritablePrimary {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for primary: %w", ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// newTestConfig создаёт конфиг с отдельной тестовой БД.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	baseURL := strings.TrimSuffix(os.Getenv("DATABASE_URL"), "/")
	if baseURL == "" {
		baseURL = "mongodb://localhost:27017"
	}

	return &config.Config{
		DB: config.DBConfig{
			URL:            baseURL,
			Name:           "mflix_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			ConnectTimeout: testTimeout,
		},
	}
}

// mustNewMongo подключается к тестовой БД и регистрирует её удаление по завершении теста.
func mustNewMongo(t *testing.T, cfg *config.Config) *Mongo {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, cfg)
	require.NoError(t, err, "cannot connect to MongoDB (DATABASE_URL=%s)", cfg.DB.URL)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestDatabaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.DBConfig
		want string
	}{
		{"explicit name wins", config.DBConfig{URL: "mongodb://h:27017/fromuri", Name: "explicit"}, "explicit"},
		{"name from uri path", config.DBConfig{URL: "mongodb://h:27017/fromuri?replicaSet=rs0"}, "fromuri"},
		{"default without path", config.DBConfig{URL: "mongodb://h:27017"}, defaultDBName},
		{"default with slash only", config.DBConfig{URL: "mongodb://h:27017/"}, defaultDBName},
		{"blank name ignored", config.DBConfig{URL: "mongodb://h:27017/db", Name: "  "}, "db"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, databaseName(tt.cfg), tt.name)
	}
}

func TestNew_NilOrEmptyConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), nil)
	require.Error(t, err)

	_, err = New(context.Background(), &config.Config{})
	require.Error(t, err)
}

// TestEnsureIndexes_Created - уникальные индексы users/sessions и индексы comments существуют.
func TestEnsureIndexes_Created(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))
	ctx := testCtx(t)

	names := func(t *testing.T, coll string) map[string]bool {
		t.Helper()
		cur, err := m.db.Collection(coll).Indexes().List(ctx)
		require.NoError(t, err)
		defer cur.Close(ctx)

		out := map[string]bool{}
		for cur.Next(ctx) {
			var idx struct {
				Name   string `bson:"name"`
				Unique bool   `bson:"unique"`
			}
			require.NoError(t, cur.Decode(&idx))
			out[idx.Name] = idx.Unique || out[idx.Name]
		}
		require.NoError(t, cur.Err())
		return out
	}

	users := names(t, usersCollection)
	require.Contains(t, users, "email_unique")
	require.True(t, users["email_unique"], "users.email must be unique")

	sessions := names(t, sessionsCollection)
	require.Contains(t, sessions, "user_id_unique")
	require.True(t, sessions["user_id_unique"], "sessions.user_id must be unique")

	comments := names(t, commentsCollection)
	require.Contains(t, comments, "email")
	require.Contains(t, comments, "movie_date_desc")
}

func TestPing(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))
	require.NoError(t, m.Ping(testCtx(t)))
}
