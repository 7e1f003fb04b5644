// Package cache - необязательный Redis-кэш сессий пользователей.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/redis/go-redis/v9"
)

// SessionCache - контракт кэша сессий.
// Кэш вспомогательный: источник истины - коллекция sessions.
//
// Заполнение условное. Читатель берёт Generation до чтения из БД и передаёт её в Fill;
// любая запись в БД после этого вызывает Invalidate, который увеличивает поколение,
// и Fill со старым поколением ничего не пишет. Так снимок, прочитанный до записи,
// не может попасть в кэш после неё.
type SessionCache interface {
	// Get возвращает сессию и признак её наличия в кэше.
	Get(ctx context.Context, userID string) (*models.Session, bool, error)
	// Generation возвращает текущее поколение записей пользователя (0, если записей не было).
	Generation(ctx context.Context, userID string) (int64, error)
	// Fill сохраняет сессию с TTL, только если поколение всё ещё равно gen.
	// Возвращает false, если за это время была запись.
	Fill(ctx context.Context, s models.Session, gen int64, ttl time.Duration) (bool, error)
	// Invalidate удаляет сессию из кэша и увеличивает поколение пользователя.
	Invalidate(ctx context.Context, userID string) error
	// Close закрывает клиент Redis.
	Close() error
}

// genTTL - время жизни счётчика поколения. Должно с запасом перекрывать окно
// между Generation и Fill (оно ограничено сервисным таймаутом).
const genTTL = 24 * time.Hour

// fillScript: KEYS[1] - hash сессии, KEYS[2] - счётчик поколения;
// ARGV[1] - ожидаемое поколение, ARGV[2] - jwt, ARGV[3] - TTL в мс.
var fillScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '0')
if cur ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'jwt', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// invalidateScript: KEYS[1] - hash сессии, KEYS[2] - счётчик поколения; ARGV[1] - TTL счётчика в мс.
var invalidateScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return 1
`)

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение. Если prefix пустой - используется "mflix:session:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (SessionCache, error) {
	const op = "cache/NewRedisCache"

	if prefix == "" {
		prefix = "mflix:session:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

// key и genKey используют hash tag {userID}, чтобы оба ключа жили в одном слоте Redis Cluster.
func (c *redisCache) key(userID string) string { return c.prefix + "{" + userID + "}" }
func (c *redisCache) genKey(userID string) string { return c.key(userID) + ":gen" }

// Get читает Redis Hash с полем jwt.
func (c *redisCache) Get(ctx context.Context, userID string) (*models.Session, bool, error) {
	jwt, err := c.rdb.HGet(ctx, c.key(userID), "jwt").Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return &models.Session{UserID: userID, JWT: jwt}, true, nil
}

func (c *redisCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return gen, err
}

func (c *redisCache) Fill(ctx context.Context, s models.Session, gen int64, ttl time.Duration) (bool, error) {
	n, err := fillScript.Run(ctx, c.rdb,
		[]string{c.key(s.UserID), c.genKey(s.UserID)},
		gen, s.JWT, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (c *redisCache) Invalidate(ctx context.Context, userID string) error {
	return invalidateScript.Run(ctx, c.rdb,
		[]string{c.key(userID), c.genKey(userID)},
		genTTL.Milliseconds(),
	).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
