// Package config реализует конфигурацию mflix-service: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config - корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Comments CommentsConfig `yaml:"comments"`
	Cache    CacheConfig    `yaml:"cache"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// HTTPConfig - служебный HTTP (livez/healthz/metrics).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig - настройки подключения к MongoDB.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	// Имя рабочей БД. Пусто - берётся из пути URI, затем sample_mflix.
	Name           string        `yaml:"name" env:"DB_NAME"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
	// Каскадное удаление пользователя в одной транзакции. Требует replica set.
	Transactions bool `yaml:"transactions" env:"DB_TRANSACTIONS" env-default:"false"`
}

// CommentsConfig - поведение операций над комментариями.
type CommentsConfig struct {
	// UpsertOnUpdate включает upsert при обновлении текста. По умолчанию выключен:
	// иначе гонка delete/update может воскресить удалённый комментарий.
	UpsertOnUpdate bool `yaml:"upsert_on_update" env:"COMMENTS_UPSERT_ON_UPDATE" env-default:"false"`
}

// CacheConfig - необязательный Redis-кэш сессий. Пустой RedisURL отключает кэш.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string        `yaml:"prefix" env:"CACHE_PREFIX" env-default:"mflix:session:"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"15m"`
}

// Enabled сообщает, сконфигурирован ли кэш.
func (c CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

// TimeoutConfig - сервисные таймауты (общий дедлайн обработки запроса).
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			path = "local.yaml"
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}

		// cleanenv.ReadConfig сам накладывает ENV поверх файла.
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate - базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	if c.DB.ConnectTimeout <= 0 {
		return fmt.Errorf("db.connect_timeout must be > 0")
	}

	if c.Timeouts.Service <= 0 {
		return fmt.Errorf("timeouts.service must be > 0")
	}

	if c.Cache.Enabled() {
		if c.Cache.TTL < time.Second {
			return fmt.Errorf("cache.ttl must be at least 1s")
		}

		if c.Cache.Prefix == "" {
			return fmt.Errorf("cache.prefix must not be empty")
		}
	}

	return nil
}
