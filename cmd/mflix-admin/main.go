// Command mflix-admin - сервисные операции над данными mflix из командной строки.
//
//	mflix-admin -op critics
//	mflix-admin -op user -email a@x.com
//	mflix-admin -op delete-user -email a@x.com
//	mflix-admin -op drop-sessions -email a@x.com
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pribylovaa/mflix-service/internal/config"
	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/service"
	mfmongo "github.com/pribylovaa/mflix-service/internal/storage/mongo"
)

// errUsage - неверные флаги; main печатает справку и выходит с кодом 2.
var errUsage = errors.New("usage")

// admin - подмножество операций Service, нужное CLI.
type admin interface {
	MostActiveCommenters(ctx context.Context) ([]models.Critic, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, email string) (models.WriteResult, error)
	DeleteUserSessions(ctx context.Context, userID string) (models.WriteResult, error)
}

func main() {
	var configPath, op, email string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.StringVar(&op, "op", "", "operation: critics | user | delete-user | drop-sessions")
	flag.StringVar(&email, "email", "", "user email (user, delete-user, drop-sessions)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	// Лог уходит в stderr, stdout занят JSON-результатом.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbCtx, dbCancel := context.WithTimeout(ctx, cfg.DB.ConnectTimeout)
	store, err := mfmongo.New(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	err = run(ctx, service.New(store, *cfg), op, email, os.Stdout)
	_ = store.Close(context.Background())

	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	case err != nil:
		log.Error("operation_failed", slog.String("op", op), slog.String("err", err.Error()))
		os.Exit(1)
	}
}

// run выполняет одну операцию и печатает результат в w в виде JSON.
func run(ctx context.Context, svc admin, op, email string, w io.Writer) error {
	if op != "critics" && email == "" {
		return fmt.Errorf("%w: -email is required for -op %q", errUsage, op)
	}

	var out any
	switch op {
	case "critics":
		critics, err := svc.MostActiveCommenters(ctx)
		if err != nil {
			return err
		}
		out = critics

	case "user":
		user, err := svc.UserByEmail(ctx, email)
		if errors.Is(err, service.ErrNotFound) {
			out = nil
			break
		}
		if err != nil {
			return err
		}
		// Хэш пароля не печатаем.
		out = struct {
			Name        string         `json:"name"`
			Email       string         `json:"email"`
			Preferences map[string]any `json:"preferences"`
		}{user.Name, user.Email, user.Preferences}

	case "delete-user":
		res, err := svc.DeleteUser(ctx, email)
		if err != nil {
			return err
		}
		out = res

	case "drop-sessions":
		res, err := svc.DeleteUserSessions(ctx, email)
		if err != nil {
			return err
		}
		out = res

	default:
		return fmt.Errorf("%w: unknown -op %q", errUsage, op)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
