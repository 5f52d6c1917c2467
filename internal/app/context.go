package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"techrider/internal/config"
	"techrider/internal/db"
	"techrider/internal/engine"
	"techrider/internal/logging"
	"techrider/internal/migrate"
	"techrider/internal/repo"
	"techrider/internal/snapshot"
)

// Workspace is an opened, migrated brief database with its config.
type Workspace struct {
	Path   string
	DB     *sql.DB
	Config *config.Config
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// OpenWorkspace loads rider.yml (defaults when absent), opens and migrates the
// database, and seeds the tour brief into an empty database when enabled.
func OpenWorkspace(ctx context.Context, path string, log *logrus.Logger) (*Workspace, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: path})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.Seed.Enabled {
		seeded, err := EnsureSeeded(ctx, repo.Repo{DB: conn})
		if err != nil {
			conn.Close()
			return nil, err
		}
		if seeded && log != nil {
			log.WithField("workspace", path).Info("seeded tour brief")
		}
	}
	return &Workspace{Path: path, DB: conn, Config: cfg}, nil
}

// Engine builds the service for the workspace. A non-empty redisURL overrides
// redis.url; when either is set committed items are mirrored to Redis and the
// returned close func releases that connection.
func (w *Workspace) Engine(redisURL string, log *logrus.Logger) (engine.Engine, func() error, error) {
	if log == nil {
		log = logging.Nop()
	}
	e := engine.New(w.DB, w.Config)
	e.Log = log
	if redisURL == "" {
		redisURL = w.Config.Redis.URL
	}
	if redisURL == "" {
		return e, func() error { return nil }, nil
	}
	store, err := snapshot.NewRedisStore(redisURL)
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("snapshot mirror: %w", err)
	}
	e.Mirror = store
	return e, store.Close, nil
}
