package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DB struct {
	log  *slog.Logger
	conn *sqlx.DB
}

func New(log *slog.Logger, address string) (*DB, error) {
	db, err := sqlx.Connect("pgx", address)
	if err != nil {
		log.Error("connection problem", "address", address, "error", err)
		return nil, err
	}
	return &DB{
		log:  log,
		conn: db,
	}, nil
}

// Migrate поднимает схему до последней версии
func (db *DB) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db.conn.DB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	db.log.Info("migrations applied")
	return nil
}

func (db *DB) CreateProject(ctx context.Context, userID, name string) (int64, error) {
	var id int64
	err := db.conn.GetContext(ctx, &id, `
		insert into clustering_projects(user_id, name)
		values ($1, $2)
		returning id`,
		userID, name,
	)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (db *DB) SaveResult(ctx context.Context, userID string, projectID int64, res core.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	categories := make([]string, 0, len(res.MinusWords))
	for key := range res.MinusWords {
		categories = append(categories, key)
	}
	slices.Sort(categories)

	r, err := db.conn.ExecContext(ctx, `
		update clustering_projects
		set results = $1, keywords_count = $2, clusters_count = $3,
			minus_words_count = $4, minus_categories = $5, updated_at = now()
		where id = $6 and user_id = $7`,
		data, res.PhraseCount(), len(res.Clusters), res.MinusPhraseCount(),
		pq.StringArray(categories), projectID, userID,
	)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %d: %w", projectID, core.ErrNotFound)
	}
	return nil
}

func (db *DB) Result(ctx context.Context, userID string, projectID int64) (core.Result, error) {
	var raw []byte
	err := db.conn.GetContext(ctx, &raw,
		"select results from clustering_projects where id = $1 and user_id = $2",
		projectID, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Result{}, fmt.Errorf("project %d: %w", projectID, core.ErrNotFound)
	}
	if err != nil {
		return core.Result{}, err
	}
	// проект есть, но кластеризацию ещё не запускали
	if len(raw) == 0 {
		return core.Result{}, fmt.Errorf("project %d results: %w", projectID, core.ErrNotFound)
	}

	var res core.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return core.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}
