package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keyrepo/internal/common"
	"github.com/dmitrijs2005/keyrepo/internal/dbx"
	"github.com/dmitrijs2005/keyrepo/internal/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// PostgresStore keeps objects as rows of the objects table, scoped by a
// logical bucket name so several namespaces can share one database.
type PostgresStore struct {
	db     dbx.DBTX
	bucket string
}

// NewPostgresStore constructs a store bound to the given DBTX (*sql.DB or *sql.Tx).
func NewPostgresStore(db dbx.DBTX, bucket string) *PostgresStore {
	return &PostgresStore{db: db, bucket: bucket}
}

func (s *PostgresStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	query := `SELECT key, octet_length(data), content_type, updated_at FROM objects
		WHERE bucket = $1 AND key LIKE $2 ESCAPE '\'
		ORDER BY key COLLATE "C"`

	rows, err := s.db.QueryContext(ctx, query, s.bucket, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	var result []ObjectInfo
	for rows.Next() {
		var item ObjectInfo
		if err := rows.Scan(&item.Key, &item.Size, &item.ContentType, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Download(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT data FROM objects WHERE bucket = $1 AND key = $2`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, s.bucket, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %q: %w", key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select object: %w", err)
	}
	return data, nil
}

// Upload upserts the object in one statement, so the replacement is atomic.
func (s *PostgresStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	query := `
		INSERT INTO objects (bucket, key, content_type, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bucket, key)
		DO UPDATE SET
			content_type = EXCLUDED.content_type,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at;
	`
	res, err := s.db.ExecContext(ctx, query, s.bucket, key, contentType, data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
