// Package app wires configuration, object store backend, retry policy and
// key repository together and runs the keyrepo commands on top of them.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/keyrepo/internal/common"
	"github.com/dmitrijs2005/keyrepo/internal/config"
	"github.com/dmitrijs2005/keyrepo/internal/keyrepo"
	"github.com/dmitrijs2005/keyrepo/internal/logging"
	"github.com/dmitrijs2005/keyrepo/internal/objectstore"
	"github.com/dmitrijs2005/keyrepo/internal/retry"
)

// Seams for tests.
var (
	newS3Client   = objectstore.NewS3Client
	openPostgres  = objectstore.OpenPostgres
	runMigrations = objectstore.RunMigrations
)

// ErrUsage is returned for unknown commands or missing operands.
var ErrUsage = errors.New("usage: keyrepo [flags] list | store <name> | migrate")

type App struct {
	config *config.Config
	logger logging.Logger
	repo   *keyrepo.Repository
	db     *sql.DB
}

// NewApp builds the object store selected by cfg.Backend and a repository on
// top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	store, err := app.newStore(ctx)
	if err != nil {
		return nil, err
	}

	var opts []retry.Option
	if !cfg.RetryNotFound {
		opts = append(opts, retry.WithClassifier(retry.Except(common.ErrorNotFound)))
	}
	exec := retry.New(retry.DefaultConfig(), logger, opts...)

	repo, err := keyrepo.NewRepository(store, exec, keyrepo.Options{
		Namespace: cfg.StorageNamespace,
		Prefix:    cfg.NamespacePrefix,
	}, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.repo = repo

	return app, nil
}

func (app *App) newStore(ctx context.Context) (objectstore.Store, error) {
	cfg := app.config

	switch cfg.Backend {
	case config.BackendS3:
		client, err := newS3Client(ctx, objectstore.S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return objectstore.NewS3Store(client, cfg.StorageNamespace), nil

	case config.BackendPostgres:
		db, err := openPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		return objectstore.NewPostgresStore(db, cfg.StorageNamespace), nil

	case config.BackendMemory:
		return objectstore.NewMemoryStore(), nil
	}

	return nil, fmt.Errorf("%w: %q", common.ErrorUnknownBackend, cfg.Backend)
}

// Repository exposes the wired repository to embedding hosts.
func (app *App) Repository() *keyrepo.Repository {
	return app.repo
}

// Close releases the database handle, if any.
func (app *App) Close() error {
	if app.db != nil {
		return app.db.Close()
	}
	return nil
}

// Run executes one command. Documents to store are read from in, listings
// are written to out.
func (app *App) Run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "list":
		return app.List(ctx, out)
	case "store":
		if len(args) != 2 {
			return ErrUsage
		}
		return app.Store(ctx, args[1], in)
	case "migrate":
		return app.Migrate(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
}

// List prints one line per document: its id (or "-") and root element.
func (app *App) List(ctx context.Context, out io.Writer) error {
	docs, err := app.repo.GetAllDocuments(ctx)
	if err != nil {
		return err
	}

	for _, d := range docs {
		id := d.ID()
		if id == "" {
			id = "-"
		}
		if _, err := fmt.Fprintf(out, "%s\t<%s>\n", id, d.Root().Tag); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "%d document(s)\n", len(docs))
	return err
}

// Store reads one XML document from in and stores it under name.
func (app *App) Store(ctx context.Context, name string, in io.Reader) error {
	if f, ok := in.(fdReader); ok && isTerminal(int(f.Fd())) {
		return errors.New("refusing to read a document from a terminal, pipe it in instead")
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	doc, err := keyrepo.ParseDocument(data)
	if err != nil {
		return err
	}

	return app.repo.StoreDocument(ctx, doc, name)
}

// Migrate applies the SQL schema; only meaningful for the postgres backend.
func (app *App) Migrate(ctx context.Context) error {
	if app.db == nil {
		return fmt.Errorf("migrate: backend %q has no schema", app.config.Backend)
	}
	if err := runMigrations(ctx, app.db); err != nil {
		return err
	}
	app.logger.Info(ctx, "migrations applied")
	return nil
}
