// Package backend opens the object store selected by STORE_BACKEND.
package backend

import (
	"context"
	"fmt"

	"styletransfer/internal/domain"
	"styletransfer/internal/hub"
	"styletransfer/internal/infra"
	"styletransfer/internal/storage"
)

// Backend bundles the repository, the locator that publishes its artifacts and
// any cleanup the backend needs on shutdown.
type Backend struct {
	Repo    domain.ObjectRepository
	Locator domain.ArtifactLocator
	// StaticDir is non-empty when artifacts must be served by this process.
	StaticDir string
	Close     func()
}

func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case infra.StoreBackendHub:
		client, err := hub.NewClient(hub.Options{
			BaseURL:          cfg.HubBaseURL,
			DatasetRepo:      cfg.HubDatasetRepo,
			Token:            cfg.HubToken,
			Revision:         cfg.HubRevision,
			CommitsPerSecond: cfg.HubCommitsPerSecond,
			Logger:           &logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("repo", client.Repo()).Msg("using hub store")
		return &Backend{Repo: client, Locator: client, Close: func() {}}, nil

	case infra.StoreBackendFS:
		fs, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", fs.BasePath()).Msg("using filesystem store")
		return &Backend{
			Repo:      fs,
			Locator:   storage.NewPrefixLocator(cfg.StorageBaseURL),
			StaticDir: fs.BasePath(),
			Close:     func() {},
		}, nil

	case infra.StoreBackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPGStore(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("using postgres store")
		return &Backend{
			Repo:    pg,
			Locator: storage.NewPrefixLocator(cfg.StorageBaseURL),
			Close:   pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}
