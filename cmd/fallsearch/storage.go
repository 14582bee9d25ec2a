package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/config"
	dbRedis "github.com/kailas-cloud/fallsearch/internal/db/redis"
	"github.com/kailas-cloud/fallsearch/internal/repository/kv"
	"github.com/kailas-cloud/fallsearch/internal/repository/memory"
	"github.com/kailas-cloud/fallsearch/internal/repository/postgres"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	"github.com/kailas-cloud/fallsearch/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

// storage bundles the record backend with its health check and cleanup.
// counters is nil unless the backend can persist rewrite quota counters.
type storage struct {
	records  searchuc.Storage
	pinger   healthuc.StoragePinger
	counters rewrite.CounterStore
	close    func()
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		reg := memory.New()
		if cfg.Fixtures != "" {
			var err error
			if reg, err = memory.LoadFile(cfg.Fixtures); err != nil {
				return storage{}, err
			}
		}
		logger.Info("Using in-memory records", zap.String("fixtures", cfg.Fixtures))
		return storage{records: reg, pinger: reg, close: func() {}}, nil

	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return storage{}, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return storage{}, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Addrs))

		repo := kv.New(store, cfg.KeyPrefix)
		if cfg.Seed {
			if err := seed(ctx, repo, cfg.Fixtures, logger); err != nil {
				store.Close()
				return storage{}, err
			}
		}
		return storage{
			records:  repo,
			pinger:   store,
			counters: kv.NewCounters(store, cfg.KeyPrefix),
			close:    store.Close,
		}, nil

	case config.DriverPostgres:
		pg := cfg.Postgres
		tables := make([]postgres.TableConfig, 0, len(pg.Tables))
		for _, t := range pg.Tables {
			tables = append(tables, postgres.TableConfig{
				Type: t.Type, Table: t.Table, PK: t.PK, References: t.References,
			})
		}
		repo, err := postgres.Open(ctx, postgres.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			Name:     pg.Name,
			User:     pg.User,
			Password: pg.Password,
			SSLMode:  pg.SSLMode,
			Schema:   pg.Schema,
			Tables:   tables,
		})
		if err != nil {
			return storage{}, err
		}
		logger.Info("Connected to postgres", zap.String("host", pg.Host), zap.Int("tables", len(tables)))
		return storage{records: repo, pinger: repo, close: func() { _ = repo.Close() }}, nil

	default:
		return storage{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// seed copies fixture records into the key-value store.
func seed(ctx context.Context, repo *kv.Repo, path string, logger *zap.Logger) error {
	reg, err := memory.LoadFile(path)
	if err != nil {
		return err
	}
	types, err := reg.Types(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		recs, err := reg.All(ctx, t)
		if err != nil {
			return err
		}
		if err := repo.Seed(ctx, t, recs); err != nil {
			return err
		}
		logger.Info("Seeded record type", zap.String("type", t.Name()), zap.Int("records", len(recs)))
	}
	return nil
}
