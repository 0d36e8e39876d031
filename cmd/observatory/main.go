// Command observatory is the collection engine's entry point. It wires
// the arena catalogue, stores, credential pool, executor, orchestrator
// and live scheduler together and hands control to the CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/config/file"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/feed"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/storage/memory"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/storage/sqlite"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driving/cli"
	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/services"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.LoadConfig("")
	if err != nil {
		return err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	registry := services.NewArenaRegistry()
	for _, desc := range arenas.Descriptors() {
		if err := registry.Register(desc); err != nil {
			return err
		}
	}

	pool, stopWatcher, err := openCredentialPool(cfg, stores.credentials)
	if err != nil {
		return err
	}
	defer stopWatcher()

	broadcast := feed.NewBroadcast()
	defer broadcast.Close()

	orchestrator := services.NewRunOrchestrator(
		registry,
		stores.designs,
		stores.runs,
		stores.content,
		services.NewCredentialResolver(pool),
		broadcast,
		cfg.Executor.TaskBudget(),
	)
	executor := services.NewExecutor(services.ExecutorConfig{
		Workers:       cfg.Executor.Workers,
		MaxAttempts:   cfg.Executor.MaxAttempts,
		BackoffBase:   cfg.Executor.BackoffBase(),
		DefaultBudget: cfg.Executor.TaskBudget(),
	}, arenas.NewFactory(), services.NewNormalizer(stores.content), stores.runs, broadcast, orchestrator)
	orchestrator.SetExecutor(executor)
	defer executor.Stop()

	cli.Configure(cli.Services{
		Catalog:      registry,
		Orchestrator: orchestrator,
		Runs:         stores.runs,
		Designs:      stores.designs,
		Credentials:  pool,
		Feed:         broadcast,
	})
	cli.ConfigureScheduler(services.NewLiveScheduler(stores.designs, orchestrator, cfg.Scheduler.Tick()))

	return cli.Execute()
}

// engineStores groups the persistence ports the engine needs.
type engineStores struct {
	runs        driven.RunStore
	content     driven.ContentStore
	designs     driven.QueryDesignStore
	credentials driven.CredentialPool
}

// openStores opens SQLite-backed stores, or in-memory ones when the
// data directory is configured as ":memory:".
func openStores(cfg file.Config) (engineStores, func(), error) {
	if cfg.DataDir == ":memory:" {
		return engineStores{
			runs:        memory.NewRunStore(),
			content:     memory.NewContentStore(),
			designs:     memory.NewDesignStore(),
			credentials: memory.NewCredentialPool(),
		}, func() {}, nil
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return engineStores{}, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}
	return engineStores{
		runs:        store.RunStore(),
		content:     store.ContentStore(),
		designs:     store.DesignStore(),
		credentials: store.CredentialPool(),
	}, closeStore, nil
}

// openCredentialPool layers the hot-reloaded credentials file over the
// store-backed pool. File credentials resolve first; operator-added
// credentials persist in the store.
func openCredentialPool(cfg file.Config, store driven.CredentialPool) (driven.CredentialPool, func(), error) {
	path := cfg.CredentialsFile
	if path == "" {
		configPath, err := file.ConfigPath("")
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(filepath.Dir(configPath), "credentials.toml")
	}

	filePool := memory.NewCredentialPool()
	creds, err := file.LoadCredentials(path)
	if err != nil {
		return nil, nil, err
	}
	filePool.Replace(creds)

	watcher, err := file.NewCredentialsWatcher(path, filePool.Replace)
	if err != nil {
		return nil, nil, err
	}
	stop := func() {}
	// A fresh install has neither the file nor its directory; the pool
	// then runs store-only for this invocation.
	if err := watcher.Start(context.Background()); err != nil {
		logger.Debug("credentials file not watchable: %v", err)
	} else {
		stop = watcher.Stop
	}

	return &layeredPool{file: filePool, store: store}, stop, nil
}
