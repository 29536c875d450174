package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/dkoval/poolctl/internal/adapters/events"
	filestore "github.com/dkoval/poolctl/internal/adapters/secrets/file"
	tomlstore "github.com/dkoval/poolctl/internal/adapters/store/toml"
	"github.com/dkoval/poolctl/internal/application"
	"github.com/dkoval/poolctl/internal/ports"
)

type app struct {
	pool        *application.PoolManager
	bus         *events.Bus
	secretStore ports.SecretStore
	logger      *slog.Logger
	now         func() time.Time
}

func wireApp() (*app, error) {
	store, err := tomlstore.NewStore(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire pool state store: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	secretStore := filestore.NewStore(filepath.Join(homeDir, ".poolctl", "secrets"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bus := events.NewBus()

	pool, err := application.NewPoolManager(store, ports.SystemClock{}, bus, logger)
	if err != nil {
		return nil, fmt.Errorf("wire pool manager: %w", err)
	}

	return &app{
		pool:        pool,
		bus:         bus,
		secretStore: secretStore,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
