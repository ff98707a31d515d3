// Package ballotbox parses server configuration and runs the HTTP service.
package ballotbox

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/louisbranch/ballotbox/internal/api/rest"
	"github.com/louisbranch/ballotbox/internal/platform/config"
	"github.com/louisbranch/ballotbox/internal/voting/service"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/storage/dynamo"
	"github.com/louisbranch/ballotbox/internal/voting/storage/memory"
	"github.com/louisbranch/ballotbox/internal/voting/storage/sqlite"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// Storage backend selectors.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendDynamo = "dynamo"
)

// Config holds server configuration.
type Config struct {
	Addr    string `env:"BALLOTBOX_ADDR" envDefault:":8080"`
	Backend string `env:"BALLOTBOX_BACKEND" envDefault:"memory"`

	SQLitePath string `env:"BALLOTBOX_SQLITE_PATH" envDefault:"ballotbox.db"`

	DynamoRegion          string `env:"BALLOTBOX_DYNAMO_REGION"`
	DynamoEndpoint        string `env:"BALLOTBOX_DYNAMO_ENDPOINT"`
	DynamoAccessKeyID     string `env:"BALLOTBOX_DYNAMO_ACCESS_KEY_ID"`
	DynamoSecretAccessKey string `env:"BALLOTBOX_DYNAMO_SECRET_ACCESS_KEY"`
	DynamoDataTable       string `env:"BALLOTBOX_DYNAMO_DATA_TABLE" envDefault:"ballotbox-data"`
	DynamoEventsTable     string `env:"BALLOTBOX_DYNAMO_EVENTS_TABLE" envDefault:"ballotbox-events"`

	SigningKey  string        `env:"BALLOTBOX_SIGNING_KEY"`
	TokenIssuer string        `env:"BALLOTBOX_TOKEN_ISSUER" envDefault:"ballotbox"`
	AccessTTL   time.Duration `env:"BALLOTBOX_ACCESS_TTL"`
	RefreshTTL  time.Duration `env:"BALLOTBOX_REFRESH_TTL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend: memory, sqlite, or dynamo")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the voting service and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if cfg.SigningKey == "" {
		return fmt.Errorf("BALLOTBOX_SIGNING_KEY is required")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := token.NewIssuer(token.Config{
		SigningKey: []byte(cfg.SigningKey),
		Issuer:     cfg.TokenIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	svc, err := service.New(service.Config{
		Store:  store,
		Tokens: tokens,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           rest.NewServer(svc, tokens, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "backend", cfg.Backend)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case BackendDynamo:
		return dynamo.Open(ctx, dynamo.Config{
			Region:          cfg.DynamoRegion,
			Endpoint:        cfg.DynamoEndpoint,
			AccessKeyID:     cfg.DynamoAccessKeyID,
			SecretAccessKey: cfg.DynamoSecretAccessKey,
			DataTable:       cfg.DynamoDataTable,
			EventsTable:     cfg.DynamoEventsTable,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
