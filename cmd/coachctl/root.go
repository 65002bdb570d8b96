package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachly/backend/internal/auth"
	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/cache/redis"
	"github.com/coachly/backend/internal/storage/sqlite"
	"github.com/coachly/backend/pkg/config"
	appLogger "github.com/coachly/backend/pkg/logger"
)

// env is shared by all subcommands once the root has loaded the config.
type env struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "coachctl",
		Short: "Administer a coaching backend database",
		Long: `Administrative commands that work directly on the backend's database.

Configuration is read the same way as the API server: config.yaml, .env and
COACHLY_* environment variables.

Examples:
  coachctl company create "Acme GmbH"
  coachctl user create anna@acme.de --company <id> --admin
  coachctl token issue <user-id>
  coachctl cache sweep`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := appLogger.Init(cfg.Logging.Level, "console", "stderr"); err != nil {
				return err
			}
			e.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			appLogger.Sync()
		},
	}

	root.AddCommand(
		newCompanyCmd(e),
		newUserCmd(e),
		newTokenCmd(e),
		newCacheCmd(e),
	)
	return root
}

func (e *env) openStore() (*sqlite.Client, error) {
	client, err := sqlite.NewClient(e.cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := client.InitSchema(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return client, nil
}

func (e *env) tokens() *auth.TokenManager {
	return auth.NewTokenManager(e.cfg.Auth.JWTSecret, time.Duration(e.cfg.Auth.TokenTTLHours)*time.Hour)
}

// openCache returns the configured cache and a func releasing everything it
// opened.
func (e *env) openCache() (*cache.Store, func(), error) {
	if e.cfg.Cache.Backend == "redis" {
		rc, err := redis.NewClient(e.cfg.Redis.Host, e.cfg.Redis.Port, e.cfg.Redis.Password, e.cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		store := cache.New(rc)
		return store, func() { store.Wait(); rc.Close() }, nil
	}

	client, err := e.openStore()
	if err != nil {
		return nil, nil, err
	}
	store := cache.New(client)
	return store, func() { store.Wait(); client.Close() }, nil
}
