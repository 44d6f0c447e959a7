package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/internal/version"
	"github.com/llamamind/mindmap/store"
	"github.com/llamamind/mindmap/store/db"
)

// NewTestingStore returns a migrated store backed by the driver named in the
// DRIVER environment variable. SQLite in a temp dir is the default; mysql and
// postgres start a throwaway container.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	profile := getTestingProfile(ctx, t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func getTestingProfile(ctx context.Context, t *testing.T) *profile.Profile {
	t.Helper()
	dir := t.TempDir()
	driver := getDriverFromEnv()
	profile := &profile.Profile{
		Mode:    "dev",
		Port:    8000,
		Data:    dir,
		Driver:  driver,
		Secret:  "test-secret",
		Version: version.GetCurrentVersion("dev"),
	}

	switch driver {
	case "mysql":
		container, err := tcmysql.Run(ctx, "mysql:8.0",
			tcmysql.WithDatabase("mindmap"),
			tcmysql.WithUsername("mindmap"),
			tcmysql.WithPassword("mindmap"),
		)
		testcontainers.CleanupContainer(t, container)
		if err != nil {
			t.Fatalf("failed to start mysql container: %v", err)
		}
		dsn, err := container.ConnectionString(ctx)
		if err != nil {
			t.Fatalf("failed to get mysql dsn: %v", err)
		}
		profile.DSN = dsn
	case "postgres":
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("mindmap"),
			tcpostgres.WithUsername("mindmap"),
			tcpostgres.WithPassword("mindmap"),
			tcpostgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, container)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get postgres dsn: %v", err)
		}
		profile.DSN = dsn
	default:
		profile.DSN = filepath.Join(dir, fmt.Sprintf("mindmap_%s.db", profile.Mode))
	}
	return profile
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
