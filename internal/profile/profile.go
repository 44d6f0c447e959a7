package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for server.
	Addr string
	// Port is the binding port for server.
	Port int
	// Data is the data directory.
	Data string
	// Driver is the database driver: sqlite, mysql or postgres.
	Driver string
	// DSN points to where the mindmap stores its own data.
	DSN string
	// Secret signs the access tokens handed out by the auth routes.
	Secret string
	// TokenDuration is the lifetime of an access token.
	TokenDuration time.Duration
	// Version is the current version of server.
	Version string

	// LLMToken is the bearer token for the chat-completion endpoint.
	LLMToken string
	// LLMEndpoint is the chat-completion URL.
	LLMEndpoint string
	// LLMProvider is forwarded to the router as the inference provider.
	LLMProvider string
	// LLMModel is the model identifier.
	LLMModel string
	// LLMTimeout bounds a single HTTP attempt.
	LLMTimeout time.Duration
	// LLMTemperature is the sampling temperature; nil keeps the client default.
	LLMTemperature *float64
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills in defaults and rejects unusable configurations.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "mindmap")
		} else {
			p.Data = "/var/opt/mindmap"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "", "sqlite":
		p.Driver = "sqlite"
		if p.DSN == "" {
			dbFile := fmt.Sprintf("mindmap_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	case "mysql", "postgres":
		if p.DSN == "" {
			return errors.Errorf("dsn is required for driver %q", p.Driver)
		}
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("secret is required in prod mode")
		}
		p.Secret = "mindmap-dev-secret"
	}
	if p.TokenDuration <= 0 {
		p.TokenDuration = 24 * time.Hour
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 30 * time.Second
	}
	return nil
}
