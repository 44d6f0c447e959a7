package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/internal/version"
	"github.com/llamamind/mindmap/plugin/llm"
	"github.com/llamamind/mindmap/server"
	"github.com/llamamind/mindmap/store"
	"github.com/llamamind/mindmap/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mindmap",
		Short: `An AI-assisted mindmap service that breaks a goal down into ever smaller tasks.`,
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:          viper.GetString("mode"),
				Addr:          viper.GetString("addr"),
				Port:          viper.GetInt("port"),
				Data:          viper.GetString("data"),
				Driver:        viper.GetString("driver"),
				DSN:           viper.GetString("dsn"),
				Secret:        viper.GetString("secret"),
				TokenDuration: viper.GetDuration("token-duration"),
				Version:       version.GetCurrentVersion(viper.GetString("mode")),
				LLMToken:      viper.GetString("llm-token"),
				LLMEndpoint:   viper.GetString("llm-endpoint"),
				LLMProvider:   viper.GetString("llm-provider"),
				LLMModel:      viper.GetString("llm-model"),
				LLMTimeout:    viper.GetDuration("llm-timeout"),
			}
			if viper.IsSet("llm-temperature") {
				temperature := viper.GetFloat64("llm-temperature")
				instanceProfile.LLMTemperature = &temperature
			}
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid configuration", "error", err)
				os.Exit(1)
			}

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create db driver", "error", err)
				return
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				cancel()
				slog.Error("failed to migrate", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the mindmap version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetCurrentVersion(viper.GetString("mode")))
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver: sqlite, mysql or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("secret", "", "secret used to sign access tokens")
	rootCmd.PersistentFlags().Duration("token-duration", 0, "lifetime of an access token")
	rootCmd.PersistentFlags().String("llm-token", "", "bearer token for the chat-completion endpoint")
	rootCmd.PersistentFlags().String("llm-endpoint", "", "chat-completion endpoint URL")
	rootCmd.PersistentFlags().String("llm-provider", "", "inference provider forwarded to the router")
	rootCmd.PersistentFlags().String("llm-model", "", "model identifier")
	rootCmd.PersistentFlags().Duration("llm-timeout", 0, "timeout of a single llm request")
	rootCmd.PersistentFlags().Float64("llm-temperature", llm.DefaultTemperature, "sampling temperature, 0 for deterministic output")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn", "secret", "token-duration",
		"llm-token", "llm-endpoint", "llm-provider", "llm-model", "llm-timeout", "llm-temperature",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("mindmap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// The token is commonly provisioned under the provider's own variable name.
	if err := viper.BindEnv("llm-token", "MINDMAP_LLM_TOKEN", "HF_TOKEN"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(versionCmd)
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("mindmap %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Access your mindmap at: http://localhost:%d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		fmt.Printf("Access your mindmap at: http://%s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
