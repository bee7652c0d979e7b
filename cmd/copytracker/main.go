// Command copytracker watches a Polymarket wallet, classifies its fills into
// a position ledger, and optionally mirrors them as orders. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/copytracker/internal/app"
	"github.com/alanyoungcy/copytracker/internal/config"
	"github.com/alanyoungcy/copytracker/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "encrypt-key" {
		encryptKey(os.Args[2:])
		return
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("copy tracker starting",
		slog.String("mode", cfg.Mode),
		slog.String("target", cfg.Target.Wallet),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("copy tracker stopped")
}

// encryptKey implements the encrypt-key subcommand: it reads the raw private
// key and password from the environment (never argv, which leaks into shell
// history and process lists) and writes the encrypted key file.
func encryptKey(args []string) {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	out := fs.String("out", "wallet.key.json", "path to write the encrypted key file")
	_ = fs.Parse(args)

	key := os.Getenv("COPYBOT_WALLET_PRIVATE_KEY")
	password := os.Getenv("COPYBOT_WALLET_KEY_PASSWORD")
	if key == "" || password == "" {
		fmt.Fprintln(os.Stderr, "encrypt-key: COPYBOT_WALLET_PRIVATE_KEY and COPYBOT_WALLET_KEY_PASSWORD must be set")
		os.Exit(1)
	}

	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("encrypted key written to %s\n", *out)
}
