// promptdeck-engine is the evaluation sidecar behind the PromptDeck
// desktop shell. It speaks JSON-RPC 2.0 over stdio: requests in on stdin,
// responses and run notifications out on stdout. All logging goes to
// stderr so stdout stays a clean protocol stream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/promptdeck/engine/internal/config"
	"github.com/promptdeck/engine/internal/dataset"
	"github.com/promptdeck/engine/internal/genai"
	"github.com/promptdeck/engine/internal/history"
	"github.com/promptdeck/engine/internal/keys"
	"github.com/promptdeck/engine/internal/run"
	"github.com/promptdeck/engine/internal/server"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("promptdeck-engine %s\n", version)
			os.Exit(0)
		case "serve":
			if err := serve(); err != nil {
				fmt.Fprintf(os.Stderr, "promptdeck-engine: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}
	fmt.Fprintln(os.Stderr, "Usage: promptdeck-engine <command>")
	fmt.Fprintln(os.Stderr, "Commands: serve, version")
	os.Exit(1)
}

func serve() error {
	keys.LoadDotenv()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	dataDir := dataDirectory()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// History is best-effort: the engine runs without it.
	var store *history.Store
	if s, err := history.Open(filepath.Join(dataDir, "history.db")); err != nil {
		logger.Warn("history store unavailable", "err", err)
	} else {
		store = s
		defer store.Close()
	}

	generator := buildGenerator(logger)

	svc := run.NewExecService(run.ExecConfig{
		Binary:  envStr("PROMPTDECK_RUNNER_BIN", "promptfoo"),
		WorkDir: dataDir,
	}, logger)

	var sink run.HistorySink
	if store != nil {
		sink = store
	}
	orch := run.New(svc, config.NewBuilder(), sink, nil, logger)

	srv := server.NewWithConcurrency(os.Stdin, os.Stdout, logger,
		envInt("PROMPTDECK_MAX_CONCURRENT_REQUESTS", 1))

	var reader server.HistoryReader
	if store != nil {
		reader = store
	}
	server.RegisterBuiltinHandlers(srv, server.Deps{
		Orchestrator: orch,
		Resolver:     dataset.NewResolver(generator, logger),
		History:      reader,
		Generator:    generator,
		Logger:       logger,
	})

	logger.Info("engine started", "version", version, "data_dir", dataDir)
	return srv.Run(context.Background())
}

// buildGenerator wires the AI generation client when a key is available.
// Without one the engine still serves everything except generation.
func buildGenerator(logger *slog.Logger) genai.Generator {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Info("generation disabled", "reason", "OPENAI_API_KEY not set")
		return nil
	}

	client := genai.NewClient(apiKey, envStr("PROMPTDECK_GENERATION_MODEL", ""), logger)
	limited, err := genai.NewRateLimited(client, genai.RateLimiterConfig{
		RequestsPerMinute: envInt("PROMPTDECK_GENERATION_RPM", 60),
		Burst:             envInt("PROMPTDECK_GENERATION_BURST", 5),
		MaxRetries:        envInt("PROMPTDECK_GENERATION_RETRIES", 3),
		InitialBackoff:    500 * time.Millisecond,
	})
	if err != nil {
		logger.Warn("rate limiter misconfigured, using unlimited client", "err", err)
		return client
	}
	return limited
}

func dataDirectory() string {
	if dir := os.Getenv("PROMPTDECK_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".promptdeck")
}

func logLevel() slog.Level {
	switch os.Getenv("PROMPTDECK_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
