// Package main provides the librarian CLI and HTTP server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/config"
	logpkg "github.com/kailas-cloud/librarian/internal/logger"
	"github.com/kailas-cloud/librarian/internal/metrics"
	"github.com/kailas-cloud/librarian/internal/version"
)

var (
	// humanOutput switches command output from JSON to readable text.
	humanOutput bool
	// commandTimeout bounds a single CLI command (not serve).
	commandTimeout time.Duration
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		exitWithError(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "Semantic search and grounded answers over a book and manga catalogue",
	Long: `librarian embeds book and manga descriptions, ranks them against
natural-language queries and answers questions grounded on the best matches.

Configuration is read from config/<ENV>.yaml (ENV defaults to "local");
a .env file in the working directory is loaded first when present.
All commands print JSON unless --human is set.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "timeout", 2*time.Minute,
		"Deadline for a single command (ignored by serve)")
}

// bootstrap loads .env, the environment config and the logger, then registers metrics.
func bootstrap() (string, config.Config, *zap.Logger, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return "", config.Config{}, nil, fmt.Errorf("load .env: %w", err)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterAll()
	return env, cfg, logger, nil
}

// withApp bootstraps, wires the application and runs fn under the command deadline.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	_, cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, commandTimeout)
		defer cancel()
	}
	ctx = logpkg.ContextWithLogger(ctx, logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return fn(ctx, a)
}
