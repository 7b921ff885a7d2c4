// Package cmd defines the topic-crawler CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/config"
	"github.com/JakeFAU/topic-crawler/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime is what every subcommand needs: validated configuration and the
// process logger.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadConfig is a variable so tests can inject configuration.
var loadConfig = config.Load

type rootOptions struct {
	cfgFile string
	debug   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "topic-crawler",
		Short: "Breadth-first topic crawler and content extractor",
		Long: `topic-crawler crawls the start URLs of a configured topic breadth-first,
stays inside the topic's allowed domains and turns every page into text,
CSV tables and images under the topic directory.`,
		SilenceUsage: true,

		// Runs before every subcommand: load config, build the logger.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(opts.debug || cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "",
		"config file (default is ./config.yaml, /etc/topic-crawler or $HOME/.topic-crawler)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newCrawlCmd(), newResetCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute runs the CLI until it finishes or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
