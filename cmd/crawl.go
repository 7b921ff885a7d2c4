package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/app"
	"github.com/JakeFAU/topic-crawler/internal/config"
)

const closeTimeout = 10 * time.Second

type crawlOptions struct {
	topic    string
	maxDepth int
	maxPages int
	reset    bool
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a topic and extract its content",
		Long: `Crawls the start URLs of a topic breadth-first. Depth and page limits
default to the topic's configuration; --max-depth and --max-pages override
them for this run. --reset clears the topic's stored state first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.topic, "topic", "", "topic to crawl (default is default_topic)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum link depth from the start URLs")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "maximum number of pages to crawl")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "delete stored artifacts, mappings and hashes before crawling")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	var overrides config.Overrides
	if cmd.Flags().Changed("max-depth") {
		overrides.MaxDepth = &opts.maxDepth
	}
	if cmd.Flags().Changed("max-pages") {
		overrides.MaxPages = &opts.maxPages
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, rt.cfg, opts.topic, app.Options{
		Logger:    rt.logger,
		Overrides: overrides,
		Reset:     opts.reset,
	})
	if err != nil {
		return fmt.Errorf("initialize crawl: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			rt.logger.Warn("failed to close crawl services", zap.Error(cerr))
		}
	}()

	stats, err := a.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	written := 0
	for _, n := range stats.Artifacts {
		written += n
	}
	fmt.Fprintf(cmd.OutOrStdout(), "topic %s: crawled %d pages, wrote %d artifacts\n",
		a.Topic(), stats.PagesCrawled, written)
	return nil
}
