package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/config"
)

const shutdownTimeout = 10 * time.Second

type crawlOptions struct {
	query        string
	requirements string
	concurrency  int
	out          string
}

func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the course catalog",
		Long: `Searches the catalog across all campuses, fetches and parses every
matching course, then writes the parsed records. Flags override the
corresponding config keys.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.query, "query", "", "search text (crawler.query)")
	flags.StringVar(&opts.requirements, "requirements", "", "requirements filter (crawler.requirements)")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "worker count (crawler.concurrency)")
	flags.StringVar(&opts.out, "out", "", "write records to this directory (storage.output_dir, local backend)")
	return cmd
}

// apply copies explicitly set flags over cfg and revalidates it.
func (o *crawlOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("query") {
		cfg.Crawler.Query = o.query
	}
	if flags.Changed("requirements") {
		cfg.Crawler.Requirements = o.requirements
	}
	if flags.Changed("concurrency") {
		cfg.Crawler.Concurrency = o.concurrency
	}
	if flags.Changed("out") {
		cfg.Storage.Backend = config.BackendLocal
		cfg.Storage.OutputDir = o.out
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if err := opts.apply(cmd, &cfg); err != nil {
		return err
	}
	logger := rt.logger

	svc, err := buildServices(cmd.Context(), cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := svc.Close(ctx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	summary, err := svc.runner.Run(cmd.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("crawl interrupted")
		}
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", summary.RunID),
		zap.Int("written", summary.Written),
	)
	return nil
}
