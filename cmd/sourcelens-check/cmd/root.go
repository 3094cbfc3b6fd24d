// Package cmd implements the sourcelens-check smoke-test harness: a
// single cobra command that exercises pkg/core end to end (index a
// directory, search it, report health) and nothing else. It replaces
// a full subcommand tree, which this repository's MCP dispatcher and
// admin UI (both out of scope here) would otherwise own.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcelens/sourcelens/internal/app"
	"github.com/sourcelens/sourcelens/internal/config"
	"github.com/sourcelens/sourcelens/internal/logging"
	"github.com/sourcelens/sourcelens/pkg/core"
)

var (
	flagRoot       string
	flagCollection string
	flagQuery      string
	flagTopK       int
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sourcelens-check",
		Short: "Index a directory, run one search, and report health",
		RunE:  runCheck,
	}
	root.Flags().StringVar(&flagRoot, "root", ".", "project directory to index")
	root.Flags().StringVar(&flagCollection, "collection", "default", "collection name to index into")
	root.Flags().StringVar(&flagQuery, "query", "", "search query to run after indexing; empty skips search")
	root.Flags().IntVar(&flagTopK, "top-k", 5, "number of search results to print")
	return root
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	projectRoot, err := config.FindProjectRoot(flagRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Log.Level,
		FilePath:      cfg.Log.FilePath,
		WriteToStderr: true,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.Start(startCtx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx)
	}()

	c := core.New(a)

	report, err := c.Index(ctx, flagRoot, flagCollection)
	if err != nil {
		return fmt.Errorf("index %s: %w", flagRoot, err)
	}
	fmt.Fprintf(os.Stdout, "indexed %q into %q: %d files changed, +%d/-%d chunks, %s\n",
		flagRoot, flagCollection, report.FilesChanged, report.ChunksAdded, report.ChunksRemoved, report.Duration)

	if flagQuery != "" {
		results, err := c.Search(ctx, flagCollection, flagQuery, flagTopK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		for i, r := range results {
			fmt.Fprintf(os.Stdout, "%2d. score=%.4f file=%s\n", i+1, r.Score, r.Metadata["file_path"])
		}
	}

	for id, healthy := range c.HealthStatus() {
		status := "ok"
		if !healthy {
			status = "FAIL"
		}
		fmt.Fprintf(os.Stdout, "health: %-24s %s\n", id, status)
	}

	return nil
}
