package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lab-access/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the template HNSW index",
	Long: `Manage the HNSW index used by identification when
ACCESS_IDENTIFY_STRATEGY=index. The index is saved to HNSW_INDEX_PATH.`,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from all enrolled templates and save it",
	RunE:  runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.cfg.Access.IdentifyStrategy != config.StrategyIndex {
		return errors.New("the template index requires ACCESS_IDENTIFY_STRATEGY=index")
	}
	path := b.cfg.Database.HNSWIndexPath
	if path == "" {
		return errors.New("HNSW_INDEX_PATH environment variable is required")
	}

	total, err := b.templates.Count(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("templates"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	startTime := time.Now()
	count, err := b.engine.RebuildIndex(ctx, func(done int) {
		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}
	_ = bar.Finish()

	if err := b.engine.SaveIndex(path); err != nil {
		return err
	}
	fmt.Printf("\n\nIndexed %d templates in %s, saved to %s\n", count, formatDuration(time.Since(startTime)), path)
	return nil
}
