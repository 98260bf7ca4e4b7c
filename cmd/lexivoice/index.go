package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildIndexAll bool

var buildIndexCmd = &cobra.Command{
	Use:   "build-index [jurisdiction...]",
	Short: "Rebuild persisted indexes from the corpus",
	Long: `Rebuild the persisted index of one or more jurisdictions from their
corpus files, replacing any existing artifact.

Examples:
  # Rebuild one jurisdiction
  lexivoice build-index india

  # Rebuild every jurisdiction found in the corpus directory
  lexivoice build-index --all`,
	RunE: runBuildIndex,
}

func init() {
	buildIndexCmd.Flags().BoolVar(&buildIndexAll, "all", false, "rebuild every jurisdiction in the corpus")
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	if buildIndexAll == (len(args) > 0) {
		return errors.New("name one or more jurisdictions, or pass --all")
	}

	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	jurisdictions := args
	if buildIndexAll {
		jurisdictions, err = rt.app.Corpus.Jurisdictions()
		if err != nil {
			return fmt.Errorf("listing corpus: %w", err)
		}
		if len(jurisdictions) == 0 {
			return fmt.Errorf("no corpus files found in %s", rt.app.Corpus.Dir())
		}
	}

	// Each jurisdiction is independent; keep going and report every failure.
	var errs []error
	out := cmd.OutOrStdout()
	for _, j := range jurisdictions {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		start := time.Now()
		n, err := rebuild(ctx, rt, j)
		if err != nil {
			rt.logger.Underlying().Error("index build failed", zap.String("jurisdiction", j), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", j, err))
			continue
		}
		fmt.Fprintf(out, "%-16s %6d chunks  %s\n", j, n, time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

func rebuild(ctx context.Context, rt *runtime, jurisdiction string) (int, error) {
	idx, err := rt.app.Indexes.Rebuild(ctx, jurisdiction)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}
