package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleidx/internal/store"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	RunID  string // optional - restrict to one run
	RuleID string // optional - restrict to one rule
	Kind   string // optional - alpha, beta or none
}

// CatalogResult holds the catalog listing.
type CatalogResult struct {
	Runs        []store.Run              `json:"runs"`
	Constraints []store.ConstraintRecord `json:"constraints"`
	Stats       CatalogStats             `json:"stats"`
}

// CatalogStats holds summary statistics for the listed constraints.
type CatalogStats struct {
	Runs        int   `json:"runs"`
	Constraints int   `json:"constraints"`
	Alpha       int   `json:"alpha"`
	Beta        int   `json:"beta"`
	Unindexed   int   `json:"unindexed"`
	MaxIndexID  int64 `json:"max_index_id"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog <db>",
		Short: "List compiled constraints recorded in a catalog",
		Long: `List the runs and compiled constraints recorded by "compile --db".

Constraints are listed by run, rule and ordinal. Filters combine.

Examples:
  ruleidx catalog ./catalog.db
  ruleidx catalog ./catalog.db --rule adults
  ruleidx catalog ./catalog.db --kind beta --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "filter to one run id")
	cmd.Flags().StringVar(&opts.RuleID, "rule", "", "filter to one rule id")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by index kind (alpha|beta|none)")

	return cmd
}

func runCatalog(ctx context.Context, opts *CatalogOptions, dbPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch opts.Kind {
	case "", "alpha", "beta", "none":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("kind must be alpha, beta or none, got %q", opts.Kind))
	}

	// store.Open would create a missing file
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	records, err := st.ListConstraints(ctx, store.Filter{
		RunID:  opts.RunID,
		RuleID: opts.RuleID,
		Kind:   opts.Kind,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list constraints", err)
	}

	result := CatalogResult{
		Runs:        runs,
		Constraints: records,
		Stats:       catalogStats(runs, records),
	}

	if opts.Format == "json" {
		return outputCatalogJSON(cmd.OutOrStdout(), result)
	}
	return outputCatalogText(cmd.OutOrStdout(), result, opts.Verbose)
}

func catalogStats(runs []store.Run, records []store.ConstraintRecord) CatalogStats {
	stats := CatalogStats{Runs: len(runs), Constraints: len(records)}
	for _, run := range runs {
		stats.MaxIndexID = max(stats.MaxIndexID, run.MaxIndexID)
	}
	for _, rec := range records {
		switch rec.IndexKind {
		case "alpha":
			stats.Alpha++
		case "beta":
			stats.Beta++
		default:
			stats.Unindexed++
		}
	}
	return stats
}

// outputCatalogJSON outputs the catalog listing as JSON.
func outputCatalogJSON(w io.Writer, result CatalogResult) error {
	return writeEnvelope(w, CLIResponse{Status: "ok", Data: result})
}

// outputCatalogText outputs the catalog listing as text.
func outputCatalogText(w io.Writer, result CatalogResult, verbose bool) error {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintln(w, "Runs:")
	for _, run := range result.Runs {
		fmt.Fprintf(w, "  %s  dsl=%s rules=%d constraints=%d indexed=%d max_index_id=%d\n",
			run.ID, run.DSL, run.RuleCount, run.ConstraintCount, run.IndexedCount, run.MaxIndexID)
	}
	fmt.Fprintln(w)

	if len(result.Constraints) == 0 {
		fmt.Fprintln(w, "No constraints match.")
	} else {
		fmt.Fprintln(w, "Constraints:")
		for _, rec := range result.Constraints {
			fmt.Fprintf(w, "  %s/%d  %s\n", rec.RuleID, rec.Ordinal, describeIndex(rec))
			fmt.Fprintf(w, "       %s\n", rec.Source)
			if !verbose {
				continue
			}
			fmt.Fprintf(w, "       run: %s\n", rec.RunID)
			fmt.Fprintf(w, "       fingerprint: %s\n", rec.Fingerprint)
			if rec.Extractor != "" {
				fmt.Fprintf(w, "       extractor: %s\n", rec.Extractor)
			}
			if rec.RightValue != "" {
				fmt.Fprintf(w, "       right value: %s\n", rec.RightValue)
			}
			if rec.Emission != "" {
				fmt.Fprintf(w, "       %s\n", rec.Emission)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  Runs:        %d\n", result.Stats.Runs)
	fmt.Fprintf(w, "  Constraints: %d\n", result.Stats.Constraints)
	fmt.Fprintf(w, "  Alpha:       %d\n", result.Stats.Alpha)
	fmt.Fprintf(w, "  Beta:        %d\n", result.Stats.Beta)
	fmt.Fprintf(w, "  Unindexed:   %d\n", result.Stats.Unindexed)
	fmt.Fprintf(w, "  Max index:   %d\n", result.Stats.MaxIndexID)
	return nil
}
