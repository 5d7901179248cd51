package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleidx/internal/compiler"
	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	DSL                   string // "pattern" | "flow"
	Database              string // catalog to record the run in
	LenientScopelessCalls bool
	Output                string // output file path
}

// CompilationResult holds the compiled constraints, one catalog record each.
type CompilationResult struct {
	RunID       string                   `json:"run_id"`
	DSL         string                   `json:"dsl"`
	Rules       []string                 `json:"rules"`
	Constraints []store.ConstraintRecord `json:"constraints"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	RuleCount       int
	ConstraintCount int
	AlphaCount      int
	BetaCount       int
	MaxIndexID      int64
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules-dir>",
		Short: "Compile rule constraints to index descriptors",
		Long: `Compile the constraints of every rule in a directory of CUE files.

Each constraint is normalized to a lambda, analyzed for alpha or beta
indexing and emitted as a builder-call expression. Index ids are unique
across rules; with --db they also stay unique across runs recorded in
the same catalog.

Examples:
  ruleidx compile ./rules
  ruleidx compile ./rules --dsl flow
  ruleidx compile ./rules --db ./catalog.db
  ruleidx compile ./rules --format json -o out.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DSL, "dsl", "pattern", "builder style for rules without their own dsl (pattern|flow)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite catalog")
	cmd.Flags().BoolVar(&opts.LenientScopelessCalls, "lenient-scopeless-calls", false,
		"leave receiverless calls on the right operand unindexed instead of failing")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, rulesDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.Verbose, formatter.GetErrWriter())

	if opts.DSL != "pattern" && opts.DSL != "flow" {
		return outputCompileError(formatter, compiler.ErrInvalidDSL, fmt.Sprintf("dsl must be pattern or flow, got %q", opts.DSL), nil)
	}

	// Collect every decode error before giving up
	loadResult, loadErrors := compiler.LoadRules(rulesDir, compiler.LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, compiler.ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, rulesDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	var validationErrs []error
	for _, spec := range loadResult.Rules {
		for _, verr := range compiler.Validate(spec) {
			validationErrs = append(validationErrs, fmt.Errorf("rule %s: %w", spec.ID, verr))
		}
	}
	if len(validationErrs) > 0 {
		return outputCompileErrors(formatter, validationErrs)
	}

	var st *store.Store
	ids := compiler.NewIndexIDGenerator()
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		maxID, err := st.MaxIndexID(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read catalog", err)
		}
		ids = compiler.NewIndexIDGeneratorAt(maxID)
		formatter.VerboseLog("Resuming index ids after %d", maxID)
	}

	result := &CompilationResult{
		RunID: store.UUIDv7Generator{}.Generate(),
		DSL:   opts.DSL,
		Rules: []string{},
	}

	var compileErrs []error
	for _, spec := range loadResult.Rules {
		formatter.VerboseLog("Compiling rule: %s", spec.ID)

		ccs, err := compiler.CompileRuleSpec(spec, compiler.Options{
			PatternDSL:            opts.DSL == "pattern",
			LenientScopelessCalls: opts.LenientScopelessCalls,
			IDs:                   ids,
			Logger:                logger,
		})
		if err != nil {
			compileErrs = append(compileErrs, err)
			continue
		}

		result.Rules = append(result.Rules, spec.ID)
		for ordinal, cc := range ccs {
			rec, err := store.NewConstraintRecord(result.RunID, spec.ID, ordinal, cc)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to flatten constraint", err)
			}
			result.Constraints = append(result.Constraints, rec)
		}
	}
	if len(compileErrs) > 0 {
		return outputCompileErrors(formatter, compileErrs)
	}

	stats := calculateStats(result, ids.Current())

	if st != nil {
		run := store.Run{
			ID:              result.RunID,
			DSL:             result.DSL,
			RuleCount:       stats.RuleCount,
			ConstraintCount: stats.ConstraintCount,
			IndexedCount:    stats.AlphaCount + stats.BetaCount,
			MaxIndexID:      stats.MaxIndexID,
		}
		if err := st.RecordRun(ctx, run, result.Constraints); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		formatter.VerboseLog("Recorded run %s in %s", result.RunID, opts.Database)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult, maxID int64) CompilationStats {
	stats := CompilationStats{
		RuleCount:       len(result.Rules),
		ConstraintCount: len(result.Constraints),
		MaxIndexID:      maxID,
	}

	for _, rec := range result.Constraints {
		switch ir.IndexKind(rec.IndexKind) {
		case ir.IndexAlpha:
			stats.AlphaCount++
		case ir.IndexBeta:
			stats.BetaCount++
		}
	}

	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, opts *CompileOptions) error {
	if formatter.Format == "json" {
		return formatter.SuccessWithRun(result, result.RunID)
	}

	// Human-readable text output
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d rule(s): %d constraint(s), %d alpha, %d beta\n\n",
		stats.RuleCount, stats.ConstraintCount, stats.AlphaCount, stats.BetaCount)

	rule := ""
	for _, rec := range result.Constraints {
		if rec.RuleID != rule {
			rule = rec.RuleID
			fmt.Fprintf(w, "%s:\n", rule)
		}
		fmt.Fprintf(w, "  [%d] %s\n", rec.Ordinal, describeIndex(rec))
		fmt.Fprintf(w, "      %s\n", rec.Source)
		if rec.Emission != "" {
			fmt.Fprintf(w, "      %s\n", rec.Emission)
		}
		for _, b := range rec.Bindings {
			fmt.Fprintf(w, "      %s\n", b.Emission)
		}
	}
	if len(result.Constraints) > 0 {
		fmt.Fprintln(w)
	}

	if opts.Database != "" {
		fmt.Fprintf(w, "Recorded run %s in %s\n", result.RunID, opts.Database)
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote compiled constraints to %s\n", opts.Output)
	}

	return nil
}

// describeIndex renders the index decision of a record on one line.
func describeIndex(rec store.ConstraintRecord) string {
	if rec.IndexKind == "" {
		return "not indexed"
	}
	return fmt.Sprintf("%s #%d %s.%s %s", rec.IndexKind, rec.IndexID, rec.KeyType, rec.FieldName, rec.Op)
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = cliErrorFor(err)
	}

	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
	}
	// All errors ride along in data
	if err := formatter.Failure(cliErrors, cliErrors...); err != nil {
		return err
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeResultToFile writes the compilation result to a file.
func writeResultToFile(result *CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
