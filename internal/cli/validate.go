package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleidx/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Rules  int                        `json:"rules"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate rules without compiling them",
		Long: `Validate the rules in a directory of CUE files without compiling them.

Decodes every rule and checks declarations and constraint invariants
(declared names, operands, literal kinds, binding placement). No index
ids are drawn and nothing is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	validationErrors, ruleCount, err := validateRulesDir(rulesDir, formatter)
	if err != nil {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, compiler.ErrCodeGeneric, err.Error(), nil)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, ruleCount)
}

// validateRulesDir decodes and validates every rule in rulesDir. Decode
// errors are reported as validation errors; a directory that cannot be
// loaded at all is returned as err.
func validateRulesDir(rulesDir string, formatter *OutputFormatter) ([]compiler.ValidationError, int, error) {
	loadResult, loadErrors := compiler.LoadRules(rulesDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, 0, loadErrors[0]
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, rulesDir)

	var all []compiler.ValidationError
	for _, err := range loadErrors {
		verr := compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			verr.Code = loadErr.Code
			if loadErr.Rule != "" {
				verr.Field = "rule." + loadErr.Rule
			}
		}
		all = append(all, verr)
	}

	for _, spec := range loadResult.Rules {
		formatter.VerboseLog("Validating rule: %s", spec.ID)
		for _, verr := range compiler.Validate(spec) {
			verr.Field = "rule." + spec.ID + "." + verr.Field
			all = append(all, verr)
		}
	}

	return all, len(loadResult.Rules), nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, ruleCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Rules: ruleCount})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d rule(s) valid\n", ruleCount)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		if err := formatter.Failure(result, cliErrorFor(errs[0])); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		if err.Constraint != "" {
			fmt.Fprintf(formatter.Writer, "  constraint: %s\n", err.Constraint)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateRulesDir validates all rules in a directory.
// This is a helper function for external callers.
func ValidateRulesDir(rulesDir string) ([]compiler.ValidationError, error) {
	silent := &OutputFormatter{Format: "text", Verbose: false}
	errs, _, err := validateRulesDir(rulesDir, silent)
	return errs, err
}
