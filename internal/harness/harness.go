package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ruleidx/internal/compiler"
	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/store"
	"github.com/roach88/ruleidx/internal/testutil"
)

// Harness is the scenario execution engine.
// It compiles with a resettable id sequence and a fixed run id.
type Harness struct {
	store    *store.Store
	ids      *testutil.SequenceIDs
	runIDs   store.RunIDGenerator
	logger   *slog.Logger
	scenario *Scenario

	rules      map[string]*ir.RuleSpec
	loadErrors map[string]string // rule id → decode error code
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and decode the rule files
// 3. Compile each flow step's rule, checking its expect clause
// 4. Record the run in the catalog
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext is Run with a context and a logger. A nil logger discards.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:      st,
		ids:        testutil.NewSequenceIDs(),
		runIDs:     testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger:     logger,
		scenario:   scenario,
		rules:      make(map[string]*ir.RuleSpec),
		loadErrors: make(map[string]string),
	}
	if err := h.loadRules(); err != nil {
		return nil, err
	}

	result := NewResult()
	result.RunID = h.runIDs.Generate()

	var records []store.ConstraintRecord
	compiled := 0
	for i, step := range scenario.Flow {
		recs, ok, err := h.executeStep(i, step, result)
		if err != nil {
			return nil, fmt.Errorf("failed to execute flow: %w", err)
		}
		if ok {
			compiled++
		}
		records = append(records, recs...)
	}

	run := store.Run{
		ID:              result.RunID,
		DSL:             h.dsl(),
		RuleCount:       compiled,
		ConstraintCount: len(records),
		MaxIndexID:      h.ids.Current(),
	}
	for _, rec := range records {
		if rec.IndexKind != "" {
			run.IndexedCount++
		}
	}
	if err := st.RecordRun(ctx, run, records); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadRules decodes the scenario's rule directory. Rules that fail to
// decode are remembered so a flow step can expect the failure.
func (h *Harness) loadRules() error {
	loaded, errs := compiler.LoadRules(h.scenario.Rules, compiler.LoadModeCollectAll)
	if loaded == nil {
		return fmt.Errorf("failed to load rules: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		var le *compiler.LoadError
		if !errors.As(err, &le) || le.Rule == "" {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		h.loadErrors[le.Rule] = le.Code
	}
	for _, spec := range loaded.Rules {
		h.rules[spec.ID] = spec
	}
	return nil
}

func (h *Harness) dsl() string {
	if h.scenario.DSL == "" {
		return "pattern"
	}
	return h.scenario.DSL
}

// executeStep compiles one rule and validates the step's expect clause.
// It returns the catalog records of the compiled constraints and whether
// the rule compiled.
func (h *Harness) executeStep(i int, step FlowStep, result *Result) ([]store.ConstraintRecord, bool, error) {
	ruleID := step.Compile

	var code string
	var ccs []*ir.CompiledConstraint
	if c, ok := h.loadErrors[ruleID]; ok {
		code = c
	} else {
		spec, ok := h.rules[ruleID]
		if !ok {
			return nil, false, fmt.Errorf("flow step %d: rule %q not found", i, ruleID)
		}
		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			code = verrs[0].Code
			h.logger.Debug("rule invalid", "rule", ruleID, "error", verrs[0].Error())
		} else {
			var err error
			ccs, err = compiler.CompileRuleSpec(spec, compiler.Options{
				PatternDSL:            h.dsl() == "pattern",
				LenientScopelessCalls: h.scenario.LenientScopelessCalls,
				IDs:                   h.ids,
				Logger:                h.logger,
			})
			if err != nil {
				code = errorCode(err)
				h.logger.Debug("rule failed", "rule", ruleID, "error", err)
			}
		}
	}

	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	if code != "" {
		result.AddFailure(ruleID, code)
		switch {
		case expect.Error == "":
			result.AddError(fmt.Sprintf("flow[%d]: rule %s failed with %s", i, ruleID, code))
		case expect.Error != code:
			result.AddError(fmt.Sprintf("flow[%d]: rule %s failed with %s, expected %s", i, ruleID, code, expect.Error))
		}
		return nil, false, nil
	}

	if expect.Error != "" {
		result.AddError(fmt.Sprintf("flow[%d]: rule %s compiled, expected error %s", i, ruleID, expect.Error))
	}

	records := make([]store.ConstraintRecord, 0, len(ccs))
	for ordinal, cc := range ccs {
		ev := newConstraintEvent(ruleID, ordinal, cc)
		result.AddEvent(ev)

		rec, err := store.NewConstraintRecord(result.RunID, ruleID, ordinal, cc)
		if err != nil {
			return nil, false, fmt.Errorf("flow step %d: %w", i, err)
		}
		records = append(records, rec)

		if ordinal < len(expect.Constraints) {
			if diff := mismatch(ev.fields(true), expect.Constraints[ordinal]); diff != "" {
				result.AddError(fmt.Sprintf("flow[%d]: %s/%d: %s", i, ruleID, ordinal, diff))
			}
		}

		h.logger.Info("constraint compiled",
			"rule", ruleID,
			"ordinal", ordinal,
			"kind", ev.Kind,
			"index_id", ev.IndexID,
		)
	}
	if len(expect.Constraints) > len(ccs) {
		result.AddError(fmt.Sprintf("flow[%d]: rule %s produced %d constraint(s), expected at least %d",
			i, ruleID, len(ccs), len(expect.Constraints)))
	}

	return records, true, nil
}
