package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	return writeRun(ctx, s.db, run)
}

// WriteConstraint inserts a constraint record. The run it references must
// exist (foreign key constraint).
// Uses ON CONFLICT DO NOTHING for idempotency - duplicate writes are silently ignored.
func (s *Store) WriteConstraint(ctx context.Context, rec ConstraintRecord) error {
	return writeConstraint(ctx, s.db, rec)
}

// RecordRun writes a run and all of its constraint records in one
// transaction. Nothing is written if any insert fails.
func (s *Store) RecordRun(ctx context.Context, run Run, records []ConstraintRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	if err := writeRun(ctx, tx, run); err != nil {
		return err
	}
	for _, rec := range records {
		if rec.RunID != run.ID {
			return fmt.Errorf("record run: constraint %s belongs to run %q, not %q", rec.ID, rec.RunID, run.ID)
		}
		if err := writeConstraint(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeRun(ctx context.Context, db execer, run Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs
		(id, dsl, rule_count, constraint_count, indexed_count, max_index_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.DSL,
		run.RuleCount,
		run.ConstraintCount,
		run.IndexedCount,
		run.MaxIndexID,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func writeConstraint(ctx context.Context, db execer, rec ConstraintRecord) error {
	bindingsJSON, err := marshalBindings(rec.Bindings)
	if err != nil {
		return fmt.Errorf("write constraint: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO constraints
		(id, run_id, rule_id, ordinal, source, expr_id, fingerprint, normalized,
		 bindings, emission, index_id, index_kind, key_type, op, field_name,
		 left_extractor, extractor, right_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.RunID,
		rec.RuleID,
		rec.Ordinal,
		rec.Source,
		rec.ExprID,
		rec.Fingerprint,
		rec.Normalized,
		bindingsJSON,
		rec.Emission,
		rec.IndexID,
		rec.IndexKind,
		rec.KeyType,
		rec.Op,
		rec.FieldName,
		rec.LeftExtractor,
		rec.Extractor,
		rec.RightValue,
	)
	if err != nil {
		return fmt.Errorf("write constraint: %w", err)
	}
	return nil
}
