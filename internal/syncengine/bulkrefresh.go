// The Bulk-Refresh Path (spec.md §4.7): chosen when --clear-target is set.
// Clears the target table, then bulk-copies the full source projection in.
// Must only run with the Constraint/Temporal Warden active (spec.md §4.5).
//
// Grounded on db-pump/cmd/clean.go::cleanDatabase's MSSQL-specific
// "DELETE instead of TRUNCATE to avoid FK issues" branch. Unlike clean.go,
// which always deletes (it also reseeds identities for freshly synthesized
// rows), this path tries TRUNCATE first and never reseeds identities: real
// identity values are bulk-loaded verbatim under the Warden's FK/versioning
// suspension, not regenerated.
package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/bisibesi/tablesync/internal/model"
)

// BulkRefreshParams bundles the settings the clear-and-load path needs.
type BulkRefreshParams struct {
	BatchSize int // bulk-copy rows per batch (spec.md §4.7 step 2)
}

// ErrSkipTable signals a structural condition (spec.md §7) that makes a
// table un-loadable without failing the whole run: a temporal history
// table, or a foreign key that survives constraint disable.
type ErrSkipTable struct {
	Reason string
}

func (e *ErrSkipTable) Error() string { return e.Reason }

// ErrSchemaChange marks the dedicated classification spec.md §4.7 step 3
// requires for bulk-copy failures caused by a concurrent schema change:
// never retried, never partially reported as success.
type ErrSchemaChange struct {
	Err error
}

func (e *ErrSchemaChange) Error() string {
	return fmt.Sprintf("schema changed during bulk load: %v", e.Err)
}
func (e *ErrSchemaChange) Unwrap() error { return e.Err }

// RunBulkRefresh executes spec.md §4.7's clear-then-load sequence against
// one table. The caller must already hold the Warden's scope.
func RunBulkRefresh(
	ctx context.Context,
	srcDB, tgtDB *sql.DB,
	source, target model.QualifiedName,
	proj model.EffectiveProjection,
	params BulkRefreshParams,
	logger *zap.Logger,
) (PathResult, error) {
	var result PathResult

	if err := clearTarget(ctx, tgtDB, target, logger); err != nil {
		return result, err
	}

	inserted, err := bulkLoad(ctx, srcDB, tgtDB, source, target, proj, params.BatchSize)
	if err != nil {
		return result, classifyBulkLoadError(err)
	}
	result.Inserted = inserted
	return result, nil
}

// clearTarget implements spec.md §4.7 step 1.
func clearTarget(ctx context.Context, db *sql.DB, target model.QualifiedName, logger *zap.Logger) error {
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+target.Bracketed()); err == nil {
		return nil
	} else {
		logger.Debug("truncate failed, falling back to constraint-disabled delete",
			zap.String("table", target.String()), zap.Error(err))
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT ALL", target.Bracketed())); err != nil {
		logger.Warn("failed to disable constraints before delete fallback",
			zap.String("table", target.String()), zap.Error(err))
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM "+target.Bracketed()); err != nil {
		if num, ok := errorNumber(err); ok && (num == 4712 || num == 547) {
			return &ErrSkipTable{Reason: fmt.Sprintf("cannot clear %s: %v", target, err)}
		}
		return fmt.Errorf("clear target %s: %w", target, err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT ALL", target.Bracketed())); err != nil {
		logger.Warn("failed to re-enable constraints after delete fallback",
			zap.String("table", target.String()), zap.Error(err))
	}
	return nil
}

// bulkLoad implements spec.md §4.7 step 2: a single bulk-copy pass of the
// aliased source projection into the target.
func bulkLoad(ctx context.Context, srcDB, tgtDB *sql.DB, source, target model.QualifiedName, proj model.EffectiveProjection, batchSize int) (int64, error) {
	selectSQL := fmt.Sprintf("SELECT %s FROM %s", selectList(proj.TargetColumns, proj.TargetToSource), source.Bracketed())
	rows, err := srcDB.QueryContext(ctx, selectSQL)
	if err != nil {
		return 0, fmt.Errorf("read source for bulk load: %w", err)
	}
	defer rows.Close()

	conn, err := tgtDB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire target connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(target.Bracketed(), mssql.BulkOptions{RowsPerBatch: batchSize}, proj.TargetColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk load: %w", err)
	}

	cols := make([]any, len(proj.TargetColumns))
	var count int64
	for rows.Next() {
		vals := make([]any, len(proj.TargetColumns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("scan source row: %w", err)
		}
		copy(cols, vals)
		if _, err := stmt.ExecContext(ctx, cols...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("bulk load row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("read source for bulk load: %w", err)
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("finish bulk load: %w", err)
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk load: %w", err)
	}
	return count, nil
}

// classifyBulkLoadError applies spec.md §4.7 steps 3-4's dedicated
// classification on top of whatever the Retry Policy would otherwise infer.
func classifyBulkLoadError(err error) error {
	if num, ok := errorNumber(err); ok {
		switch num {
		case 213, 4891:
			return &ErrSchemaChange{Err: err}
		case 515:
			return fmt.Errorf("null constraint violation during bulk load: %w", err)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "schema change") {
		return &ErrSchemaChange{Err: err}
	}
	return err
}

func errorNumber(err error) (int32, bool) {
	var mssqlErr mssql.Error
	if errors.As(err, &mssqlErr) {
		return mssqlErr.Number, true
	}
	return 0, false
}
