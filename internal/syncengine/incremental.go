// The Incremental Sync Path (spec.md §4.6): the default per-table
// replication path. Pages the source in deterministic order, stages each
// page in a session-private temp table, and inserts only the rows whose
// key tuple is absent from the target.
//
// Grounded on db-pump/internal/engine/pumper.go's Pump: a per-table
// transaction wrapping an insert loop, with inserted/skipped counters
// accumulated across attempts — re-purposed here from "insert synthesized
// rows" to "insert rows read off a second, independent connection", one
// transaction per batch instead of per table.
package syncengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/retry"
)

const stagingTableName = "#tablesync_staging"

// IncrementalParams bundles the per-run settings the batch loop needs,
// already resolved by the caller from model.SyncParameters.
type IncrementalParams struct {
	BatchSize      int
	OrderByPK      bool
	StartRowOffset int64
	DeepCompare    bool
}

// PathResult is the per-table outcome of either sync path, folded into a
// model.TableSyncResult by the Table Orchestrator.
type PathResult struct {
	Inserted int64
	Skipped  int64
}

// RunIncremental executes the batch loop of spec.md §4.6 against one table.
// pk is in source-column terms (spec.md §4.3: "primary keys are recorded in
// source-column terms"); it is translated to target space via proj for the
// anti-join predicate.
func RunIncremental(
	ctx context.Context,
	srcDB, tgtDB *sql.DB,
	source, target model.QualifiedName,
	proj model.EffectiveProjection,
	pk model.PrimaryKey,
	hasIdentity bool,
	sourceCount int64,
	params IncrementalParams,
	retryPolicy *retry.Policy,
	logger *zap.Logger,
) (PathResult, error) {
	var result PathResult
	result.Skipped = params.StartRowOffset

	antiJoinCols, nullSafe, err := antiJoinColumns(proj, pk, params.DeepCompare)
	if err != nil {
		return result, err
	}

	orderCols, err := orderByColumns(proj, pk, params.OrderByPK)
	if err != nil {
		return result, err
	}

	if params.StartRowOffset >= sourceCount {
		return result, nil
	}

	selectSQL := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY",
		selectList(proj.TargetColumns, proj.TargetToSource), source.Bracketed(), orderCols)

	insertSQL := buildAntiJoinInsert(target, proj.TargetColumns, antiJoinCols, nullSafe)

	for offset := params.StartRowOffset; offset < sourceCount; offset += int64(params.BatchSize) {
		offset := offset
		err := retryPolicy.Do(ctx, func(ctx context.Context) error {
			read, affected, err := runBatch(ctx, srcDB, tgtDB, selectSQL, insertSQL, proj.TargetColumns, offset, params.BatchSize, hasIdentity, target)
			if err != nil {
				return err
			}
			result.Inserted += affected
			result.Skipped += read - affected
			logger.Debug("batch committed",
				zap.String("table", target.String()),
				zap.Int64("offset", offset),
				zap.Int64("read", read),
				zap.Int64("inserted", affected))
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// runBatch performs one full batch cycle: read from source, stage, and
// anti-join insert into target, all inside one target-side transaction
// (spec.md §4.6 steps 1-5). It returns rows read and rows actually
// inserted so the caller can update its counters.
func runBatch(
	ctx context.Context,
	srcDB, tgtDB *sql.DB,
	selectSQL, insertSQL string,
	targetCols []string,
	offset int64, batchSize int,
	hasIdentity bool,
	target model.QualifiedName,
) (read int64, affected int64, err error) {
	rows, err := srcDB.QueryContext(ctx, selectSQL, offset, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("read batch at offset %d: %w", offset, err)
	}
	defer rows.Close()

	batch := make([][]any, 0, batchSize)
	for rows.Next() {
		vals := make([]any, len(targetCols))
		ptrs := make([]any, len(targetCols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, 0, fmt.Errorf("scan batch row: %w", err)
		}
		batch = append(batch, vals)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("read batch at offset %d: %w", offset, err)
	}
	read = int64(len(batch))
	if read == 0 {
		return 0, 0, nil
	}

	conn, err := tgtDB.Conn(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire target connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	cloneSQL := fmt.Sprintf("SELECT TOP 0 * INTO %s FROM %s", stagingTableName, target.Bracketed())
	if _, err := tx.ExecContext(ctx, cloneSQL); err != nil {
		return 0, 0, fmt.Errorf("clone staging table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(stagingTableName, mssql.BulkOptions{}, targetCols...))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare staging bulk copy: %w", err)
	}
	for _, row := range batch {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return 0, 0, fmt.Errorf("stage batch row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, 0, fmt.Errorf("finish staging bulk copy: %w", err)
	}
	stmt.Close()

	if hasIdentity {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", target.Bracketed())); err != nil {
			return 0, 0, fmt.Errorf("enable identity insert: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, insertSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("anti-join insert: %w", err)
	}

	if hasIdentity {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", target.Bracketed())); err != nil {
			return 0, 0, fmt.Errorf("disable identity insert: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+stagingTableName); err != nil {
		return 0, 0, fmt.Errorf("drop staging table: %w", err)
	}

	affected, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("anti-join insert rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit batch at offset %d: %w", offset, err)
	}

	return read, affected, nil
}

// buildAntiJoinInsert renders spec.md §4.6 step 3. When nullSafe is true
// (deep-compare mode), the predicate treats two NULLs as equal per the
// open question in spec.md §9 ("do not silently ignore nulls... surface the
// decision as part of the deep-compare contract").
func buildAntiJoinInsert(target model.QualifiedName, projectionCols, keyCols []string, nullSafe bool) string {
	cols := targetColumnList(projectionCols)
	predicate := make([]string, len(keyCols))
	for i, c := range keyCols {
		ident := bracketIdent(c)
		if nullSafe {
			predicate[i] = fmt.Sprintf("(t.%s = s.%s OR (t.%s IS NULL AND s.%s IS NULL))", ident, ident, ident, ident)
		} else {
			predicate[i] = fmt.Sprintf("t.%s = s.%s", ident, ident)
		}
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s t WHERE %s)",
		target.Bracketed(), cols, cols, stagingTableName, target.Bracketed(),
		strings.Join(predicate, " AND "))
}

// antiJoinColumns resolves the target-space column list the anti-join
// matches on: the translated primary key normally, or the full projection
// under deep-compare (spec.md §4.6 preconditions, §9).
func antiJoinColumns(proj model.EffectiveProjection, pk model.PrimaryKey, deepCompare bool) ([]string, bool, error) {
	if deepCompare {
		return proj.TargetColumns, true, nil
	}
	srcToTgt := proj.SourceToTarget()
	cols := make([]string, 0, len(pk))
	for _, c := range pk {
		tgt, ok := srcToTgt[strings.ToLower(c)]
		if !ok {
			return nil, false, fmt.Errorf("primary key column %q has no target-space representative", c)
		}
		cols = append(cols, tgt)
	}
	return cols, false, nil
}

// orderByColumns implements spec.md §4.6 step 1's ordering policy: PK
// columns (source names) when order-by-pk is set and a PK exists, otherwise
// the first projection column's source name.
func orderByColumns(proj model.EffectiveProjection, pk model.PrimaryKey, orderByPK bool) (string, error) {
	if orderByPK && !pk.Empty() {
		parts := make([]string, len(pk))
		for i, c := range pk {
			parts[i] = bracketIdent(c)
		}
		return strings.Join(parts, ", "), nil
	}
	if proj.Empty() {
		return "", fmt.Errorf("cannot order an empty projection")
	}
	first := proj.TargetToSource[proj.TargetColumns[0]]
	return bracketIdent(first), nil
}
