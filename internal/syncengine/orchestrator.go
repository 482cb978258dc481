// The Table Orchestrator (spec.md §4.8): per-table driver. Probes both
// databases, reconciles schema, picks a path, runs it, and records the
// outcome. Never rethrows past the Run Coordinator — every failure is
// folded into a terminal model.TableSyncResult.
//
// Grounded on db-pump/internal/engine/pumper.go::Pump's per-table loop body
// (open tx, run hooks, insert, commit, measure actual vs. target, append to
// results), generalized to five terminal statuses and schema-aware failure
// instead of a single silently-partial "MISSING DATA" report.
package syncengine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/reconcile"
	"github.com/bisibesi/tablesync/internal/retry"
)

// Orchestrator drives one table's sync attempt to a terminal outcome.
// Shared across all workers in a run; the fields it points to (SrcProbe,
// TgtProbe, Run) are safe for concurrent use — the probes' database/sql
// pools hand out connections internally, and RunResult serializes its own
// updates.
type Orchestrator struct {
	SrcProbe, TgtProbe *metadata.Probe
	Retry              *retry.Policy
	Logger             *zap.Logger
	Params             model.SyncParameters
	Run                *model.RunResult
	ResultPath         string
}

// SyncTable runs one table through probe -> reconcile -> path selection ->
// execution -> result recording (spec.md §4.8 steps 1-4).
func (o *Orchestrator) SyncTable(ctx context.Context, table model.QualifiedName) model.TableSyncResult {
	result := model.TableSyncResult{
		TableName:      table.String(),
		Status:         model.StatusRunning,
		StartTime:      time.Now().UTC(),
		StartRowOffset: o.Params.StartRowOffsetFor(table),
	}
	o.upsertAndPersist(table, result)

	finish := func(status model.TableStatus) model.TableSyncResult {
		result.Finish(status)
		o.upsertAndPersist(table, result)
		return result
	}
	fail := func(kind, msg string) model.TableSyncResult {
		result.ErrorType = kind
		result.ErrorMessage = msg
		return finish(model.StatusFailed)
	}

	sourceCount, err := o.SrcProbe.RowCount(ctx, table)
	if err != nil {
		return fail(errorKindLabel(err), err.Error())
	}
	result.SourceCount = sourceCount

	targetCount, err := o.TgtProbe.RowCount(ctx, table)
	if err != nil {
		return fail(errorKindLabel(err), err.Error())
	}
	result.TargetCount = targetCount

	srcCols, err := o.SrcProbe.Columns(ctx, table)
	if err != nil {
		return fail(errorKindLabel(err), err.Error())
	}
	tgtCols, err := o.TgtProbe.Columns(ctx, table)
	if err != nil {
		return fail(errorKindLabel(err), err.Error())
	}
	pk, err := o.SrcProbe.PrimaryKeyColumns(ctx, table)
	if err != nil {
		return fail(errorKindLabel(err), err.Error())
	}

	deepCompare := o.Params.DeepCompare
	if pk.Empty() {
		if !o.Params.AllowEmptyPK {
			result.ErrorMessage = "empty primary key (pass --allow-no-pk to permit)"
			return finish(model.StatusSkipped)
		}
		if !deepCompare {
			result.ErrorMessage = "empty primary key requires --deep-compare"
			return finish(model.StatusSkipped)
		}
	}

	mapping := o.Params.ColumnMapFor(table)
	ignore := o.Params.IgnoreSetFor(table)
	proj, drift, err := reconcile.Reconcile(srcCols, tgtCols, pk, mapping, ignore, o.Params.TargetColumnsOnly)
	if excluded, exErr := o.excludedColumns(ctx, table); exErr == nil {
		drift = reconcile.WithExcluded(drift, excluded)
	} else {
		o.Logger.Warn("failed to list excluded columns", zap.String("table", table.String()), zap.Error(exErr))
	}
	result.SchemaErrors = &drift
	if err != nil {
		var pkErr *reconcile.ErrPKNotRepresentable
		if errors.As(err, &pkErr) {
			return fail("Local-precondition", err.Error())
		}
		return fail(errorKindLabel(err), err.Error())
	}

	identityInProjection := false
	for _, c := range tgtCols {
		if c.IsIdentity && containsFold(proj.TargetColumns, c.Name) {
			identityInProjection = true
			break
		}
	}

	var pathResult PathResult
	if o.Params.ClearTarget {
		pathResult, err = o.runBulkRefreshRetried(ctx, table, proj)
	} else {
		pathResult, err = RunIncremental(ctx, o.SrcProbe.DB, o.TgtProbe.DB, table, table, proj, pk,
			identityInProjection, sourceCount,
			IncrementalParams{
				BatchSize:      o.Params.BatchSize,
				OrderByPK:      o.Params.OrderByPK,
				StartRowOffset: result.StartRowOffset,
				DeepCompare:    deepCompare,
			},
			o.Retry, o.Logger)
	}

	if err != nil {
		var skip *ErrSkipTable
		if errors.As(err, &skip) {
			result.ErrorMessage = skip.Reason
			return finish(model.StatusSkipped)
		}
		var schemaChange *ErrSchemaChange
		if errors.As(err, &schemaChange) {
			drift.SchemaMismatchDetails = schemaChange.Error()
			result.SchemaErrors = &drift
			return fail("Schema", schemaChange.Error())
		}
		kind := errorKindLabel(err)
		if kind == "Schema" {
			drift.SchemaMismatchDetails = err.Error()
			result.SchemaErrors = &drift
		}
		return fail(kind, err.Error())
	}

	result.Inserted = pathResult.Inserted
	result.Skipped = pathResult.Skipped
	return finish(model.StatusCompleted)
}

// runBulkRefreshRetried wraps the whole-table Bulk-Refresh Path in the
// Retry Policy, per spec.md §4.8 step 3 ("whole-table granularity").
func (o *Orchestrator) runBulkRefreshRetried(ctx context.Context, table model.QualifiedName, proj model.EffectiveProjection) (PathResult, error) {
	var result PathResult
	err := o.Retry.Do(ctx, func(ctx context.Context) error {
		r, err := RunBulkRefresh(ctx, o.SrcProbe.DB, o.TgtProbe.DB, table, table, proj,
			BulkRefreshParams{BatchSize: o.Params.BatchSize}, o.Logger)
		result = r
		return err
	})
	return result, err
}

func (o *Orchestrator) upsertAndPersist(table model.QualifiedName, result model.TableSyncResult) {
	o.Run.Upsert(table.Key(), result)
	if err := o.Run.Persist(o.ResultPath); err != nil {
		o.Logger.Warn("failed to persist run result", zap.String("table", table.String()), zap.Error(err))
	}
}

func errorKindLabel(err error) string {
	switch retry.Classify(err) {
	case retry.KindSchema:
		return "Schema"
	case retry.KindTransient:
		return "Fatal" // transient errors reaching here already exhausted the Retry Policy's budget
	default:
		return "Fatal"
	}
}

// excludedColumns merges the source and target sides' computed/
// generated-always column names, deduplicated case-insensitively, for the
// Schema Drift Record's ExcludedColumns field.
func (o *Orchestrator) excludedColumns(ctx context.Context, table model.QualifiedName) ([]string, error) {
	srcExcluded, err := o.SrcProbe.ExcludedColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	tgtExcluded, err := o.TgtProbe.ExcludedColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range append(srcExcluded, tgtExcluded...) {
		if !containsFold(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
