// Package warden implements the Constraint / Temporal Warden (spec.md
// §4.5): scoped disable/enable of all foreign keys and of
// SYSTEM_VERSIONING for temporal base tables around a bulk-refresh run,
// with guaranteed release on every exit path.
//
// Grounded on db-pump/internal/dialect/mssql.go's BeforePump/AfterPump
// (NOCHECK CONSTRAINT ALL / WITH CHECK CHECK CONSTRAINT ALL looped over
// INFORMATION_SCHEMA.TABLES), extended with warning-only failures and the
// temporal SYSTEM_VERSIONING pairing the teacher never needed.
package warden

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
)

// Warning is a non-fatal failure encountered while entering or leaving the
// warden's scope (spec.md §4.5: "failures are collected as warnings, not
// fatal").
type Warning struct {
	Table   model.QualifiedName
	Action  string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s on %s: %v", w.Action, w.Table, w.Err)
}

// temporalPair is a (base, history) binding restored on release (spec.md
// §4.5 step 2).
type temporalPair struct {
	Base    model.QualifiedName
	History model.QualifiedName
}

// Warden owns the scoped acquisition described by spec.md §4.5. Construct
// one per bulk-refresh run via Enter, always call Release (typically via
// defer) regardless of how the run ends.
type Warden struct {
	db       *sql.DB
	logger   *zap.Logger
	temporal []temporalPair
	warnings []Warning
}

// Enter disables all foreign keys in the target database and
// SYSTEM_VERSIONING for every temporal base table in selection (and the
// base partner of any selected history table), per spec.md §4.5. It is
// only meant to be called when the Bulk-Refresh Path is chosen for at
// least one table in the run (spec.md §4.8, §5).
func Enter(ctx context.Context, db *sql.DB, probe *metadata.Probe, selection []model.QualifiedName, logger *zap.Logger) (*Warden, error) {
	w := &Warden{db: db, logger: logger}

	allTables, err := probe.ListBaseTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("warden enter: list base tables: %w", err)
	}

	for _, t := range allTables {
		query := fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT ALL", t.Bracketed())
		if _, err := db.ExecContext(ctx, query); err != nil {
			w.warnings = append(w.warnings, Warning{Table: t, Action: "disable constraints", Err: err})
			logger.Warn("failed to disable constraints", zap.String("table", t.String()), zap.Error(err))
		}
	}

	for _, t := range selection {
		isBase, hist, err := probe.IsTemporalBase(ctx, t)
		if err != nil {
			w.warnings = append(w.warnings, Warning{Table: t, Action: "probe temporal base", Err: err})
			continue
		}
		if isBase {
			if err := disableVersioning(ctx, db, t); err != nil {
				w.warnings = append(w.warnings, Warning{Table: t, Action: "disable SYSTEM_VERSIONING", Err: err})
				logger.Warn("failed to disable SYSTEM_VERSIONING", zap.String("table", t.String()), zap.Error(err))
				continue
			}
			w.temporal = append(w.temporal, temporalPair{Base: t, History: hist})
			continue
		}

		isHistory, base, err := probe.IsTemporalHistory(ctx, t)
		if err != nil {
			w.warnings = append(w.warnings, Warning{Table: t, Action: "probe temporal history", Err: err})
			continue
		}
		if isHistory {
			if err := disableVersioning(ctx, db, base); err != nil {
				w.warnings = append(w.warnings, Warning{Table: base, Action: "disable SYSTEM_VERSIONING", Err: err})
				logger.Warn("failed to disable SYSTEM_VERSIONING", zap.String("table", base.String()), zap.Error(err))
				continue
			}
			w.temporal = append(w.temporal, temporalPair{Base: base, History: t})
		}
	}

	return w, nil
}

func disableVersioning(ctx context.Context, db *sql.DB, base model.QualifiedName) error {
	query := fmt.Sprintf("ALTER TABLE %s SET (SYSTEM_VERSIONING = OFF)", base.Bracketed())
	_, err := db.ExecContext(ctx, query)
	return err
}

// Release re-enables everything Enter disabled. It must run on every exit
// path — completion, error, or cancellation (spec.md §4.5, §5, §8.8) —
// which is why callers invoke it via defer immediately after a successful
// Enter.
func (w *Warden) Release(ctx context.Context) []Warning {
	// Detach the release actions from ctx's cancellation (keeping its
	// values): a cancelled run must still restore constraints and versioning
	// (spec.md §5: "A cancelled run must still run the Warden's release
	// block").
	releaseCtx := context.WithoutCancel(ctx)

	for _, pair := range w.temporal {
		query := fmt.Sprintf(
			"ALTER TABLE %s SET (SYSTEM_VERSIONING = ON (HISTORY_TABLE = %s, DATA_CONSISTENCY_CHECK = OFF))",
			pair.Base.Bracketed(), pair.History.Bracketed())
		if _, err := w.db.ExecContext(releaseCtx, query); err != nil {
			w.warnings = append(w.warnings, Warning{Table: pair.Base, Action: "re-enable SYSTEM_VERSIONING", Err: err})
			w.logger.Warn("failed to re-enable SYSTEM_VERSIONING", zap.String("table", pair.Base.String()), zap.Error(err))
		}
	}

	allTables, err := metadata.NewProbe(w.db, nil).ListBaseTables(releaseCtx)
	if err != nil {
		w.warnings = append(w.warnings, Warning{Action: "list base tables for release", Err: err})
		return w.warnings
	}
	for _, t := range allTables {
		query := fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT ALL", t.Bracketed())
		if _, err := w.db.ExecContext(releaseCtx, query); err != nil {
			w.warnings = append(w.warnings, Warning{Table: t, Action: "re-enable constraints", Err: err})
			w.logger.Warn("failed to re-enable constraints", zap.String("table", t.String()), zap.Error(err))
		}
	}

	return w.warnings
}

// Warnings returns every warning collected so far (entry + release).
func (w *Warden) Warnings() []Warning {
	return w.warnings
}
