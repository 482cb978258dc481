// Package reconcile implements the Schema Reconciler (spec.md §4.3): given
// source columns, target columns, a column mapping, an ignore set, and the
// target-columns-only flag, it produces the Effective Projection and a
// Schema Drift Record.
//
// Grounded on db-pump/internal/schema/model.go's Column/Table shape,
// generalized from one schema to two (source vs. target) plus the
// mapping/ignore-set indirection spec.md adds.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/bisibesi/tablesync/internal/model"
)

// ErrPKNotRepresentable is returned when a source primary-key column has no
// representative in the effective projection (spec.md §3, §4.3 step 6).
type ErrPKNotRepresentable struct {
	Column string
}

func (e *ErrPKNotRepresentable) Error() string {
	return fmt.Sprintf("PK-not-representable: source primary key column %q has no entry in the effective projection", e.Column)
}

// Reconcile runs the six-step algorithm of spec.md §4.3.
func Reconcile(
	sourceColumns, targetColumns []model.ColumnDescriptor,
	pk model.PrimaryKey,
	mapping model.ColumnMapping,
	ignore model.ColumnSet,
	targetColumnsOnly bool,
) (model.EffectiveProjection, model.SchemaDriftRecord, error) {
	targetByLower := make(map[string]string, len(targetColumns)) // lower(name) -> original-case target name
	for _, c := range targetColumns {
		targetByLower[strings.ToLower(c.Name)] = c.Name
	}

	proj := model.EffectiveProjection{TargetToSource: make(map[string]string)}
	claimed := make(map[string]bool) // lower(target name) -> claimed
	var drift model.SchemaDriftRecord

	// Step 1: remove ignored source columns. Step 2-4: map + claim.
	filledFromSource := make(map[string]bool) // lower(target name) -> filled
	for _, sc := range sourceColumns {
		if ignore.Has(sc.Name) {
			continue
		}
		wantTarget := mapping.TargetFor(sc.Name)
		actual, exists := targetByLower[strings.ToLower(wantTarget)]
		if !exists {
			drift.MissingColumnsInTarget = append(drift.MissingColumnsInTarget, sc.Name)
			continue
		}
		if claimed[strings.ToLower(actual)] {
			// Another source column already claimed this target column;
			// this one cannot be represented without a collision.
			drift.MissingColumnsInTarget = append(drift.MissingColumnsInTarget, sc.Name)
			continue
		}
		claimed[strings.ToLower(actual)] = true
		filledFromSource[strings.ToLower(actual)] = true
		proj.TargetColumns = append(proj.TargetColumns, actual)
		proj.TargetToSource[actual] = sc.Name
	}

	// Step 4: target-columns-only restricts to columns already filled from
	// source (a no-op given the construction above, since the projection
	// only ever contains filled columns already — see spec.md §4.3 step 4's
	// "no effect when defaults apply").
	if targetColumnsOnly {
		var restricted []string
		restrictedMap := make(map[string]string, len(proj.TargetToSource))
		for _, t := range proj.TargetColumns {
			if filledFromSource[strings.ToLower(t)] {
				restricted = append(restricted, t)
				restrictedMap[t] = proj.TargetToSource[t]
			}
		}
		proj.TargetColumns = restricted
		proj.TargetToSource = restrictedMap
	}

	// Step 5: drift lists for target columns never filled.
	for _, tc := range targetColumns {
		if !filledFromSource[strings.ToLower(tc.Name)] {
			drift.MissingColumnsInSource = append(drift.MissingColumnsInSource, tc.Name)
		}
	}
	drift.CommonColumns = append(drift.CommonColumns, proj.TargetColumns...)

	// Excluded computed/generated columns never reach this function (the
	// Metadata Probe excludes them before columns are gathered), but the
	// drift record still advertises the projection's shape for callers
	// that want to report them explicitly via SchemaErrors.ExcludedColumns;
	// populated by the caller that has access to the raw, unfiltered probe
	// result (see reconcile.WithExcluded).

	// Step 6: verify every source PK column is represented by itself, not
	// merely that its target slot is filled by some other column (a mapping
	// collision can let a different source column win the target name).
	for _, pkCol := range pk {
		wantTarget := mapping.TargetFor(pkCol)
		if ignore.Has(pkCol) {
			return proj, drift, &ErrPKNotRepresentable{Column: pkCol}
		}
		actual, ok := targetByLower[strings.ToLower(wantTarget)]
		if !ok {
			return proj, drift, &ErrPKNotRepresentable{Column: pkCol}
		}
		if claimant, inProjection := proj.TargetToSource[actual]; !inProjection || !strings.EqualFold(claimant, pkCol) {
			return proj, drift, &ErrPKNotRepresentable{Column: pkCol}
		}
	}

	return proj, drift, nil
}

// WithExcluded records computed/generated-always columns dropped before
// Reconcile ever saw them, so the Schema Drift Record can report them per
// spec.md §3 ("excluded computed/generated-always columns" is purely
// advisory on top of the projection Reconcile computes).
func WithExcluded(drift model.SchemaDriftRecord, excluded []string) model.SchemaDriftRecord {
	drift.ExcludedColumns = excluded
	return drift
}
