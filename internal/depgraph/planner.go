// Package depgraph builds a foreign-key graph restricted to a table
// selection and topologically sorts it into execution levels (spec.md
// §3, §4.4).
//
// Grounded on db-pump/internal/schema/analyzer.go's SortTablesByFKCount:
// the teacher keeps a processed-set and loops picking tables whose
// dependencies are satisfied, breaking cycles with a heuristic when no
// progress is possible. This package keeps that processed-set/looping
// idiom but produces *levels* (sets that can run in parallel) rather than
// one flat order, since spec.md's Run Coordinator dispatches a whole level
// of tables concurrently.
package depgraph

import (
	"sort"

	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
)

// Plan builds execution levels over selected (parent before child, so that
// INSERTs into children see their parents already present — spec.md §4.4).
// Edges not touching two selected tables are ignored. Cycles are broken by
// appending every still-unresolved table as one final level.
func Plan(selected []model.QualifiedName, edges []metadata.ForeignKeyEdge) [][]model.QualifiedName {
	selectedKeys := make(map[string]model.QualifiedName, len(selected))
	for _, t := range selected {
		selectedKeys[t.Key()] = t
	}

	// childDeps[child] = set of parents child depends on, restricted to
	// the selection (spec.md §4.4: "the subgraph induced by the selection
	// set").
	childDeps := make(map[string]map[string]bool, len(selected))
	for k := range selectedKeys {
		childDeps[k] = make(map[string]bool)
	}
	for _, e := range edges {
		ck, pk := e.Child.Key(), e.Parent.Key()
		if ck == pk {
			continue // self-reference never blocks leveling
		}
		if _, childSelected := selectedKeys[ck]; !childSelected {
			continue
		}
		if _, parentSelected := selectedKeys[pk]; !parentSelected {
			continue
		}
		childDeps[ck][pk] = true
	}

	var levels [][]model.QualifiedName
	processed := make(map[string]bool, len(selected))

	for len(processed) < len(selected) {
		var level []string
		for k, deps := range childDeps {
			if processed[k] {
				continue
			}
			ready := true
			for dep := range deps {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, k)
			}
		}

		if len(level) == 0 {
			// Cycle: no table has all dependencies satisfied. Emit every
			// remaining table as one final level (spec.md §3, §4.4).
			var remaining []string
			for k := range childDeps {
				if !processed[k] {
					remaining = append(remaining, k)
				}
			}
			sort.Strings(remaining)
			levels = append(levels, keysToNames(remaining, selectedKeys))
			for _, k := range remaining {
				processed[k] = true
			}
			break
		}

		sort.Strings(level) // deterministic ordering within a level
		levels = append(levels, keysToNames(level, selectedKeys))
		for _, k := range level {
			processed[k] = true
		}
	}

	return levels
}

func keysToNames(keys []string, lookup map[string]model.QualifiedName) []model.QualifiedName {
	out := make([]model.QualifiedName, len(keys))
	for i, k := range keys {
		out[i] = lookup[k]
	}
	return out
}
