package model

import "strings"

// EffectiveProjection is the ordered list of target column names a sync run
// touches on one table, together with the target→source name map used to
// generate "[source] AS [target]" select lists (spec.md §3).
type EffectiveProjection struct {
	TargetColumns  []string          // ordered, unique (case-insensitive)
	TargetToSource map[string]string // target name -> source name
}

// SourceFor returns the source column feeding target column name.
func (p EffectiveProjection) SourceFor(target string) (string, bool) {
	for t, s := range p.TargetToSource {
		if strings.EqualFold(t, target) {
			return s, true
		}
	}
	return "", false
}

// SourceToTarget returns the inverse map (source column -> target column),
// used to translate primary-key column names into target space (spec.md
// §4.3: "the reconciler also returns the source→target inverse map").
func (p EffectiveProjection) SourceToTarget() map[string]string {
	out := make(map[string]string, len(p.TargetToSource))
	for t, s := range p.TargetToSource {
		out[strings.ToLower(s)] = t
	}
	return out
}

func (p EffectiveProjection) Empty() bool {
	return len(p.TargetColumns) == 0
}

// SchemaDriftRecord is the advisory report of what the reconciler could not
// represent cleanly (spec.md §3, §4.3 step 5).
type SchemaDriftRecord struct {
	MissingColumnsInTarget []string // source columns not representable in target
	MissingColumnsInSource []string // target columns not filled from source
	ExcludedColumns        []string // excluded computed/generated columns
	CommonColumns          []string // columns chosen for the projection
	SchemaMismatchDetails  string   `json:",omitempty"`
}
