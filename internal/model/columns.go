package model

import "strings"

// ColumnDescriptor describes one column as reported by the Metadata Probe.
// Generated-always and computed columns are excluded before this type is
// ever constructed by callers that build projections (spec.md §3).
type ColumnDescriptor struct {
	Name        string
	Ordinal     int
	IsIdentity  bool
	IsComputed  bool
	IsGenerated bool
}

// PrimaryKey is the ordered sequence of source column names making up a
// table's primary key. It may be empty.
type PrimaryKey []string

func (pk PrimaryKey) Empty() bool { return len(pk) == 0 }

// Contains reports whether name (case-insensitive) is one of the PK columns.
func (pk PrimaryKey) Contains(name string) bool {
	for _, c := range pk {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// ColumnSet is a case-insensitive set of column names, used for the Ignore
// Set (spec.md §3) and for quick membership tests elsewhere.
type ColumnSet map[string]struct{}

func NewColumnSet(names ...string) ColumnSet {
	s := make(ColumnSet, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

func (s ColumnSet) Add(name string) {
	s[strings.ToLower(name)] = struct{}{}
}

func (s ColumnSet) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// ColumnMapping is a per-table, case-insensitive mapping from source column
// name to target column name. A source column absent from the map keeps its
// own name (spec.md §3).
type ColumnMapping map[string]string

func NewColumnMapping() ColumnMapping {
	return make(ColumnMapping)
}

func (m ColumnMapping) Set(source, target string) {
	m[strings.ToLower(source)] = target
}

// TargetFor returns the mapped target name for source, defaulting to source
// itself when no mapping entry exists.
func (m ColumnMapping) TargetFor(source string) string {
	if t, ok := m[strings.ToLower(source)]; ok {
		return t
	}
	return source
}

// Merge layers an override mapping (e.g. per-table) on top of this one
// (e.g. global), returning a new map with override entries taking priority.
func (m ColumnMapping) Merge(override ColumnMapping) ColumnMapping {
	out := make(ColumnMapping, len(m)+len(override))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
