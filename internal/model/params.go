package model

// SyncParameters is the configuration bundle consumed by the engine for one
// run (spec.md §3). Every field here must be honored — options are
// enumerated, not best-effort.
type SyncParameters struct {
	BatchSize          int
	ThreadCount        int
	AllowEmptyPK       bool
	DeepCompare        bool
	ClearTarget        bool
	TargetColumnsOnly  bool
	OrderByPK          bool
	OutputDir          string
	TableSelection     string // raw selection DSL, e.g. "all", "dbo.Users,Orders"
	GlobalColumnMap    ColumnMapping
	PerTableColumnMap  map[string]ColumnMapping // key: QualifiedName.Key()
	GlobalIgnoreSet    ColumnSet
	PerTableIgnoreSet  map[string]ColumnSet // key: QualifiedName.Key()
	StartRowOffsets    map[string]int64     // key: QualifiedName.Key(), positional by selection order
}

// IgnoreSetFor returns the effective ignore set for a table: the global
// wildcard set unioned with any per-table set (spec.md §3).
func (p SyncParameters) IgnoreSetFor(table QualifiedName) ColumnSet {
	out := make(ColumnSet)
	for k := range p.GlobalIgnoreSet {
		out[k] = struct{}{}
	}
	if per, ok := p.PerTableIgnoreSet[table.Key()]; ok {
		for k := range per {
			out[k] = struct{}{}
		}
	}
	return out
}

// ColumnMapFor returns the effective column mapping for a table: per-table
// entries override global entries (spec.md §3).
func (p SyncParameters) ColumnMapFor(table QualifiedName) ColumnMapping {
	global := p.GlobalColumnMap
	if global == nil {
		global = NewColumnMapping()
	}
	if per, ok := p.PerTableColumnMap[table.Key()]; ok {
		return global.Merge(per)
	}
	return global
}

// StartRowOffsetFor returns the configured start-row offset for a table,
// defaulting to zero.
func (p SyncParameters) StartRowOffsetFor(table QualifiedName) int64 {
	if p.StartRowOffsets == nil {
		return 0
	}
	return p.StartRowOffsets[table.Key()]
}
