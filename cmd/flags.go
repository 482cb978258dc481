package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bisibesi/tablesync/internal/model"
)

// parseMapColumn parses one --map-column value: "schema.table.src=tgt" or
// "table.src=tgt" (schema defaults to dbo), per spec.md §6.
func parseMapColumn(v string) (model.QualifiedName, string, string, error) {
	eq := strings.IndexByte(v, '=')
	if eq < 0 {
		return model.QualifiedName{}, "", "", fmt.Errorf("--map-column %q: missing '='", v)
	}
	left, target := v[:eq], v[eq+1:]
	parts := strings.Split(left, ".")
	switch len(parts) {
	case 2:
		return model.NewQualifiedName("dbo", parts[0]), parts[1], target, nil
	case 3:
		return model.NewQualifiedName(parts[0], parts[1]), parts[2], target, nil
	default:
		return model.QualifiedName{}, "", "", fmt.Errorf("--map-column %q: expected table.src=tgt or schema.table.src=tgt", v)
	}
}

// parseIgnoreColumn parses one --ignore-column value: "schema.table.col",
// "table.col", or a bare "col" (global, per-run wildcard), per spec.md §6.
// A nil table return means the entry is global.
func parseIgnoreColumn(v string) (*model.QualifiedName, string, error) {
	parts := strings.Split(v, ".")
	switch len(parts) {
	case 1:
		return nil, parts[0], nil
	case 2:
		t := model.NewQualifiedName("dbo", parts[0])
		return &t, parts[1], nil
	case 3:
		t := model.NewQualifiedName(parts[0], parts[1])
		return &t, parts[2], nil
	default:
		return nil, "", fmt.Errorf("--ignore-column %q: expected col, table.col, or schema.table.col", v)
	}
}

// parseStartRows parses the comma-separated --start-row list into
// non-negative integers, in positional order.
func parseStartRows(v string) ([]int64, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("--start-row %q: expected a comma list of non-negative integers", v)
		}
		out = append(out, n)
	}
	return out, nil
}

// buildSyncParameters folds repeatable flag values into the shared
// model.SyncParameters bundle the engine consumes (spec.md §3).
func buildSyncParameters(
	batchSize, threadCount int,
	allowNoPK, deepCompare, clearTarget, targetColumnsOnly, orderByPK bool,
	ignoreColumns, mapColumns []string,
	tableSelection, outputDir string,
) (model.SyncParameters, error) {
	params := model.SyncParameters{
		BatchSize:         batchSize,
		ThreadCount:       threadCount,
		AllowEmptyPK:      allowNoPK,
		DeepCompare:       deepCompare,
		ClearTarget:       clearTarget,
		TargetColumnsOnly: targetColumnsOnly,
		OrderByPK:         orderByPK,
		OutputDir:         outputDir,
		TableSelection:    tableSelection,
		GlobalColumnMap:   model.NewColumnMapping(),
		PerTableColumnMap: make(map[string]model.ColumnMapping),
		GlobalIgnoreSet:   model.NewColumnSet(),
		PerTableIgnoreSet: make(map[string]model.ColumnSet),
	}

	for _, v := range mapColumns {
		table, src, tgt, err := parseMapColumn(v)
		if err != nil {
			return params, err
		}
		m, ok := params.PerTableColumnMap[table.Key()]
		if !ok {
			m = model.NewColumnMapping()
		}
		m.Set(src, tgt)
		params.PerTableColumnMap[table.Key()] = m
	}

	for _, v := range ignoreColumns {
		table, col, err := parseIgnoreColumn(v)
		if err != nil {
			return params, err
		}
		if table == nil {
			params.GlobalIgnoreSet.Add(col)
			continue
		}
		s, ok := params.PerTableIgnoreSet[table.Key()]
		if !ok {
			s = model.NewColumnSet()
		}
		s.Add(col)
		params.PerTableIgnoreSet[table.Key()] = s
	}

	return params, nil
}
