package syncengine

import "strings"

// bracketIdent renders a single (unqualified) SQL Server identifier in
// bracket-quoted form, matching model.QualifiedName.Bracketed's convention
// for the plain column names this package builds statements from.
func bracketIdent(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// selectList renders "[src] AS [tgt]" pairs in projection order (spec.md
// §4.6 step 1, §4.7 step 2: "SELECT <projection with aliases>").
func selectList(targetCols []string, targetToSource map[string]string) string {
	parts := make([]string, len(targetCols))
	for i, t := range targetCols {
		parts[i] = bracketIdent(targetToSource[t]) + " AS " + bracketIdent(t)
	}
	return strings.Join(parts, ", ")
}

// targetColumnList renders a plain bracket-quoted column list, used on the
// target side of INSERT statements where source aliases are irrelevant.
func targetColumnList(targetCols []string) string {
	parts := make([]string, len(targetCols))
	for i, t := range targetCols {
		parts[i] = bracketIdent(t)
	}
	return strings.Join(parts, ", ")
}
