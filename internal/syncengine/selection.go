// Selection DSL resolution (spec.md §6, §4.9): comma-separated tokens,
// each either all/*, schema.table, a bare schema name, or a bare table name
// (matching dbo.<name>). Empty selection is equivalent to "all".
package syncengine

import (
	"strings"

	"github.com/bisibesi/tablesync/internal/model"
)

// ResolveSelection matches raw against candidates (tables already known to
// be present in both source and target) per the grammar of spec.md §6.
// Matching is case-insensitive throughout.
func ResolveSelection(raw string, candidates []model.QualifiedName) []model.QualifiedName {
	tokens := splitSelection(raw)
	if len(tokens) == 0 {
		return candidates
	}

	seen := make(map[string]bool, len(candidates))
	var out []model.QualifiedName
	for _, tok := range tokens {
		if tok == "all" || tok == "*" {
			for _, c := range candidates {
				if !seen[c.Key()] {
					seen[c.Key()] = true
					out = append(out, c)
				}
			}
			continue
		}
		for _, c := range candidates {
			if seen[c.Key()] {
				continue
			}
			if matchesToken(tok, c) {
				seen[c.Key()] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func splitSelection(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchesToken implements spec.md §4.9: "a bare name matches if it equals
// either the full qualified name, the schema name, or — when it has no
// dot — the table name in the dbo schema."
func matchesToken(tok string, t model.QualifiedName) bool {
	full := strings.ToLower(t.String())
	if tok == full {
		return true
	}
	if tok == strings.ToLower(t.Schema) {
		return true
	}
	if !strings.Contains(tok, ".") && strings.EqualFold(t.Schema, "dbo") && tok == strings.ToLower(t.Name) {
		return true
	}
	return false
}

// IntersectByName returns tables present in both a and b, by qualified-name
// equality (case-insensitive), preserving a's order (spec.md §4.9: "every
// base table present in both source and target").
func IntersectByName(a, b []model.QualifiedName) []model.QualifiedName {
	bKeys := make(map[string]bool, len(b))
	for _, t := range b {
		bKeys[t.Key()] = true
	}
	var out []model.QualifiedName
	for _, t := range a {
		if bKeys[t.Key()] {
			out = append(out, t)
		}
	}
	return out
}
