// Package model holds the shared data types the synchronization engine
// passes between packages: qualified names, column descriptors, the
// effective projection, sync parameters, and run/table results.
package model

import (
	"fmt"
	"strings"
)

// QualifiedName is a (schema, name) pair compared case-insensitively.
type QualifiedName struct {
	Schema string
	Name   string
}

func NewQualifiedName(schema, name string) QualifiedName {
	return QualifiedName{Schema: schema, Name: name}
}

// ParseQualifiedName parses "schema.name" or a bare "name" (defaulting the
// schema to dbo, the SQL Server convention used throughout the CLI selection
// grammar in spec.md §6).
func ParseQualifiedName(s string) QualifiedName {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return QualifiedName{Schema: s[:idx], Name: s[idx+1:]}
	}
	return QualifiedName{Schema: "dbo", Name: s}
}

func (q QualifiedName) String() string {
	return fmt.Sprintf("%s.%s", q.Schema, q.Name)
}

// Bracketed renders the SQL Server identifier form: [schema].[name].
func (q QualifiedName) Bracketed() string {
	return fmt.Sprintf("%s.%s", bracket(q.Schema), bracket(q.Name))
}

func bracket(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// Equal compares two qualified names case-insensitively, per spec.md §3.
func (q QualifiedName) Equal(o QualifiedName) bool {
	return strings.EqualFold(q.Schema, o.Schema) && strings.EqualFold(q.Name, o.Name)
}

// Key returns a canonical lowercase form suitable for map keys, per the
// case-insensitive identifier handling design note in spec.md §9.
func (q QualifiedName) Key() string {
	return strings.ToLower(q.Schema) + "." + strings.ToLower(q.Name)
}
