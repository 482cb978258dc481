// Package metadata queries the SQL Server information schema and catalog
// views for tables, columns, primary keys, identity flags, computed and
// generated-always flags, temporal-table topology, and foreign keys
// (spec.md §4.2). Every query is routed through the Retry Policy. All
// identifier comparisons in results are case-insensitive, per the
// canonical-lowercase design note in spec.md §9.
//
// Grounded on db-pump/internal/schema/analyzer.go's INFORMATION_SCHEMA
// querying loop and db-pump/internal/dialect/mssql.go's catalog-view joins
// (sys.identity_columns, sys.extended_properties), extended with
// is_disabled foreign keys, is_computed/generated_always_type columns, and
// temporal topology that the teacher's single-dialect abstraction never
// needed.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/retry"
)

// Probe queries one SQL Server database's metadata surfaces.
type Probe struct {
	DB     *sql.DB
	Retry  *retry.Policy
}

func NewProbe(db *sql.DB, policy *retry.Policy) *Probe {
	if policy == nil {
		policy = retry.NewPolicy()
	}
	return &Probe{DB: db, Retry: policy}
}

// ListBaseTables returns every base table visible to the connection,
// case-insensitively comparable (spec.md §4.2).
func (p *Probe) ListBaseTables(ctx context.Context) ([]model.QualifiedName, error) {
	const q = `
		SELECT s.name, t.name
		FROM sys.tables t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE t.type = 'U'
		ORDER BY s.name, t.name`

	var out []model.QualifiedName
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := p.DB.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("list base tables: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var schema, name string
			if err := rows.Scan(&schema, &name); err != nil {
				return fmt.Errorf("scan table row: %w", err)
			}
			out = append(out, model.NewQualifiedName(schema, name))
		}
		return rows.Err()
	})
	return out, err
}

// PrimaryKeyColumns returns table's PK columns in ordinal order, or an
// empty slice if the table has no primary key (spec.md §4.2).
func (p *Probe) PrimaryKeyColumns(ctx context.Context, table model.QualifiedName) (model.PrimaryKey, error) {
	const q = `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`

	var out model.PrimaryKey
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := p.DB.QueryContext(ctx, q, table.Schema, table.Name)
		if err != nil {
			return fmt.Errorf("primary key columns for %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				return err
			}
			out = append(out, col)
		}
		return rows.Err()
	})
	return out, err
}

// Columns returns table's columns in ordinal order, excluding computed and
// generated-always columns (spec.md §3: "Generated-always and computed
// columns are excluded from every projection").
func (p *Probe) Columns(ctx context.Context, table model.QualifiedName) ([]model.ColumnDescriptor, error) {
	const q = `
		SELECT
			c.name,
			c.column_id,
			CASE WHEN ic.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_identity,
			c.is_computed,
			CASE WHEN c.generated_always_type <> 0 THEN 1 ELSE 0 END AS is_generated
		FROM sys.columns c
		JOIN sys.tables t ON c.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		LEFT JOIN sys.identity_columns ic
			ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY c.column_id`

	var out []model.ColumnDescriptor
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := p.DB.QueryContext(ctx, q, table.Schema, table.Name)
		if err != nil {
			return fmt.Errorf("columns for %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var c model.ColumnDescriptor
			var isIdentity, isComputed, isGenerated bool
			if err := rows.Scan(&c.Name, &c.Ordinal, &isIdentity, &isComputed, &isGenerated); err != nil {
				return err
			}
			c.IsIdentity, c.IsComputed, c.IsGenerated = isIdentity, isComputed, isGenerated
			if c.IsComputed || c.IsGenerated {
				continue
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// ExcludedColumns returns the names of table's computed and
// generated-always columns — the ones Columns silently drops from every
// projection — so callers can surface them in the Schema Drift Record's
// ExcludedColumns field (spec.md §3, §6).
func (p *Probe) ExcludedColumns(ctx context.Context, table model.QualifiedName) ([]string, error) {
	const q = `
		SELECT c.name
		FROM sys.columns c
		JOIN sys.tables t ON c.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @p1 AND t.name = @p2
			AND (c.is_computed = 1 OR c.generated_always_type <> 0)
		ORDER BY c.column_id`

	var out []string
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := p.DB.QueryContext(ctx, q, table.Schema, table.Name)
		if err != nil {
			return fmt.Errorf("excluded columns for %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, name)
		}
		return rows.Err()
	})
	return out, err
}

// HasIdentity reports whether table has an IDENTITY column (spec.md §4.2,
// used to bracket batch inserts with SET IDENTITY_INSERT per §4.6 step 4).
func (p *Probe) HasIdentity(ctx context.Context, table model.QualifiedName) (bool, error) {
	cols, err := p.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.IsIdentity {
			return true, nil
		}
	}
	return false, nil
}

// TemporalInfo describes a table's role in a system-versioned temporal
// pairing (spec.md §4.2, §4.5).
type TemporalInfo struct {
	IsTemporalBase    bool
	HistoryTable      model.QualifiedName // valid when IsTemporalBase
	IsTemporalHistory bool
	BaseTable         model.QualifiedName // valid when IsTemporalHistory
}

// IsTemporalBase reports whether table is a system-versioned temporal base
// table and, if so, its history table (spec.md §4.2).
func (p *Probe) IsTemporalBase(ctx context.Context, table model.QualifiedName) (bool, model.QualifiedName, error) {
	const q = `
		SELECT hs.name, ht.name
		FROM sys.tables t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		JOIN sys.tables ht ON ht.object_id = t.history_table_id
		JOIN sys.schemas hs ON ht.schema_id = hs.schema_id
		WHERE s.name = @p1 AND t.name = @p2 AND t.temporal_type = 2`

	var histSchema, histName string
	var found model.QualifiedName
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		row := p.DB.QueryRowContext(ctx, q, table.Schema, table.Name)
		err := row.Scan(&histSchema, &histName)
		if err == sql.ErrNoRows {
			found = model.QualifiedName{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("temporal base lookup for %s: %w", table, err)
		}
		found = model.NewQualifiedName(histSchema, histName)
		return nil
	})
	return found.Name != "", found, err
}

// IsTemporalHistory reports whether table is a history table, and its base
// table if so (spec.md §4.2).
func (p *Probe) IsTemporalHistory(ctx context.Context, table model.QualifiedName) (bool, model.QualifiedName, error) {
	const q = `
		SELECT bs.name, bt.name
		FROM sys.tables ht
		JOIN sys.schemas hs ON ht.schema_id = hs.schema_id
		JOIN sys.tables bt ON bt.history_table_id = ht.object_id
		JOIN sys.schemas bs ON bt.schema_id = bs.schema_id
		WHERE hs.name = @p1 AND ht.name = @p2`

	var baseSchema, baseName string
	var found model.QualifiedName
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		row := p.DB.QueryRowContext(ctx, q, table.Schema, table.Name)
		err := row.Scan(&baseSchema, &baseName)
		if err == sql.ErrNoRows {
			found = model.QualifiedName{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("temporal history lookup for %s: %w", table, err)
		}
		found = model.NewQualifiedName(baseSchema, baseName)
		return nil
	})
	return found.Name != "", found, err
}

// ForeignKeyEdge is a single enabled foreign key from a child (referencing)
// table to a parent (referenced) table (spec.md §4.2: "is_disabled = 0").
type ForeignKeyEdge struct {
	Child  model.QualifiedName
	Parent model.QualifiedName
}

// ForeignKeys returns every enabled foreign key in the database.
func (p *Probe) ForeignKeys(ctx context.Context) ([]ForeignKeyEdge, error) {
	const q = `
		SELECT
			cs.name, ct.name,
			ps.name, pt.name
		FROM sys.foreign_keys fk
		JOIN sys.tables ct ON fk.parent_object_id = ct.object_id
		JOIN sys.schemas cs ON ct.schema_id = cs.schema_id
		JOIN sys.tables pt ON fk.referenced_object_id = pt.object_id
		JOIN sys.schemas ps ON pt.schema_id = ps.schema_id
		WHERE fk.is_disabled = 0`

	var out []ForeignKeyEdge
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := p.DB.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("foreign keys: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var childSchema, childName, parentSchema, parentName string
			if err := rows.Scan(&childSchema, &childName, &parentSchema, &parentName); err != nil {
				return err
			}
			out = append(out, ForeignKeyEdge{
				Child:  model.NewQualifiedName(childSchema, childName),
				Parent: model.NewQualifiedName(parentSchema, parentName),
			})
		}
		return rows.Err()
	})
	return out, err
}

// RowCount returns the exact row count of table via COUNT(*) (spec.md §4.6
// "count pre-check").
func (p *Probe) RowCount(ctx context.Context, table model.QualifiedName) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table.Bracketed())
	var count int64
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		return p.DB.QueryRowContext(ctx, q).Scan(&count)
	})
	return count, err
}

// FindTable returns the entry of tables whose schema and name both equal
// q's, compared case-insensitively, in its original case. It does not apply
// the selection DSL's bare-schema or bare-table rules (see
// syncengine.ResolveSelection for those).
func FindTable(tables []model.QualifiedName, q model.QualifiedName) (model.QualifiedName, bool) {
	for _, t := range tables {
		if t.Equal(q) {
			return t, true
		}
	}
	return model.QualifiedName{}, false
}

// NormalizeIdentifier lowercases an identifier for case-insensitive
// comparisons and map keys (spec.md §9).
func NormalizeIdentifier(s string) string {
	return strings.ToLower(s)
}
