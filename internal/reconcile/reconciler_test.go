package reconcile_test

import (
	"testing"

	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/reconcile"
)

func cols(names ...string) []model.ColumnDescriptor {
	out := make([]model.ColumnDescriptor, len(names))
	for i, n := range names {
		out[i] = model.ColumnDescriptor{Name: n, Ordinal: i + 1}
	}
	return out
}

// TestReconcile_RoundTrip covers the invariant of spec.md §8.7: identical
// source/target columns, no mapping, no ignore set ⇒ projection equals the
// ordered target column list, and the target→source map is the identity.
func TestReconcile_RoundTrip(t *testing.T) {
	same := cols("Id", "Name", "Email")
	proj, drift, err := reconcile.Reconcile(same, same, model.PrimaryKey{"Id"}, model.NewColumnMapping(), model.NewColumnSet(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proj.TargetColumns) != 3 {
		t.Fatalf("expected 3 projected columns, got %d", len(proj.TargetColumns))
	}
	for _, name := range []string{"Id", "Name", "Email"} {
		if proj.TargetToSource[name] != name {
			t.Errorf("expected identity mapping for %s, got %s", name, proj.TargetToSource[name])
		}
	}
	if len(drift.MissingColumnsInTarget) != 0 || len(drift.MissingColumnsInSource) != 0 {
		t.Errorf("expected no drift, got %+v", drift)
	}
}

// TestReconcile_MappingAndIgnore covers scenario S3 of spec.md §8.
func TestReconcile_MappingAndIgnore(t *testing.T) {
	source := cols("Id", "FullName", "Secret")
	target := cols("UserId", "DisplayName")

	mapping := model.NewColumnMapping()
	mapping.Set("Id", "UserId")
	mapping.Set("FullName", "DisplayName")

	ignore := model.NewColumnSet("Secret")

	proj, drift, err := reconcile.Reconcile(source, target, model.PrimaryKey{"Id"}, mapping, ignore, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proj.TargetColumns) != 2 || proj.TargetColumns[0] != "UserId" || proj.TargetColumns[1] != "DisplayName" {
		t.Fatalf("unexpected projection: %+v", proj.TargetColumns)
	}
	if proj.TargetToSource["UserId"] != "Id" || proj.TargetToSource["DisplayName"] != "FullName" {
		t.Fatalf("unexpected target->source map: %+v", proj.TargetToSource)
	}
	if len(drift.MissingColumnsInTarget) != 0 {
		t.Errorf("Secret was ignored, should not appear in drift as missing: %+v", drift.MissingColumnsInTarget)
	}
}

// TestReconcile_SchemaDrift covers scenario S6: source has a column the
// target lacks; it's excluded from the projection and flagged as drift.
func TestReconcile_SchemaDrift(t *testing.T) {
	source := cols("Id", "Name", "Email")
	target := cols("Id", "Name")

	proj, drift, err := reconcile.Reconcile(source, target, model.PrimaryKey{"Id"}, model.NewColumnMapping(), model.NewColumnSet(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proj.TargetColumns) != 2 {
		t.Fatalf("expected Email excluded from projection, got %+v", proj.TargetColumns)
	}
	if len(drift.MissingColumnsInTarget) != 1 || drift.MissingColumnsInTarget[0] != "Email" {
		t.Errorf("expected Email flagged as missing in target, got %+v", drift.MissingColumnsInTarget)
	}
}

func TestReconcile_PKNotRepresentable(t *testing.T) {
	source := cols("Id", "Name")
	target := cols("Name")

	_, _, err := reconcile.Reconcile(source, target, model.PrimaryKey{"Id"}, model.NewColumnMapping(), model.NewColumnSet(), false)
	if err == nil {
		t.Fatal("expected PK-not-representable error")
	}
	var pkErr *reconcile.ErrPKNotRepresentable
	if !asPKError(err, &pkErr) {
		t.Fatalf("expected *ErrPKNotRepresentable, got %T: %v", err, err)
	}
}

func asPKError(err error, target **reconcile.ErrPKNotRepresentable) bool {
	e, ok := err.(*reconcile.ErrPKNotRepresentable)
	if ok {
		*target = e
	}
	return ok
}

// TestReconcile_PKNotRepresentable_MappingCollision covers the case where a
// non-PK source column maps onto the PK's own target slot and wins the
// claim first: the target column exists and is filled, but not by the
// primary key column itself, so PK representability must still fail.
func TestReconcile_PKNotRepresentable_MappingCollision(t *testing.T) {
	// LegacyId is listed first so it claims the "Id" target slot before the
	// real PK column Id gets a chance to.
	source := cols("LegacyId", "Id")
	target := cols("Id")

	mapping := model.NewColumnMapping()
	mapping.Set("LegacyId", "Id")

	_, _, err := reconcile.Reconcile(source, target, model.PrimaryKey{"Id"}, mapping, model.NewColumnSet(), false)
	if err == nil {
		t.Fatal("expected PK-not-representable error when a different column claims the PK's target slot")
	}
	var pkErr *reconcile.ErrPKNotRepresentable
	if !asPKError(err, &pkErr) {
		t.Fatalf("expected *ErrPKNotRepresentable, got %T: %v", err, err)
	}
}

func TestReconcile_TargetColumnsOnly(t *testing.T) {
	source := cols("Id", "Name")
	target := cols("Id", "Name", "CreatedAt")

	proj, drift, err := reconcile.Reconcile(source, target, model.PrimaryKey{"Id"}, model.NewColumnMapping(), model.NewColumnSet(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proj.TargetColumns) != 2 {
		t.Fatalf("expected only filled columns under target-columns-only, got %+v", proj.TargetColumns)
	}
	if len(drift.MissingColumnsInSource) != 1 || drift.MissingColumnsInSource[0] != "CreatedAt" {
		t.Errorf("expected CreatedAt flagged missing in source, got %+v", drift.MissingColumnsInSource)
	}
}
