package metadata_test

import (
	"testing"

	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
)

func TestFindTable_CaseInsensitive(t *testing.T) {
	tables := []model.QualifiedName{
		model.NewQualifiedName("dbo", "Users"),
		model.NewQualifiedName("sales", "Orders"),
	}

	got, ok := metadata.FindTable(tables, model.NewQualifiedName("DBO", "users"))
	if !ok {
		t.Fatal("expected case-insensitive match")
	}
	if got.Name != "Users" {
		t.Errorf("expected original-case name Users, got %s", got.Name)
	}

	_, ok = metadata.FindTable(tables, model.NewQualifiedName("dbo", "Missing"))
	if ok {
		t.Error("expected no match for Missing")
	}
}

func TestQualifiedName_Bracketed(t *testing.T) {
	q := model.NewQualifiedName("dbo", "Users")
	if got := q.Bracketed(); got != "[dbo].[Users]" {
		t.Errorf("Bracketed() = %q, want [dbo].[Users]", got)
	}
}
