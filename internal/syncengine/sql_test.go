package syncengine

import (
	"strings"
	"testing"

	"github.com/bisibesi/tablesync/internal/model"
)

func TestSelectList_AliasesSourceToTarget(t *testing.T) {
	got := selectList([]string{"UserId", "DisplayName"}, map[string]string{
		"UserId": "Id", "DisplayName": "FullName",
	})
	want := "[Id] AS [UserId], [FullName] AS [DisplayName]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildAntiJoinInsert_SimplePK(t *testing.T) {
	target := model.NewQualifiedName("dbo", "Users")
	sql := buildAntiJoinInsert(target, []string{"Id", "Name"}, []string{"Id"}, false)
	if !strings.Contains(sql, "INSERT INTO [dbo].[Users] ([Id], [Name])") {
		t.Errorf("unexpected insert clause: %s", sql)
	}
	if !strings.Contains(sql, "WHERE NOT EXISTS (SELECT 1 FROM [dbo].[Users] t WHERE t.[Id] = s.[Id])") {
		t.Errorf("unexpected anti-join predicate: %s", sql)
	}
}

func TestBuildAntiJoinInsert_NullSafeDeepCompare(t *testing.T) {
	target := model.NewQualifiedName("dbo", "Events")
	sql := buildAntiJoinInsert(target, []string{"K", "V"}, []string{"K", "V"}, true)
	if !strings.Contains(sql, "(t.[K] = s.[K] OR (t.[K] IS NULL AND s.[K] IS NULL))") {
		t.Errorf("expected null-safe predicate for K, got %s", sql)
	}
	if !strings.Contains(sql, " AND ") {
		t.Errorf("expected predicates joined with AND, got %s", sql)
	}
}

func TestAntiJoinColumns_TranslatesPKToTargetSpace(t *testing.T) {
	proj := model.EffectiveProjection{
		TargetColumns:  []string{"UserId", "DisplayName"},
		TargetToSource: map[string]string{"UserId": "Id", "DisplayName": "FullName"},
	}
	cols, nullSafe, err := antiJoinColumns(proj, model.PrimaryKey{"Id"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nullSafe {
		t.Errorf("expected nullSafe=false for PK-based anti-join")
	}
	if len(cols) != 1 || cols[0] != "UserId" {
		t.Errorf("expected [UserId], got %v", cols)
	}
}

func TestAntiJoinColumns_DeepCompareUsesFullProjection(t *testing.T) {
	proj := model.EffectiveProjection{
		TargetColumns:  []string{"K", "V"},
		TargetToSource: map[string]string{"K": "k", "V": "v"},
	}
	cols, nullSafe, err := antiJoinColumns(proj, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !nullSafe {
		t.Errorf("expected nullSafe=true under deep-compare")
	}
	if len(cols) != 2 {
		t.Errorf("expected full projection as key columns, got %v", cols)
	}
}

func TestAntiJoinColumns_UnrepresentablePKIsError(t *testing.T) {
	proj := model.EffectiveProjection{
		TargetColumns:  []string{"Name"},
		TargetToSource: map[string]string{"Name": "Name"},
	}
	_, _, err := antiJoinColumns(proj, model.PrimaryKey{"Id"}, false)
	if err == nil {
		t.Fatal("expected error when PK has no target-space representative")
	}
}

func TestOrderByColumns_PrefersPKWhenRequested(t *testing.T) {
	proj := model.EffectiveProjection{TargetColumns: []string{"Name"}, TargetToSource: map[string]string{"Name": "Name"}}
	got, err := orderByColumns(proj, model.PrimaryKey{"Id"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[Id]" {
		t.Errorf("got %q, want [Id]", got)
	}
}

func TestOrderByColumns_FallsBackToFirstProjectionColumn(t *testing.T) {
	proj := model.EffectiveProjection{
		TargetColumns:  []string{"DisplayName", "UserId"},
		TargetToSource: map[string]string{"DisplayName": "FullName", "UserId": "Id"},
	}
	got, err := orderByColumns(proj, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[FullName]" {
		t.Errorf("got %q, want [FullName]", got)
	}
}
