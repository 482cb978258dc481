package depgraph_test

import (
	"testing"

	"github.com/bisibesi/tablesync/internal/depgraph"
	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
)

func qn(name string) model.QualifiedName { return model.NewQualifiedName("dbo", name) }

func levelIndex(levels [][]model.QualifiedName, name string) int {
	for i, level := range levels {
		for _, t := range level {
			if t.Name == name {
				return i
			}
		}
	}
	return -1
}

func TestPlan_SimpleChain(t *testing.T) {
	selected := []model.QualifiedName{qn("Users"), qn("Orders"), qn("OrderItems")}
	edges := []metadata.ForeignKeyEdge{
		{Child: qn("Orders"), Parent: qn("Users")},
		{Child: qn("OrderItems"), Parent: qn("Orders")},
	}

	levels := depgraph.Plan(selected, edges)

	if levelIndex(levels, "Users") >= levelIndex(levels, "Orders") {
		t.Error("Users must be in an earlier level than Orders")
	}
	if levelIndex(levels, "Orders") >= levelIndex(levels, "OrderItems") {
		t.Error("Orders must be in an earlier level than OrderItems")
	}
}

func TestPlan_IndependentTablesShareFirstLevel(t *testing.T) {
	selected := []model.QualifiedName{qn("A"), qn("B"), qn("C")}
	levels := depgraph.Plan(selected, nil)
	if len(levels) != 1 || len(levels[0]) != 3 {
		t.Fatalf("expected one level with all 3 independent tables, got %+v", levels)
	}
}

func TestPlan_BreaksCycles(t *testing.T) {
	selected := []model.QualifiedName{qn("A"), qn("B")}
	edges := []metadata.ForeignKeyEdge{
		{Child: qn("A"), Parent: qn("B")},
		{Child: qn("B"), Parent: qn("A")},
	}
	levels := depgraph.Plan(selected, edges)

	total := 0
	for _, l := range levels {
		total += len(l)
	}
	if total != 2 {
		t.Fatalf("expected both cyclic tables to appear exactly once, got %d total", total)
	}
}

func TestPlan_EdgesOutsideSelectionIgnored(t *testing.T) {
	selected := []model.QualifiedName{qn("Orders")}
	edges := []metadata.ForeignKeyEdge{
		{Child: qn("Orders"), Parent: qn("Users")}, // Users not selected
	}
	levels := depgraph.Plan(selected, edges)
	if len(levels) != 1 || len(levels[0]) != 1 || levels[0][0].Name != "Orders" {
		t.Fatalf("expected Orders alone in the first level, got %+v", levels)
	}
}

func TestPlan_SelfReferenceDoesNotBlock(t *testing.T) {
	selected := []model.QualifiedName{qn("Employees")}
	edges := []metadata.ForeignKeyEdge{
		{Child: qn("Employees"), Parent: qn("Employees")}, // manager_id -> self
	}
	levels := depgraph.Plan(selected, edges)
	if len(levels) != 1 || len(levels[0]) != 1 {
		t.Fatalf("expected a single level with the self-referencing table, got %+v", levels)
	}
}
