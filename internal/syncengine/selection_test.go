package syncengine

import (
	"reflect"
	"testing"

	"github.com/bisibesi/tablesync/internal/model"
)

func names(ss ...string) []model.QualifiedName {
	out := make([]model.QualifiedName, len(ss))
	for i, s := range ss {
		out[i] = model.ParseQualifiedName(s)
	}
	return out
}

func TestResolveSelection_AllMatchesEverything(t *testing.T) {
	candidates := names("dbo.Users", "dbo.Orders", "sales.Leads")
	got := ResolveSelection("all", candidates)
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("expected all candidates, got %v", got)
	}
	got = ResolveSelection("", candidates)
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("expected empty selection to mean all, got %v", got)
	}
	got = ResolveSelection("*", candidates)
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("expected * to mean all, got %v", got)
	}
}

func TestResolveSelection_FullyQualifiedName(t *testing.T) {
	candidates := names("dbo.Users", "dbo.Orders")
	got := ResolveSelection("dbo.Orders", candidates)
	want := names("dbo.Orders")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveSelection_SchemaNameSelectsWholeSchema(t *testing.T) {
	candidates := names("sales.Leads", "sales.Deals", "dbo.Users")
	got := ResolveSelection("sales", candidates)
	want := names("sales.Leads", "sales.Deals")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveSelection_BareNameMatchesDboSchema(t *testing.T) {
	candidates := names("dbo.Users", "sales.Users")
	got := ResolveSelection("Users", candidates)
	want := names("dbo.Users")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveSelection_CaseInsensitiveAndDeduplicated(t *testing.T) {
	candidates := names("dbo.Users", "dbo.Orders")
	got := ResolveSelection("USERS, dbo.users, dbo.Orders", candidates)
	want := names("dbo.Users", "dbo.Orders")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestIntersectByName(t *testing.T) {
	a := names("dbo.Users", "dbo.Orders", "dbo.Stale")
	b := names("dbo.Orders", "dbo.Users")
	got := IntersectByName(a, b)
	want := names("dbo.Users", "dbo.Orders")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
