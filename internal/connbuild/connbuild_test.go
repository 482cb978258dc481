package connbuild_test

import (
	"strings"
	"testing"

	"github.com/bisibesi/tablesync/internal/connbuild"
)

func TestBuild_AzureHostUsesActiveDirectoryAuth(t *testing.T) {
	dsn := connbuild.Build(connbuild.Options{
		Host:     "myserver.database.windows.net",
		Database: "mydb",
	})
	if !strings.Contains(dsn, "fedauth=ActiveDirectoryDefault") {
		t.Errorf("expected Azure AD auth in DSN, got %s", dsn)
	}
}

func TestBuild_NonAzureHostUsesIntegratedSecurity(t *testing.T) {
	dsn := connbuild.Build(connbuild.Options{
		Host:     "onprem-sql",
		Database: "mydb",
	})
	if !strings.Contains(dsn, "integratedSecurity=true") {
		t.Errorf("expected integrated security in DSN, got %s", dsn)
	}
}

func TestBuild_ReadOnlyIntent(t *testing.T) {
	dsn := connbuild.Build(connbuild.Options{Host: "onprem-sql", Database: "mydb", ReadOnly: true})
	if !strings.Contains(dsn, "ApplicationIntent=ReadOnly") {
		t.Errorf("expected read-only application intent, got %s", dsn)
	}
}

func TestEnsureUnboundedTimeout_Idempotent(t *testing.T) {
	dsn := "sqlserver://host?database=db&dial+timeout=0"
	if got := connbuild.EnsureUnboundedTimeout(dsn); got != dsn {
		t.Errorf("expected no change when timeout already present, got %s", got)
	}
}
