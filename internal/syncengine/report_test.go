package syncengine

import (
	"strings"
	"testing"
	"time"
)

func TestReportPath_Format(t *testing.T) {
	startedAt := time.Date(2026, 3, 5, 14, 30, 5, 0, time.UTC)
	got := ReportPath("./out", startedAt)
	want := "out/sync-result-20260305_143005.json"
	if !strings.HasSuffix(got, want) {
		t.Errorf("got %q, want suffix %q", got, want)
	}
}
