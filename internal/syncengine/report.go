package syncengine

import (
	"fmt"
	"path/filepath"
	"time"
)

// ReportPath builds the run-result file path spec.md §6 mandates:
// "<output-dir>/sync-result-<YYYYMMDD_HHMMSS>.json".
func ReportPath(outputDir string, startedAt time.Time) string {
	name := fmt.Sprintf("sync-result-%s.json", startedAt.UTC().Format("20060102_150405"))
	return filepath.Join(outputDir, name)
}
