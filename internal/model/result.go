package model

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// TableStatus is the terminal status of one table's sync attempt (spec.md
// §3, §7).
type TableStatus string

const (
	StatusPending   TableStatus = "Pending"
	StatusRunning   TableStatus = "Running"
	StatusCompleted TableStatus = "Completed"
	StatusFailed    TableStatus = "Failed"
	StatusSkipped   TableStatus = "Skipped"
)

// RunStatus is the terminal status of the whole run (spec.md §6, §7).
type RunStatus string

const (
	RunRunning   RunStatus = "Running"
	RunCompleted RunStatus = "Completed"
	RunFailed    RunStatus = "Failed"
)

// TableSyncResult is the per-table outcome recorded in a Run Result
// (spec.md §3, §6).
type TableSyncResult struct {
	TableName       string            `json:"TableName"`
	Status          TableStatus       `json:"Status"`
	SourceCount     int64             `json:"SourceCount"`
	TargetCount     int64             `json:"TargetCount"`
	Inserted        int64             `json:"Inserted"`
	Skipped         int64             `json:"Skipped"`
	StartRowOffset  int64             `json:"StartRowOffset"`
	StartTime       time.Time         `json:"StartTime"`
	EndTime         time.Time         `json:"EndTime"`
	DurationSeconds float64           `json:"DurationSeconds"`
	ErrorMessage    string            `json:"ErrorMessage,omitempty"`
	ErrorType       string            `json:"ErrorType,omitempty"`
	ErrorDetails    string            `json:"ErrorDetails,omitempty"`
	SchemaErrors    *SchemaDriftRecord `json:"SchemaErrors,omitempty"`
}

// Finish stamps EndTime/DurationSeconds from StartTime and the given status.
func (r *TableSyncResult) Finish(status TableStatus) {
	r.Status = status
	r.EndTime = time.Now().UTC()
	if !r.StartTime.IsZero() {
		r.DurationSeconds = r.EndTime.Sub(r.StartTime).Seconds()
	}
}

// RunResult is the unique run's accumulated state (spec.md §3, §6). Every
// mutation goes through Upsert/Finalize, which serialize concurrent table
// orchestrators behind a single mutex (spec.md §5, §9).
type RunResult struct {
	RunId      string                     `json:"RunId"`
	StartTime  time.Time                  `json:"StartTime"`
	EndTime    time.Time                  `json:"EndTime"`
	Parameters SyncParameters             `json:"Parameters"`
	Tables     []TableSyncResult          `json:"Tables"`
	Status     RunStatus                  `json:"Status"`

	mu      sync.Mutex
	byTable map[string]int // table key -> index into Tables, for O(1) upsert
}

func NewRunResult(runID string, params SyncParameters) *RunResult {
	return &RunResult{
		RunId:      runID,
		StartTime:  time.Now().UTC(),
		Parameters: params,
		Status:     RunRunning,
		byTable:    make(map[string]int),
	}
}

// Upsert inserts or overwrites the result for one table, preserving the
// uniqueness invariant of spec.md §3 ("at most one entry per qualified
// table name in a run result; updates overwrite").
func (r *RunResult) Upsert(tableKey string, result TableSyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byTable == nil {
		r.byTable = make(map[string]int)
	}
	if idx, ok := r.byTable[tableKey]; ok {
		r.Tables[idx] = result
		return
	}
	r.byTable[tableKey] = len(r.Tables)
	r.Tables = append(r.Tables, result)
}

// Finalize sets the run's end time and overall status.
func (r *RunResult) Finalize(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = time.Now().UTC()
	r.Status = status
}

// Snapshot returns a JSON-serializable copy taken under the lock, safe to
// marshal without racing further Upserts.
func (r *RunResult) Snapshot() RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	tables := make([]TableSyncResult, len(r.Tables))
	copy(tables, r.Tables)
	return RunResult{
		RunId:      r.RunId,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Parameters: r.Parameters,
		Tables:     tables,
		Status:     r.Status,
	}
}

// Persist writes the run result as JSON to path, overwriting any existing
// content. Per spec.md §6, atomicity of replacement is not required — a
// plain write is the whole contract; readers may observe a run in progress.
// The marshal and write happen under the same lock Upsert/Finalize use, so
// concurrent Persist calls cannot interleave and revert the file to an
// earlier table's state (spec.md: "persistence must be serialized too").
func (r *RunResult) Persist(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]TableSyncResult, len(r.Tables))
	copy(tables, r.Tables)
	snap := RunResult{
		RunId:      r.RunId,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Parameters: r.Parameters,
		Tables:     tables,
		Status:     r.Status,
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
