package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bisibesi/tablesync/internal/model"
)

func TestDispatchLevel_BoundsConcurrency(t *testing.T) {
	level := names("dbo.A", "dbo.B", "dbo.C", "dbo.D", "dbo.E")
	var inFlight int32
	var maxSeen int32
	var mu sync.Mutex

	dispatchLevel(context.Background(), level, 2, func(model.QualifiedName) {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > maxSeen {
			maxSeen = n
		}
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
	})

	if maxSeen > 2 {
		t.Errorf("expected at most 2 concurrent workers, saw %d", maxSeen)
	}
}

func TestDispatchLevel_RunsEveryTable(t *testing.T) {
	level := names("dbo.A", "dbo.B", "dbo.C")
	seen := make(map[string]bool)
	var mu sync.Mutex

	dispatchLevel(context.Background(), level, 4, func(t model.QualifiedName) {
		mu.Lock()
		seen[t.Key()] = true
		mu.Unlock()
	})

	for _, t2 := range level {
		if !seen[t2.Key()] {
			t.Errorf("table %s was never dispatched", t2)
		}
	}
}
