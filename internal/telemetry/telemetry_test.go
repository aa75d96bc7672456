package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordStageAndSnapshot(t *testing.T) {
	tel := New(prometheus.NewRegistry())
	tel.RecordStage(StageEvent{Stage: "analyst", Duration: 2 * time.Second, Success: true})
	tel.RecordStage(StageEvent{Stage: "analyst", Duration: 4 * time.Second, Success: false, Error: "timeout"})
	tel.RecordStage(StageEvent{Stage: "banker", Duration: time.Second, Success: true})

	m := tel.Snapshot()
	if m.StageExecutions["analyst"] != 2 || m.StageFailures["analyst"] != 1 {
		t.Fatalf("analyst counters: %+v", m)
	}
	if m.StageAvgTimes["analyst"] != 3*time.Second {
		t.Fatalf("analyst avg: %v", m.StageAvgTimes["analyst"])
	}
	if m.StageExecutions["banker"] != 1 {
		t.Fatalf("banker counters: %+v", m)
	}
}

func TestRecordRunAverages(t *testing.T) {
	tel := New(nil)
	tel.RecordRun(RunEvent{ID: "a", Duration: 10 * time.Second, Success: true})
	tel.RecordRun(RunEvent{ID: "b", Duration: 20 * time.Second, Success: false})

	m := tel.Snapshot()
	if m.TotalRuns != 2 || m.SuccessfulRuns != 1 || m.FailedRuns != 1 {
		t.Fatalf("run counters: %+v", m)
	}
	if m.AverageRunTime != 15*time.Second {
		t.Fatalf("avg run time: %v", m.AverageRunTime)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tel := New(nil)
	tel.RecordStage(StageEvent{Stage: "director", Duration: time.Second, Success: true})
	m := tel.Snapshot()
	m.StageExecutions["director"] = 99
	if tel.Snapshot().StageExecutions["director"] != 1 {
		t.Fatal("snapshot must not alias internal state")
	}
}
