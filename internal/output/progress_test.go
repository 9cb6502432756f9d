package output

import (
	"bytes"
	"testing"
	"time"
)

func TestProgressBarCompletes(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "GET users", 3)
	bar.Update(RunStatistics{Total: 3, Completed: 1})
	bar.Update(RunStatistics{Total: 3, Completed: 3, Final: true})
	stopWithin(t, bar)
}

func TestProgressBarStopsShortOfTotal(t *testing.T) {
	bar := NewProgressBar(nil, "cancelled", 10)
	bar.Update(RunStatistics{Total: 10, Completed: 4})
	stopWithin(t, bar)
}

func TestProgressBarEmptyPlan(t *testing.T) {
	bar := NewProgressBar(nil, "empty", 0)
	bar.Update(RunStatistics{Final: true})
	stopWithin(t, bar)
}

func stopWithin(t *testing.T, bar *ProgressBar) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		bar.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("progress bar did not stop")
	}
}
