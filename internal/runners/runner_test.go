package runners

import (
	"sync"
	"testing"

	"github.com/seaquell/outpost/pkg/protocol"
)

func TestReporter_FirstResultWins(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("r1", rec)

	if !rep.Success(protocol.CPUResult{Kind: protocol.KindCPU, Count: 1}) {
		t.Fatal("first result rejected")
	}
	if rep.Fail("late", nil) {
		t.Error("second result accepted")
	}
	if got := len(rec.results()); got != 1 {
		t.Errorf("emitted %d results, want 1", got)
	}
	if !rec.results()[0].OK {
		t.Error("surviving result should be the first (ok) one")
	}
}

func TestReporter_ProgressAfterResultDropped(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("r2", rec)

	rep.Progress(10)
	rep.Success(nil)
	rep.Progress(50)

	if vals := rec.progressValues(); len(vals) != 1 || vals[0] != 10 {
		t.Errorf("progress frames = %v, want just the pre-result one", vals)
	}
	rec.checkWellFormed(t, "r2")
}

func TestReporter_ConcurrentFinishers(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("r3", rec)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				rep.Success(nil)
			} else {
				rep.Fail("raced", nil)
			}
		}(i)
	}
	wg.Wait()

	if got := len(rec.results()); got != 1 {
		t.Errorf("emitted %d results, want exactly 1", got)
	}
}

func TestReporter_ProgressClamped(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("r4", rec)
	rep.Progress(-3)
	rep.Progress(250)
	vals := rec.progressValues()
	if len(vals) != 2 || vals[0] != 0 || vals[1] != 100 {
		t.Errorf("progress = %v, want [0 100]", vals)
	}
}
