package runners

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/seaquell/outpost/pkg/protocol"
)

func runCompute(t *testing.T, payload string) (*recorder, protocol.ResultFrame) {
	t.Helper()
	rec := &recorder{}
	rep := NewReporter("t1", rec)
	CPURunner{}.Run(context.Background(), rep, json.RawMessage(payload))
	results := rec.results()
	if len(results) != 1 {
		t.Fatalf("got %d result frames, want 1", len(results))
	}
	return rec, results[0]
}

func TestCompute_DefaultCount(t *testing.T) {
	rec, res := runCompute(t, `{}`)
	if !res.OK {
		t.Fatalf("result not ok: %v", res.Error)
	}
	out := res.Result.(protocol.CPUResult)
	if out.Count != 10000 {
		t.Errorf("count = %d, want 10000", out.Count)
	}
	rec.checkWellFormed(t, "t1")
}

func TestCompute_CountFlooredAtOne(t *testing.T) {
	_, res := runCompute(t, `{"n": -5}`)
	out := res.Result.(protocol.CPUResult)
	if out.Count != 1 {
		t.Errorf("count = %d, want 1", out.Count)
	}
}

func TestCompute_LastProgressIsHundred(t *testing.T) {
	rec, _ := runCompute(t, `{"n": 12345}`)
	vals := rec.progressValues()
	if len(vals) == 0 {
		t.Fatal("no progress frames")
	}
	if vals[0] != 0 {
		t.Errorf("first progress = %d, want 0", vals[0])
	}
	if last := vals[len(vals)-1]; last != 100 {
		t.Errorf("last progress = %d, want 100", last)
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			t.Errorf("progress went backwards: %d after %d", vals[i], vals[i-1])
		}
	}
}

func TestCompute_MalformedPayloadUsesDefaults(t *testing.T) {
	_, res := runCompute(t, `{"n": "lots"}`)
	out := res.Result.(protocol.CPUResult)
	if out.Count != 10000 {
		t.Errorf("count = %d, want 10000", out.Count)
	}
}
