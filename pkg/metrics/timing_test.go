package metrics

import (
	"bytes"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func withEnabled(t *testing.T, on bool) {
	t.Helper()
	prev := Enabled()
	SetEnabled(on)
	t.Cleanup(func() { SetEnabled(prev) })
}

func TestOpRecord(t *testing.T) {
	withEnabled(t, true)
	o := newOp("test")
	o.Record(2*time.Millisecond, 3)
	o.Record(6*time.Millisecond, 5)

	s := o.Stats()
	if s.Name != "test" || s.Calls != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.TotalMs != 8 || s.AvgMs != 4 || s.MaxMs != 6 {
		t.Errorf("timings = total %v avg %v max %v, want 8/4/6", s.TotalMs, s.AvgMs, s.MaxMs)
	}
	if s.Items != 8 || s.AvgItems != 4 {
		t.Errorf("items = %d avg %v, want 8/4", s.Items, s.AvgItems)
	}

	o.Reset()
	if s := o.Stats(); s.Calls != 0 || s.Items != 0 || s.MaxMs != 0 {
		t.Errorf("Reset() left data: %+v", s)
	}
}

func TestOpConcurrent(t *testing.T) {
	withEnabled(t, true)
	o := newOp("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Record(time.Microsecond, 2)
		}()
	}
	wg.Wait()
	if s := o.Stats(); s.Calls != 50 || s.Items != 100 {
		t.Errorf("Stats() = %+v, want 50 calls and 100 items", s)
	}
}

func TestStartRecordsItems(t *testing.T) {
	withEnabled(t, true)
	o := newOp("start")
	Start(o)(7)
	Timer(o)()
	if s := o.Stats(); s.Calls != 2 || s.Items != 7 {
		t.Errorf("Stats() = %+v, want 2 calls and 7 items", s)
	}
}

func TestDisabled(t *testing.T) {
	withEnabled(t, false)
	o := newOp("disabled")
	Start(o)(4)
	o.Record(time.Millisecond, 1)
	if s := o.Stats(); s.Calls != 0 {
		t.Errorf("recorded %d calls while disabled", s.Calls)
	}
}

func TestWriteJSON(t *testing.T) {
	withEnabled(t, true)
	ResetAll()
	defer ResetAll()

	Filter.Record(time.Millisecond, 6)
	Move.Record(time.Millisecond, 0)

	var buf bytes.Buffer
	if err := WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var report Report
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(report.Operations) != 2 || report.Operations[0].Name != "filter" {
		t.Errorf("Operations = %+v, want filter and move", report.Operations)
	}
	if len(report.Entities) != 1 || report.Entities["filter"] != 6 {
		t.Errorf("Entities = %v, want only filter=6", report.Entities)
	}
}
