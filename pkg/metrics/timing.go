// Package metrics counts what dt's operations cost and how much of the tree
// they touch.
//
// Each Op accumulates its calls, their wall time and the number of entities
// the calls produced or removed (filter results, cascade deletes, loaded
// sources). Collection is on unless DT_METRICS=0.
//
//	func (e *Engine) Delete(id int) (removed []int) {
//	    done := metrics.Start(metrics.Delete)
//	    defer func() { done(len(removed)) }()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("DT_METRICS") != "0")
}

// Enabled reports whether calls are being recorded.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns recording on or off.
func SetEnabled(on bool) { enabled.Store(on) }

// Op accumulates the calls of one named operation. Safe for concurrent use;
// reloads record from a background goroutine.
type Op struct {
	name    string
	calls   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	items   atomic.Int64
}

func newOp(name string) *Op { return &Op{name: name} }

// Name returns the operation name used in reports.
func (o *Op) Name() string { return o.name }

// Record adds one call that took d and touched items entities.
func (o *Op) Record(d time.Duration, items int) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	o.calls.Add(1)
	o.totalNs.Add(ns)
	o.items.Add(int64(items))
	for {
		peak := o.maxNs.Load()
		if ns <= peak || o.maxNs.CompareAndSwap(peak, ns) {
			return
		}
	}
}

// Start begins timing one call of o. The returned func ends it and records
// how many entities the call touched.
func Start(o *Op) func(items int) {
	if o == nil || !enabled.Load() {
		return func(int) {}
	}
	begin := time.Now()
	return func(items int) {
		o.Record(time.Since(begin), items)
	}
}

// Timer is Start for calls without a meaningful entity count.
func Timer(o *Op) func() {
	done := Start(o)
	return func() { done(0) }
}

// OpStats is a point-in-time summary of an Op.
type OpStats struct {
	Name     string  `json:"name"`
	Calls    int64   `json:"calls"`
	TotalMs  float64 `json:"total_ms"`
	AvgMs    float64 `json:"avg_ms"`
	MaxMs    float64 `json:"max_ms"`
	Items    int64   `json:"items,omitempty"`
	AvgItems float64 `json:"avg_items,omitempty"`
}

// Stats summarizes o.
func (o *Op) Stats() OpStats {
	s := OpStats{
		Name:    o.name,
		Calls:   o.calls.Load(),
		TotalMs: msec(o.totalNs.Load()),
		MaxMs:   msec(o.maxNs.Load()),
		Items:   o.items.Load(),
	}
	if s.Calls > 0 {
		s.AvgMs = s.TotalMs / float64(s.Calls)
		s.AvgItems = float64(s.Items) / float64(s.Calls)
	}
	return s
}

// Reset forgets every recorded call.
func (o *Op) Reset() {
	o.calls.Store(0)
	o.totalNs.Store(0)
	o.maxNs.Store(0)
	o.items.Store(0)
}

func msec(ns int64) float64 { return float64(ns) / float64(time.Millisecond) }

// Engine, loader and UI operations. Items counts are per operation:
// Filter counts visible entities, ParentChain ancestors, ChildLayer
// children, Delete removed entities, Move one per successful move, SourceLoad and
// JSONParsing loaded entities. UIRender has no count.
var (
	Filter      = newOp("filter")
	ParentChain = newOp("parent_chain")
	ChildLayer  = newOp("child_layer")
	Delete      = newOp("delete")
	Move        = newOp("move")
	SourceLoad  = newOp("source_load")
	JSONParsing = newOp("json_parsing")
	UIRender    = newOp("ui_render")
)

var ops = []*Op{Filter, ParentChain, ChildLayer, Delete, Move, SourceLoad, JSONParsing, UIRender}

// ResetAll resets every operation.
func ResetAll() {
	for _, o := range ops {
		o.Reset()
	}
}

// AllStats returns the summaries of the operations that were called.
func AllStats() []OpStats {
	var stats []OpStats
	for _, o := range ops {
		if s := o.Stats(); s.Calls > 0 {
			stats = append(stats, s)
		}
	}
	return stats
}
