package metrics

import (
	"io"
	"time"

	json "github.com/goccy/go-json"
)

// Report is the document written by WriteJSON.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Enabled     bool      `json:"enabled"`
	Operations  []OpStats `json:"operations"`
	// Entities is the total entity count touched per operation name.
	Entities map[string]int64 `json:"entities,omitempty"`
}

// Snapshot captures every operation that was called.
func Snapshot() Report {
	r := Report{
		GeneratedAt: time.Now().UTC(),
		Enabled:     Enabled(),
		Operations:  AllStats(),
	}
	for _, s := range r.Operations {
		if s.Items == 0 {
			continue
		}
		if r.Entities == nil {
			r.Entities = make(map[string]int64)
		}
		r.Entities[s.Name] = s.Items
	}
	return r
}

// WriteJSON writes an indented Snapshot to w.
func WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Snapshot())
}
