package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/dirtree/pkg/model"
)

// Reparent records an entity whose parent differs between two sources.
type Reparent struct {
	ID      int    `json:"id"`
	ParentA string `json:"parent_a"`
	ParentB string `json:"parent_b"`
}

// Rename records an entity whose title differs between two sources.
type Rename struct {
	ID     int    `json:"id"`
	TitleA string `json:"title_a"`
	TitleB string `json:"title_b"`
}

// SourceDiff represents differences between two entity lists
type SourceDiff struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	// MissingInA holds ids present in B but not in A
	MissingInA []int `json:"missing_in_a,omitempty"`
	// MissingInB holds ids present in A but not in B
	MissingInB []int      `json:"missing_in_b,omitempty"`
	Reparented []Reparent `json:"reparented,omitempty"`
	Renamed    []Rename   `json:"renamed,omitempty"`
	CountA     int        `json:"count_a"`
	CountB     int        `json:"count_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 ||
		len(d.Reparented) > 0 || len(d.Renamed) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d entities each)", d.CountA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&b, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	if len(d.MissingInA) > 0 {
		fmt.Fprintf(&b, "  - %d entities in %s but not %s\n", len(d.MissingInA), d.SourceB, d.SourceA)
		writeIDs(&b, d.MissingInA)
	}
	if len(d.MissingInB) > 0 {
		fmt.Fprintf(&b, "  - %d entities in %s but not %s\n", len(d.MissingInB), d.SourceA, d.SourceB)
		writeIDs(&b, d.MissingInB)
	}
	if len(d.Reparented) > 0 {
		fmt.Fprintf(&b, "  - %d entities with a different parent\n", len(d.Reparented))
		if len(d.Reparented) <= 5 {
			for _, r := range d.Reparented {
				fmt.Fprintf(&b, "    - %d: %s vs %s\n", r.ID, r.ParentA, r.ParentB)
			}
		}
	}
	if len(d.Renamed) > 0 {
		fmt.Fprintf(&b, "  - %d entities with a different title\n", len(d.Renamed))
		if len(d.Renamed) <= 5 {
			for _, r := range d.Renamed {
				fmt.Fprintf(&b, "    - %d: %q vs %q\n", r.ID, r.TitleA, r.TitleB)
			}
		}
	}
	return b.String()
}

func writeIDs(b *strings.Builder, ids []int) {
	if len(ids) > 5 {
		return
	}
	for _, id := range ids {
		fmt.Fprintf(b, "    - %d\n", id)
	}
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// MaxDifferences limits the number of differences tracked per kind (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

// DiffEntities compares two entity lists. Results are sorted by id.
func DiffEntities(a, b []model.Entity, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{SourceA: sourceA, SourceB: sourceB}

	mapA := make(map[int]model.Entity, len(a))
	for _, e := range a {
		mapA[e.ID] = e
	}
	mapB := make(map[int]model.Entity, len(b))
	for _, e := range b {
		mapB[e.ID] = e
	}
	diff.CountA = len(mapA)
	diff.CountB = len(mapB)

	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	for _, id := range sortedKeys(mapA) {
		if _, ok := mapB[id]; !ok && room(len(diff.MissingInB)) {
			diff.MissingInB = append(diff.MissingInB, id)
		}
	}
	for _, id := range sortedKeys(mapB) {
		eb := mapB[id]
		ea, ok := mapA[id]
		if !ok {
			if room(len(diff.MissingInA)) {
				diff.MissingInA = append(diff.MissingInA, id)
			}
			continue
		}
		if ea.ParentString() != eb.ParentString() && room(len(diff.Reparented)) {
			diff.Reparented = append(diff.Reparented, Reparent{ID: id, ParentA: ea.ParentString(), ParentB: eb.ParentString()})
		}
		if ea.Title != eb.Title && room(len(diff.Renamed)) {
			diff.Renamed = append(diff.Renamed, Rename{ID: id, TitleA: ea.Title, TitleB: eb.Title})
		}
	}
	return diff
}

func sortedKeys(m map[int]model.Entity) []int {
	keys := make([]int, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	sort.Ints(keys)
	return keys
}

// CompareSources loads and compares two data sources
func CompareSources(ctx context.Context, sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	a, err := LoadFromSource(ctx, sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	b, err := LoadFromSource(ctx, sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}
	diff := DiffEntities(a, b, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// CheckAllSourcesConsistent compares every pair of valid sources and returns
// the pairs that disagree. Pairs that fail to load are skipped.
func CheckAllSourcesConsistent(ctx context.Context, sources []DataSource, opts DiffOptions) []SourceDiff {
	var diffs []SourceDiff
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(ctx, sources[i], sources[j], opts)
			if err != nil {
				continue
			}
			if diff.HasInconsistencies() {
				diffs = append(diffs, *diff)
			}
		}
	}
	return diffs
}
