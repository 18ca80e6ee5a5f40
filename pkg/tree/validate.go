package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/dirtree/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ProblemKind classifies a structural problem found by Validate.
type ProblemKind string

const (
	ProblemInvalidEntity  ProblemKind = "invalid_entity"
	ProblemDuplicateID    ProblemKind = "duplicate_id"
	ProblemNoRoot         ProblemKind = "no_root"
	ProblemMultipleRoots  ProblemKind = "multiple_roots"
	ProblemDanglingParent ProblemKind = "dangling_parent"
	ProblemFileParent     ProblemKind = "file_parent"
	ProblemCycle          ProblemKind = "cycle"
)

// Problem is one structural defect in an entity list.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	IDs     []int       `json:"ids,omitempty"`
	Message string      `json:"message"`
}

// ValidationError collects every problem Validate found.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid tree: " + e.Problems[0].Message
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("invalid tree: %d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Has reports whether a problem of kind was found.
func (e *ValidationError) Has(kind ProblemKind) bool {
	for _, p := range e.Problems {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

// Validate checks that entities form a single well-formed tree: unique ids,
// exactly one root, every parent present and a folder, and no parent cycles.
// The engine itself accepts malformed input; Validate is for callers that
// want to reject it up front. It returns nil or a *ValidationError.
func Validate(entities []model.Entity) error {
	var problems []Problem
	add := func(kind ProblemKind, format string, args ...any) {
		problems = append(problems, Problem{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	byID := make(map[int]model.Entity, len(entities))
	first := make(map[int]int, len(entities))
	var roots []int
	for i, ent := range entities {
		if err := ent.Validate(); err != nil {
			add(ProblemInvalidEntity, "%v", err)
			problems[len(problems)-1].IDs = []int{ent.ID}
		}
		if _, dup := byID[ent.ID]; dup {
			add(ProblemDuplicateID, "duplicate id %d", ent.ID)
			problems[len(problems)-1].IDs = []int{ent.ID}
			continue
		}
		byID[ent.ID] = ent
		first[ent.ID] = i
		if ent.IsRoot() {
			roots = append(roots, ent.ID)
		}
	}

	switch {
	case len(entities) > 0 && len(roots) == 0:
		add(ProblemNoRoot, "no root entity")
	case len(roots) > 1:
		add(ProblemMultipleRoots, "%d root entities: %v", len(roots), roots)
		problems[len(problems)-1].IDs = roots
	}

	// Edges run parent -> child; a parent cycle is a directed cycle.
	g := simple.NewDirectedGraph()
	for id := range byID {
		g.AddNode(simple.Node(int64(id)))
	}
	for i, ent := range entities {
		if ent.ParentID == nil || first[ent.ID] != i {
			continue
		}
		pid := *ent.ParentID
		parent, ok := byID[pid]
		if !ok {
			add(ProblemDanglingParent, "entity %d: parent %d does not exist", ent.ID, pid)
			problems[len(problems)-1].IDs = []int{ent.ID, pid}
			continue
		}
		if parent.IsFile() {
			add(ProblemFileParent, "entity %d: parent %q is a file", ent.ID, parent.Title)
			problems[len(problems)-1].IDs = []int{ent.ID, pid}
		}
		if pid == ent.ID {
			// Already reported by Entity.Validate; gonum rejects self edges.
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(int64(pid)), T: simple.Node(int64(ent.ID))})
	}

	if _, err := topo.Sort(g); err != nil {
		for _, scc := range topo.TarjanSCC(g) {
			if len(scc) < 2 {
				continue
			}
			ids := make([]int, len(scc))
			for i, n := range scc {
				ids[i] = int(n.ID())
			}
			sort.Ints(ids)
			add(ProblemCycle, "parent cycle through %v", ids)
			problems[len(problems)-1].IDs = ids
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
