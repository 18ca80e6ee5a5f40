package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/dirtree/pkg/model"
)

// AssertEntityCount verifies the expected number of entities.
func AssertEntityCount(t *testing.T, entities []model.Entity, expected int) {
	t.Helper()
	if len(entities) != expected {
		t.Errorf("expected %d entities, got %d", expected, len(entities))
	}
}

// AssertNoDuplicateIDs verifies all entity IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, entities []model.Entity) {
	t.Helper()
	seen := make(map[int]bool)
	for _, e := range entities {
		if seen[e.ID] {
			t.Errorf("duplicate entity ID: %d", e.ID)
		}
		seen[e.ID] = true
	}
}

// AssertAllValid verifies all entities pass validation.
func AssertAllValid(t *testing.T, entities []model.Entity) {
	t.Helper()
	for i, e := range entities {
		if err := e.Validate(); err != nil {
			t.Errorf("entity %d (id %d) invalid: %v", i, e.ID, err)
		}
	}
}

// AssertIDs verifies entities carry exactly the wanted ids, in order.
func AssertIDs(t *testing.T, entities []model.Entity, want ...int) {
	t.Helper()
	got := GetIDs(entities)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

// AssertIDSet verifies got and want hold the same ids in any order.
func AssertIDSet(t *testing.T, got []int, want ...int) {
	t.Helper()
	g := append([]int(nil), got...)
	w := append([]int(nil), want...)
	sort.Ints(g)
	sort.Ints(w)
	if len(g) == 0 && len(w) == 0 {
		return
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("id set = %v, want %v", g, w)
	}
}

// AssertJSONEqual compares two values after JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// Golden file helpers

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) != actual {
		expectedLines := strings.Split(string(expected), "\n")
		actualLines := strings.Split(actual, "\n")

		for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
			var expLine, actLine string
			if i < len(expectedLines) {
				expLine = expectedLines[i]
			}
			if i < len(actualLines) {
				actLine = actualLines[i]
			}
			if expLine != actLine {
				g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
				return
			}
		}
		g.t.Errorf("golden file mismatch (length differs)")
	}
}

// TempDir helpers

// TempTreeDir creates a temporary directory with a .dirtree subdirectory
// and returns the path. The directory is cleaned up after the test.
func TempTreeDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".dirtree"), 0755); err != nil {
		t.Fatalf("failed to create .dirtree dir: %v", err)
	}
	return dir
}

// WriteTreeFile writes entities to .dirtree/tree.jsonl under dir.
func WriteTreeFile(t *testing.T, dir string, entities []model.Entity) string {
	t.Helper()

	path := filepath.Join(dir, ".dirtree", "tree.jsonl")
	WriteEntitiesFile(t, path, entities)
	return path
}

// WriteEntitiesFile writes entities to path. A .json extension produces a
// JSON array, anything else JSONL.
func WriteEntitiesFile(t *testing.T, path string, entities []model.Entity) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	content := ToJSONL(entities)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		content = ToJSON(entities)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write entities file: %v", err)
	}
}

// Lookup helpers

// FindEntity returns the entity with the given ID, or nil if not found.
func FindEntity(entities []model.Entity, id int) *model.Entity {
	for i := range entities {
		if entities[i].ID == id {
			return &entities[i]
		}
	}
	return nil
}

// GetIDs returns the ids of entities in order.
func GetIDs(entities []model.Entity) []int {
	ids := make([]int, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

// Descendants returns the ids strictly below root, derived from ParentID.
func Descendants(entities []model.Entity, root int) []int {
	byParent := make(map[int][]int)
	for _, e := range entities {
		if e.ParentID != nil {
			byParent[*e.ParentID] = append(byParent[*e.ParentID], e.ID)
		}
	}
	var out []int
	queue := []int{root}
	seen := map[int]bool{root: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range byParent[id] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
	}
	return out
}
