// Package testutil provides tree fixtures and assertions shared by tests.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/dirtree/pkg/model"
)

// GeneratorConfig controls entity generation.
type GeneratorConfig struct {
	Seed      int64    // Random seed for determinism (0 = use current time)
	FileRatio float64  // Chance that a generated leaf is a file (default 0.5)
	Prefixes  []string // Title prefixes to draw from (nil = sampleTitles)
	WithSeeds bool     // Fill each folder's Children list
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42, // Deterministic
		FileRatio: 0.5,
		WithSeeds: true,
	}
}

// Generator creates tree fixtures with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.FileRatio <= 0 {
		cfg.FileRatio = 0.5
	}
	if len(cfg.Prefixes) == 0 {
		cfg.Prefixes = sampleTitles
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var sampleTitles = []string{"docs", "src", "mobx", "folder", "img", "notes", "a", "ab", "abc", "report"}

// builder accumulates entities in insertion order.
type builder struct {
	entities []model.Entity
	index    map[int]int
}

func newBuilder() *builder {
	return &builder{index: make(map[int]int)}
}

func (b *builder) add(id int, parent *int, kind model.Kind, title string) {
	b.index[id] = len(b.entities)
	b.entities = append(b.entities, model.Entity{ID: id, ParentID: parent, Kind: kind, Title: title})
	if parent != nil {
		if i, ok := b.index[*parent]; ok {
			b.entities[i].Children = append(b.entities[i].Children, id)
		}
	}
}

func (b *builder) result(withSeeds bool) []model.Entity {
	if !withSeeds {
		for i := range b.entities {
			b.entities[i].Children = nil
		}
	}
	return b.entities
}

// Tree creates a complete tree of folders with given depth and branching
// factor. The deepest level holds files.
func (g *Generator) Tree(depth, breadth int) []model.Entity {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}

	b := newBuilder()
	b.add(0, nil, model.KindFolder, "root")
	nextID := 1
	currentLevel := []int{0}
	for d := 0; d < depth; d++ {
		kind := model.KindFolder
		if d == depth-1 {
			kind = model.KindFile
		}
		var nextLevel []int
		for _, parent := range currentLevel {
			for i := 0; i < breadth; i++ {
				b.add(nextID, model.ParentOf(parent), kind, fmt.Sprintf("%s%d", g.pickPrefix(), nextID))
				nextLevel = append(nextLevel, nextID)
				nextID++
			}
		}
		currentLevel = nextLevel
	}
	return b.result(g.cfg.WithSeeds)
}

// Chain creates a single path of nested folders ending in a file:
// root > f1 > f2 > ... > file.
func (g *Generator) Chain(depth int) []model.Entity {
	b := newBuilder()
	b.add(0, nil, model.KindFolder, "root")
	for i := 1; i < depth; i++ {
		b.add(i, model.ParentOf(i-1), model.KindFolder, fmt.Sprintf("level%d", i))
	}
	if depth > 0 {
		b.add(depth, model.ParentOf(depth-1), model.KindFile, "leaf.txt")
	}
	return b.result(g.cfg.WithSeeds)
}

// Random creates a well-formed tree of size entities (root included). Each
// entity after the root hangs off a random earlier folder, so parents are
// always inserted before their children.
func (g *Generator) Random(size int) []model.Entity {
	if size < 1 {
		size = 1
	}
	b := newBuilder()
	b.add(0, nil, model.KindFolder, "root")
	folders := []int{0}
	for id := 1; id < size; id++ {
		parent := folders[g.rng.Intn(len(folders))]
		kind := model.KindFolder
		if g.rng.Float64() < g.cfg.FileRatio {
			kind = model.KindFile
		}
		title := g.pickPrefix()
		if g.rng.Intn(2) == 0 {
			title = fmt.Sprintf("%s_%d", title, id)
		}
		b.add(id, model.ParentOf(parent), kind, title)
		if kind == model.KindFolder {
			folders = append(folders, id)
		}
	}
	return b.result(g.cfg.WithSeeds)
}

func (g *Generator) pickPrefix() string {
	return g.cfg.Prefixes[g.rng.Intn(len(g.cfg.Prefixes))]
}

// Sample returns the reference tree used across the engine tests:
//
//	0 Home/
//	  1 Documents/
//	    2 folder_photos/
//	      13 mobx2.jpg
//	    4 notes.txt
//	    5 folder_work/
//	      8 report.pdf
//	      12 mobx1.jpg
//	    10 example.png
//	  3 Downloads/
//	    6 installer.dmg
//	    7 folder_archive/
//	      11 user.png
//	  9 readme.md
//
// Entities are listed in id order, which is the engine's scan order.
func Sample() []model.Entity {
	folder := func(id int, parent *int, title string, children ...int) model.Entity {
		return model.Entity{ID: id, ParentID: parent, Kind: model.KindFolder, Title: title, Children: children}
	}
	file := func(id, parent int, title string) model.Entity {
		return model.Entity{ID: id, ParentID: model.ParentOf(parent), Kind: model.KindFile, Title: title}
	}
	return []model.Entity{
		folder(0, nil, "Home", 1, 3, 9),
		folder(1, model.ParentOf(0), "Documents", 2, 4, 5, 10),
		folder(2, model.ParentOf(1), "folder_photos", 13),
		folder(3, model.ParentOf(0), "Downloads", 6, 7),
		file(4, 1, "notes.txt"),
		folder(5, model.ParentOf(1), "folder_work", 8, 12),
		file(6, 3, "installer.dmg"),
		folder(7, model.ParentOf(3), "folder_archive", 11),
		file(8, 5, "report.pdf"),
		file(9, 0, "readme.md"),
		file(10, 1, "example.png"),
		file(11, 7, "user.png"),
		file(12, 5, "mobx1.jpg"),
		file(13, 2, "mobx2.jpg"),
	}
}

// Single returns a tree holding only a root folder.
func Single() []model.Entity {
	return []model.Entity{{ID: 0, Kind: model.KindFolder, Title: "root"}}
}

// ToJSONL converts entities to JSONL format (one JSON object per line).
func ToJSONL(entities []model.Entity) string {
	var sb strings.Builder
	for _, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ToJSON converts entities to a single JSON array.
func ToJSON(entities []model.Entity) string {
	data, err := json.Marshal(entities)
	if err != nil {
		return "[]"
	}
	return string(data)
}
