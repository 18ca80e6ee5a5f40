package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/model"
)

// TreeDirEnvVar is the name of the environment variable for a custom tree directory.
const TreeDirEnvVar = "DT_TREE_DIR"

// PreferredNames defines the priority order for looking up tree data files.
var PreferredNames = []string{"tree.jsonl", "tree.json", "entities.jsonl"}

// GetTreeDir returns the tree directory path, respecting DT_TREE_DIR.
// Otherwise, falls back to .dirtree in the given repoPath (or cwd if empty).
func GetTreeDir(repoPath string) (string, error) {
	if envDir := os.Getenv(TreeDirEnvVar); envDir != "" {
		return envDir, nil
	}

	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	return filepath.Join(repoPath, ".dirtree"), nil
}

// IsEntityFile reports whether name looks like a loadable entity file.
// Backups and editor artifacts are excluded.
func IsEntityFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".json" && ext != ".jsonl" {
		return false
	}
	if strings.Contains(name, ".backup") ||
		strings.Contains(name, ".orig") ||
		strings.HasSuffix(name, "~") ||
		strings.HasPrefix(name, ".") {
		return false
	}
	return true
}

// FindTreePath locates the tree data file in the given directory.
func FindTreePath(dir string) (string, error) {
	return FindTreePathWithWarnings(dir, nil)
}

// FindTreePathWithWarnings is like FindTreePath but reports skipped backup
// files via warnFunc.
func FindTreePathWithWarnings(dir string, warnFunc func(msg string)) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read tree directory: %w", err)
	}

	var candidates []string
	var skipped []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !IsEntityFile(name) {
			ext := strings.ToLower(filepath.Ext(name))
			if ext == ".json" || ext == ".jsonl" {
				skipped = append(skipped, name)
			}
			continue
		}
		candidates = append(candidates, name)
	}

	if len(skipped) > 0 && warnFunc != nil {
		warnFunc(fmt.Sprintf("ignoring backup files: %s", strings.Join(skipped, ", ")))
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no tree file found in %s", dir)
	}

	for _, preferred := range PreferredNames {
		for _, name := range candidates {
			if name == preferred {
				path := filepath.Join(dir, name)
				if info, err := os.Stat(path); err == nil && info.Size() > 0 {
					return path, nil
				}
			}
		}
	}

	// Fall back to first non-empty candidate
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}

	return filepath.Join(dir, candidates[0]), nil
}

// LoadEntities reads entities from the tree directory of repoPath.
func LoadEntities(repoPath string) ([]model.Entity, error) {
	dir, err := GetTreeDir(repoPath)
	if err != nil {
		return nil, err
	}

	path, err := FindTreePath(dir)
	if err != nil {
		return nil, err
	}

	return LoadEntitiesFromFile(path)
}

// DefaultMaxBufferSize is the default buffer size for the reader (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of the parsers.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize (10MB).
	BufferSize int

	// EntityFilter optionally filters parsed entities. Return true to include.
	EntityFilter func(*model.Entity) bool
}

func (o ParseOptions) warner() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("DT_QUIET") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// accept validates and filters a decoded entity, warning about rejects.
func (o ParseOptions) accept(e *model.Entity, where string, warn func(string)) bool {
	if err := e.Validate(); err != nil {
		warn(fmt.Sprintf("skipping invalid entity %s: %v", where, err))
		return false
	}
	// Open state is presentation state; the engine starts everything closed.
	e.IsOpened = false
	if o.EntityFilter != nil && !o.EntityFilter(e) {
		return false
	}
	return true
}

// LoadEntitiesFromFile reads entities from a .json or .jsonl file.
func LoadEntitiesFromFile(path string) ([]model.Entity, error) {
	return LoadEntitiesFromFileWithOptions(path, ParseOptions{})
}

// LoadEntitiesFromFileWithOptions reads entities from a file with custom
// options. Files ending in .json hold a single array; anything else is
// parsed as JSONL.
func LoadEntitiesFromFileWithOptions(path string, opts ParseOptions) ([]model.Entity, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no tree found at %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tree file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseEntityArray(file, opts)
	}
	return ParseEntitiesWithOptions(file, opts)
}

// ParseEntities parses JSONL content from a reader into entities.
func ParseEntities(r io.Reader) ([]model.Entity, error) {
	return ParseEntitiesWithOptions(r, ParseOptions{})
}

// ParseEntitiesWithOptions parses JSONL content with custom options.
// Handles UTF-8 BOM stripping, long lines and validation. Malformed or
// invalid lines are skipped with a warning.
func ParseEntitiesWithOptions(r io.Reader, opts ParseOptions) (entities []model.Entity, err error) {
	done := metrics.Start(metrics.JSONParsing)
	defer func() { done(len(entities)) }()

	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			// Entity lines are short; ~128 bytes each is a conservative guess.
			const avgEntityBytes = 128
			const maxCap = 200_000
			est := int(info.Size() / avgEntityBytes)
			if est > maxCap {
				est = maxCap
			}
			if est > 0 {
				entities = make([]model.Entity, 0, est)
			}
		}
	}

	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}

	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warner()

	lineNum := 0
	for {
		lineNum++
		// ReadLine returns a single line without the end-of-line bytes. If
		// the line was too long for the buffer, isPrefix is set.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading tree stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil && err != io.EOF {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
				if err == io.EOF {
					break
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var e model.Entity
		if err := json.Unmarshal(line, &e); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}

		if !opts.accept(&e, fmt.Sprintf("on line %d", lineNum), warn) {
			continue
		}

		entities = append(entities, e)
	}

	return entities, nil
}

// ParseEntityArray parses a JSON array of entities, the payload shape of the
// tree fetch endpoint. A malformed document is an error; individual invalid
// entities are skipped with a warning.
func ParseEntityArray(r io.Reader, opts ParseOptions) (entities []model.Entity, err error) {
	done := metrics.Start(metrics.JSONParsing)
	defer func() { done(len(entities)) }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading tree document: %w", err)
	}
	data = bytes.TrimSpace(stripBOM(data))
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tree document: %w", err)
	}

	warn := opts.warner()
	entities = make([]model.Entity, 0, len(raw))
	for i, item := range raw {
		var e model.Entity
		if err := json.Unmarshal(item, &e); err != nil {
			warn(fmt.Sprintf("skipping malformed entity at index %d: %v", i, err))
			continue
		}
		if !opts.accept(&e, fmt.Sprintf("at index %d", i), warn) {
			continue
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
