// Package datasource provides multi-source tree detection and selection for
// dt. It discovers, validates, and selects the freshest valid source from
// SQLite databases and JSON/JSONL entity files in the tree directory.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vanderheijden86/dirtree/pkg/loader"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database (tree.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSONL file with one entity per line
	SourceTypeJSONL SourceType = "jsonl"
	// SourceTypeJSON is a JSON file holding one array of entities
	SourceTypeJSON SourceType = "json"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityFile   = 50
)

// DBName is the file name of the SQLite source inside the tree directory.
const DBName = "tree.db"

// DataSource represents a potential source of tree data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// EntityCount is the number of entities in the source (set during validation)
	EntityCount int `json:"entity_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, entities=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.EntityCount, status)
}

// SourceForPath builds a DataSource for an explicit file, inferring its type
// from the extension.
func SourceForPath(path string) (DataSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("source %s: %w", path, err)
	}
	src := DataSource{Path: path, ModTime: info.ModTime(), Size: info.Size(), Priority: PriorityFile}
	switch filepath.Ext(path) {
	case ".db", ".sqlite", ".sqlite3":
		src.Type = SourceTypeSQLite
		src.Priority = PrioritySQLite
	case ".json":
		src.Type = SourceTypeJSON
	default:
		src.Type = SourceTypeJSONL
	}
	return src, nil
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// TreeDir is the .dirtree directory path (optional, auto-detected if empty)
	TreeDir string
	// RepoPath is the root the tree directory lives in (optional, uses cwd if empty)
	RepoPath string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

// DiscoverSources finds all potential data sources in the tree directory,
// freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	treeDir := opts.TreeDir
	if treeDir == "" {
		var err error
		treeDir, err = loader.GetTreeDir(opts.RepoPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering sources in: %s", treeDir))
	}

	var sources []DataSource

	sqliteSources := discoverSQLiteSources(treeDir, opts)
	sources = append(sources, sqliteSources...)

	fileSources, err := discoverFileSources(treeDir, opts)
	if err != nil && opts.Verbose {
		opts.Logger(fmt.Sprintf("File discovery warning: %v", err))
	}
	sources = append(sources, fileSources...)

	if opts.ValidateAfterDiscovery {
		ValidateSources(ctx, sources, opts)
	}

	if opts.ValidateAfterDiscovery && !opts.IncludeInvalid {
		var validSources []DataSource
		for _, s := range sources {
			if s.Valid {
				validSources = append(validSources, s)
			}
		}
		sources = validSources
	}

	sortSources(sources)

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}

	return sources, nil
}

// sortSources orders by mod time (newest first), then priority.
func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

// discoverSQLiteSources finds the SQLite database in the tree directory
func discoverSQLiteSources(treeDir string, opts DiscoveryOptions) []DataSource {
	dbPath := filepath.Join(treeDir, DBName)
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil
	}
	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Found SQLite: %s (mod=%s)", dbPath, info.ModTime().Format(time.RFC3339)))
	}
	return []DataSource{{
		Type:     SourceTypeSQLite,
		Path:     dbPath,
		Priority: PrioritySQLite,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}}
}

// discoverFileSources finds JSON and JSONL entity files in the tree directory
func discoverFileSources(treeDir string, opts DiscoveryOptions) ([]DataSource, error) {
	entries, err := os.ReadDir(treeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() || !loader.IsEntityFile(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(treeDir, e.Name())
		typ := SourceTypeJSONL
		if filepath.Ext(e.Name()) == ".json" {
			typ = SourceTypeJSON
		}
		sources = append(sources, DataSource{
			Type:     typ,
			Path:     path,
			Priority: PriorityFile,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})

		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", typ, path, info.ModTime().Format(time.RFC3339)))
		}
	}

	return sources, nil
}
