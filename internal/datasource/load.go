package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/loader"
	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/model"
)

// LoadEntities performs smart multi-source detection and loading for the
// tree directory of repoPath. It discovers all available sources, validates
// them, selects the freshest valid one, and loads entities from it.
//
// Falls back to plain file loading via loader.LoadEntities if smart
// detection finds no valid sources.
func LoadEntities(ctx context.Context, repoPath string) ([]model.Entity, error) {
	treeDir, err := loader.GetTreeDir(repoPath)
	if err != nil {
		return nil, err
	}

	entities, smartErr := loadSmart(ctx, treeDir)
	if smartErr == nil {
		return entities, nil
	}
	debug.Log("datasource: smart load failed: %v", smartErr)

	return loader.LoadEntities(repoPath)
}

// LoadEntitiesFromDir performs smart source detection within a known tree
// directory.
func LoadEntitiesFromDir(ctx context.Context, treeDir string) ([]model.Entity, error) {
	entities, smartErr := loadSmart(ctx, treeDir)
	if smartErr == nil {
		return entities, nil
	}

	path, err := loader.FindTreePath(treeDir)
	if err != nil {
		return nil, err
	}
	return loader.LoadEntitiesFromFile(path)
}

// loadSmart discovers sources, validates, selects the best, and loads from it.
func loadSmart(ctx context.Context, treeDir string) ([]model.Entity, error) {
	sources, err := DiscoverSources(ctx, DiscoveryOptions{
		TreeDir:                treeDir,
		ValidateAfterDiscovery: true,
	})
	if err != nil {
		return nil, err
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, err
	}
	debug.Log("datasource: selected %s", best)

	return LoadFromSource(ctx, best)
}

// LoadFromSource loads entities from a specific DataSource, dispatching to the
// appropriate reader based on source type. ctx bounds the SQLite query.
func LoadFromSource(ctx context.Context, source DataSource) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadEntities(ctx)

	case SourceTypeJSON, SourceTypeJSONL:
		return loader.LoadEntitiesFromFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}

// SmartFetcher is a loader.Fetcher over the freshest source in Dir. With
// Path set, it loads that single source instead.
type SmartFetcher struct {
	Dir    string
	Path   string
	Strict bool
}

// Fetch loads the selected source.
func (f SmartFetcher) Fetch(ctx context.Context) (entities []model.Entity, err error) {
	done := metrics.Start(metrics.SourceLoad)
	defer func() { done(len(entities)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.Path != "" {
		var src DataSource
		if src, err = SourceForPath(f.Path); err == nil {
			entities, err = LoadFromSource(ctx, src)
		}
	} else {
		entities, err = LoadEntitiesFromDir(ctx, f.Dir)
	}
	if err != nil {
		return nil, err
	}
	return loader.CheckStrict(entities, f.Strict)
}

var _ loader.Fetcher = SmartFetcher{}
