package loader

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/model"
	"github.com/vanderheijden86/dirtree/pkg/tree"
)

// Fetcher produces the flat entity list an engine is built from.
// Implementations do not retry; a failed fetch is returned as is.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Entity, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]model.Entity, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) ([]model.Entity, error) {
	return f(ctx)
}

// FileFetcher reads entities from a single .json or .jsonl file.
type FileFetcher struct {
	Path    string
	Options ParseOptions
	// Strict rejects a tree that fails tree.Validate.
	Strict bool
}

// Fetch loads the file.
func (f FileFetcher) Fetch(ctx context.Context) (entities []model.Entity, err error) {
	done := metrics.Start(metrics.SourceLoad)
	defer func() { done(len(entities)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities, err = LoadEntitiesFromFileWithOptions(f.Path, f.Options)
	if err != nil {
		return nil, err
	}
	debug.Log("loader: fetched %d entities from %s", len(entities), f.Path)
	return CheckStrict(entities, f.Strict)
}

// CheckStrict runs tree.Validate when strict is set.
func CheckStrict(entities []model.Entity, strict bool) ([]model.Entity, error) {
	if !strict {
		return entities, nil
	}
	if err := tree.Validate(entities); err != nil {
		return nil, fmt.Errorf("strict mode: %w", err)
	}
	return entities, nil
}

// Static returns a Fetcher that always yields copies of entities.
func Static(entities []model.Entity) Fetcher {
	return FetcherFunc(func(ctx context.Context) ([]model.Entity, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make([]model.Entity, len(entities))
		for i, e := range entities {
			out[i] = e.Clone()
		}
		return out, nil
	})
}
