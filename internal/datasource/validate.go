package datasource

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrNoValidSources is returned when no candidate passed validation.
var ErrNoValidSources = errors.New("no valid sources discovered")

// maxConcurrentValidations bounds how many sources are opened at once.
const maxConcurrentValidations = 8

// ValidateSource loads src and records whether it is usable. A source is
// valid when it loads without error and holds at least one entity.
func ValidateSource(ctx context.Context, src *DataSource) error {
	entities, err := LoadFromSource(ctx, *src)
	if err != nil {
		src.Valid = false
		src.ValidationError = err.Error()
		return err
	}
	if len(entities) == 0 {
		src.Valid = false
		src.ValidationError = "no entities"
		return fmt.Errorf("%s: no entities", src.Path)
	}
	src.Valid = true
	src.ValidationError = ""
	src.EntityCount = len(entities)
	return nil
}

// ValidateSources validates every source concurrently, updating each in
// place. Failures are recorded on the source, not returned.
func ValidateSources(ctx context.Context, sources []DataSource, opts DiscoveryOptions) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentValidations)
	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			if err := ValidateSource(gctx, src); err != nil && opts.Verbose && opts.Logger != nil {
				opts.Logger(fmt.Sprintf("Validation failed for %s: %v", src.Path, err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SelectBestSource picks the freshest valid source, breaking ties by
// priority. Sources that were never validated count as valid.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var candidates []DataSource
	for _, s := range sources {
		if s.Valid || s.ValidationError == "" {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return DataSource{}, ErrNoValidSources
	}
	sortSources(candidates)
	return candidates[0], nil
}
