package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// SavePipeline expresses the read / transform / write steps of a save
// strategy over a concrete entity type. Entity packages fill in the
// steps; Transform and AfterWrite are optional.
type SavePipeline[T any] struct {
	Entity string
	Deps   []string

	// Read fetches the raw entities from GitHub, already converted.
	// Child entities consult the Context for their saved parents.
	Read func(ctx context.Context, rc *Context) ([]T, error)

	// Transform normalizes, enriches, or filters. Identity when nil.
	Transform func(ctx context.Context, items []T, rc *Context) ([]T, error)

	// Write persists the entities to storage
	Write func(items []T) error

	// AfterWrite updates the Context (saved parents and the like)
	AfterWrite func(items []T, rc *Context)
}

// EntityName implements Saver
func (p *SavePipeline[T]) EntityName() string {
	return p.Entity
}

// Dependencies implements Saver
func (p *SavePipeline[T]) Dependencies() []string {
	return p.Deps
}

// Save implements Saver
func (p *SavePipeline[T]) Save(ctx context.Context, rc *Context) (int, error) {
	items, err := p.Read(ctx, rc)
	if err != nil {
		return 0, err
	}

	if p.Transform != nil {
		items, err = p.Transform(ctx, items, rc)
		if err != nil {
			return 0, err
		}
	}

	if err := p.Write(items); err != nil {
		return 0, err
	}

	if p.AfterWrite != nil {
		p.AfterWrite(items, rc)
	}
	return len(items), nil
}

// RestorePipeline expresses the restore steps over a concrete entity
// type. RestoreOne transforms a single record through the Context, posts
// it, and records new-ID mappings; returning false skips the record
// (dangling reference) without failing the entity.
type RestorePipeline[T any] struct {
	Entity string
	Deps   []string

	// Read loads the snapshot from storage, applying any selection
	// filtering. A missing artifact yields an empty result, not an error.
	Read func(rc *Context) ([]T, error)

	// RestoreOne writes a single record to GitHub. The boolean reports
	// whether a record was created.
	RestoreOne func(ctx context.Context, item T, rc *Context) (bool, error)
}

// EntityName implements Restorer
func (p *RestorePipeline[T]) EntityName() string {
	return p.Entity
}

// Dependencies implements Restorer
func (p *RestorePipeline[T]) Dependencies() []string {
	return p.Deps
}

// Restore implements Restorer. Records are written in snapshot order.
func (p *RestorePipeline[T]) Restore(ctx context.Context, rc *Context) (int, error) {
	items, err := p.Read(rc)
	if err != nil {
		if errors.IsNotFound(err) {
			logger.Debug("No snapshot artifact, nothing to restore",
				zap.String("entity", p.Entity),
			)
			return 0, nil
		}
		return 0, err
	}

	created := 0
	for _, item := range items {
		ok, err := p.RestoreOne(ctx, item, rc)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}
