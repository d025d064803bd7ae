// Package integrity holds the referential-integrity services that keep
// restored entities consistent with each other: label conflict
// resolution here, with number remapping and parent filtering living in
// the strategy context and mixins.
package integrity

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/pkg/errors"
)

// Conflict strategy names accepted by LABEL_CONFLICT_STRATEGY
const (
	StrategySkip           = "skip"
	StrategyOverwrite      = "overwrite"
	StrategyFailIfConflict = "fail_if_conflict"
	StrategyMerge          = "merge"
	StrategyRename         = "rename"
)

// renameAttempts bounds the search for a free -restored-N name
const renameAttempts = 100

// LabelAPI is the slice of the API mediator the resolvers need
type LabelAPI interface {
	GetLabel(ctx context.Context, repo config.Repo, name string) (*gh.Label, error)
	CreateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error)
	UpdateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error)
}

// ConflictResolver decides what happens when a label being restored
// already exists on the target repository. Resolve reports whether a
// label was created or updated by the resolution.
type ConflictResolver interface {
	Name() string
	Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error)
}

// ResolverFor returns the resolver for a configured strategy name
func ResolverFor(name string) (ConflictResolver, error) {
	switch name {
	case StrategySkip:
		return skipResolver{}, nil
	case StrategyOverwrite:
		return overwriteResolver{}, nil
	case StrategyFailIfConflict, "":
		return failResolver{}, nil
	case StrategyMerge:
		return mergeResolver{}, nil
	case StrategyRename:
		return renameResolver{}, nil
	}
	return nil, errors.ErrConfig(fmt.Sprintf("unknown label conflict strategy %q", name))
}

type skipResolver struct{}

func (skipResolver) Name() string { return StrategySkip }

func (skipResolver) Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error) {
	return false, nil
}

type overwriteResolver struct{}

func (overwriteResolver) Name() string { return StrategyOverwrite }

func (overwriteResolver) Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error) {
	_, err := api.UpdateLabel(ctx, repo, incoming.Name, incoming.Color, incoming.Description)
	if err != nil {
		return false, err
	}
	return true, nil
}

type failResolver struct{}

func (failResolver) Name() string { return StrategyFailIfConflict }

func (failResolver) Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error) {
	return false, errors.ErrConflict(fmt.Sprintf("label %q already exists", incoming.Name))
}

// mergeResolver folds the incoming label into the existing one, with
// incoming non-empty fields winning.
type mergeResolver struct{}

func (mergeResolver) Name() string { return StrategyMerge }

func (mergeResolver) Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error) {
	existing, err := api.GetLabel(ctx, repo, incoming.Name)
	if err != nil {
		return false, err
	}

	color := existing.GetColor()
	if incoming.Color != "" {
		color = incoming.Color
	}
	description := existing.GetDescription()
	if incoming.Description != "" {
		description = incoming.Description
	}

	if _, err := api.UpdateLabel(ctx, repo, incoming.Name, color, description); err != nil {
		return false, err
	}
	return true, nil
}

// renameResolver creates the incoming label under "<name>-restored-N"
// with the smallest N not yet taken.
type renameResolver struct{}

func (renameResolver) Name() string { return StrategyRename }

func (renameResolver) Resolve(ctx context.Context, api LabelAPI, repo config.Repo, incoming model.Label) (bool, error) {
	for n := 1; n <= renameAttempts; n++ {
		candidate := fmt.Sprintf("%s-restored-%d", incoming.Name, n)
		_, err := api.GetLabel(ctx, repo, candidate)
		if err == nil {
			continue
		}
		if !errors.IsNotFound(err) {
			return false, err
		}
		if _, err := api.CreateLabel(ctx, repo, candidate, incoming.Color, incoming.Description); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, errors.ErrConflict(fmt.Sprintf("no free rename slot for label %q", incoming.Name))
}
