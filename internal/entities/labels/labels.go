// Package labels implements the label entity: the full label set of the
// repository, saved as a JSON array and restored with a configurable
// conflict policy.
package labels

import (
	"context"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/integrity"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
)

func init() {
	convert.RegisterConverter(consts.EntityLabels, "convert_label", func(raw any) (any, error) {
		n, ok := raw.(github.LabelNode)
		if !ok {
			return nil, errors.ErrValidation("convert_label: unexpected value")
		}
		return convertLabel(n), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_labels",
		Entity:           consts.EntityLabels,
		Converter:        "convert_label",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "get_label", Entity: consts.EntityLabels})
	convert.RegisterOperation(convert.Operation{Method: "create_label", Entity: consts.EntityLabels})
	convert.RegisterOperation(convert.Operation{Method: "update_label", Entity: consts.EntityLabels})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityLabels,
		EnvVar:                  "INCLUDE_LABELS",
		ValueType:               entity.ValueBool,
		Default:                 true,
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertLabel(n github.LabelNode) model.Label {
	return model.Label{
		Name:        n.Name,
		Color:       n.Color,
		Description: n.Description,
	}
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.Label]{
		Entity: consts.EntityLabels,
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.Label, error) {
			nodes, err := svc.API.ListLabels(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.Label, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, convertLabel(n))
			}
			return out, nil
		},
		Write: func(items []model.Label) error {
			return svc.Storage.WriteJSON(consts.LabelsFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	resolver, err := integrity.ResolverFor(svc.Config.LabelConflictStrategy)
	if err != nil {
		return nil, err
	}

	return &strategy.RestorePipeline[model.Label]{
		Entity: consts.EntityLabels,
		Read: func(rc *strategy.Context) ([]model.Label, error) {
			var out []model.Label
			if err := svc.Storage.ReadJSON(consts.LabelsFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.Label, rc *strategy.Context) (bool, error) {
			_, err := svc.API.CreateLabel(ctx, svc.Config.Repo, item.Name, item.Color, item.Description)
			if err == nil {
				return true, nil
			}
			if !errors.IsConflict(err) {
				return false, err
			}
			return resolver.Resolve(ctx, svc.API, svc.Config.Repo, item)
		},
	}, nil
}
