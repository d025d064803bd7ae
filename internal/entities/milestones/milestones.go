// Package milestones implements the milestone entity. Restored
// milestones receive fresh numbers, so the restore path records an
// old-to-new number map that issues and pull requests consult later.
package milestones

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

func init() {
	convert.RegisterConverter(consts.EntityMilestones, "convert_milestone", func(raw any) (any, error) {
		n, ok := raw.(github.MilestoneNode)
		if !ok {
			return nil, errors.ErrValidation("convert_milestone: unexpected value")
		}
		return convertMilestone(n), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_milestones",
		Entity:           consts.EntityMilestones,
		Converter:        "convert_milestone",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "create_milestone", Entity: consts.EntityMilestones})
	convert.RegisterOperation(convert.Operation{Method: "close_milestone", Entity: consts.EntityMilestones})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityMilestones,
		EnvVar:                  "INCLUDE_MILESTONES",
		ValueType:               entity.ValueBool,
		Default:                 true,
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertMilestone(n github.MilestoneNode) model.Milestone {
	m := model.Milestone{
		Number: n.Number,
		Title:  n.Title,
		State:  strings.ToLower(n.State),
		Body:   n.Description,
	}
	if n.DueOn != nil {
		t := n.DueOn.Time
		m.DueOn = &t
	}
	if n.Creator != nil {
		m.Creator = &model.User{Login: n.Creator.Login, HTMLURL: n.Creator.URL}
	}
	return m
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.Milestone]{
		Entity: consts.EntityMilestones,
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.Milestone, error) {
			nodes, err := svc.API.ListMilestones(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.Milestone, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, convertMilestone(n))
			}
			return out, nil
		},
		Write: func(items []model.Milestone) error {
			return svc.Storage.WriteJSON(consts.MilestonesFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.Milestone]{
		Entity: consts.EntityMilestones,
		Read: func(rc *strategy.Context) ([]model.Milestone, error) {
			var out []model.Milestone
			if err := svc.Storage.ReadJSON(consts.MilestonesFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.Milestone, rc *strategy.Context) (bool, error) {
			created, err := svc.API.CreateMilestone(ctx, svc.Config.Repo, item.Title, item.Body, item.DueOn)
			if err != nil {
				return false, err
			}

			rc.MilestoneNumbers[item.Number] = created.GetNumber()
			logger.Debug("Milestone number remapped",
				zap.Int("old", item.Number),
				zap.Int("new", created.GetNumber()),
			)

			if item.State == "closed" {
				if err := svc.API.CloseMilestone(ctx, svc.Config.Repo, created.GetNumber()); err != nil {
					return true, err
				}
			}
			return true, nil
		},
	}, nil
}
