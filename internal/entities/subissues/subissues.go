// Package subissues implements the sub-issue edge entity: the
// parent/child hierarchy between issues. Edges are saved ordered by
// position within each parent and restored in snapshot order, which
// reproduces the original ordering without explicit reprioritization.
package subissues

import (
	"context"

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
	convert.RegisterConverter(consts.EntitySubIssues, "convert_sub_issue", func(raw any) (any, error) {
		e, ok := raw.(github.SubIssueEdge)
		if !ok {
			return nil, errors.ErrValidation("convert_sub_issue: unexpected value")
		}
		return convertEdge(e), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_sub_issues",
		Entity:           consts.EntitySubIssues,
		Converter:        "convert_sub_issue",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "add_sub_issue", Entity: consts.EntitySubIssues})

	entity.Register(entity.Declaration{
		Name:                    consts.EntitySubIssues,
		EnvVar:                  "INCLUDE_SUB_ISSUES",
		ValueType:               entity.ValueBool,
		Default:                 true,
		Dependencies:            []string{consts.EntityIssues},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertEdge(e github.SubIssueEdge) model.SubIssue {
	return model.SubIssue{
		ParentNumber: e.ParentNumber,
		ChildNumber:  e.ChildNumber,
		Position:     e.Position,
	}
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.SubIssue]{
		Entity: consts.EntitySubIssues,
		Deps:   []string{consts.EntityIssues},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.SubIssue, error) {
			edges, err := svc.API.ListSubIssueEdges(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.SubIssue, 0, len(edges))
			for _, e := range edges {
				out = append(out, convertEdge(e))
			}
			return out, nil
		},
		Transform: func(ctx context.Context, items []model.SubIssue, rc *strategy.Context) ([]model.SubIssue, error) {
			// Both endpoints of an edge must be in the snapshot
			items = strategy.FilterByParent(consts.EntitySubIssues, consts.EntityIssues, items,
				func(e model.SubIssue) int { return e.ParentNumber }, rc)
			items = strategy.FilterByParent(consts.EntitySubIssues, consts.EntityIssues, items,
				func(e model.SubIssue) int { return e.ChildNumber }, rc)
			return items, nil
		},
		Write: func(items []model.SubIssue) error {
			return svc.Storage.WriteJSON(consts.SubIssuesFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.SubIssue]{
		Entity: consts.EntitySubIssues,
		Deps:   []string{consts.EntityIssues},
		Read: func(rc *strategy.Context) ([]model.SubIssue, error) {
			var out []model.SubIssue
			if err := svc.Storage.ReadJSON(consts.SubIssuesFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.SubIssue, rc *strategy.Context) (bool, error) {
			parent, okParent := rc.IssueNumbers[item.ParentNumber]
			child, okChild := rc.IssueNumbers[item.ChildNumber]
			if !okParent || !okChild {
				logger.Warn("Skipping sub-issue edge with an unrestored endpoint",
					zap.Int("parent", item.ParentNumber),
					zap.Int("child", item.ChildNumber),
				)
				return false, nil
			}

			if err := svc.API.AddSubIssue(ctx, svc.Config.Repo, parent, child); err != nil {
				return false, err
			}
			return true, nil
		},
	}, nil
}
