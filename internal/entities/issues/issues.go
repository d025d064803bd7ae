// Package issues implements the issue entity. Issues support selective
// enablement by number, carry soft milestone references that are
// remapped on restore, and serve as the parent for comments and
// sub-issue edges.
package issues

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/sanitize"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

func init() {
	convert.RegisterConverter(consts.EntityIssues, "convert_issue", func(raw any) (any, error) {
		n, ok := raw.(github.IssueNode)
		if !ok {
			return nil, errors.ErrValidation("convert_issue: unexpected value")
		}
		return convertIssue(n), nil
	})

	// convert_user is shared: comment, review, and release converters
	// resolve it by name through the registry.
	convert.RegisterConverter(consts.EntityIssues, "convert_user", func(raw any) (any, error) {
		a, ok := raw.(*github.ActorNode)
		if !ok {
			return nil, errors.ErrValidation("convert_user: unexpected value")
		}
		if a == nil {
			return (*model.User)(nil), nil
		}
		return &model.User{Login: a.Login, HTMLURL: a.URL}, nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_issues",
		Entity:           consts.EntityIssues,
		Converter:        "convert_issue",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "get_issue", Entity: consts.EntityIssues})
	convert.RegisterOperation(convert.Operation{Method: "create_issue", Entity: consts.EntityIssues})
	convert.RegisterOperation(convert.Operation{Method: "close_issue", Entity: consts.EntityIssues})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityIssues,
		EnvVar:                  "INCLUDE_ISSUES",
		ValueType:               entity.ValueSelection,
		Default:                 true,
		Dependencies:            []string{consts.EntityLabels, consts.EntityMilestones},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertIssue(n github.IssueNode) model.Issue {
	issue := model.Issue{
		ID:          n.DatabaseID,
		Number:      n.Number,
		Title:       n.Title,
		Body:        n.Body,
		State:       strings.ToLower(n.State),
		StateReason: strings.ToLower(n.StateReason),
		HTMLURL:     n.URL,
		CreatedAt:   n.CreatedAt.Time,
		UpdatedAt:   n.UpdatedAt.Time,
	}
	if n.ClosedAt != nil {
		t := n.ClosedAt.Time
		issue.ClosedAt = &t
	}
	if n.Author != nil {
		issue.Author = &model.User{Login: n.Author.Login, HTMLURL: n.Author.URL}
	}
	if n.Milestone != nil {
		num := n.Milestone.Number
		issue.Milestone = &num
	}
	for _, l := range n.Labels.Nodes {
		issue.Labels = append(issue.Labels, l.Name)
	}
	for _, a := range n.Assignees.Nodes {
		issue.Assignees = append(issue.Assignees, a.Login)
	}
	return issue
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.Issue]{
		Entity: consts.EntityIssues,
		Deps:   []string{consts.EntityLabels, consts.EntityMilestones},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.Issue, error) {
			nodes, err := svc.API.ListIssues(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.Issue, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, convertIssue(n))
			}
			return out, nil
		},
		Transform: func(ctx context.Context, items []model.Issue, rc *strategy.Context) ([]model.Issue, error) {
			return strategy.FilterSelected(consts.EntityIssues, items, func(i model.Issue) int { return i.Number }, rc), nil
		},
		Write: func(items []model.Issue) error {
			return svc.Storage.WriteJSON(consts.IssuesFile, items)
		},
		AfterWrite: func(items []model.Issue, rc *strategy.Context) {
			for _, i := range items {
				rc.RecordParent(consts.EntityIssues, i.Number)
			}
		},
	}, nil
}

// remapMilestone translates a snapshot milestone number to the target
// repository. A reference without a mapping is dropped, not fatal.
func remapMilestone(entityName string, number int, old *int, rc *strategy.Context) *int {
	if old == nil {
		return nil
	}
	mapped, ok := rc.MilestoneNumbers[*old]
	if !ok {
		logger.Warn("Dropping unmapped milestone reference",
			zap.String("entity", entityName),
			zap.Int("number", number),
			zap.Int("milestone", *old),
		)
		return nil
	}
	return &mapped
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.Issue]{
		Entity: consts.EntityIssues,
		Deps:   []string{consts.EntityLabels, consts.EntityMilestones},
		Read: func(rc *strategy.Context) ([]model.Issue, error) {
			var out []model.Issue
			if err := svc.Storage.ReadJSON(consts.IssuesFile, &out); err != nil {
				return nil, err
			}
			return strategy.FilterSelected(consts.EntityIssues, out, func(i model.Issue) int { return i.Number }, rc), nil
		},
		RestoreOne: func(ctx context.Context, item model.Issue, rc *strategy.Context) (bool, error) {
			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			created, err := svc.API.CreateIssue(ctx, svc.Config.Repo, github.IssueCreate{
				Title:     item.Title,
				Body:      body,
				Labels:    item.Labels,
				Milestone: remapMilestone(consts.EntityIssues, item.Number, item.Milestone, rc),
			})
			if err != nil {
				return false, err
			}

			rc.IssueNumbers[item.Number] = created.GetNumber()
			rc.RecordParent(consts.EntityIssues, item.Number)

			if item.State == "closed" {
				if err := svc.API.CloseIssue(ctx, svc.Config.Repo, created.GetNumber(), item.StateReason); err != nil {
					return true, err
				}
			}
			return true, nil
		},
	}, nil
}

func provenance(item model.Issue) *sanitize.Provenance {
	p := &sanitize.Provenance{
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		URL:       item.HTMLURL,
	}
	if item.Author != nil {
		p.AuthorLogin = item.Author.Login
	}
	return p
}
