// Package pullrequests implements the pull request entity. Pull
// requests support selective enablement by number. Restore recreates
// each PR from its head and base branches, then decorates it with
// labels and the remapped milestone through the shared issue endpoint;
// originally closed or merged PRs are closed afterwards. A PR whose
// branches no longer exist is skipped, not fatal.
package pullrequests

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
	convert.RegisterConverter(consts.EntityPullRequests, "convert_pull_request", func(raw any) (any, error) {
		n, ok := raw.(github.PullRequestNode)
		if !ok {
			return nil, errors.ErrValidation("convert_pull_request: unexpected value")
		}
		return convertPullRequest(n), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_pull_requests",
		Entity:           consts.EntityPullRequests,
		Converter:        "convert_pull_request",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "get_pull_request", Entity: consts.EntityPullRequests})
	convert.RegisterOperation(convert.Operation{Method: "create_pull_request", Entity: consts.EntityPullRequests})
	convert.RegisterOperation(convert.Operation{Method: "close_pull_request", Entity: consts.EntityPullRequests})
	convert.RegisterOperation(convert.Operation{Method: "update_issue_meta", Entity: consts.EntityPullRequests})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityPullRequests,
		EnvVar:                  "INCLUDE_PULL_REQUESTS",
		ValueType:               entity.ValueSelection,
		Default:                 true,
		Dependencies:            []string{consts.EntityLabels, consts.EntityMilestones},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertPullRequest(n github.PullRequestNode) model.PullRequest {
	pr := model.PullRequest{
		ID:        n.DatabaseID,
		Number:    n.Number,
		Title:     n.Title,
		Body:      n.Body,
		State:     strings.ToLower(n.State),
		HeadRef:   n.HeadRefName,
		BaseRef:   n.BaseRefName,
		HTMLURL:   n.URL,
		CreatedAt: n.CreatedAt.Time,
		UpdatedAt: n.UpdatedAt.Time,
	}
	if n.MergedAt != nil {
		t := n.MergedAt.Time
		pr.MergedAt = &t
	}
	if n.MergeCommit != nil {
		pr.MergeSHA = n.MergeCommit.OID
	}
	if n.Author != nil {
		pr.Author = &model.User{Login: n.Author.Login, HTMLURL: n.Author.URL}
	}
	if n.Milestone != nil {
		num := n.Milestone.Number
		pr.Milestone = &num
	}
	for _, l := range n.Labels.Nodes {
		pr.Labels = append(pr.Labels, l.Name)
	}
	return pr
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.PullRequest]{
		Entity: consts.EntityPullRequests,
		Deps:   []string{consts.EntityLabels, consts.EntityMilestones},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.PullRequest, error) {
			nodes, err := svc.API.ListPullRequests(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.PullRequest, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, convertPullRequest(n))
			}
			return out, nil
		},
		Transform: func(ctx context.Context, items []model.PullRequest, rc *strategy.Context) ([]model.PullRequest, error) {
			return strategy.FilterSelected(consts.EntityPullRequests, items, func(p model.PullRequest) int { return p.Number }, rc), nil
		},
		Write: func(items []model.PullRequest) error {
			return svc.Storage.WriteJSON(consts.PullRequestsFile, items)
		},
		AfterWrite: func(items []model.PullRequest, rc *strategy.Context) {
			for _, p := range items {
				rc.RecordParent(consts.EntityPullRequests, p.Number)
			}
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.PullRequest]{
		Entity: consts.EntityPullRequests,
		Deps:   []string{consts.EntityLabels, consts.EntityMilestones},
		Read: func(rc *strategy.Context) ([]model.PullRequest, error) {
			var out []model.PullRequest
			if err := svc.Storage.ReadJSON(consts.PullRequestsFile, &out); err != nil {
				return nil, err
			}
			return strategy.FilterSelected(consts.EntityPullRequests, out, func(p model.PullRequest) int { return p.Number }, rc), nil
		},
		RestoreOne: func(ctx context.Context, item model.PullRequest, rc *strategy.Context) (bool, error) {
			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			created, err := svc.API.CreatePullRequest(ctx, svc.Config.Repo, item.Title, body, item.HeadRef, item.BaseRef)
			if err != nil {
				if errors.IsFatal(err) {
					return false, err
				}
				logger.Warn("Skipping pull request that could not be recreated",
					zap.Int("pr", item.Number),
					zap.String("head", item.HeadRef),
					zap.String("base", item.BaseRef),
					zap.Error(err),
				)
				return false, nil
			}

			rc.PRNumbers[item.Number] = created.GetNumber()
			rc.RecordParent(consts.EntityPullRequests, item.Number)

			var target *int
			if item.Milestone != nil {
				if mapped, ok := rc.MilestoneNumbers[*item.Milestone]; ok {
					target = &mapped
				} else {
					logger.Warn("Dropping unmapped milestone reference",
						zap.String("entity", consts.EntityPullRequests),
						zap.Int("number", item.Number),
						zap.Int("milestone", *item.Milestone),
					)
				}
			}
			if len(item.Labels) > 0 || target != nil {
				if err := svc.API.EditIssueMeta(ctx, svc.Config.Repo, created.GetNumber(), item.Labels, target); err != nil {
					return true, err
				}
			}

			if item.State == "closed" || item.State == "merged" {
				if err := svc.API.ClosePullRequest(ctx, svc.Config.Repo, created.GetNumber()); err != nil {
					return true, err
				}
			}
			return true, nil
		},
	}, nil
}

func provenance(item model.PullRequest) *sanitize.Provenance {
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
