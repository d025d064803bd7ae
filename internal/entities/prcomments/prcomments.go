// Package prcomments implements the pull request conversation comment
// entity. PRs share the issue comment endpoint on the write side, so
// restore posts through create_issue_comment against the remapped PR
// number.
package prcomments

import (
	"context"

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
	convert.RegisterConverter(consts.EntityPRComments, "convert_pr_comment", func(raw any) (any, error) {
		n, ok := raw.(github.IssueCommentNode)
		if !ok {
			return nil, errors.ErrValidation("convert_pr_comment: unexpected value")
		}
		return convertPRComment(n, 0), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_pull_request_comments",
		Entity:           consts.EntityPRComments,
		Converter:        "convert_pr_comment",
		CacheKeyTemplate: "repo,pr",
	})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityPRComments,
		EnvVar:                  "INCLUDE_PR_COMMENTS",
		ValueType:               entity.ValueBool,
		Default:                 true,
		Dependencies:            []string{consts.EntityPullRequests},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertPRComment(n github.IssueCommentNode, prNumber int) model.PRComment {
	c := model.PRComment{
		ID:        n.DatabaseID,
		PRNumber:  prNumber,
		Body:      n.Body,
		HTMLURL:   n.URL,
		CreatedAt: n.CreatedAt.Time,
		UpdatedAt: n.UpdatedAt.Time,
	}
	if u, err := convert.Apply("convert_user", n.Author); err == nil {
		c.Author, _ = u.(*model.User)
	}
	return c
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.PRComment]{
		Entity: consts.EntityPRComments,
		Deps:   []string{consts.EntityPullRequests},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.PRComment, error) {
			var out []model.PRComment
			for _, number := range rc.SavedParents[consts.EntityPullRequests].Sorted() {
				nodes, err := svc.API.ListPRComments(ctx, svc.Config.Repo, number)
				if err != nil {
					return nil, err
				}
				for _, n := range nodes {
					out = append(out, convertPRComment(n, number))
				}
			}
			return out, nil
		},
		Write: func(items []model.PRComment) error {
			return svc.Storage.WriteJSON(consts.PRCommentsFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.PRComment]{
		Entity: consts.EntityPRComments,
		Deps:   []string{consts.EntityPullRequests},
		Read: func(rc *strategy.Context) ([]model.PRComment, error) {
			var out []model.PRComment
			if err := svc.Storage.ReadJSON(consts.PRCommentsFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.PRComment, rc *strategy.Context) (bool, error) {
			target, ok := rc.PRNumbers[item.PRNumber]
			if !ok {
				logger.Warn("Skipping comment without a restored parent pull request",
					zap.Int64("comment_id", item.ID),
					zap.Int("pr", item.PRNumber),
				)
				return false, nil
			}

			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			if _, err := svc.API.CreateIssueComment(ctx, svc.Config.Repo, target, body); err != nil {
				return false, err
			}
			return true, nil
		},
	}, nil
}

func provenance(item model.PRComment) *sanitize.Provenance {
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
