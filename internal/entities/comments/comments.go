// Package comments implements the issue comment entity. Comments are
// read per saved parent issue, so the save side never fetches comments
// of issues excluded by a selection.
package comments

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
	convert.RegisterConverter(consts.EntityComments, "convert_comment", func(raw any) (any, error) {
		n, ok := raw.(github.IssueCommentNode)
		if !ok {
			return nil, errors.ErrValidation("convert_comment: unexpected value")
		}
		return convertComment(n, 0), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_issue_comments",
		Entity:           consts.EntityComments,
		Converter:        "convert_comment",
		CacheKeyTemplate: "repo,issue",
	})
	convert.RegisterOperation(convert.Operation{Method: "create_issue_comment", Entity: consts.EntityComments})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityComments,
		EnvVar:                  "INCLUDE_ISSUE_COMMENTS",
		ValueType:               entity.ValueBool,
		Default:                 true,
		Dependencies:            []string{consts.EntityIssues},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertComment(n github.IssueCommentNode, issueNumber int) model.Comment {
	c := model.Comment{
		ID:          n.DatabaseID,
		IssueNumber: issueNumber,
		Body:        n.Body,
		HTMLURL:     n.URL,
		CreatedAt:   n.CreatedAt.Time,
		UpdatedAt:   n.UpdatedAt.Time,
	}
	if u, err := convert.Apply("convert_user", n.Author); err == nil {
		c.Author, _ = u.(*model.User)
	}
	return c
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.Comment]{
		Entity: consts.EntityComments,
		Deps:   []string{consts.EntityIssues},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.Comment, error) {
			var out []model.Comment
			for _, number := range rc.SavedParents[consts.EntityIssues].Sorted() {
				nodes, err := svc.API.ListIssueComments(ctx, svc.Config.Repo, number)
				if err != nil {
					return nil, err
				}
				for _, n := range nodes {
					out = append(out, convertComment(n, number))
				}
			}
			return out, nil
		},
		Write: func(items []model.Comment) error {
			return svc.Storage.WriteJSON(consts.CommentsFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.Comment]{
		Entity: consts.EntityComments,
		Deps:   []string{consts.EntityIssues},
		Read: func(rc *strategy.Context) ([]model.Comment, error) {
			var out []model.Comment
			if err := svc.Storage.ReadJSON(consts.CommentsFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.Comment, rc *strategy.Context) (bool, error) {
			target, ok := rc.IssueNumbers[item.IssueNumber]
			if !ok {
				logger.Warn("Skipping comment without a restored parent issue",
					zap.Int64("comment_id", item.ID),
					zap.Int("issue", item.IssueNumber),
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

func provenance(item model.Comment) *sanitize.Provenance {
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
