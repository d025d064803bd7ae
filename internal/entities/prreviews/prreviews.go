// Package prreviews implements the pull request review entity. Restore
// re-submits each review with the matching event and records the
// old-to-new review ID mapping consumed by review comments.
package prreviews

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

// reviewEvents maps a saved review state to the submission event
var reviewEvents = map[string]string{
	model.ReviewStateApproved:         "APPROVE",
	model.ReviewStateChangesRequested: "REQUEST_CHANGES",
	model.ReviewStateCommented:        "COMMENT",
}

func init() {
	convert.RegisterConverter(consts.EntityPRReviews, "convert_pr_review", func(raw any) (any, error) {
		n, ok := raw.(github.ReviewNode)
		if !ok {
			return nil, errors.ErrValidation("convert_pr_review: unexpected value")
		}
		return convertReview(n, 0), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_pull_request_reviews",
		Entity:           consts.EntityPRReviews,
		Converter:        "convert_pr_review",
		CacheKeyTemplate: "repo,pr",
	})
	convert.RegisterOperation(convert.Operation{Method: "create_pull_request_review", Entity: consts.EntityPRReviews})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityPRReviews,
		EnvVar:                  "INCLUDE_PR_REVIEWS",
		ValueType:               entity.ValueBool,
		Default:                 true,
		Dependencies:            []string{consts.EntityPullRequests},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertReview(n github.ReviewNode, prNumber int) model.PRReview {
	r := model.PRReview{
		ID:       n.DatabaseID,
		PRNumber: prNumber,
		State:    n.State,
		Body:     n.Body,
		HTMLURL:  n.URL,
	}
	if n.SubmittedAt != nil {
		r.SubmittedAt = n.SubmittedAt.Time
	}
	if u, err := convert.Apply("convert_user", n.Author); err == nil {
		r.Author, _ = u.(*model.User)
	}
	return r
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.PRReview]{
		Entity: consts.EntityPRReviews,
		Deps:   []string{consts.EntityPullRequests},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.PRReview, error) {
			var out []model.PRReview
			for _, number := range rc.SavedParents[consts.EntityPullRequests].Sorted() {
				nodes, err := svc.API.ListReviews(ctx, svc.Config.Repo, number)
				if err != nil {
					return nil, err
				}
				for _, n := range nodes {
					out = append(out, convertReview(n, number))
				}
			}
			return out, nil
		},
		Transform: func(ctx context.Context, items []model.PRReview, rc *strategy.Context) ([]model.PRReview, error) {
			// Pending and dismissed reviews cannot be re-submitted
			out := make([]model.PRReview, 0, len(items))
			for _, r := range items {
				if _, ok := reviewEvents[r.State]; ok {
					out = append(out, r)
				}
			}
			return out, nil
		},
		Write: func(items []model.PRReview) error {
			return svc.Storage.WriteJSON(consts.PRReviewsFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.PRReview]{
		Entity: consts.EntityPRReviews,
		Deps:   []string{consts.EntityPullRequests},
		Read: func(rc *strategy.Context) ([]model.PRReview, error) {
			var out []model.PRReview
			if err := svc.Storage.ReadJSON(consts.PRReviewsFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.PRReview, rc *strategy.Context) (bool, error) {
			target, ok := rc.PRNumbers[item.PRNumber]
			if !ok {
				logger.Warn("Skipping review without a restored parent pull request",
					zap.Int64("review_id", item.ID),
					zap.Int("pr", item.PRNumber),
				)
				return false, nil
			}

			event, ok := reviewEvents[item.State]
			if !ok {
				logger.Warn("Skipping review with an unsupported state",
					zap.Int64("review_id", item.ID),
					zap.String("state", item.State),
				)
				return false, nil
			}

			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			created, err := svc.API.CreateReview(ctx, svc.Config.Repo, target, event, body)
			if err != nil {
				if errors.IsFatal(err) {
					return false, err
				}
				logger.Warn("Skipping review that could not be re-submitted",
					zap.Int64("review_id", item.ID),
					zap.Int("pr", item.PRNumber),
					zap.Error(err),
				)
				return false, nil
			}

			rc.ReviewIDs[item.ID] = created.GetID()
			return true, nil
		},
	}, nil
}

func provenance(item model.PRReview) *sanitize.Provenance {
	p := &sanitize.Provenance{
		CreatedAt: item.SubmittedAt,
		URL:       item.HTMLURL,
	}
	if item.Author != nil {
		p.AuthorLogin = item.Author.Login
	}
	return p
}
