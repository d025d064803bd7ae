// Package prreviewcomments implements the diff-anchored review comment
// entity. Each comment is linked to its parent review; restore anchors
// new comments to the recreated PR's head commit and threads replies
// through the comment ID mapping built during the run. A comment whose
// diff position no longer exists is skipped, not fatal.
package prreviewcomments

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
	convert.RegisterConverter(consts.EntityPRReviewComments, "convert_pr_review_comment", func(raw any) (any, error) {
		e, ok := raw.(github.ReviewCommentEdge)
		if !ok {
			return nil, errors.ErrValidation("convert_pr_review_comment: unexpected value")
		}
		return convertReviewComment(e, 0), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_pull_request_review_comments",
		Entity:           consts.EntityPRReviewComments,
		Converter:        "convert_pr_review_comment",
		CacheKeyTemplate: "repo,pr",
	})
	convert.RegisterOperation(convert.Operation{Method: "create_pull_request_review_comment", Entity: consts.EntityPRReviewComments})
	convert.RegisterOperation(convert.Operation{Method: "create_pull_request_review_comment_reply", Entity: consts.EntityPRReviewComments})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityPRReviewComments,
		EnvVar:                  "INCLUDE_PR_REVIEW_COMMENTS",
		ValueType:               entity.ValueBool,
		Default:                 true,
		Dependencies:            []string{consts.EntityPRReviews},
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertReviewComment(e github.ReviewCommentEdge, prNumber int) model.PRReviewComment {
	n := e.Comment
	c := model.PRReviewComment{
		ID:        n.DatabaseID,
		ReviewID:  e.ReviewID,
		PRNumber:  prNumber,
		Body:      n.Body,
		Path:      n.Path,
		DiffHunk:  n.DiffHunk,
		HTMLURL:   n.URL,
		CreatedAt: n.CreatedAt.Time,
	}
	if n.Line != nil {
		c.Line = *n.Line
	}
	if n.ReplyTo != nil {
		c.InReplyToID = n.ReplyTo.DatabaseID
	}
	if u, err := convert.Apply("convert_user", n.Author); err == nil {
		c.Author, _ = u.(*model.User)
	}
	return c
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.PRReviewComment]{
		Entity: consts.EntityPRReviewComments,
		Deps:   []string{consts.EntityPRReviews},
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.PRReviewComment, error) {
			var out []model.PRReviewComment
			for _, number := range rc.SavedParents[consts.EntityPullRequests].Sorted() {
				edges, err := svc.API.ListReviewComments(ctx, svc.Config.Repo, number)
				if err != nil {
					return nil, err
				}
				for _, e := range edges {
					out = append(out, convertReviewComment(e, number))
				}
			}
			return out, nil
		},
		Write: func(items []model.PRReviewComment) error {
			return svc.Storage.WriteJSON(consts.PRReviewCommentsFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	// Run-local mappings: old comment ID to new comment ID for reply
	// threading, and PR number to head SHA for diff anchoring.
	commentIDs := make(map[int64]int64)
	headSHAs := make(map[int]string)

	headSHA := func(ctx context.Context, prNumber int) (string, error) {
		if sha, ok := headSHAs[prNumber]; ok {
			return sha, nil
		}
		pr, err := svc.API.GetPullRequest(ctx, svc.Config.Repo, prNumber)
		if err != nil {
			return "", err
		}
		sha := pr.GetHead().GetSHA()
		headSHAs[prNumber] = sha
		return sha, nil
	}

	return &strategy.RestorePipeline[model.PRReviewComment]{
		Entity: consts.EntityPRReviewComments,
		Deps:   []string{consts.EntityPRReviews},
		Read: func(rc *strategy.Context) ([]model.PRReviewComment, error) {
			var out []model.PRReviewComment
			if err := svc.Storage.ReadJSON(consts.PRReviewCommentsFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.PRReviewComment, rc *strategy.Context) (bool, error) {
			target, ok := rc.PRNumbers[item.PRNumber]
			if !ok {
				logger.Warn("Skipping review comment without a restored parent pull request",
					zap.Int64("comment_id", item.ID),
					zap.Int("pr", item.PRNumber),
				)
				return false, nil
			}
			if _, ok := rc.ReviewIDs[item.ReviewID]; !ok {
				logger.Warn("Skipping review comment without a restored parent review",
					zap.Int64("comment_id", item.ID),
					zap.Int64("review_id", item.ReviewID),
				)
				return false, nil
			}

			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			if item.InReplyToID != 0 {
				if parentID, ok := commentIDs[item.InReplyToID]; ok {
					created, err := svc.API.CreateReviewCommentReply(ctx, svc.Config.Repo, target, body, parentID)
					if err == nil {
						commentIDs[item.ID] = created.GetID()
						return true, nil
					}
					if errors.IsFatal(err) {
						return false, err
					}
					logger.Warn("Reply threading failed, posting as a top-level review comment",
						zap.Int64("comment_id", item.ID),
						zap.Error(err),
					)
				}
			}

			sha, err := headSHA(ctx, target)
			if err != nil {
				return false, err
			}
			created, err := svc.API.CreateReviewComment(ctx, svc.Config.Repo, target, github.ReviewCommentCreate{
				Body:     body,
				Path:     item.Path,
				Line:     item.Line,
				CommitID: sha,
			})
			if err != nil {
				if errors.IsFatal(err) {
					return false, err
				}
				logger.Warn("Skipping review comment that could not be anchored",
					zap.Int64("comment_id", item.ID),
					zap.String("path", item.Path),
					zap.Int("line", item.Line),
					zap.Error(err),
				)
				return false, nil
			}

			commentIDs[item.ID] = created.GetID()
			return true, nil
		},
	}, nil
}

func provenance(item model.PRReviewComment) *sanitize.Provenance {
	p := &sanitize.Provenance{
		CreatedAt: item.CreatedAt,
		URL:       item.HTMLURL,
	}
	if item.Author != nil {
		p.AuthorLogin = item.Author.Login
	}
	return p
}
