package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gh "github.com/google/go-github/v57/github"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/errors"
)

// IssueCreate is the write request for a new issue
type IssueCreate struct {
	Title     string
	Body      string
	Labels    []string
	Milestone *int
	Assignees []string
}

// ReviewCommentCreate is the write request for a new diff-anchored
// review comment.
type ReviewCommentCreate struct {
	Body     string
	Path     string
	Line     int
	CommitID string
}

// CreateLabel creates a label on the repository
func (c *Client) CreateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error) {
	var out *gh.Label
	err := c.restCall(ctx, "create_label", func() (*gh.Response, error) {
		label := &gh.Label{Name: &name, Color: &color}
		if description != "" {
			label.Description = &description
		}
		created, resp, err := c.rest.Issues.CreateLabel(ctx, repo.Owner, repo.Name, label)
		out = created
		return resp, err
	})
	return out, err
}

// GetLabel looks a label up by name. A missing label is a NotFound error.
func (c *Client) GetLabel(ctx context.Context, repo config.Repo, name string) (*gh.Label, error) {
	var out *gh.Label
	err := c.restCall(ctx, "get_label", func() (*gh.Response, error) {
		label, resp, err := c.rest.Issues.GetLabel(ctx, repo.Owner, repo.Name, name)
		out = label
		return resp, err
	})
	return out, err
}

// UpdateLabel edits an existing label's color and description
func (c *Client) UpdateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error) {
	var out *gh.Label
	err := c.restCall(ctx, "update_label", func() (*gh.Response, error) {
		label := &gh.Label{Name: &name, Color: &color, Description: &description}
		updated, resp, err := c.rest.Issues.EditLabel(ctx, repo.Owner, repo.Name, name, label)
		out = updated
		return resp, err
	})
	return out, err
}

// CreateMilestone creates a milestone and returns it with its assigned number
func (c *Client) CreateMilestone(ctx context.Context, repo config.Repo, title, description string, dueOn *time.Time) (*gh.Milestone, error) {
	var out *gh.Milestone
	err := c.restCall(ctx, "create_milestone", func() (*gh.Response, error) {
		m := &gh.Milestone{Title: &title}
		if description != "" {
			m.Description = &description
		}
		if dueOn != nil {
			m.DueOn = &gh.Timestamp{Time: *dueOn}
		}
		created, resp, err := c.rest.Issues.CreateMilestone(ctx, repo.Owner, repo.Name, m)
		out = created
		return resp, err
	})
	return out, err
}

// CloseMilestone sets a milestone's state to closed
func (c *Client) CloseMilestone(ctx context.Context, repo config.Repo, number int) error {
	state := "closed"
	return c.restCall(ctx, "close_milestone", func() (*gh.Response, error) {
		_, resp, err := c.rest.Issues.EditMilestone(ctx, repo.Owner, repo.Name, number, &gh.Milestone{State: &state})
		return resp, err
	})
}

// CreateIssue creates an issue with labels, milestone, and assignees
// attached at creation time.
func (c *Client) CreateIssue(ctx context.Context, repo config.Repo, req IssueCreate) (*gh.Issue, error) {
	var out *gh.Issue
	err := c.restCall(ctx, "create_issue", func() (*gh.Response, error) {
		ir := &gh.IssueRequest{Title: &req.Title}
		if req.Body != "" {
			ir.Body = &req.Body
		}
		if len(req.Labels) > 0 {
			ir.Labels = &req.Labels
		}
		if req.Milestone != nil {
			ir.Milestone = req.Milestone
		}
		if len(req.Assignees) > 0 {
			ir.Assignees = &req.Assignees
		}
		created, resp, err := c.rest.Issues.Create(ctx, repo.Owner, repo.Name, ir)
		out = created
		return resp, err
	})
	return out, err
}

// CloseIssue closes an issue, carrying the original state reason when present
func (c *Client) CloseIssue(ctx context.Context, repo config.Repo, number int, stateReason string) error {
	state := "closed"
	return c.restCall(ctx, "close_issue", func() (*gh.Response, error) {
		ir := &gh.IssueRequest{State: &state}
		if stateReason != "" {
			ir.StateReason = &stateReason
		}
		_, resp, err := c.rest.Issues.Edit(ctx, repo.Owner, repo.Name, number, ir)
		return resp, err
	})
}

// GetIssue fetches an issue by number. Deliberately uncached: the
// restore path must observe its own just-created state.
func (c *Client) GetIssue(ctx context.Context, repo config.Repo, number int) (*gh.Issue, error) {
	var out *gh.Issue
	err := c.restCall(ctx, "get_issue", func() (*gh.Response, error) {
		issue, resp, err := c.rest.Issues.Get(ctx, repo.Owner, repo.Name, number)
		out = issue
		return resp, err
	})
	return out, err
}

// CreateIssueComment posts a comment on an issue or pull request
func (c *Client) CreateIssueComment(ctx context.Context, repo config.Repo, number int, body string) (*gh.IssueComment, error) {
	var out *gh.IssueComment
	err := c.restCall(ctx, "create_issue_comment", func() (*gh.Response, error) {
		created, resp, err := c.rest.Issues.CreateComment(ctx, repo.Owner, repo.Name, number, &gh.IssueComment{Body: &body})
		out = created
		return resp, err
	})
	return out, err
}

// AddSubIssue attaches child as a sub-issue of parent. The endpoint has
// no GraphQL or go-github coverage, so the request is built directly;
// it addresses the child by database ID, which is fetched fresh.
func (c *Client) AddSubIssue(ctx context.Context, repo config.Repo, parentNumber, childNumber int) error {
	child, err := c.GetIssue(ctx, repo, childNumber)
	if err != nil {
		return err
	}
	if child.ID == nil {
		return errors.ErrValidation(fmt.Sprintf("issue #%d has no database ID", childNumber))
	}

	return c.restCall(ctx, "add_sub_issue", func() (*gh.Response, error) {
		u := fmt.Sprintf("repos/%v/%v/issues/%d/sub_issues", repo.Owner, repo.Name, parentNumber)
		req, err := c.rest.NewRequest(http.MethodPost, u, map[string]any{"sub_issue_id": *child.ID})
		if err != nil {
			return nil, err
		}
		return c.rest.Do(ctx, req, nil)
	})
}

// CreatePullRequest opens a pull request from head into base
func (c *Client) CreatePullRequest(ctx context.Context, repo config.Repo, title, body, head, base string) (*gh.PullRequest, error) {
	var out *gh.PullRequest
	err := c.restCall(ctx, "create_pull_request", func() (*gh.Response, error) {
		npr := &gh.NewPullRequest{Title: &title, Head: &head, Base: &base}
		if body != "" {
			npr.Body = &body
		}
		created, resp, err := c.rest.PullRequests.Create(ctx, repo.Owner, repo.Name, npr)
		out = created
		return resp, err
	})
	return out, err
}

// GetPullRequest fetches a pull request by number. Uncached for the
// same reason as GetIssue.
func (c *Client) GetPullRequest(ctx context.Context, repo config.Repo, number int) (*gh.PullRequest, error) {
	var out *gh.PullRequest
	err := c.restCall(ctx, "get_pull_request", func() (*gh.Response, error) {
		pr, resp, err := c.rest.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
		out = pr
		return resp, err
	})
	return out, err
}

// ClosePullRequest closes a pull request without merging
func (c *Client) ClosePullRequest(ctx context.Context, repo config.Repo, number int) error {
	state := "closed"
	return c.restCall(ctx, "close_pull_request", func() (*gh.Response, error) {
		_, resp, err := c.rest.PullRequests.Edit(ctx, repo.Owner, repo.Name, number, &gh.PullRequest{State: &state})
		return resp, err
	})
}

// EditIssueMeta attaches labels and a milestone to an existing issue or
// pull request (pull requests share the issue endpoint for both).
func (c *Client) EditIssueMeta(ctx context.Context, repo config.Repo, number int, labels []string, milestone *int) error {
	return c.restCall(ctx, "update_issue_meta", func() (*gh.Response, error) {
		ir := &gh.IssueRequest{}
		if len(labels) > 0 {
			ir.Labels = &labels
		}
		if milestone != nil {
			ir.Milestone = milestone
		}
		_, resp, err := c.rest.Issues.Edit(ctx, repo.Owner, repo.Name, number, ir)
		return resp, err
	})
}

// CreateReview submits a pull request review. event is one of APPROVE,
// REQUEST_CHANGES, COMMENT.
func (c *Client) CreateReview(ctx context.Context, repo config.Repo, prNumber int, event, body string) (*gh.PullRequestReview, error) {
	var out *gh.PullRequestReview
	err := c.restCall(ctx, "create_pull_request_review", func() (*gh.Response, error) {
		req := &gh.PullRequestReviewRequest{Event: &event}
		if body != "" {
			req.Body = &body
		}
		created, resp, err := c.rest.PullRequests.CreateReview(ctx, repo.Owner, repo.Name, prNumber, req)
		out = created
		return resp, err
	})
	return out, err
}

// CreateReviewComment posts a diff-anchored comment on a pull request
func (c *Client) CreateReviewComment(ctx context.Context, repo config.Repo, prNumber int, req ReviewCommentCreate) (*gh.PullRequestComment, error) {
	var out *gh.PullRequestComment
	err := c.restCall(ctx, "create_pull_request_review_comment", func() (*gh.Response, error) {
		comment := &gh.PullRequestComment{
			Body:     &req.Body,
			Path:     &req.Path,
			CommitID: &req.CommitID,
		}
		if req.Line > 0 {
			comment.Line = &req.Line
		}
		created, resp, err := c.rest.PullRequests.CreateComment(ctx, repo.Owner, repo.Name, prNumber, comment)
		out = created
		return resp, err
	})
	return out, err
}

// CreateReviewCommentReply posts a reply to an existing review comment
func (c *Client) CreateReviewCommentReply(ctx context.Context, repo config.Repo, prNumber int, body string, inReplyTo int64) (*gh.PullRequestComment, error) {
	var out *gh.PullRequestComment
	err := c.restCall(ctx, "create_pull_request_review_comment_reply", func() (*gh.Response, error) {
		created, resp, err := c.rest.PullRequests.CreateCommentInReplyTo(ctx, repo.Owner, repo.Name, prNumber, body, inReplyTo)
		out = created
		return resp, err
	})
	return out, err
}

// ListReleases returns every release, oldest first. Releases and their
// binary assets have no usable GraphQL coverage for download, so this
// read stays on REST.
func (c *Client) ListReleases(ctx context.Context, repo config.Repo) ([]*gh.RepositoryRelease, error) {
	const method = "get_repository_releases"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]*gh.RepositoryRelease, error) {
		var all []*gh.RepositoryRelease
		opts := &gh.ListOptions{PerPage: c.pageSize}
		for {
			var page []*gh.RepositoryRelease
			err := c.restCall(ctx, method, func() (*gh.Response, error) {
				var resp *gh.Response
				var err error
				page, resp, err = c.rest.Repositories.ListReleases(ctx, repo.Owner, repo.Name, opts)
				if resp != nil && err == nil {
					opts.Page = resp.NextPage
				}
				return resp, err
			})
			if err != nil {
				return nil, err
			}
			all = append(all, page...)
			if opts.Page == 0 {
				break
			}
		}
		// REST returns newest first; the snapshot is oldest first
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
		return all, nil
	})
}

// CreateRelease creates a release for an existing tag or target commitish
func (c *Client) CreateRelease(ctx context.Context, repo config.Repo, rel *gh.RepositoryRelease) (*gh.RepositoryRelease, error) {
	var out *gh.RepositoryRelease
	err := c.restCall(ctx, "create_release", func() (*gh.Response, error) {
		created, resp, err := c.rest.Repositories.CreateRelease(ctx, repo.Owner, repo.Name, rel)
		out = created
		return resp, err
	})
	return out, err
}

// DownloadReleaseAsset streams a release asset's binary content
func (c *Client) DownloadReleaseAsset(ctx context.Context, repo config.Repo, assetID int64) (io.ReadCloser, error) {
	var out io.ReadCloser
	err := c.restCall(ctx, "get_release_asset", func() (*gh.Response, error) {
		rc, _, err := c.rest.Repositories.DownloadReleaseAsset(ctx, repo.Owner, repo.Name, assetID, http.DefaultClient)
		out = rc
		return nil, err
	})
	return out, err
}

// UploadReleaseAsset uploads a binary file as a release asset
func (c *Client) UploadReleaseAsset(ctx context.Context, repo config.Repo, releaseID int64, name, mediaType string, f *os.File) (*gh.ReleaseAsset, error) {
	var out *gh.ReleaseAsset
	err := c.restCall(ctx, "create_release_asset", func() (*gh.Response, error) {
		opts := &gh.UploadOptions{Name: name, MediaType: mediaType}
		created, resp, err := c.rest.Repositories.UploadReleaseAsset(ctx, repo.Owner, repo.Name, releaseID, opts, f)
		out = created
		return resp, err
	})
	return out, err
}
