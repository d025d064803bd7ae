package github

import (
	"context"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/logger"
)

// pageInfo is the shared cursor fragment every paginated query carries
type pageInfo struct {
	EndCursor   githubv4.String
	HasNextPage bool
}

// rateLimitInfo lets each query report the remaining quota for free
type rateLimitInfo struct {
	Remaining int
}

// ActorNode is the author fragment shared by issues, comments, and reviews
type ActorNode struct {
	Login string
	URL   string `graphql:"url"`
}

// LabelNode is one repository label as returned by GraphQL
type LabelNode struct {
	Name        string
	Color       string
	Description string
}

// MilestoneNode is one repository milestone as returned by GraphQL
type MilestoneNode struct {
	Number      int
	Title       string
	State       string
	Description string
	DueOn       *githubv4.DateTime
	Creator     *ActorNode
}

// IssueNode is one issue as returned by GraphQL. Nested label and
// assignee connections are capped at one page; overflow is reported.
type IssueNode struct {
	DatabaseID  int64 `graphql:"databaseId"`
	Number      int
	Title       string
	Body        string
	State       string
	StateReason string
	URL         string `graphql:"url"`
	CreatedAt   githubv4.DateTime
	UpdatedAt   githubv4.DateTime
	ClosedAt    *githubv4.DateTime
	Author      *ActorNode
	Milestone   *struct{ Number int }
	Labels      struct {
		PageInfo struct{ HasNextPage bool }
		Nodes    []struct{ Name string }
	} `graphql:"labels(first: 100)"`
	Assignees struct {
		Nodes []struct{ Login string }
	} `graphql:"assignees(first: 50)"`
}

// IssueCommentNode is one issue or PR conversation comment
type IssueCommentNode struct {
	DatabaseID int64 `graphql:"databaseId"`
	Body       string
	URL        string `graphql:"url"`
	CreatedAt  githubv4.DateTime
	UpdatedAt  githubv4.DateTime
	Author     *ActorNode
}

// SubIssueEdge is one parent/child edge of the sub-issue hierarchy
type SubIssueEdge struct {
	ParentNumber int
	ChildNumber  int
	Position     int
}

// PullRequestNode is one pull request as returned by GraphQL
type PullRequestNode struct {
	DatabaseID  int64 `graphql:"databaseId"`
	Number      int
	Title       string
	Body        string
	State       string
	HeadRefName string
	BaseRefName string
	URL         string `graphql:"url"`
	CreatedAt   githubv4.DateTime
	UpdatedAt   githubv4.DateTime
	MergedAt    *githubv4.DateTime
	MergeCommit *struct {
		OID string `graphql:"oid"`
	}
	Author    *ActorNode
	Milestone *struct{ Number int }
	Labels    struct {
		PageInfo struct{ HasNextPage bool }
		Nodes    []struct{ Name string }
	} `graphql:"labels(first: 100)"`
}

// ReviewNode is one pull request review
type ReviewNode struct {
	DatabaseID  int64 `graphql:"databaseId"`
	State       string
	Body        string
	URL         string `graphql:"url"`
	SubmittedAt *githubv4.DateTime
	Author      *ActorNode
}

// ReviewCommentNode is one diff-anchored review comment
type ReviewCommentNode struct {
	DatabaseID int64 `graphql:"databaseId"`
	Body       string
	Path       string
	Line       *int
	DiffHunk   string
	URL        string `graphql:"url"`
	CreatedAt  githubv4.DateTime
	Author     *ActorNode
	ReplyTo    *struct {
		DatabaseID int64 `graphql:"databaseId"`
	}
}

// ReviewCommentEdge couples a review comment to its parent review's
// database ID. Review comments are only reachable through the reviews
// connection, so the mediator flattens the nesting here.
type ReviewCommentEdge struct {
	ReviewID int64
	Comment  ReviewCommentNode
}

// newPageVars seeds the variable map shared by paginated queries
func (c *Client) newPageVars(repo config.Repo) map[string]any {
	vars := repoVars(repo)
	vars["pageSize"] = githubv4.Int(c.pageSize)
	vars["cursor"] = (*githubv4.String)(nil)
	return vars
}

// ListLabels returns every label of the repository, ordered by name
func (c *Client) ListLabels(ctx context.Context, repo config.Repo) ([]LabelNode, error) {
	const method = "get_repository_labels"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]LabelNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				Labels struct {
					PageInfo pageInfo
					Nodes    []LabelNode
				} `graphql:"labels(first: $pageSize, after: $cursor, orderBy: {field: NAME, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		var all []LabelNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.Labels.Nodes...)
			if !q.Repository.Labels.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.Labels.PageInfo.EndCursor)
		}
	})
}

// ListMilestones returns every milestone of the repository, ordered by number
func (c *Client) ListMilestones(ctx context.Context, repo config.Repo) ([]MilestoneNode, error) {
	const method = "get_repository_milestones"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]MilestoneNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				Milestones struct {
					PageInfo pageInfo
					Nodes    []MilestoneNode
				} `graphql:"milestones(first: $pageSize, after: $cursor, orderBy: {field: NUMBER, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		var all []MilestoneNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.Milestones.Nodes...)
			if !q.Repository.Milestones.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.Milestones.PageInfo.EndCursor)
		}
	})
}

// ListIssues returns every issue of the repository in created_at
// ascending order. Pull requests are not included; the GraphQL issues
// connection excludes them.
func (c *Client) ListIssues(ctx context.Context, repo config.Repo) ([]IssueNode, error) {
	const method = "get_repository_issues"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]IssueNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				Issues struct {
					PageInfo pageInfo
					Nodes    []IssueNode
				} `graphql:"issues(first: $pageSize, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		var all []IssueNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			for _, n := range q.Repository.Issues.Nodes {
				if n.Labels.PageInfo.HasNextPage {
					logger.Warn("Issue has more than one page of labels, keeping the first page",
						zap.Int("issue", n.Number),
					)
				}
			}
			all = append(all, q.Repository.Issues.Nodes...)
			if !q.Repository.Issues.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.Issues.PageInfo.EndCursor)
		}
	})
}

// ListIssueComments returns the comments of one issue in chronological order
func (c *Client) ListIssueComments(ctx context.Context, repo config.Repo, issueNumber int) ([]IssueCommentNode, error) {
	const method = "get_issue_comments"
	params := map[string]string{"repo": repo.String(), "issue": fmtKey(issueNumber)}
	return cached(c, method, params, func() ([]IssueCommentNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				Issue struct {
					Comments struct {
						PageInfo pageInfo
						Nodes    []IssueCommentNode
					} `graphql:"comments(first: $pageSize, after: $cursor)"`
				} `graphql:"issue(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		vars["number"] = githubv4.Int(issueNumber)
		var all []IssueCommentNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.Issue.Comments.Nodes...)
			if !q.Repository.Issue.Comments.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.Issue.Comments.PageInfo.EndCursor)
		}
	})
}

// ListSubIssueEdges walks every issue and flattens its sub-issue list
// into parent/child edges. Position is the 1-based rank within the
// parent.
func (c *Client) ListSubIssueEdges(ctx context.Context, repo config.Repo) ([]SubIssueEdge, error) {
	const method = "get_repository_sub_issues"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]SubIssueEdge, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				Issues struct {
					PageInfo pageInfo
					Nodes    []struct {
						Number    int
						SubIssues struct {
							PageInfo struct{ HasNextPage bool }
							Nodes    []struct{ Number int }
						} `graphql:"subIssues(first: 100)"`
					}
				} `graphql:"issues(first: $pageSize, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		var all []SubIssueEdge
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			for _, parent := range q.Repository.Issues.Nodes {
				if parent.SubIssues.PageInfo.HasNextPage {
					logger.Warn("Issue has more than one page of sub-issues, keeping the first page",
						zap.Int("issue", parent.Number),
					)
				}
				for i, child := range parent.SubIssues.Nodes {
					all = append(all, SubIssueEdge{
						ParentNumber: parent.Number,
						ChildNumber:  child.Number,
						Position:     i + 1,
					})
				}
			}
			if !q.Repository.Issues.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.Issues.PageInfo.EndCursor)
		}
	})
}

// ListPullRequests returns every pull request in created_at ascending order
func (c *Client) ListPullRequests(ctx context.Context, repo config.Repo) ([]PullRequestNode, error) {
	const method = "get_repository_pull_requests"
	return cached(c, method, map[string]string{"repo": repo.String()}, func() ([]PullRequestNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				PullRequests struct {
					PageInfo pageInfo
					Nodes    []PullRequestNode
				} `graphql:"pullRequests(first: $pageSize, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		var all []PullRequestNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.PullRequests.Nodes...)
			if !q.Repository.PullRequests.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.PullRequests.PageInfo.EndCursor)
		}
	})
}

// ListPRComments returns the conversation comments of one pull request
func (c *Client) ListPRComments(ctx context.Context, repo config.Repo, prNumber int) ([]IssueCommentNode, error) {
	const method = "get_pull_request_comments"
	params := map[string]string{"repo": repo.String(), "pr": fmtKey(prNumber)}
	return cached(c, method, params, func() ([]IssueCommentNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				PullRequest struct {
					Comments struct {
						PageInfo pageInfo
						Nodes    []IssueCommentNode
					} `graphql:"comments(first: $pageSize, after: $cursor)"`
				} `graphql:"pullRequest(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		vars["number"] = githubv4.Int(prNumber)
		var all []IssueCommentNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.PullRequest.Comments.Nodes...)
			if !q.Repository.PullRequest.Comments.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.PullRequest.Comments.PageInfo.EndCursor)
		}
	})
}

// ListReviews returns the reviews of one pull request in submission order
func (c *Client) ListReviews(ctx context.Context, repo config.Repo, prNumber int) ([]ReviewNode, error) {
	const method = "get_pull_request_reviews"
	params := map[string]string{"repo": repo.String(), "pr": fmtKey(prNumber)}
	return cached(c, method, params, func() ([]ReviewNode, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				PullRequest struct {
					Reviews struct {
						PageInfo pageInfo
						Nodes    []ReviewNode
					} `graphql:"reviews(first: $pageSize, after: $cursor)"`
				} `graphql:"pullRequest(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		vars["number"] = githubv4.Int(prNumber)
		var all []ReviewNode
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			all = append(all, q.Repository.PullRequest.Reviews.Nodes...)
			if !q.Repository.PullRequest.Reviews.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.PullRequest.Reviews.PageInfo.EndCursor)
		}
	})
}

// ListReviewComments returns the diff-anchored review comments of one
// pull request, each linked to its parent review. The nested comment
// connection is capped at one page per review; overflow is reported.
func (c *Client) ListReviewComments(ctx context.Context, repo config.Repo, prNumber int) ([]ReviewCommentEdge, error) {
	const method = "get_pull_request_review_comments"
	params := map[string]string{"repo": repo.String(), "pr": fmtKey(prNumber)}
	return cached(c, method, params, func() ([]ReviewCommentEdge, error) {
		var q struct {
			RateLimit  rateLimitInfo
			Repository struct {
				PullRequest struct {
					Reviews struct {
						PageInfo pageInfo
						Nodes    []struct {
							DatabaseID int64 `graphql:"databaseId"`
							Comments   struct {
								PageInfo struct{ HasNextPage bool }
								Nodes    []ReviewCommentNode
							} `graphql:"comments(first: 100)"`
						}
					} `graphql:"reviews(first: $pageSize, after: $cursor)"`
				} `graphql:"pullRequest(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := c.newPageVars(repo)
		vars["number"] = githubv4.Int(prNumber)
		var all []ReviewCommentEdge
		for {
			if err := c.gqlQuery(ctx, method, &q, vars); err != nil {
				return nil, err
			}
			c.monitor.observe(method, q.RateLimit.Remaining)
			for _, review := range q.Repository.PullRequest.Reviews.Nodes {
				if review.Comments.PageInfo.HasNextPage {
					logger.Warn("Review has more than one page of comments, keeping the first page",
						zap.Int64("review_id", review.DatabaseID),
						zap.Int("pr", prNumber),
					)
				}
				for _, comment := range review.Comments.Nodes {
					all = append(all, ReviewCommentEdge{ReviewID: review.DatabaseID, Comment: comment})
				}
			}
			if !q.Repository.PullRequest.Reviews.PageInfo.HasNextPage {
				return all, nil
			}
			vars["cursor"] = githubv4.NewString(q.Repository.PullRequest.Reviews.PageInfo.EndCursor)
		}
	})
}
