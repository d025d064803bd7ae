// Package github implements the API mediator: the sole module permitted
// to call the GitHub APIs. It wraps the REST transport (mutating
// operations and endpoints without GraphQL coverage) and the GraphQL
// transport (paginated reads), applies rate-limit retry with exponential
// back-off and jitter, attaches per-request cache keys, and monitors the
// remaining quota.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/errors"
)

// defaultGitHubURL is the public GitHub endpoint
const defaultGitHubURL = "https://github.com"

// Client is the API mediator. All GitHub traffic goes through its
// narrow, typed method surface.
type Client struct {
	rest  *gh.Client
	gql   *githubv4.Client
	retry retryPolicy
	cache *ReadCache

	pageSize int

	// monitor tracks the remaining quota after each call
	monitor *rateLimitMonitor
}

// NewClient builds the mediator from configuration. The HTTP transport
// stack is oauth2 bearer auth under an httpcache layer, so conditional
// requests (ETag) are honored by the REST path.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.ErrConfig("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	cacheTransport := httpcache.NewMemoryCacheTransport()
	cacheTransport.Transport = &oauth2.Transport{Source: ts}
	httpClient := &http.Client{Transport: cacheTransport}

	rest := gh.NewClient(httpClient)
	var gql *githubv4.Client

	if cfg.APIBaseURL != "" && cfg.APIBaseURL != defaultGitHubURL {
		// GitHub Enterprise
		var err error
		rest, err = rest.WithEnterpriseURLs(cfg.APIBaseURL, cfg.APIBaseURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "failed to create enterprise client", err)
		}
		// WithEnterpriseURLs tolerates a base with or without the
		// /api/v3 suffix; the GraphQL endpoint hangs off the bare host
		host := strings.TrimSuffix(strings.TrimSuffix(cfg.APIBaseURL, "/"), "/api/v3")
		gql = githubv4.NewEnterpriseClient(host+"/api/graphql", httpClient)
	} else {
		gql = githubv4.NewClient(httpClient)
	}

	return &Client{
		rest:     rest,
		gql:      gql,
		retry:    newRetryPolicy(cfg.Retry),
		cache:    NewReadCache(),
		pageSize: cfg.PageSize,
		monitor:  newRateLimitMonitor(),
	}, nil
}

// NewClientForTest builds a mediator against a prepared REST and GraphQL
// client pair. Test helper only.
func NewClientForTest(rest *gh.Client, gql *githubv4.Client, retry config.RetryConfig, pageSize int) *Client {
	c := &Client{
		rest:     rest,
		gql:      gql,
		retry:    newRetryPolicy(retry),
		cache:    NewReadCache(),
		pageSize: pageSize,
		monitor:  newRateLimitMonitor(),
	}
	c.retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

// classify maps transport-level failures onto the application error
// taxonomy. 404 on a lookup becomes NotFound, 401 is fatal, primary and
// secondary rate limits are retryable, everything else is Transport.
func classify(method string, resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *gh.RateLimitError:
		return errors.ErrRateLimit(method+" hit the rate limit", err)
	case *gh.AbuseRateLimitError:
		return errors.ErrRateLimit(method+" hit the secondary rate limit", err)
	case *gh.ErrorResponse:
		switch e.Response.StatusCode {
		case http.StatusNotFound:
			return errors.ErrNotFound(method)
		case http.StatusUnauthorized:
			return errors.ErrFatal("authentication failed, check GITHUB_TOKEN", err)
		case http.StatusUnprocessableEntity:
			for _, ve := range e.Errors {
				if ve.Code == "already_exists" {
					return errors.ErrConflict(method + ": resource already exists")
				}
			}
		}
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errors.ErrNotFound(method)
		case http.StatusUnauthorized:
			return errors.ErrFatal("authentication failed, check GITHUB_TOKEN", err)
		}
	}

	return errors.ErrTransport(method+" failed", err)
}

// classifyGraphQL maps GraphQL errors onto the taxonomy. The GraphQL API
// signals throttling with a RATE_LIMITED error type in the message.
func classifyGraphQL(method string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToUpper(err.Error())
	if strings.Contains(msg, "RATE_LIMITED") || strings.Contains(msg, "API RATE LIMIT") {
		return errors.ErrRateLimit(method+" hit the rate limit", err)
	}
	if strings.Contains(msg, "COULD NOT RESOLVE") || strings.Contains(msg, "NOT_FOUND") {
		return errors.ErrNotFound(method)
	}
	if strings.Contains(msg, "401") || strings.Contains(msg, "BAD CREDENTIALS") {
		return errors.ErrFatal("authentication failed, check GITHUB_TOKEN", err)
	}
	return errors.ErrTransport(method+" failed", err)
}

// restCall runs fn under the retry policy and feeds the response to the
// rate-limit monitor.
func (c *Client) restCall(ctx context.Context, method string, fn func() (*gh.Response, error)) error {
	return c.retry.do(ctx, method, func() error {
		resp, err := fn()
		if resp != nil {
			c.monitor.observe(method, resp.Rate.Remaining)
		}
		return classify(method, resp, err)
	})
}

// gqlQuery runs a GraphQL query under the retry policy
func (c *Client) gqlQuery(ctx context.Context, method string, q any, vars map[string]any) error {
	return c.retry.do(ctx, method, func() error {
		return classifyGraphQL(method, c.gql.Query(ctx, q, vars))
	})
}

// repoVars builds the owner/name variable map shared by every
// repository-scoped query.
func repoVars(repo config.Repo) map[string]any {
	return map[string]any{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
	}
}

// fmtKey is a tiny helper for cache key parameters
func fmtKey(v any) string {
	return fmt.Sprintf("%v", v)
}
