package github

import (
	"context"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// GetRepository fetches repository metadata
func (c *Client) GetRepository(ctx context.Context, repo config.Repo) (*gh.Repository, error) {
	var out *gh.Repository
	err := c.restCall(ctx, "get_repository", func() (*gh.Response, error) {
		r, resp, err := c.rest.Repositories.Get(ctx, repo.Owner, repo.Name)
		out = r
		return resp, err
	})
	return out, err
}

// RepositoryExists reports whether the repository is reachable with the
// configured token.
func (c *Client) RepositoryExists(ctx context.Context, repo config.Repo) (bool, error) {
	_, err := c.GetRepository(ctx, repo)
	if err == nil {
		return true, nil
	}
	if errors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// CreateRepository creates the target repository under the token's
// account or the named organization, depending on the owner. After a
// successful create it polls until the repository is actually reachable,
// since repository creation is eventually consistent.
func (c *Client) CreateRepository(ctx context.Context, repo config.Repo, private bool, description string) (*gh.Repository, error) {
	user, err := c.authenticatedUser(ctx)
	if err != nil {
		return nil, err
	}

	// An empty org creates under the authenticated user
	org := repo.Owner
	if user != "" && org == user {
		org = ""
	}

	var out *gh.Repository
	err = c.restCall(ctx, "create_repository", func() (*gh.Response, error) {
		r := &gh.Repository{
			Name:    &repo.Name,
			Private: &private,
		}
		if description != "" {
			r.Description = &description
		}
		created, resp, err := c.rest.Repositories.Create(ctx, org, r)
		out = created
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	c.waitForRepository(ctx, repo)
	return out, nil
}

// authenticatedUser returns the login of the token's user
func (c *Client) authenticatedUser(ctx context.Context) (string, error) {
	var login string
	err := c.restCall(ctx, "get_authenticated_user", func() (*gh.Response, error) {
		user, resp, err := c.rest.Users.Get(ctx, "")
		if user != nil && user.Login != nil {
			login = *user.Login
		}
		return resp, err
	})
	return login, err
}

// waitForRepository polls until the freshly created repository answers
// lookups. Giving up is not an error: the first write will surface the
// problem with better context.
func (c *Client) waitForRepository(ctx context.Context, repo config.Repo) {
	for attempt := 0; attempt < consts.RepoAvailabilityAttempts; attempt++ {
		exists, err := c.RepositoryExists(ctx, repo)
		if err == nil && exists {
			return
		}
		logger.Debug("Waiting for repository availability",
			zap.String("repo", repo.String()),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(consts.RepoAvailabilityDelaySeconds * time.Second):
		}
	}
	logger.Warn("Repository still unavailable after creation, continuing",
		zap.String("repo", repo.String()),
	)
}
