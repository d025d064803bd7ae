// Package gitrepository implements the git repository entity: a bare
// mirror of the repository's git data inside the run directory. It is
// the one entity that moves git objects instead of JSON documents, so
// it implements the strategy interfaces directly rather than through
// the list pipelines.
package gitrepository

import (
	"context"
	"strings"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/strategy"
)

func init() {
	entity.Register(entity.Declaration{
		Name:                    consts.EntityGitRepository,
		EnvVar:                  "INCLUDE_GIT_REPOSITORY",
		ValueType:               entity.ValueBool,
		Default:                 true,
		RequiredServicesSave:    []string{entity.ServiceGit, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceGit, entity.ServiceStorage},
		NewSaver: func(svc *entity.Services) (strategy.Saver, error) {
			return &mirror{svc: svc}, nil
		},
		NewRestorer: func(svc *entity.Services) (strategy.Restorer, error) {
			return &mirror{svc: svc}, nil
		},
	})
}

type mirror struct {
	svc *entity.Services
}

func (m *mirror) EntityName() string {
	return consts.EntityGitRepository
}

func (m *mirror) Dependencies() []string {
	return nil
}

// remoteURL builds the clone/push URL for the configured repository.
// Enterprise installs serve REST under /api/v3 but git on the bare host.
func (m *mirror) remoteURL() string {
	base := strings.TrimSuffix(m.svc.Config.APIBaseURL, "/")
	if base == "" {
		base = "https://github.com"
	}
	base = strings.TrimSuffix(base, "/api/v3")
	return base + "/" + m.svc.Config.Repo.String() + ".git"
}

func (m *mirror) Save(ctx context.Context, rc *strategy.Context) (int, error) {
	target := m.svc.Storage.Abs(consts.GitRepoDir)
	if err := m.svc.Git.Clone(ctx, m.remoteURL(), target); err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *mirror) Restore(ctx context.Context, rc *strategy.Context) (int, error) {
	source := m.svc.Storage.Abs(consts.GitRepoDir)
	if err := m.svc.Git.Restore(ctx, source, m.remoteURL()); err != nil {
		return 0, err
	}
	return 1, nil
}
