package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/storage"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
)

type stub struct {
	name  string
	count int
	err   error
	ran   *[]string
}

func (s *stub) EntityName() string     { return s.name }
func (s *stub) Dependencies() []string { return nil }

func (s *stub) Save(ctx context.Context, rc *strategy.Context) (int, error) {
	*s.ran = append(*s.ran, s.name)
	return s.count, s.err
}

func (s *stub) Restore(ctx context.Context, rc *strategy.Context) (int, error) {
	*s.ran = append(*s.ran, s.name)
	return s.count, s.err
}

func register(t *testing.T, ran *[]string, name string, count int, err error) {
	t.Helper()
	entity.Register(entity.Declaration{
		Name:                    name,
		EnvVar:                  "INCLUDE_" + name,
		Default:                 true,
		RequiredServicesSave:    []string{entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceStorage},
		NewSaver: func(svc *entity.Services) (strategy.Saver, error) {
			return &stub{name: name, count: count, err: err, ran: ran}, nil
		},
		NewRestorer: func(svc *entity.Services) (strategy.Restorer, error) {
			return &stub{name: name, count: count, err: err, ran: ran}, nil
		},
	})
}

func noEnv(string) (string, bool) { return "", false }

func testConfig() *config.Config {
	return &config.Config{
		Repo: config.Repo{Owner: "octo", Name: "mirror"},
	}
}

func newOrchestrator(t *testing.T, api *github.Client) (*Orchestrator, *storage.FileStore) {
	t.Helper()
	reg, err := entity.Load(noEnv)
	require.NoError(t, err)

	store := storage.NewFileStore(t.TempDir())
	svc := &entity.Services{API: api, Storage: store, Config: testConfig()}
	return New(testConfig(), reg, svc), store
}

func TestSaveContinuesPastFailure(t *testing.T) {
	entity.Reset()
	defer entity.Reset()

	var ran []string
	register(t, &ran, "alpha", 3, errors.ErrTransport("alpha read failed", nil))
	register(t, &ran, "beta", 5, nil)

	o, store := newOrchestrator(t, nil)
	results, err := o.Save(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, 5, results[1].Count)
	assert.Equal(t, []string{"alpha", "beta"}, ran)
	assert.True(t, Failed(results))

	var manifest model.Manifest
	require.NoError(t, store.ReadJSON(consts.ManifestFile, &manifest))
	assert.Equal(t, "octo/mirror", manifest.Repo)
	assert.Equal(t, map[string]int{"beta": 5}, manifest.Counts)
	assert.NotEmpty(t, manifest.RunID)
}

func TestSaveAbortsOnFatal(t *testing.T) {
	entity.Reset()
	defer entity.Reset()

	var ran []string
	register(t, &ran, "alpha", 0, errors.ErrFatal("authentication failed", nil))
	register(t, &ran, "beta", 5, nil)

	o, store := newOrchestrator(t, nil)
	results, err := o.Save(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	require.Len(t, results, 1)
	assert.Equal(t, []string{"alpha"}, ran)
	assert.False(t, store.Exists(consts.ManifestFile))
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) *github.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rest := gh.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	rest.BaseURL = base
	rest.UploadURL = base
	return github.NewClientForTest(rest, nil, config.RetryConfig{MaxRetries: 1, BaseSeconds: 1, MaxSeconds: 1}, 100)
}

func TestRestoreGateRepositoryMissing(t *testing.T) {
	entity.Reset()
	defer entity.Reset()

	var ran []string
	register(t, &ran, "alpha", 1, nil)

	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	})

	o, _ := newOrchestrator(t, api)
	_, err := o.Restore(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfig, errors.CodeOf(err))
	assert.Empty(t, ran)
}

func TestRestoreRunsEntitiesInOrder(t *testing.T) {
	entity.Reset()
	defer entity.Reset()

	var ran []string
	register(t, &ran, "alpha", 2, nil)
	register(t, &ran, "beta", 4, nil)

	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"mirror","full_name":"octo/mirror"}`))
	})

	o, _ := newOrchestrator(t, api)
	results, err := o.Restore(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, []string{"alpha", "beta"}, ran)
	assert.False(t, Failed(results))
}
