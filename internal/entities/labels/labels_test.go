package labels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v57/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/storage"
	"github.com/repovault/repovault/internal/strategy"
)

func testServices(t *testing.T, handler http.Handler) (*entity.Services, *storage.FileStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rest := gh.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	rest.BaseURL = base
	rest.UploadURL = base

	gql := githubv4.NewEnterpriseClient(srv.URL+"/graphql", srv.Client())
	api := github.NewClientForTest(rest, gql, config.RetryConfig{MaxRetries: 2, BaseSeconds: 1, MaxSeconds: 1}, 100)

	store := storage.NewFileStore(t.TempDir())
	cfg := &config.Config{
		Repo:                  config.Repo{Owner: "octo", Name: "mirror"},
		LabelConflictStrategy: "skip",
	}
	return &entity.Services{API: api, Storage: store, Config: cfg}, store
}

func TestConvertLabel(t *testing.T) {
	got := convertLabel(github.LabelNode{Name: "bug", Color: "fc2929", Description: "Something broken"})
	assert.Equal(t, model.Label{Name: "bug", Color: "fc2929", Description: "Something broken"}, got)
}

func TestSaveWritesSnapshot(t *testing.T) {
	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		resp := map[string]any{
			"data": map[string]any{
				"rateLimit": map[string]any{"remaining": 4999},
				"repository": map[string]any{
					"labels": map[string]any{
						"pageInfo": map[string]any{"endCursor": "", "hasNextPage": false},
						"nodes": []map[string]any{
							{"name": "bug", "color": "fc2929", "description": "Something broken"},
							{"name": "docs", "color": "0075ca", "description": ""},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))

	saver, err := newSaver(svc)
	require.NoError(t, err)

	count, err := saver.Save(context.Background(), strategy.NewContext())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var saved []model.Label
	require.NoError(t, store.ReadJSON(consts.LabelsFile, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "bug", saved[0].Name)
	assert.Equal(t, "docs", saved[1].Name)
}

func TestRestoreSkipsConflicts(t *testing.T) {
	var created []string
	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		if body.Name == "bug" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"Label","code":"already_exists","field":"name"}]}`))
			return
		}
		created = append(created, body.Name)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"name": body.Name})
	}))

	require.NoError(t, store.WriteJSON(consts.LabelsFile, []model.Label{
		{Name: "bug", Color: "fc2929"},
		{Name: "docs", Color: "0075ca"},
	}))

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), strategy.NewContext())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"docs"}, created)
}

func TestRestoreMissingSnapshot(t *testing.T) {
	svc, _ := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no API call expected")
	}))

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), strategy.NewContext())
	require.NoError(t, err)
	assert.Zero(t, count)
}
