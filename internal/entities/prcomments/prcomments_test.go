package prcomments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/sanitize"
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

	api := github.NewClientForTest(rest, nil, config.RetryConfig{MaxRetries: 2, BaseSeconds: 1, MaxSeconds: 1}, 100)
	store := storage.NewFileStore(t.TempDir())
	cfg := &config.Config{Repo: config.Repo{Owner: "octo", Name: "mirror"}}
	return &entity.Services{API: api, Storage: store, Config: cfg}, store
}

func TestRestoreWithProvenanceFooter(t *testing.T) {
	var bodies []string
	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octo/mirror/issues/110/comments", r.URL.Path)
		var body struct {
			Body string `json:"body"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 700})
	}))

	created := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteJSON(consts.PRCommentsFile, []model.PRComment{
		{ID: 601, PRNumber: 10, Body: "nice work @alice", CreatedAt: created,
			HTMLURL: "https://github.com/octo/mirror/pull/10#issuecomment-601",
			Author:  &model.User{Login: "bob"}},
		{ID: 602, PRNumber: 99, Body: "orphan"},
	}))

	rc := strategy.NewContext()
	rc.PRNumbers[10] = 110
	rc.IncludeOriginalMetadata = true

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, bodies, 1)
	want := sanitize.Body("nice work @alice", &sanitize.Provenance{
		AuthorLogin: "bob",
		CreatedAt:   created,
		URL:         "https://github.com/octo/mirror/pull/10#issuecomment-601",
	})
	assert.Equal(t, want, bodies[0])
	assert.Contains(t, bodies[0], "`@alice`")
}
