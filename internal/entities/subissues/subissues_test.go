package subissues

import (
	"context"
	"encoding/json"
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

func TestConvertEdge(t *testing.T) {
	got := convertEdge(github.SubIssueEdge{ParentNumber: 4, ChildNumber: 9, Position: 2})
	assert.Equal(t, model.SubIssue{ParentNumber: 4, ChildNumber: 9, Position: 2}, got)
}

func TestRestoreLinksMappedEdges(t *testing.T) {
	var linked []int64
	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/mirror/issues/112":
			json.NewEncoder(w).Encode(map[string]any{"id": 555, "number": 112})
		case r.Method == http.MethodPost && r.URL.Path == "/repos/octo/mirror/issues/110/sub_issues":
			var body struct {
				SubIssueID int64 `json:"sub_issue_id"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			linked = append(linked, body.SubIssueID)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	require.NoError(t, store.WriteJSON(consts.SubIssuesFile, []model.SubIssue{
		{ParentNumber: 10, ChildNumber: 12, Position: 1},
		{ParentNumber: 10, ChildNumber: 99, Position: 2}, // child never restored
	}))

	rc := strategy.NewContext()
	rc.IssueNumbers[10] = 110
	rc.IssueNumbers[12] = 112

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []int64{555}, linked)
}
