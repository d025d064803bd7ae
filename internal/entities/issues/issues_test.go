package issues

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

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

	api := github.NewClientForTest(rest, githubv4.NewEnterpriseClient(srv.URL+"/graphql", srv.Client()),
		config.RetryConfig{MaxRetries: 2, BaseSeconds: 1, MaxSeconds: 1}, 100)

	store := storage.NewFileStore(t.TempDir())
	cfg := &config.Config{Repo: config.Repo{Owner: "octo", Name: "mirror"}}
	return &entity.Services{API: api, Storage: store, Config: cfg}, store
}

func TestConvertIssue(t *testing.T) {
	created := githubv4.DateTime{Time: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	n := github.IssueNode{
		DatabaseID:  42,
		Number:      7,
		Title:       "Crash on start",
		Body:        "It crashes",
		State:       "CLOSED",
		StateReason: "NOT_PLANNED",
		URL:         "https://github.com/octo/mirror/issues/7",
		CreatedAt:   created,
		UpdatedAt:   created,
		Author:      &github.ActorNode{Login: "alice"},
		Milestone:   &struct{ Number int }{Number: 3},
	}
	n.Labels.Nodes = []struct{ Name string }{{Name: "bug"}, {Name: "p1"}}
	n.Assignees.Nodes = []struct{ Login string }{{Login: "bob"}}

	got := convertIssue(n)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, 7, got.Number)
	assert.Equal(t, "closed", got.State)
	assert.Equal(t, "not_planned", got.StateReason)
	assert.Equal(t, []string{"bug", "p1"}, got.Labels)
	assert.Equal(t, []string{"bob"}, got.Assignees)
	require.NotNil(t, got.Milestone)
	assert.Equal(t, 3, *got.Milestone)
	assert.Equal(t, "alice", got.Author.Login)
}

func TestRemapMilestone(t *testing.T) {
	rc := strategy.NewContext()
	rc.MilestoneNumbers[3] = 11

	three := 3
	mapped := remapMilestone("issues", 7, &three, rc)
	require.NotNil(t, mapped)
	assert.Equal(t, 11, *mapped)

	nine := 9
	assert.Nil(t, remapMilestone("issues", 7, &nine, rc))
	assert.Nil(t, remapMilestone("issues", 7, nil, rc))
}

func TestRestoreCreatesAndCloses(t *testing.T) {
	type patch struct {
		State       string `json:"state"`
		StateReason string `json:"state_reason"`
	}
	var creates []map[string]any
	var patches []patch

	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			creates = append(creates, body)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"number": 100 + len(creates)})
		case http.MethodPatch:
			var p patch
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &p)
			patches = append(patches, p)
			w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))

	closedAt := time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)
	three := 3
	require.NoError(t, store.WriteJSON(consts.IssuesFile, []model.Issue{
		{Number: 7, Title: "Crash on start", Body: "hello @alice", State: "closed", StateReason: "completed", Milestone: &three, ClosedAt: &closedAt, Labels: []string{"bug"}},
		{Number: 9, Title: "Feature request", State: "open"},
	}))

	rc := strategy.NewContext()
	rc.MilestoneNumbers[3] = 11

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, creates, 2)
	assert.Equal(t, "Crash on start", creates[0]["title"])
	assert.Equal(t, "hello `@alice`", creates[0]["body"])
	assert.Equal(t, float64(11), creates[0]["milestone"])

	require.Len(t, patches, 1)
	assert.Equal(t, "closed", patches[0].State)
	assert.Equal(t, "completed", patches[0].StateReason)

	assert.Equal(t, 101, rc.IssueNumbers[7])
	assert.Equal(t, 102, rc.IssueNumbers[9])
	assert.True(t, rc.ParentSaved(consts.EntityIssues, 7))
}

func TestRestoreSelectionFiltering(t *testing.T) {
	var created int
	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		created++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"number": 200})
	}))

	require.NoError(t, store.WriteJSON(consts.IssuesFile, []model.Issue{
		{Number: 1, Title: "one", State: "open"},
		{Number: 2, Title: "two", State: "open"},
		{Number: 3, Title: "three", State: "open"},
	}))

	rc := strategy.NewContext()
	sel, err := config.ParseNumberSpec("2")
	require.NoError(t, err)
	rc.Enablement[consts.EntityIssues] = config.EnabledSelection(sel)

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, created)
}
