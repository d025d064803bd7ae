package milestones

import (
	"context"
	"encoding/json"
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

	api := github.NewClientForTest(rest, nil, config.RetryConfig{MaxRetries: 2, BaseSeconds: 1, MaxSeconds: 1}, 100)
	store := storage.NewFileStore(t.TempDir())
	cfg := &config.Config{Repo: config.Repo{Owner: "octo", Name: "mirror"}}
	return &entity.Services{API: api, Storage: store, Config: cfg}, store
}

func TestConvertMilestone(t *testing.T) {
	due := githubv4.DateTime{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	got := convertMilestone(github.MilestoneNode{
		Number:      3,
		Title:       "v1.0",
		State:       "CLOSED",
		Description: "first stable",
		DueOn:       &due,
		Creator:     &github.ActorNode{Login: "alice"},
	})

	assert.Equal(t, 3, got.Number)
	assert.Equal(t, "closed", got.State)
	assert.Equal(t, "first stable", got.Body)
	require.NotNil(t, got.DueOn)
	assert.Equal(t, due.Time, *got.DueOn)
	require.NotNil(t, got.Creator)
	assert.Equal(t, "alice", got.Creator.Login)
}

func TestRestoreRecordsNumbersAndClosesClosed(t *testing.T) {
	var created []string
	var closed int

	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			created = append(created, body.Title)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"number": 20 + len(created)})
		case http.MethodPatch:
			closed++
			w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))

	require.NoError(t, store.WriteJSON(consts.MilestonesFile, []model.Milestone{
		{Number: 1, Title: "v1.0", State: "closed"},
		{Number: 2, Title: "v2.0", State: "open"},
	}))

	rc := strategy.NewContext()
	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, []string{"v1.0", "v2.0"}, created)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 21, rc.MilestoneNumbers[1])
	assert.Equal(t, 22, rc.MilestoneNumbers[2])
}
