package releases

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
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

func TestAssetPath(t *testing.T) {
	assert.Equal(t, "release-assets/v1.0.0/app.tar.gz", assetPath("v1.0.0", "app.tar.gz"))
}

func TestSaveDownloadsAssets(t *testing.T) {
	const payload = "binary-bytes"

	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/mirror/releases":
			// Newest first, as the API returns them
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 2, "tag_name": "v1.1.0", "draft": false, "prerelease": false},
				{"id": 1, "tag_name": "v1.0.0", "draft": false, "prerelease": false,
					"assets": []map[string]any{
						{"id": 5, "name": "app.tar.gz", "size": len(payload), "content_type": "application/gzip"},
					}},
			})
		case "/repos/octo/mirror/releases/assets/5":
			w.Header().Set("Content-Type", "application/octet-stream")
			io.WriteString(w, payload)
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	}))

	saver, err := newSaver(svc)
	require.NoError(t, err)

	count, err := saver.Save(context.Background(), strategy.NewContext())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var saved []model.Release
	require.NoError(t, store.ReadJSON(consts.ReleasesFile, &saved))
	require.Len(t, saved, 2)
	// Oldest first in the snapshot
	assert.Equal(t, "v1.0.0", saved[0].TagName)
	assert.Equal(t, "v1.1.0", saved[1].TagName)

	require.Len(t, saved[0].Assets, 1)
	assert.Equal(t, "release-assets/v1.0.0/app.tar.gz", saved[0].Assets[0].LocalPath)

	f, err := store.Open(saved[0].Assets[0].LocalPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestRestoreCreatesReleasesAndUploadsAssets(t *testing.T) {
	var createdTags []string
	var uploadedNames []string

	svc, store := testServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/repos/octo/mirror/releases":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			createdTags = append(createdTags, body["tag_name"].(string))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": 777})
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/repos/octo/mirror/releases/777/assets"):
			uploadedNames = append(uploadedNames, r.URL.Query().Get("name"))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": r.URL.Query().Get("name")})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	_, err := store.WriteFile("release-assets/v1.0.0/app.tar.gz", strings.NewReader("binary-bytes"))
	require.NoError(t, err)

	require.NoError(t, store.WriteJSON(consts.ReleasesFile, []model.Release{
		{ID: 1, TagName: "v1.0.0", Name: "First", Body: "notes", Assets: []model.ReleaseAsset{
			{ID: 5, Name: "app.tar.gz", Size: 12, ContentType: "application/gzip",
				LocalPath: "release-assets/v1.0.0/app.tar.gz"},
		}},
	}))

	restorer, err := newRestorer(svc)
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), strategy.NewContext())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"v1.0.0"}, createdTags)
	assert.Equal(t, []string{"app.tar.gz"}, uploadedNames)
}
