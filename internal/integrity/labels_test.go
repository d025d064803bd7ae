package integrity

import (
	"context"
	"testing"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/pkg/errors"
)

// fakeLabelAPI backs the resolvers with an in-memory label set
type fakeLabelAPI struct {
	labels  map[string]*gh.Label
	created []string
	updated []string
}

func newFakeLabelAPI(existing ...*gh.Label) *fakeLabelAPI {
	f := &fakeLabelAPI{labels: make(map[string]*gh.Label)}
	for _, l := range existing {
		f.labels[l.GetName()] = l
	}
	return f
}

func (f *fakeLabelAPI) GetLabel(ctx context.Context, repo config.Repo, name string) (*gh.Label, error) {
	if l, ok := f.labels[name]; ok {
		return l, nil
	}
	return nil, errors.ErrNotFound("get_label")
}

func (f *fakeLabelAPI) CreateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error) {
	if _, ok := f.labels[name]; ok {
		return nil, errors.ErrConflict("create_label: resource already exists")
	}
	l := &gh.Label{Name: &name, Color: &color, Description: &description}
	f.labels[name] = l
	f.created = append(f.created, name)
	return l, nil
}

func (f *fakeLabelAPI) UpdateLabel(ctx context.Context, repo config.Repo, name, color, description string) (*gh.Label, error) {
	l, ok := f.labels[name]
	if !ok {
		return nil, errors.ErrNotFound("update_label")
	}
	l.Color = &color
	l.Description = &description
	f.updated = append(f.updated, name)
	return l, nil
}

func existingLabel(name, color, description string) *gh.Label {
	return &gh.Label{Name: &name, Color: &color, Description: &description}
}

func TestResolverForUnknown(t *testing.T) {
	_, err := ResolverFor("explode")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfig, errors.CodeOf(err))
}

func TestResolverForDefaultsToFail(t *testing.T) {
	r, err := ResolverFor("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFailIfConflict, r.Name())
}

func TestSkipKeepsExisting(t *testing.T) {
	api := newFakeLabelAPI(existingLabel("bug", "ff0000", "old"))
	r, _ := ResolverFor(StrategySkip)

	created, err := r.Resolve(context.Background(), api, config.Repo{}, model.Label{Name: "bug", Color: "00ff00"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, api.updated)
	assert.Equal(t, "ff0000", api.labels["bug"].GetColor())
}

func TestOverwriteReplacesAttributes(t *testing.T) {
	api := newFakeLabelAPI(existingLabel("bug", "ff0000", "old"))
	r, _ := ResolverFor(StrategyOverwrite)

	created, err := r.Resolve(context.Background(), api, config.Repo{}, model.Label{Name: "bug", Color: "00ff00", Description: ""})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "00ff00", api.labels["bug"].GetColor())
	assert.Equal(t, "", api.labels["bug"].GetDescription())
}

func TestFailIfConflictReturnsConflict(t *testing.T) {
	api := newFakeLabelAPI(existingLabel("bug", "ff0000", "old"))
	r, _ := ResolverFor(StrategyFailIfConflict)

	_, err := r.Resolve(context.Background(), api, config.Repo{}, model.Label{Name: "bug"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestMergeIncomingNonEmptyWins(t *testing.T) {
	api := newFakeLabelAPI(existingLabel("bug", "ff0000", "kept description"))
	r, _ := ResolverFor(StrategyMerge)

	created, err := r.Resolve(context.Background(), api, config.Repo{}, model.Label{Name: "bug", Color: "00ff00", Description: ""})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "00ff00", api.labels["bug"].GetColor())
	assert.Equal(t, "kept description", api.labels["bug"].GetDescription())
}

func TestRenamePicksSmallestFreeSuffix(t *testing.T) {
	api := newFakeLabelAPI(
		existingLabel("bug", "ff0000", ""),
		existingLabel("bug-restored-1", "ff0000", ""),
	)
	r, _ := ResolverFor(StrategyRename)

	created, err := r.Resolve(context.Background(), api, config.Repo{}, model.Label{Name: "bug", Color: "00ff00", Description: "from snapshot"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"bug-restored-2"}, api.created)
	assert.Equal(t, "00ff00", api.labels["bug-restored-2"].GetColor())
}
