package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationIsWrite(t *testing.T) {
	tests := []struct {
		method string
		write  bool
	}{
		{"create_issue", true},
		{"update_label", true},
		{"delete_comment", true},
		{"close_issue", true},
		{"add_sub_issue", true},
		{"remove_label", true},
		{"reprioritize_sub_issue", true},
		{"get_repository_issues", false},
		{"list_releases", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			op := Operation{Method: tt.method}
			assert.Equal(t, tt.write, op.IsWrite())
		})
	}
}

func TestCacheable(t *testing.T) {
	assert.True(t, Operation{Method: "get_labels", CacheKeyTemplate: "repo"}.Cacheable())
	assert.False(t, Operation{Method: "get_labels"}.Cacheable())
	assert.False(t, Operation{Method: "create_label", CacheKeyTemplate: "repo"}.Cacheable())
}

func TestRegisterAndApply(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RegisterConverter("labels", "label", func(raw any) (any, error) {
		return raw.(string) + "-converted", nil
	})

	got, err := Apply("label", "bug")
	require.NoError(t, err)
	assert.Equal(t, "bug-converted", got)

	_, err = Apply("missing", "x")
	assert.Error(t, err)
}

func TestRegisterConverterCollisionPanics(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RegisterConverter("labels", "label", func(raw any) (any, error) { return raw, nil })
	assert.Panics(t, func() {
		RegisterConverter("issues", "label", func(raw any) (any, error) { return raw, nil })
	})
}

func TestValidateAll(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RegisterConverter("labels", "label", func(raw any) (any, error) { return raw, nil })
	RegisterOperation(Operation{
		Method:           "get_repository_labels",
		Entity:           "labels",
		Converter:        "label",
		CacheKeyTemplate: "repo",
	})
	require.NoError(t, ValidateAll())

	RegisterOperation(Operation{
		Method:    "get_repository_issues",
		Entity:    "issues",
		Converter: "issue",
	})
	assert.Error(t, ValidateAll())
}

func TestRegisterOperationDuplicatePanics(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RegisterOperation(Operation{Method: "get_x", Entity: "a"})
	assert.Panics(t, func() {
		RegisterOperation(Operation{Method: "get_x", Entity: "b"})
	})
}
