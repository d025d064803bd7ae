package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repovault/repovault/pkg/errors"
)

func TestCreateAskpassHelper(t *testing.T) {
	path, cleanup, err := createAskpassHelper("secret-token")
	require.NoError(t, err)
	defer cleanup()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestGitEnvWithoutToken(t *testing.T) {
	s := NewExecService("")
	env, cleanup, err := s.gitEnv()
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []string{"GIT_TERMINAL_PROMPT=0"}, env)
}

func TestGitEnvWithToken(t *testing.T) {
	s := NewExecService("tok")
	env, cleanup, err := s.gitEnv()
	require.NoError(t, err)
	defer cleanup()

	require.Len(t, env, 3)
	assert.Equal(t, "GIT_TERMINAL_PROMPT=0", env[0])
	assert.Contains(t, env[1], "GIT_ASKPASS=")
	assert.Equal(t, "GIT_USERNAME=oauth2", env[2])
}

func TestRestoreMissingSource(t *testing.T) {
	s := NewExecService("")
	err := s.Restore(context.Background(), filepath.Join(t.TempDir(), "absent"), "https://example.invalid/repo.git")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
