// Package gitrepo mirrors the git side of a repository with the system
// git binary: a bare mirror clone on save, a mirror push on restore.
// Tokens never appear in remote URLs; they are handed to git through a
// temporary askpass helper.
package gitrepo

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// Service mirrors a git repository to and from local storage
type Service interface {
	// Clone mirror-clones url into target, a bare repository directory
	Clone(ctx context.Context, url, target string) error
	// Restore mirror-pushes the bare repository at source to targetURL
	Restore(ctx context.Context, source, targetURL string) error
}

// ExecService runs the git binary directly
type ExecService struct {
	token string
}

// NewExecService builds a Service authenticating with token
func NewExecService(token string) *ExecService {
	return &ExecService{token: token}
}

// createAskpassHelper writes a temporary script that answers git's
// password prompt with the token. The caller must run cleanup.
func createAskpassHelper(token string) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "git-askpass-*.sh")
	if err != nil {
		return "", nil, errors.ErrIO("failed to create askpass helper", err)
	}

	var script string
	if runtime.GOOS == "windows" {
		script = fmt.Sprintf("@echo off\necho %s\n", token)
	} else {
		script = fmt.Sprintf("#!/bin/sh\necho \"%s\"\n", token)
	}

	if _, err := tmpFile.WriteString(script); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", nil, errors.ErrIO("failed to write askpass helper", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", nil, errors.ErrIO("failed to close askpass helper", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpFile.Name(), 0700); err != nil {
			os.Remove(tmpFile.Name())
			return "", nil, errors.ErrIO("failed to make askpass helper executable", err)
		}
	}

	return tmpFile.Name(), func() { os.Remove(tmpFile.Name()) }, nil
}

// gitEnv builds the environment for a git invocation. Interactive
// prompts are always disabled.
func (s *ExecService) gitEnv() ([]string, func(), error) {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	cleanup := func() {}

	if s.token != "" {
		helperPath, remove, err := createAskpassHelper(s.token)
		if err != nil {
			return nil, nil, err
		}
		cleanup = remove
		env = append(env,
			"GIT_ASKPASS="+helperPath,
			"GIT_USERNAME=oauth2",
		)
	}
	return env, cleanup, nil
}

// run executes a git command, capturing stderr for the error message
func run(ctx context.Context, env []string, args ...string) error {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(cmd.Environ(), env...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "Authentication failed") {
			return errors.ErrFatal("git authentication failed, check GITHUB_TOKEN", err)
		}
		return errors.ErrIO(fmt.Sprintf("git %s failed: %s", args[0], msg), err)
	}
	return nil
}

// Clone mirror-clones url into target. An existing mirror at target is
// refreshed with a remote update instead of a fresh clone.
func (s *ExecService) Clone(ctx context.Context, url, target string) error {
	env, cleanup, err := s.gitEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, statErr := os.Stat(target); statErr == nil {
		logger.Debug("Refreshing existing mirror", zap.String("target", target))
		return run(ctx, env, "-C", target, "remote", "update", "--prune")
	}

	logger.Info("Mirror cloning repository", zap.String("target", target))
	return run(ctx, env, "clone", "--mirror", url, target)
}

// Restore mirror-pushes the bare repository at source to targetURL
func (s *ExecService) Restore(ctx context.Context, source, targetURL string) error {
	if _, err := os.Stat(source); err != nil {
		return errors.ErrNotFound("git mirror " + source)
	}

	env, cleanup, err := s.gitEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("Mirror pushing repository", zap.String("source", source))
	return run(ctx, env, "-C", source, "push", "--mirror", targetURL)
}
