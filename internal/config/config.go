package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// Environment variable names for process-level settings
const (
	EnvOperation          = "OPERATION"
	EnvToken              = "GITHUB_TOKEN"
	EnvRepo               = "GITHUB_REPO"
	EnvDataPath           = "DATA_PATH"
	EnvCreateIfMissing    = "CREATE_REPOSITORY_IF_MISSING"
	EnvVisibility         = "REPOSITORY_VISIBILITY"
	EnvIncludeMetadata    = "INCLUDE_ORIGINAL_METADATA"
	EnvConflictStrategy   = "LABEL_CONFLICT_STRATEGY"
	EnvPageSize           = "PAGE_SIZE"
	EnvMaxRetries         = "MAX_RETRIES"
	EnvRetryBaseSeconds   = "RETRY_BASE_SECONDS"
	EnvRetryMaxSeconds    = "RETRY_MAX_SECONDS"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvGitHubAPIBaseURL   = "GITHUB_API_BASE_URL"
)

// Repository visibility values for restore
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Repo identifies a GitHub repository as owner/name
type Repo struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// String returns the owner/name form
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses an "owner/name" string into a Repo
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, errors.ErrConfig(fmt.Sprintf("invalid repository %q, expected owner/name", s))
	}
	return Repo{Owner: owner, Name: name}, nil
}

// RetryConfig tunes the API mediator's rate-limit back-off
type RetryConfig struct {
	// MaxRetries is the retry budget per call
	MaxRetries int `yaml:"max_retries"`
	// BaseSeconds is the base delay; attempt k sleeps base * 2^k
	BaseSeconds int `yaml:"base_seconds"`
	// MaxSeconds caps a single sleep
	MaxSeconds int `yaml:"max_seconds"`
}

// BaseDelay returns the base delay as a duration
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseSeconds) * time.Second
}

// MaxDelay returns the per-sleep cap as a duration
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxSeconds) * time.Second
}

// Config represents the complete application configuration.
// Values come from an optional YAML file first, then environment
// variables override field by field; the environment is the primary
// surface, the file is tuning convenience.
type Config struct {
	Operation  string        `yaml:"operation"`
	Token      string        `yaml:"-"` // never persisted to disk
	Repo       Repo          `yaml:"repo"`
	DataPath   string        `yaml:"data_path"`
	APIBaseURL string        `yaml:"api_base_url"` // GitHub Enterprise support
	PageSize   int           `yaml:"page_size"`
	Retry      RetryConfig   `yaml:"retry"`
	Logging    logger.Config `yaml:"logging"`

	// Restore-only settings
	CreateRepositoryIfMissing bool   `yaml:"create_repository_if_missing"`
	RepositoryVisibility      string `yaml:"repository_visibility"`
	IncludeOriginalMetadata   bool   `yaml:"include_original_metadata"`
	LabelConflictStrategy     string `yaml:"label_conflict_strategy"`
}

// Load builds the configuration from the optional YAML file at path
// (empty path skips the file) and the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "failed to parse config file", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config with all defaults applied
func defaults() *Config {
	return &Config{
		DataPath: consts.DefaultDataPath,
		PageSize: consts.DefaultPageSize,
		Retry: RetryConfig{
			MaxRetries:  consts.DefaultMaxRetries,
			BaseSeconds: consts.DefaultRetryBaseSeconds,
			MaxSeconds:  consts.DefaultRetryMaxSeconds,
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "text",
		},
		RepositoryVisibility:  VisibilityPrivate,
		LabelConflictStrategy: "fail_if_conflict",
	}
}

// applyEnv overrides config fields from environment variables.
// lookup is injected for testability.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvOperation); ok {
		c.Operation = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvToken); ok {
		c.Token = v
	}
	if v, ok := lookup(EnvRepo); ok {
		repo, err := ParseRepo(v)
		if err != nil {
			return err
		}
		c.Repo = repo
	}
	if v, ok := lookup(EnvDataPath); ok {
		c.DataPath = v
	}
	if v, ok := lookup(EnvGitHubAPIBaseURL); ok {
		c.APIBaseURL = v
	}
	if v, ok := lookup(EnvVisibility); ok {
		c.RepositoryVisibility = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvConflictStrategy); ok {
		c.LabelConflictStrategy = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Logging.Format = v
	}

	var err error
	if c.CreateRepositoryIfMissing, err = envBool(lookup, EnvCreateIfMissing, c.CreateRepositoryIfMissing); err != nil {
		return err
	}
	if c.IncludeOriginalMetadata, err = envBool(lookup, EnvIncludeMetadata, c.IncludeOriginalMetadata); err != nil {
		return err
	}
	if c.PageSize, err = envInt(lookup, EnvPageSize, c.PageSize); err != nil {
		return err
	}
	if c.Retry.MaxRetries, err = envInt(lookup, EnvMaxRetries, c.Retry.MaxRetries); err != nil {
		return err
	}
	if c.Retry.BaseSeconds, err = envInt(lookup, EnvRetryBaseSeconds, c.Retry.BaseSeconds); err != nil {
		return err
	}
	if c.Retry.MaxSeconds, err = envInt(lookup, EnvRetryMaxSeconds, c.Retry.MaxSeconds); err != nil {
		return err
	}
	return nil
}

// envBool reads a boolean environment variable with the enablement grammar
func envBool(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := ParseBool(v)
	if err != nil {
		return false, errors.ErrConfig(fmt.Sprintf("%s: invalid boolean value %q", key, v))
	}
	return b, nil
}

// envInt reads a positive integer environment variable
func envInt(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, errors.ErrConfig(fmt.Sprintf("%s: invalid positive integer %q", key, v))
	}
	return n, nil
}

// Validate checks settings required for any run. Token and repository are
// mandatory; the operation must be recognized when set.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.ErrConfig(EnvToken + " is required")
	}
	if c.Repo.Owner == "" || c.Repo.Name == "" {
		return errors.ErrConfig(EnvRepo + " is required (owner/name)")
	}
	switch c.Operation {
	case "", consts.OperationSave, consts.OperationRestore:
	default:
		return errors.ErrConfig(fmt.Sprintf("unknown operation %q", c.Operation))
	}
	switch c.RepositoryVisibility {
	case VisibilityPublic, VisibilityPrivate:
	default:
		return errors.ErrConfig(fmt.Sprintf("invalid repository visibility %q", c.RepositoryVisibility))
	}
	return nil
}
