// Package consts defines cross-module constants used throughout the application.
package consts

// ServiceName is the application service name
const ServiceName = "repovault"

// Project information constants
const (
	// ProjectName is the display name of the project
	ProjectName = "RepoVault"

	// ProjectURL is the GitHub repository URL
	ProjectURL = "https://github.com/repovault/repovault"
)

// Operation names accepted by the OPERATION environment variable
const (
	// OperationSave mirrors a repository to the data directory
	OperationSave = "save"

	// OperationRestore reconstructs a repository from the data directory
	OperationRestore = "restore"
)

// Canonical artifact file names inside the run directory
const (
	LabelsFile           = "labels.json"
	MilestonesFile       = "milestones.json"
	IssuesFile           = "issues.json"
	CommentsFile         = "comments.json"
	SubIssuesFile        = "sub_issues.json"
	PullRequestsFile     = "pull_requests.json"
	PRCommentsFile       = "pr_comments.json"
	PRReviewsFile        = "pr_reviews.json"
	PRReviewCommentsFile = "pr_review_comments.json"
	ReleasesFile         = "releases.json"
	ManifestFile         = "manifest.json"

	// ReleaseAssetsDir holds downloaded binary assets, one subdirectory per tag
	ReleaseAssetsDir = "release-assets"

	// GitRepoDir holds the mirrored Git repository
	GitRepoDir = "git-repo"
)

// Entity names. These are the stable identifiers used by declarations,
// dependency lists, and the run context.
const (
	EntityLabels           = "labels"
	EntityMilestones       = "milestones"
	EntityIssues           = "issues"
	EntityComments         = "comments"
	EntitySubIssues        = "sub_issues"
	EntityPullRequests     = "pull_requests"
	EntityPRComments       = "pr_comments"
	EntityPRReviews        = "pr_reviews"
	EntityPRReviewComments = "pr_review_comments"
	EntityReleases         = "releases"
	EntityGitRepository    = "git_repository"
)

// Default process-level settings
const (
	// DefaultDataPath is the run directory when DATA_PATH is not set
	DefaultDataPath = "/data"

	// DefaultPageSize is the GraphQL pagination page size
	DefaultPageSize = 100

	// DefaultMaxRetries is the rate-limit retry budget per API call
	DefaultMaxRetries = 3

	// DefaultRetryBaseSeconds is the base back-off delay in seconds
	DefaultRetryBaseSeconds = 1

	// DefaultRetryMaxSeconds caps a single back-off sleep in seconds
	DefaultRetryMaxSeconds = 60

	// RateLimitWarnThreshold triggers a warning when the remaining
	// API quota drops below this value
	RateLimitWarnThreshold = 100

	// RepoAvailabilityAttempts is how many times the restore gate polls
	// a freshly created repository before giving up
	RepoAvailabilityAttempts = 10

	// RepoAvailabilityDelaySeconds is the delay between availability polls
	RepoAvailabilityDelaySeconds = 2
)

// Build information - set via ldflags during build or programmatically
var (
	// Version is the application version
	Version = "dev"

	// BuildTime is the build timestamp
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)
