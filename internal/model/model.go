// Package model defines the domain entities mirrored between GitHub and
// the on-disk snapshot. All types are plain JSON-tagged structs; the
// canonical artifact format is a pretty-printed array of these.
package model

import "time"

// User represents a GitHub account referenced by other entities
type User struct {
	Login   string `json:"login"`
	ID      int64  `json:"id"`
	URL     string `json:"url,omitempty"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Label represents a repository label
type Label struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Milestone represents a repository milestone
type Milestone struct {
	ID      int64      `json:"id"`
	Number  int        `json:"number"`
	Title   string     `json:"title"`
	State   string     `json:"state"` // open, closed
	Body    string     `json:"description,omitempty"`
	DueOn   *time.Time `json:"due_on,omitempty"`
	Creator *User      `json:"creator,omitempty"`
}

// Issue represents a repository issue
type Issue struct {
	ID          int64      `json:"id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	State       string     `json:"state"` // open, closed
	StateReason string     `json:"state_reason,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Milestone   *int       `json:"milestone,omitempty"` // milestone number in the same snapshot
	Assignees   []string   `json:"assignees,omitempty"`
	Author      *User      `json:"author,omitempty"`
	HTMLURL     string     `json:"html_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// Comment represents an issue comment
type Comment struct {
	ID          int64     `json:"id"`
	IssueNumber int       `json:"issue_number"`
	Body        string    `json:"body"`
	Author      *User     `json:"author,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubIssue represents a parent/child edge in the sub-issue hierarchy
type SubIssue struct {
	ParentNumber int `json:"parent_issue_number"`
	ChildNumber  int `json:"sub_issue_number"`
	Position     int `json:"position"`
}

// PullRequest represents a pull request
type PullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	State     string     `json:"state"` // open, closed
	HeadRef   string     `json:"head_ref"`
	BaseRef   string     `json:"base_ref"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	MergeSHA  string     `json:"merge_sha,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Milestone *int       `json:"milestone,omitempty"`
	Author    *User      `json:"author,omitempty"`
	HTMLURL   string     `json:"html_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PRComment represents a conversation comment on a pull request
type PRComment struct {
	ID        int64     `json:"id"`
	PRNumber  int       `json:"pr_number"`
	Body      string    `json:"body"`
	Author    *User     `json:"author,omitempty"`
	HTMLURL   string    `json:"html_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review states accepted by GitHub
const (
	ReviewStateApproved         = "APPROVED"
	ReviewStateChangesRequested = "CHANGES_REQUESTED"
	ReviewStateCommented        = "COMMENTED"
)

// PRReview represents a pull request review
type PRReview struct {
	ID          int64     `json:"id"`
	PRNumber    int       `json:"pr_number"`
	State       string    `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED
	Body        string    `json:"body,omitempty"`
	Author      *User     `json:"author,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// PRReviewComment represents a diff-anchored comment attached to a review
type PRReviewComment struct {
	ID          int64     `json:"id"`
	ReviewID    int64     `json:"review_id"`
	PRNumber    int       `json:"pr_number"`
	Body        string    `json:"body"`
	Path        string    `json:"path"`
	Line        int       `json:"line,omitempty"`
	DiffHunk    string    `json:"diff_hunk,omitempty"`
	InReplyToID int64     `json:"in_reply_to_id,omitempty"`
	Author      *User     `json:"author,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Release represents a tagged release
type Release struct {
	ID              int64          `json:"id"`
	TagName         string         `json:"tag_name"`
	TargetCommitish string         `json:"target_commitish,omitempty"`
	Name            string         `json:"name,omitempty"`
	Draft           bool           `json:"draft"`
	Prerelease      bool           `json:"prerelease"`
	Body            string         `json:"body,omitempty"`
	Author          *User          `json:"author,omitempty"`
	HTMLURL         string         `json:"html_url,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	Assets          []ReleaseAsset `json:"assets,omitempty"`
}

// ReleaseAsset represents a binary asset attached to a release
type ReleaseAsset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	// LocalPath is set after the asset has been downloaded into the
	// release-assets directory; relative to the run directory.
	LocalPath string `json:"local_path,omitempty"`
}

// Manifest summarizes a completed save run
type Manifest struct {
	RunID     string         `json:"run_id"`
	Repo      string         `json:"repo"`
	CreatedAt time.Time      `json:"created_at"`
	Counts    map[string]int `json:"counts"`
}
