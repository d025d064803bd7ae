// Package strategy defines the per-entity save and restore contracts and
// the run-scoped Context threaded between them. Each entity kind supplies
// a Saver and a Restorer through its declaration; the orchestrator runs
// them strictly in dependency order, so the Context needs no locking.
package strategy

import (
	"context"

	"github.com/repovault/repovault/internal/config"
)

// Saver is the save-direction algorithm for one entity kind
type Saver interface {
	// EntityName returns the stable entity identifier
	EntityName() string

	// Dependencies returns the entity names this strategy consumes from the Context
	Dependencies() []string

	// Save reads from GitHub, transforms, persists, and updates the
	// Context. Returns the number of persisted records.
	Save(ctx context.Context, rc *Context) (int, error)
}

// Restorer is the restore-direction algorithm for one entity kind
type Restorer interface {
	// EntityName returns the stable entity identifier
	EntityName() string

	// Dependencies returns the entity names this strategy consumes from the Context
	Dependencies() []string

	// Restore reads the snapshot, transforms each record through the
	// Context, writes it to GitHub, and records new-ID mappings.
	// Returns the number of created records.
	Restore(ctx context.Context, rc *Context) (int, error)
}

// Context is the run-scoped mutable record carrying cross-entity
// mappings and flags. It is single-threaded within a run.
type Context struct {
	// MilestoneNumbers maps original milestone numbers to target numbers
	MilestoneNumbers map[int]int

	// IssueNumbers maps original issue numbers to target numbers
	IssueNumbers map[int]int

	// PRNumbers maps original pull request numbers to target numbers
	PRNumbers map[int]int

	// ReviewIDs maps original review IDs to target review IDs
	ReviewIDs map[int64]int64

	// SavedParents records, per entity name, the set of numbers that
	// were actually saved in this run. Child strategies consult it to
	// drop orphans.
	SavedParents map[string]config.Selection

	// Enablement is the parsed per-entity enablement outcome
	Enablement map[string]config.Enablement

	// IncludeOriginalMetadata toggles the provenance footer on restore
	IncludeOriginalMetadata bool

	// ConflictStrategy names the label conflict resolution policy
	ConflictStrategy string
}

// NewContext creates an empty run Context
func NewContext() *Context {
	return &Context{
		MilestoneNumbers: make(map[int]int),
		IssueNumbers:     make(map[int]int),
		PRNumbers:        make(map[int]int),
		ReviewIDs:        make(map[int64]int64),
		SavedParents:     make(map[string]config.Selection),
		Enablement:       make(map[string]config.Enablement),
	}
}

// RecordParent marks number as a saved parent for entity
func (c *Context) RecordParent(entity string, number int) {
	set, ok := c.SavedParents[entity]
	if !ok {
		set = make(config.Selection)
		c.SavedParents[entity] = set
	}
	set[number] = struct{}{}
}

// ParentSaved reports whether number was saved for entity in this run
func (c *Context) ParentSaved(entity string, number int) bool {
	return c.SavedParents[entity].Contains(number)
}

// SelectionFor returns the selection set for an entity when its
// enablement is in selection form, else nil.
func (c *Context) SelectionFor(entity string) config.Selection {
	e, ok := c.Enablement[entity]
	if !ok || !e.IsSelection {
		return nil
	}
	return e.Selection
}
