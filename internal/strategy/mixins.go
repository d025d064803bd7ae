package strategy

import (
	"go.uber.org/zap"

	"github.com/repovault/repovault/pkg/logger"
)

// FilterSelected applies selective filtering for entities whose
// enablement is a selection set (issues, pull requests). When the
// enablement is boolean the input passes through unchanged. Numbers
// requested but absent from the API response are reported once.
func FilterSelected[T any](entity string, items []T, number func(T) int, rc *Context) []T {
	sel := rc.SelectionFor(entity)
	if sel == nil {
		return items
	}

	seen := make(map[int]bool, len(sel))
	out := make([]T, 0, len(sel))
	for _, item := range items {
		n := number(item)
		if sel.Contains(n) {
			out = append(out, item)
			seen[n] = true
		}
	}

	var missing []int
	for _, n := range sel.Sorted() {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		logger.Warn("Requested numbers not present in repository",
			zap.String("entity", entity),
			zap.Ints("numbers", missing),
		)
	}
	return out
}

// FilterByParent couples a child entity to its saved parents: only
// children whose recorded parent number is among the parents saved in
// this run survive. Orphans are dropped with a count report. When no
// parents were saved (including the selective case where the parent
// selection matched nothing) every child is dropped.
func FilterByParent[T any](entity, parentEntity string, items []T, parent func(T) int, rc *Context) []T {
	parents := rc.SavedParents[parentEntity]

	out := make([]T, 0, len(items))
	dropped := 0
	for _, item := range items {
		if parents.Contains(parent(item)) {
			out = append(out, item)
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		logger.Warn("Dropped children without a saved parent",
			zap.String("entity", entity),
			zap.String("parent", parentEntity),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)),
		)
	}
	return out
}
