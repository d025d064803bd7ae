// Package all registers every entity implementation through blank
// imports. The orchestrator and CLI import it once so that package init
// side effects populate the declaration, converter, and operation
// registries.
//
// Import order is significant: the scheduler breaks topological ties by
// registration order, and reviews must land on a restored pull request
// before its conversation comments do.
package all

import (
	_ "github.com/repovault/repovault/internal/entities/labels"
	_ "github.com/repovault/repovault/internal/entities/milestones"
	_ "github.com/repovault/repovault/internal/entities/gitrepository"
	_ "github.com/repovault/repovault/internal/entities/issues"
	_ "github.com/repovault/repovault/internal/entities/comments"
	_ "github.com/repovault/repovault/internal/entities/subissues"
	_ "github.com/repovault/repovault/internal/entities/pullrequests"
	_ "github.com/repovault/repovault/internal/entities/prreviews"
	_ "github.com/repovault/repovault/internal/entities/prreviewcomments"
	_ "github.com/repovault/repovault/internal/entities/prcomments"
	_ "github.com/repovault/repovault/internal/entities/releases"
)
