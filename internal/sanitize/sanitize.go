// Package sanitize provides text sanitization for restored content.
// Bodies posted to the target repository are rewritten so that @mentions
// do not trigger notifications, and may carry a provenance footer
// recording the original author, timestamps, and URL.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// mentionPattern matches a GitHub login mention preceded by start-of-line
// or whitespace. Logins start and end with an alphanumeric character, may
// contain hyphens in between, and are at most 39 characters long.
// E-mail addresses and URLs are skipped because the @ is not preceded by
// whitespace there.
var mentionPattern = regexp.MustCompile(`(?m)(^|\s)(@[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?)`)

// Mentions wraps every @mention in backticks so GitHub renders it as
// code instead of notifying the user. Repeated application over already
// wrapped mentions is acceptable; idempotence is not required.
func Mentions(text string) string {
	return mentionPattern.ReplaceAllString(text, "$1`$2`")
}

// Provenance carries the original-record metadata for the footer
type Provenance struct {
	AuthorLogin string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	URL         string
}

// Footer appends a provenance block to body, separated by a horizontal
// rule. With an empty body the footer alone becomes the body.
func Footer(body string, p Provenance) string {
	var b strings.Builder
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")

	author := p.AuthorLogin
	if author == "" {
		author = "unknown"
	}
	fmt.Fprintf(&b, "*Originally created by `@%s`", author)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&b, " on %s", p.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	b.WriteString("*")
	if !p.UpdatedAt.IsZero() && !p.UpdatedAt.Equal(p.CreatedAt) {
		fmt.Fprintf(&b, "\n*Last updated on %s*", p.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "\n*Original URL: %s*", p.URL)
	}
	return b.String()
}

// Body sanitizes mentions and optionally appends the provenance footer.
// This is the single entry point the restore strategies use.
func Body(body string, p *Provenance) string {
	out := Mentions(body)
	if p != nil {
		out = Footer(out, *p)
	}
	return out
}
