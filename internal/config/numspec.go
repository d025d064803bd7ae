// Package config provides configuration management for the application.
// It reads process-level settings from environment variables with an
// optional YAML file supplying defaults, and implements the enablement
// value grammar shared by all entity toggles.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/repovault/repovault/pkg/errors"
)

// Selection is a set of positive integers chosen via the
// number-specification grammar (e.g. issue or PR numbers).
type Selection map[int]struct{}

// Contains reports whether n is a member of the selection
func (s Selection) Contains(n int) bool {
	_, ok := s[n]
	return ok
}

// Sorted returns the members in ascending order
func (s Selection) Sorted() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// ParseBool parses a boolean enablement value.
// Accepted forms (case-insensitive): true/false, yes/no, on/off.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	default:
		return false, errors.ErrConfig(fmt.Sprintf("invalid boolean value %q", value))
	}
}

// ParseNumberSpec parses a number-specification string into a Selection.
// Tokens are separated by commas and/or whitespace. Each token is either a
// positive integer or an inclusive range "start-end" with both positive and
// start <= end. Empty input, non-positive integers, and malformed ranges
// are configuration errors.
func ParseNumberSpec(value string) (Selection, error) {
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(tokens) == 0 {
		return nil, errors.ErrConfig("empty number specification")
	}

	out := make(Selection)
	for _, tok := range tokens {
		if start, end, ok := strings.Cut(tok, "-"); ok {
			lo, err := parsePositive(start)
			if err != nil {
				return nil, errors.ErrConfig(fmt.Sprintf("invalid range %q: %v", tok, err))
			}
			hi, err := parsePositive(end)
			if err != nil {
				return nil, errors.ErrConfig(fmt.Sprintf("invalid range %q: %v", tok, err))
			}
			if lo > hi {
				return nil, errors.ErrConfig(fmt.Sprintf("invalid range %q: start exceeds end", tok))
			}
			for n := lo; n <= hi; n++ {
				out[n] = struct{}{}
			}
			continue
		}

		n, err := parsePositive(tok)
		if err != nil {
			return nil, errors.ErrConfig(fmt.Sprintf("invalid number %q: %v", tok, err))
		}
		out[n] = struct{}{}
	}
	return out, nil
}

// parsePositive parses a strictly positive integer
func parsePositive(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty token")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// Enablement is the parsed value of an entity toggle: either a boolean or
// a selection set of positive integers.
type Enablement struct {
	// IsSelection distinguishes the two value forms
	IsSelection bool

	// Enabled is the boolean form; a selection implies enabled
	Enabled bool

	// Selection is populated only when IsSelection is true
	Selection Selection
}

// EnabledBool returns a boolean-form enablement
func EnabledBool(v bool) Enablement {
	return Enablement{Enabled: v}
}

// EnabledSelection returns a selection-form enablement
func EnabledSelection(s Selection) Enablement {
	return Enablement{IsSelection: true, Enabled: true, Selection: s}
}

// ParseEnablement parses an enablement value string. The boolean form is
// tried first so that "true" resolves as a boolean rather than failing the
// number grammar.
func ParseEnablement(value string) (Enablement, error) {
	if b, err := ParseBool(value); err == nil {
		return EnabledBool(b), nil
	}
	sel, err := ParseNumberSpec(value)
	if err != nil {
		return Enablement{}, errors.ErrConfig(fmt.Sprintf("invalid enablement value %q", value))
	}
	return EnabledSelection(sel), nil
}
