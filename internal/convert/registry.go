// Package convert implements the converter and operation registries.
// Entity packages register named converter functions and GitHub operation
// declarations at init time; the registries are cross-validated once at
// startup so lookups never fail in steady state. Cross-entity conversions
// (an issue converter needing the user converter) go through Apply by
// name, which breaks package-level import cycles between entity kinds.
package convert

import (
	"fmt"
	"strings"

	"github.com/repovault/repovault/pkg/errors"
)

// Converter is a pure function mapping a raw API value to a domain entity
type Converter func(raw any) (any, error)

// Operation describes a declared GitHub API operation
type Operation struct {
	// Method is the logical operation name, e.g. "get_repository_issues"
	Method string

	// Entity is the entity kind that declared the operation
	Entity string

	// Converter names the converter applied to each returned value.
	// Empty for operations whose results are not converted.
	Converter string

	// CacheKeyTemplate names the parameters joined into the cache key,
	// e.g. "repo". Empty disables caching even for reads.
	CacheKeyTemplate string
}

// Write-method name prefixes. Everything else is a read and may be cached.
var writePrefixes = []string{
	"create_", "update_", "delete_", "close_", "add_", "remove_", "reprioritize_",
}

// IsWrite reports whether the operation mutates GitHub state
func (o Operation) IsWrite() bool {
	for _, p := range writePrefixes {
		if strings.HasPrefix(o.Method, p) {
			return true
		}
	}
	return false
}

// Cacheable reports whether results of this operation may be cached
func (o Operation) Cacheable() bool {
	return !o.IsWrite() && o.CacheKeyTemplate != ""
}

var (
	converters      = make(map[string]Converter)
	converterOwners = make(map[string]string)
	operations      = make(map[string]Operation)
)

// RegisterConverter binds a converter function under name on behalf of
// entity. Called from entity package init; a name collision is a
// programmer error and panics.
func RegisterConverter(entity, name string, fn Converter) {
	if owner, exists := converterOwners[name]; exists {
		panic(fmt.Sprintf("convert: converter %q registered by both %q and %q", name, owner, entity))
	}
	if fn == nil {
		panic(fmt.Sprintf("convert: converter %q is nil", name))
	}
	converters[name] = fn
	converterOwners[name] = entity
}

// RegisterOperation records an operation declaration. Called from entity
// package init; duplicate methods panic.
func RegisterOperation(op Operation) {
	if _, exists := operations[op.Method]; exists {
		panic(fmt.Sprintf("convert: operation %q registered twice", op.Method))
	}
	operations[op.Method] = op
}

// Apply runs the named converter over raw
func Apply(name string, raw any) (any, error) {
	fn, ok := converters[name]
	if !ok {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown converter %q", name))
	}
	return fn(raw)
}

// LookupOperation returns the declared operation for a method name
func LookupOperation(method string) (Operation, bool) {
	op, ok := operations[method]
	return op, ok
}

// Operations returns a copy of all declared operations
func Operations() []Operation {
	out := make([]Operation, 0, len(operations))
	for _, op := range operations {
		out = append(out, op)
	}
	return out
}

// ValidateAll cross-validates the registries: every converter referenced
// by an operation must exist. Run once at startup after all entity
// packages have registered.
func ValidateAll() error {
	for _, op := range operations {
		if op.Converter == "" {
			continue
		}
		if _, ok := converters[op.Converter]; !ok {
			return errors.ErrConfig(fmt.Sprintf(
				"operation %q of entity %q references unknown converter %q",
				op.Method, op.Entity, op.Converter))
		}
	}
	return nil
}

// Reset clears both registries. Test helper only.
func Reset() {
	converters = make(map[string]Converter)
	converterOwners = make(map[string]string)
	operations = make(map[string]Operation)
}
