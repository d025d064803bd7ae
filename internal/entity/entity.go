// Package entity implements the entity declaration registry. Each entity
// kind declares its name, enablement toggle, dependencies, required
// services, and strategy factories in its package init; the aggregator
// package internal/entities/all pulls every kind in via blank imports,
// mirroring how provider implementations self-register.
package entity

import (
	"fmt"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/gitrepo"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/storage"
	"github.com/repovault/repovault/internal/strategy"
)

// ValueType distinguishes the two enablement value forms
type ValueType int

const (
	// ValueBool accepts only boolean enablement values
	ValueBool ValueType = iota

	// ValueSelection additionally accepts number-specification values
	ValueSelection
)

// Service names used in required-service lists
const (
	ServiceAPI     = "api"
	ServiceStorage = "storage"
	ServiceGit     = "git"
)

// Services is the bag of collaborators handed to strategy factories.
// The orchestrator narrows it to each declaration's required services.
type Services struct {
	API     *github.Client
	Storage storage.Store
	Git     gitrepo.Service
	Config  *config.Config
}

// Has reports whether the named service is available
func (s *Services) Has(name string) bool {
	switch name {
	case ServiceAPI:
		return s.API != nil
	case ServiceStorage:
		return s.Storage != nil
	case ServiceGit:
		return s.Git != nil
	default:
		return false
	}
}

// SaverFactory builds a save strategy from the service bag
type SaverFactory func(svc *Services) (strategy.Saver, error)

// RestorerFactory builds a restore strategy from the service bag
type RestorerFactory func(svc *Services) (strategy.Restorer, error)

// Declaration describes one entity kind
type Declaration struct {
	// Name is the stable entity identifier
	Name string

	// EnvVar is the enablement toggle variable
	EnvVar string

	// ValueType is the accepted enablement value form
	ValueType ValueType

	// Default applies when the toggle variable is missing
	Default bool

	// Dependencies lists other entity names this kind depends on.
	// The set must form a DAG; cycles are a startup failure.
	Dependencies []string

	// RequiredServicesSave / RequiredServicesRestore narrow the
	// service bag per direction
	RequiredServicesSave    []string
	RequiredServicesRestore []string

	// NewSaver / NewRestorer are the strategy factories
	NewSaver    SaverFactory
	NewRestorer RestorerFactory
}

var declarations []Declaration

// Register records a declaration. Called from entity package init; a
// duplicate or incomplete declaration is a programmer error and panics.
func Register(d Declaration) {
	if d.Name == "" || d.EnvVar == "" {
		panic(fmt.Sprintf("entity: incomplete declaration %+v", d))
	}
	for _, existing := range declarations {
		if existing.Name == d.Name {
			panic(fmt.Sprintf("entity: %q registered twice", d.Name))
		}
	}
	declarations = append(declarations, d)
}

// Declarations returns all registered declarations in registration order
func Declarations() []Declaration {
	out := make([]Declaration, len(declarations))
	copy(out, declarations)
	return out
}

// Reset clears the registry. Test helper only.
func Reset() {
	declarations = nil
}
