package entity

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

// Registry is a validated snapshot of the declared entities with their
// enablement outcome for one run.
type Registry struct {
	decls      []Declaration
	byName     map[string]*Declaration
	enablement map[string]config.Enablement
	order      []string // stable topological order over all declarations
}

// Load validates the registered declarations, parses enablement from the
// environment via lookup, cascades disablement, and computes the stable
// topological order. All failures here are configuration errors.
func Load(lookup func(string) (string, bool)) (*Registry, error) {
	decls := Declarations()
	if len(decls) == 0 {
		return nil, errors.ErrConfig("no entities registered")
	}

	r := &Registry{
		decls:      decls,
		byName:     make(map[string]*Declaration, len(decls)),
		enablement: make(map[string]config.Enablement, len(decls)),
	}
	for i := range decls {
		r.byName[decls[i].Name] = &decls[i]
	}

	// Dependencies must reference known entities
	for _, d := range decls {
		for _, dep := range d.Dependencies {
			if _, ok := r.byName[dep]; !ok {
				return nil, errors.ErrConfig(fmt.Sprintf(
					"entity %q depends on unknown entity %q", d.Name, dep))
			}
		}
	}

	order, err := topoSort(decls)
	if err != nil {
		return nil, err
	}
	r.order = order

	if err := r.parseEnablement(lookup); err != nil {
		return nil, err
	}
	r.cascadeDisable()

	return r, nil
}

// parseEnablement reads each entity's toggle variable
func (r *Registry) parseEnablement(lookup func(string) (string, bool)) error {
	for _, d := range r.decls {
		raw, ok := lookup(d.EnvVar)
		if !ok || raw == "" {
			r.enablement[d.Name] = config.EnabledBool(d.Default)
			continue
		}

		e, err := config.ParseEnablement(raw)
		if err != nil {
			return errors.ErrConfig(fmt.Sprintf(
				"%s: invalid enablement value %q", d.EnvVar, raw))
		}
		if e.IsSelection && d.ValueType != ValueSelection {
			return errors.ErrConfig(fmt.Sprintf(
				"%s: entity %q does not accept a number selection", d.EnvVar, d.Name))
		}
		r.enablement[d.Name] = e
	}
	return nil
}

// cascadeDisable iteratively disables entities whose any dependency is
// disabled, until fixpoint.
func (r *Registry) cascadeDisable() {
	for {
		changed := false
		for _, d := range r.decls {
			if !r.enablement[d.Name].Enabled {
				continue
			}
			for _, dep := range d.Dependencies {
				if !r.enablement[dep].Enabled {
					logger.Info("Disabling entity because its dependency is disabled",
						zap.String("entity", d.Name),
						zap.String("dependency", dep),
					)
					r.enablement[d.Name] = config.EnabledBool(false)
					changed = true
					break
				}
			}
		}
		if !changed {
			return
		}
	}
}

// topoSort computes a stable topological order: Kahn's algorithm with
// ties broken by declaration order. A cycle is a configuration error.
func topoSort(decls []Declaration) ([]string, error) {
	indegree := make(map[string]int, len(decls))
	for _, d := range decls {
		indegree[d.Name] = len(d.Dependencies)
	}

	var order []string
	emitted := make(map[string]bool, len(decls))
	for len(order) < len(decls) {
		progressed := false
		for _, d := range decls {
			if emitted[d.Name] || indegree[d.Name] > 0 {
				continue
			}
			emitted[d.Name] = true
			order = append(order, d.Name)
			progressed = true
			for _, other := range decls {
				for _, dep := range other.Dependencies {
					if dep == d.Name {
						indegree[other.Name]--
					}
				}
			}
		}
		if !progressed {
			var stuck []string
			for _, d := range decls {
				if !emitted[d.Name] {
					stuck = append(stuck, d.Name)
				}
			}
			return nil, errors.ErrConfig(fmt.Sprintf("dependency cycle among entities %v", stuck))
		}
	}
	return order, nil
}

// Get returns the declaration for name
func (r *Registry) Get(name string) (*Declaration, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Enablement returns the parsed enablement outcome for name
func (r *Registry) Enablement(name string) config.Enablement {
	return r.enablement[name]
}

// Enabled reports whether name survived enablement and cascading
func (r *Registry) Enabled(name string) bool {
	return r.enablement[name].Enabled
}

// EnabledEntities returns the enabled declarations in stable
// topological order.
func (r *Registry) EnabledEntities() []Declaration {
	var out []Declaration
	for _, name := range r.order {
		if r.enablement[name].Enabled {
			out = append(out, *r.byName[name])
		}
	}
	return out
}

// EnablementMap returns a copy of the full enablement outcome, used to
// seed the run Context.
func (r *Registry) EnablementMap() map[string]config.Enablement {
	out := make(map[string]config.Enablement, len(r.enablement))
	for k, v := range r.enablement {
		out[k] = v
	}
	return out
}
