package artifact

import (
	"github.com/bmatcuk/doublestar/v4"
)

// #region registry
// Registry is the static name-to-class table, built once at startup and
// immutable afterwards. It replaces per-call-site phase-name string
// comparisons with a single validated registration.
type Registry struct {
	order  []string
	phases map[string]PhaseSpec
}

// NewRegistry validates and freezes the phase table. Duplicate phases,
// conflicting classes for the same artifact name, unknown prerequisite
// references, and unknown classes are all programming errors surfaced as
// *ConfigError, fatal at startup rather than at decision time.
func NewRegistry(specs []PhaseSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, configErrorf("no phases registered")
	}

	r := &Registry{phases: make(map[string]PhaseSpec, len(specs))}
	classByName := make(map[string]Class)

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, configErrorf("phase with empty name")
		}
		if _, dup := r.phases[spec.Name]; dup {
			return nil, configErrorf("phase %q registered twice", spec.Name)
		}
		if len(spec.Artifacts) == 0 {
			return nil, configErrorf("phase %q declares no artifacts", spec.Name)
		}
		for _, d := range spec.Artifacts {
			if d.Name == "" {
				return nil, configErrorf("phase %q declares artifact with empty name", spec.Name)
			}
			if !d.Class.Valid() {
				return nil, configErrorf("artifact %q in phase %q has unknown class %q", d.Name, spec.Name, d.Class)
			}
			if prev, seen := classByName[d.Name]; seen && prev != d.Class {
				return nil, configErrorf("artifact %q re-registered with class %s, previously %s", d.Name, d.Class, prev)
			}
			classByName[d.Name] = d.Class
			if !doublestar.ValidatePattern(d.Name) {
				return nil, configErrorf("artifact %q in phase %q is not a valid pattern", d.Name, spec.Name)
			}
		}
		r.phases[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}

	for _, spec := range specs {
		if spec.Requires == "" {
			continue
		}
		if _, ok := r.phases[spec.Requires]; !ok {
			return nil, configErrorf("phase %q requires unknown phase %q", spec.Name, spec.Requires)
		}
		if spec.Requires == spec.Name {
			return nil, configErrorf("phase %q requires itself", spec.Name)
		}
	}

	return r, nil
}

// #endregion registry

// #region queries
// Phases returns phase names in declaration order.
func (r *Registry) Phases() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// HasPhase reports whether the phase is registered.
func (r *Registry) HasPhase(phase string) bool {
	_, ok := r.phases[phase]
	return ok
}

// Artifacts returns the declared artifacts of a phase.
func (r *Registry) Artifacts(phase string) []Descriptor {
	spec, ok := r.phases[phase]
	if !ok {
		return nil
	}
	out := make([]Descriptor, len(spec.Artifacts))
	copy(out, spec.Artifacts)
	return out
}

// Prerequisite returns the phase whose evidence gates this phase's CORE
// output. ok is false for ungated phases (the pipeline head).
func (r *Registry) Prerequisite(phase string) (string, bool) {
	spec, ok := r.phases[phase]
	if !ok || spec.Requires == "" {
		return "", false
	}
	return spec.Requires, true
}

// Match resolves a concrete artifact name against the phase's declared
// descriptors, exact name first, then glob patterns in declaration order.
func (r *Registry) Match(phase, name string) (Descriptor, bool) {
	spec, ok := r.phases[phase]
	if !ok {
		return Descriptor{}, false
	}
	for _, d := range spec.Artifacts {
		if d.Name == name {
			return d, true
		}
	}
	for _, d := range spec.Artifacts {
		if matched, err := doublestar.Match(d.Name, name); err == nil && matched {
			return d, true
		}
	}
	return Descriptor{}, false
}

// #endregion queries
