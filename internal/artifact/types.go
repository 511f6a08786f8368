package artifact

import "fmt"

// #region class
// Class determines how an artifact is treated by the policy enforcer.
type Class string

const (
	// ClassCore artifacts must be reproducible for identical inputs. If a
	// required capability is unavailable, production stops with a typed
	// error; a degraded variant is never silently substituted.
	ClassCore Class = "CORE"

	// ClassCoreGate artifacts are normative prerequisites (usually
	// evidence) that unlock CORE production of a later phase. Gated like
	// CORE even when physically stored under a logs/telemetry area.
	ClassCoreGate Class = "CORE_GATE"

	// ClassService artifacts are best-effort: they may be skipped, stale,
	// or regenerated heuristically, but never replace a CORE artifact.
	ClassService Class = "SERVICE"
)

// Valid reports whether c is one of the three known classes.
func (c Class) Valid() bool {
	switch c {
	case ClassCore, ClassCoreGate, ClassService:
		return true
	}
	return false
}

// #endregion class

// #region descriptor
// Descriptor declares one artifact by workspace-relative logical name.
// Names may contain doublestar glob patterns so a phase can declare a whole
// output tree (e.g. "notes/**/*.md").
type Descriptor struct {
	Name  string `yaml:"name" json:"name"`
	Class Class  `yaml:"class" json:"class"`
}

// #endregion descriptor

// #region phase-spec
// PhaseSpec declares one pipeline phase, the phase whose evidence gates its
// CORE output, and the artifacts it may emit. The mapping is fixed per
// pipeline version and immutable at runtime.
type PhaseSpec struct {
	Name      string       `yaml:"name" json:"name"`
	Requires  string       `yaml:"requires,omitempty" json:"requires,omitempty"`
	Artifacts []Descriptor `yaml:"artifacts" json:"artifacts"`
}

// #endregion phase-spec

// #region config-error
// ConfigError marks malformed registration. It is fatal at startup and
// never recoverable at runtime.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline config error: %s", e.Msg)
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// #endregion config-error
