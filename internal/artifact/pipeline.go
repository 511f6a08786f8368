package artifact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mirelabs/gatekeeper/internal/evidence"
)

// #region pipeline-file
// pipelineFile is the on-disk YAML shape. The manifest is versioned with
// the pipeline; editing it is a deploy, not a runtime operation.
type pipelineFile struct {
	Version int         `yaml:"version"`
	Phases  []PhaseSpec `yaml:"phases"`
}

// LoadPipeline reads a pipeline manifest and builds the validated registry.
func LoadPipeline(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline manifest %s: %w", path, err)
	}
	var pf pipelineFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, configErrorf("parse pipeline manifest %s: %v", path, err)
	}
	if pf.Version != 1 {
		return nil, configErrorf("pipeline manifest %s has unsupported version %d", path, pf.Version)
	}
	return NewRegistry(pf.Phases)
}

// #endregion pipeline-file

// #region default-pipeline
// DefaultPipeline is the standard corpus onboarding flow. Each phase's
// evidence record doubles as the CORE_GATE prerequisite of the next phase.
func DefaultPipeline() []PhaseSpec {
	return []PhaseSpec{
		{
			Name: "ingest",
			Artifacts: []Descriptor{
				{Name: "raw/**/*.md", Class: ClassCore},
				{Name: evidence.Path("ingest"), Class: ClassCoreGate},
				{Name: "logs/ingest.log", Class: ClassService},
			},
		},
		{
			Name:     "normalize",
			Requires: "ingest",
			Artifacts: []Descriptor{
				{Name: "normalized/**/*.md", Class: ClassCore},
				{Name: evidence.Path("normalize"), Class: ClassCoreGate},
				{Name: "logs/normalize.log", Class: ClassService},
			},
		},
		{
			Name:     "tag",
			Requires: "normalize",
			Artifacts: []Descriptor{
				{Name: "tagged/**/*.md", Class: ClassCore},
				{Name: evidence.Path("tag"), Class: ClassCoreGate},
				{Name: "logs/tag.log", Class: ClassService},
				{Name: "reports/tag-preview.html", Class: ClassService},
			},
		},
		{
			Name:     "enrich",
			Requires: "tag",
			Artifacts: []Descriptor{
				{Name: "enriched/**/*.md", Class: ClassCore},
				{Name: evidence.Path("enrich"), Class: ClassCoreGate},
				{Name: "logs/enrich.log", Class: ClassService},
			},
		},
		{
			Name:     "publish",
			Requires: "enrich",
			Artifacts: []Descriptor{
				{Name: "kb/**/*.md", Class: ClassCore},
				{Name: "kb/SUMMARY.md", Class: ClassCore},
				{Name: evidence.Path("publish"), Class: ClassCoreGate},
				{Name: "logs/publish.log", Class: ClassService},
			},
		},
	}
}

// #endregion default-pipeline
