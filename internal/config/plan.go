package config

import (
	"fmt"
	"os"

	"ringstat/domain/sweep"
	"ringstat/internal/errors"

	"gopkg.in/yaml.v3"
)

// Plan is a sweep described in a YAML file
type Plan struct {
	Name      string     `yaml:"name"`
	Kind      sweep.Kind `yaml:"kind"`
	Sources   []string   `yaml:"sources"`
	Output    string     `yaml:"output"`
	Target    int        `yaml:"target"`
	MaxTime   int        `yaml:"max_time"`
	Landmarks int        `yaml:"landmarks"`
	Trials    int        `yaml:"trials"`
	Workers   int        `yaml:"workers"`
	Seed      int64      `yaml:"seed"`

	// cells sweep
	Cells []int `yaml:"cells"`
	// cells_two sweep
	CellsA []int `yaml:"cells_a"`
	CellsB []int `yaml:"cells_b"`
	// times sweep
	NCells int   `yaml:"n_cells"`
	Times  []int `yaml:"times"`
}

// LoadPlan reads and validates a plan file. Unknown keys are rejected.
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.DataNotFound(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open plan %s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("failed to parse plan %s: %v", path, err))
	}
	if err := plan.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid plan %s", path)
	}
	return &plan, nil
}

// Validate checks that the axes and sources match the sweep kind
func (p *Plan) Validate() error {
	if p.Output == "" {
		return errors.ConfigInvalid("output is required")
	}
	if p.Trials < 0 || p.Workers < 0 || p.MaxTime < 0 {
		return errors.ConfigInvalid("trials, workers, and max_time must not be negative")
	}

	switch p.Kind {
	case sweep.KindCells:
		if len(p.Sources) != 1 {
			return errors.ConfigInvalid("cells sweep needs exactly one source")
		}
		if len(p.Cells) == 0 {
			return errors.ConfigInvalid("cells sweep needs at least one value in cells")
		}
	case sweep.KindCellsTwo:
		if len(p.Sources) != 2 {
			return errors.ConfigInvalid("cells_two sweep needs exactly two sources")
		}
		if len(p.CellsA) == 0 || len(p.CellsB) == 0 {
			return errors.ConfigInvalid("cells_two sweep needs values in cells_a and cells_b")
		}
	case sweep.KindTimes:
		if len(p.Sources) != 1 {
			return errors.ConfigInvalid("times sweep needs exactly one source")
		}
		if len(p.Times) == 0 {
			return errors.ConfigInvalid("times sweep needs at least one value in times")
		}
		for _, t := range p.Times {
			if t <= 0 {
				return errors.ConfigInvalid(fmt.Sprintf("time windows must be positive, got %d", t))
			}
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown sweep kind %q", p.Kind))
	}
	return nil
}

// ApplyDefaults fills unset trial settings from the environment configuration
func (p *Plan) ApplyDefaults(t TrialConfig) {
	if p.Trials == 0 {
		p.Trials = t.Count
	}
	if p.Workers == 0 {
		p.Workers = t.Workers
	}
	if p.Landmarks == 0 {
		p.Landmarks = t.Landmarks
	}
	if p.Seed == 0 {
		p.Seed = t.Seed
	}
}
