package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the structural solver parameters. Loaded once by the host and
// passed by reference into every validation call; the solver never reads it
// from disk itself.
type Tuning struct {
	// Gravity is the downward force multiplier: force = mass * gravity.
	Gravity float32 `yaml:"gravity"`
	// MaxIterations is the fixed relaxation pass count for authoritative
	// solves. Never an early-exit convergence check: a fixed count keeps two
	// runs on identical input bit-identical.
	MaxIterations int `yaml:"max_iterations"`
	// PreviewIterations is the reduced pass count for interactive preview.
	// Never used for an accept/reject decision.
	PreviewIterations int     `yaml:"preview_iterations"`
	DampingFactor     float32 `yaml:"damping_factor"`
	// InteriorBaseWeight is the mass of a furnished interior cell before its
	// face weights are added.
	InteriorBaseWeight float32 `yaml:"interior_base_weight"`
	WarnStressRatio    float32 `yaml:"warn_stress_ratio"`
	BlockStressRatio   float32 `yaml:"block_stress_ratio"`
	// TreeGenerationMaxRetries bounds the generate-validate-regrow loop.
	// Exhausting it means the generation parameters cannot produce a sound
	// structure under the current material catalog; that is a configuration
	// error for a human, not a runtime condition to paper over.
	TreeGenerationMaxRetries int `yaml:"tree_generation_max_retries"`
}

// Default returns the production tuning values.
func Default() Tuning {
	return Tuning{
		Gravity:                  1.0,
		MaxIterations:            200,
		PreviewIterations:        25,
		DampingFactor:            1.0,
		InteriorBaseWeight:       0.1,
		WarnStressRatio:          0.5,
		BlockStressRatio:         1.0,
		TreeGenerationMaxRetries: 4,
	}
}

// Load reads tuning.yaml. Fields absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %v", t.Gravity)
	}
	if t.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", t.MaxIterations)
	}
	if t.PreviewIterations <= 0 {
		return fmt.Errorf("preview_iterations must be positive, got %d", t.PreviewIterations)
	}
	if t.DampingFactor <= 0 {
		return fmt.Errorf("damping_factor must be positive, got %v", t.DampingFactor)
	}
	if t.WarnStressRatio <= 0 || t.BlockStressRatio < t.WarnStressRatio {
		return fmt.Errorf("stress thresholds must satisfy 0 < warn <= block, got warn=%v block=%v",
			t.WarnStressRatio, t.BlockStressRatio)
	}
	if t.TreeGenerationMaxRetries <= 0 {
		return fmt.Errorf("tree_generation_max_retries must be positive, got %d", t.TreeGenerationMaxRetries)
	}
	return nil
}
