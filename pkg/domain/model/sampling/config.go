package sampling

import (
	"time"
)

const (
	// nudgeTemperature is the fixed step applied by MoreDeterministic/MoreCreative
	nudgeTemperature = 0.1
	nudgeTopP        = 0.05

	// seedBonus is the reproducibility score bonus for a fixed seed
	seedBonus = 0.1
)

// Config holds the sampling parameters of one completion call.
// Temperature 0 is fully deterministic, 1 fully creative.
type Config struct {
	Temperature float64       `json:"temperature" yaml:"temperature"`
	TopP        float64       `json:"top_p" yaml:"top_p"`
	Seed        *int64        `json:"seed,omitempty" yaml:"seed,omitempty"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Model       string        `json:"model" yaml:"model"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ValidationResult reports every bound violation of a Config, one
// message per violation.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// Validate checks the numeric bounds of the config
func (c Config) Validate() ValidationResult {
	var violations []string

	if c.Temperature < 0 || c.Temperature > 1 {
		violations = append(violations, "temperature must be between 0 and 1")
	}
	if c.TopP < 0 || c.TopP > 1 {
		violations = append(violations, "top_p must be between 0 and 1")
	}
	if c.Model == "" {
		violations = append(violations, "model identifier cannot be empty")
	}
	if c.MaxTokens < 0 {
		violations = append(violations, "max_tokens cannot be negative")
	}

	return ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// MoreDeterministic returns a derived config nudged toward deterministic
// output. Bounds are clamped to [0, 1].
func (c Config) MoreDeterministic() Config {
	derived := c
	derived.Temperature = clamp01(c.Temperature - nudgeTemperature)
	derived.TopP = clamp01(c.TopP - nudgeTopP)
	return derived
}

// MoreCreative returns a derived config nudged toward creative output
func (c Config) MoreCreative() Config {
	derived := c
	derived.Temperature = clamp01(c.Temperature + nudgeTemperature)
	derived.TopP = clamp01(c.TopP + nudgeTopP)
	return derived
}

// ReproducibilityScore is a heuristic proxy for expected output
// stability: (1 - temperature) plus a bonus for a fixed seed, clamped
// to 1. Reporting only, never used for control flow.
func (c Config) ReproducibilityScore() float64 {
	score := 1 - c.Temperature
	if c.Seed != nil {
		score += seedBonus
	}
	return clamp01(score)
}

// Seeded returns a copy of the config with the given seed fixed
func (c Config) Seeded(seed int64) Config {
	derived := c
	derived.Seed = &seed
	return derived
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
