package prompt

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// Version is one immutable-once-published unit of instruction: an
// identified template plus its sampling configuration. Mutation happens
// only by re-registering the same ID+version or by setting DeprecatedAt.
type Version struct {
	ID           types.PromptID    `json:"id"`
	Version      string            `json:"version"`
	Provider     types.LLMProvider `json:"provider"`
	Sampling     sampling.Config   `json:"sampling"`
	System       string            `json:"system"`
	Template     string            `json:"template"`
	OutputSchema *schema.Schema    `json:"output_schema,omitempty"`
	Examples     []Example         `json:"examples,omitempty"`
	Guardrails   Guardrails        `json:"guardrails"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeprecatedAt *time.Time        `json:"deprecated_at,omitempty"`
}

// Example is one worked input/output pair attached to a prompt version
type Example struct {
	Input  map[string]string `json:"input"`
	Output string            `json:"output"`
}

// Guardrails is the constraint set rendered into every call of the
// owning version.
type Guardrails struct {
	Constraints       []string `json:"constraints,omitempty"`
	Negations         []string `json:"negations,omitempty"`
	RequireSelfReview bool     `json:"require_self_review"`
}

// IsDeprecated reports whether the version has passed its retirement
// timestamp at the given instant.
func (v *Version) IsDeprecated(now time.Time) bool {
	return v.DeprecatedAt != nil && !v.DeprecatedAt.After(now)
}

// Clone returns a deep copy so repository callers cannot mutate stored state
func (v *Version) Clone() *Version {
	if v == nil {
		return nil
	}

	clone := *v

	if v.DeprecatedAt != nil {
		t := *v.DeprecatedAt
		clone.DeprecatedAt = &t
	}
	if v.Sampling.Seed != nil {
		s := *v.Sampling.Seed
		clone.Sampling.Seed = &s
	}
	clone.OutputSchema = v.OutputSchema.Clone()
	if v.Tags != nil {
		clone.Tags = append([]string{}, v.Tags...)
	}
	if v.Examples != nil {
		clone.Examples = make([]Example, len(v.Examples))
		for i, ex := range v.Examples {
			clone.Examples[i] = Example{Output: ex.Output}
			if ex.Input != nil {
				clone.Examples[i].Input = make(map[string]string, len(ex.Input))
				for k, val := range ex.Input {
					clone.Examples[i].Input[k] = val
				}
			}
		}
	}
	if v.Guardrails.Constraints != nil {
		clone.Guardrails.Constraints = append([]string{}, v.Guardrails.Constraints...)
	}
	if v.Guardrails.Negations != nil {
		clone.Guardrails.Negations = append([]string{}, v.Guardrails.Negations...)
	}

	return &clone
}
