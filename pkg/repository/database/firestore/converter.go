package firestore

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// PromptVersion Firestore document structure
type promptVersionDoc struct {
	PromptID         string        `firestore:"prompt_id"`
	Version          string        `firestore:"version"`
	Provider         string        `firestore:"provider"`
	Sampling         samplingDoc   `firestore:"sampling"`
	System           string        `firestore:"system"`
	Template         string        `firestore:"template"`
	OutputSchemaJSON string        `firestore:"output_schema_json"`
	Examples         []exampleDoc  `firestore:"examples"`
	Guardrails       guardrailsDoc `firestore:"guardrails"`
	Tags             []string      `firestore:"tags"`
	CreatedAt        time.Time     `firestore:"created_at"`
	UpdatedAt        time.Time     `firestore:"updated_at"`
	DeprecatedAt     *time.Time    `firestore:"deprecated_at"`
}

type samplingDoc struct {
	Temperature float64 `firestore:"temperature"`
	TopP        float64 `firestore:"top_p"`
	Seed        *int64  `firestore:"seed"`
	MaxTokens   int     `firestore:"max_tokens"`
	Model       string  `firestore:"model"`
	TimeoutMS   int64   `firestore:"timeout_ms"`
}

type exampleDoc struct {
	Input  map[string]string `firestore:"input"`
	Output string            `firestore:"output"`
}

type guardrailsDoc struct {
	Constraints       []string `firestore:"constraints"`
	Negations         []string `firestore:"negations"`
	RequireSelfReview bool     `firestore:"require_self_review"`
}

// versionToDoc converts a domain prompt version to a Firestore document.
// The output schema is recursive, so it travels as a JSON string rather
// than a nested document tree.
func versionToDoc(v *prompt.Version) (*promptVersionDoc, error) {
	doc := &promptVersionDoc{
		PromptID: v.ID.String(),
		Version:  v.Version,
		Provider: v.Provider.String(),
		Sampling: samplingDoc{
			Temperature: v.Sampling.Temperature,
			TopP:        v.Sampling.TopP,
			Seed:        v.Sampling.Seed,
			MaxTokens:   v.Sampling.MaxTokens,
			Model:       v.Sampling.Model,
			TimeoutMS:   v.Sampling.Timeout.Milliseconds(),
		},
		System:   v.System,
		Template: v.Template,
		Guardrails: guardrailsDoc{
			Constraints:       v.Guardrails.Constraints,
			Negations:         v.Guardrails.Negations,
			RequireSelfReview: v.Guardrails.RequireSelfReview,
		},
		Tags:         v.Tags,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		DeprecatedAt: v.DeprecatedAt,
	}

	if v.OutputSchema != nil {
		raw, err := json.Marshal(v.OutputSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal output schema")
		}
		doc.OutputSchemaJSON = string(raw)
	}

	for _, ex := range v.Examples {
		doc.Examples = append(doc.Examples, exampleDoc{
			Input:  ex.Input,
			Output: ex.Output,
		})
	}

	return doc, nil
}

// docToVersion converts a Firestore document to a domain prompt version
func docToVersion(doc *promptVersionDoc) (*prompt.Version, error) {
	provider := types.LLMProviderFromString(doc.Provider)
	if !provider.IsValid() {
		return nil, goerr.New("invalid provider in stored prompt",
			goerr.V("provider", doc.Provider),
			goerr.V("prompt_id", doc.PromptID),
			goerr.V("version", doc.Version))
	}

	v := &prompt.Version{
		ID:       types.PromptID(doc.PromptID),
		Version:  doc.Version,
		Provider: provider,
		Sampling: sampling.Config{
			Temperature: doc.Sampling.Temperature,
			TopP:        doc.Sampling.TopP,
			Seed:        doc.Sampling.Seed,
			MaxTokens:   doc.Sampling.MaxTokens,
			Model:       doc.Sampling.Model,
			Timeout:     time.Duration(doc.Sampling.TimeoutMS) * time.Millisecond,
		},
		System:   doc.System,
		Template: doc.Template,
		Guardrails: prompt.Guardrails{
			Constraints:       doc.Guardrails.Constraints,
			Negations:         doc.Guardrails.Negations,
			RequireSelfReview: doc.Guardrails.RequireSelfReview,
		},
		Tags:         doc.Tags,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		DeprecatedAt: doc.DeprecatedAt,
	}

	if doc.OutputSchemaJSON != "" {
		var s schema.Schema
		if err := json.Unmarshal([]byte(doc.OutputSchemaJSON), &s); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal output schema",
				goerr.V("prompt_id", doc.PromptID),
				goerr.V("version", doc.Version))
		}
		v.OutputSchema = &s
	}

	for _, ex := range doc.Examples {
		v.Examples = append(v.Examples, prompt.Example{
			Input:  ex.Input,
			Output: ex.Output,
		})
	}

	return v, nil
}
