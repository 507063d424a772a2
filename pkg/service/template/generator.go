package template

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// Generator produces structurally valid but generic results from static
// per-prompt templates, without touching the completion service. It
// serves the third fallback tier.
type Generator struct {
	templates map[types.PromptID]Template
}

// Template is one static response shape for a prompt
type Template struct {
	// Schema drives generic field synthesis when Fields is empty
	Schema *schema.Schema
	// Fields is a fixed structured response
	Fields map[string]any
	// Text is a fixed plain response for unstructured prompts
	Text string
}

// Option is a functional option for Generator
type Option func(*Generator)

// WithTemplate registers a static template for a prompt
func WithTemplate(id types.PromptID, tmpl Template) Option {
	return func(g *Generator) {
		g.templates[id] = tmpl
	}
}

// New creates a new template generator
func New(opts ...Option) *Generator {
	g := &Generator{
		templates: make(map[types.PromptID]Template),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate produces a generic result for the prompt. A registered
// template wins; otherwise the version's output schema drives field
// synthesis. For unstructured prompts the input values are echoed into
// a summary line so the caller can tell which request the placeholder
// answers.
func (g *Generator) Generate(ctx context.Context, version *prompt.Version, input map[string]string) (*completion.Result, error) {
	tmpl, ok := g.templates[version.ID]
	if !ok {
		tmpl = Template{Schema: version.OutputSchema}
	}

	if tmpl.Fields != nil {
		raw, err := json.Marshal(tmpl.Fields)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode template fields")
		}
		return &completion.Result{
			Text:   string(raw),
			Fields: cloneFields(tmpl.Fields),
		}, nil
	}

	if tmpl.Schema != nil {
		fields := synthesize(tmpl.Schema)
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode synthesized fields")
		}
		return &completion.Result{
			Text:   string(raw),
			Fields: fields,
		}, nil
	}

	text := tmpl.Text
	if text == "" {
		text = "generic response for " + version.ID.String()
	}
	if len(input) > 0 {
		text += " (" + formatInput(input) + ")"
	}

	return &completion.Result{Text: text}, nil
}

// synthesize builds the most generic value satisfying a schema
func synthesize(s *schema.Schema) map[string]any {
	obj, ok := synthesizeValue(s).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return obj
}

func synthesizeValue(s *schema.Schema) any {
	switch s.Kind {
	case schema.KindObject:
		obj := make(map[string]any, len(s.Required))
		for _, name := range s.Required {
			if prop, ok := s.Properties[name]; ok {
				obj[name] = synthesizeValue(prop)
			}
		}
		return obj
	case schema.KindArray:
		return []any{}
	case schema.KindString:
		return "unavailable"
	case schema.KindNumber, schema.KindInteger:
		return 0
	case schema.KindBoolean:
		return false
	case schema.KindEnum:
		if len(s.Values) > 0 {
			return s.Values[0]
		}
		return ""
	default:
		return nil
	}
}

func formatInput(input map[string]string) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+input[k])
	}
	return strings.Join(parts, ", ")
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Ensure Generator implements the interface
var _ interfaces.TemplateGenerator = (*Generator)(nil)
