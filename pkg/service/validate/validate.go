package validate

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/model/validation"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

const warningPenalty = 0.1

// Validator classifies completion results in three ordered layers:
// schema shape, semantic heuristics, hallucinated properties. A schema
// violation invalidates the result; the later layers only produce
// warnings that lower confidence.
type Validator struct {
	semanticRules       []SemanticRule
	strictHallucination bool
}

// Option is a functional option for Validator
type Option func(*Validator)

// WithStrictHallucination promotes hallucinated properties from
// warnings to hard failures, forcing the caller down the fallback path.
func WithStrictHallucination() Option {
	return func(v *Validator) {
		v.strictHallucination = true
	}
}

// WithSemanticRules replaces the default semantic rule set
func WithSemanticRules(rules []SemanticRule) Option {
	return func(v *Validator) {
		v.semanticRules = rules
	}
}

// New creates a new validator with the default semantic rules
func New(opts ...Option) *Validator {
	v := &Validator{
		semanticRules: DefaultSemanticRules(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate classifies a raw completion result against the declared
// output schema. A nil schema skips the schema and hallucination layers
// and runs only the semantic scan over the raw text.
func (v *Validator) Validate(ctx context.Context, result *completion.Result, s *schema.Schema) *validation.Result {
	out := &validation.Result{Valid: true, Confidence: 1.0}

	var fields map[string]any
	if s != nil {
		parsed, err := parseStructured(result)
		if err != nil {
			out.Valid = false
			out.Confidence = 0
			out.Issues = append(out.Issues, validation.Issue{
				Rule:     "schema.parse",
				Message:  "result is not a JSON object: " + err.Error(),
				Severity: validation.SeverityError,
			})
			return out
		}
		fields = parsed

		v.checkSchema(out, "", fields, s)
		if !out.Valid {
			out.Confidence = 0
			return out
		}
	}

	v.checkSemantics(out, result, fields, s)

	if s != nil {
		v.checkHallucination(out, fields, s)
	}

	out.Confidence = confidence(out)
	if !out.Valid {
		out.Confidence = 0
	}
	return out
}

// parseStructured extracts the structured fields of a result, parsing
// the raw text when the caller has not done so already.
func parseStructured(result *completion.Result) (map[string]any, error) {
	if result.Fields != nil {
		return result.Fields, nil
	}

	text := strings.TrimSpace(result.Text)

	// Some models wrap JSON in a markdown fence despite instructions
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, goerr.Wrap(err, "failed to parse structured output",
			goerr.T(apperr.ErrTagSchema))
	}
	return fields, nil
}

// checkSchema walks the schema tree against the runtime value
func (v *Validator) checkSchema(out *validation.Result, path string, value any, s *schema.Schema) {
	switch s.Kind {
	case schema.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			v.schemaError(out, path, "expected an object")
			return
		}

		for _, req := range s.Required {
			if _, present := obj[req]; !present {
				v.schemaError(out, joinPath(path, req), "required property is missing")
			}
		}

		for name, prop := range s.Properties {
			child, present := obj[name]
			if !present {
				continue
			}
			v.checkSchema(out, joinPath(path, name), child, prop)
		}

	case schema.KindArray:
		arr, ok := value.([]any)
		if !ok {
			v.schemaError(out, path, "expected an array")
			return
		}
		for i, item := range arr {
			v.checkSchema(out, indexPath(path, i), item, s.Items)
		}

	case schema.KindString:
		str, ok := value.(string)
		if !ok {
			v.schemaError(out, path, "expected a string")
			return
		}
		if s.Pattern != "" && !matchPattern(s.Pattern, str) {
			v.schemaError(out, path, "string does not match pattern "+s.Pattern)
		}

	case schema.KindNumber:
		if _, ok := value.(float64); !ok {
			v.schemaError(out, path, "expected a number")
		}

	case schema.KindInteger:
		// encoding/json decodes every number as float64
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			v.schemaError(out, path, "expected an integer")
		}

	case schema.KindBoolean:
		if _, ok := value.(bool); !ok {
			v.schemaError(out, path, "expected a boolean")
		}

	case schema.KindEnum:
		str, ok := value.(string)
		if !ok {
			v.schemaError(out, path, "expected an enum string")
			return
		}
		for _, allowed := range s.Values {
			if str == allowed {
				return
			}
		}
		v.schemaError(out, path, "value is not in the enum set: "+str)
	}
}

func (v *Validator) schemaError(out *validation.Result, path, msg string) {
	out.Valid = false
	out.Issues = append(out.Issues, validation.Issue{
		Rule:     "schema",
		Path:     path,
		Message:  msg,
		Severity: validation.SeverityError,
	})
}

// checkSemantics runs every semantic rule over the result
func (v *Validator) checkSemantics(out *validation.Result, result *completion.Result, fields map[string]any, s *schema.Schema) {
	for _, rule := range v.semanticRules {
		out.Issues = append(out.Issues, rule.Check(result, fields, s)...)
	}
}

// checkHallucination flags result properties absent from the declared
// property set of the source schema.
func (v *Validator) checkHallucination(out *validation.Result, fields map[string]any, s *schema.Schema) {
	if s.Kind != schema.KindObject {
		return
	}

	for name := range fields {
		if s.HasProperty(name) {
			continue
		}

		issue := validation.Issue{
			Rule:          "hallucination.undeclared_property",
			Path:          name,
			Message:       "property is not declared by the output schema",
			Severity:      validation.SeverityWarning,
			Hallucination: true,
		}
		if v.strictHallucination {
			issue.Severity = validation.SeverityError
			out.Valid = false
		}
		out.Issues = append(out.Issues, issue)
	}
}

// confidence scores a result: 1.0 minus a fixed penalty per warning,
// floored at 0.1.
func confidence(out *validation.Result) float64 {
	score := 1.0 - float64(len(out.Warnings()))*warningPenalty
	if score < 0.1 {
		return 0.1
	}
	return score
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func indexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

var patternCache sync.Map

// matchPattern compiles patterns lazily and caches them. Schema
// validation already rejected uncompilable patterns at registration.
func matchPattern(pattern, value string) bool {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(value)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	patternCache.Store(pattern, re)
	return re.MatchString(value)
}
