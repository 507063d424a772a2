package validate

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/model/validation"
)

// SemanticRule is one independent heuristic over a completion result.
// Each rule emits warnings only; hard failures belong to the schema
// layer. The declared output schema is nil for unstructured results.
type SemanticRule struct {
	Name  string
	Check func(result *completion.Result, fields map[string]any, s *schema.Schema) []validation.Issue
}

// DefaultSemanticRules returns the built-in rule list
func DefaultSemanticRules() []SemanticRule {
	return []SemanticRule{
		PlaceholderMarkerRule(),
		EmptyTextFieldRule(),
		UndefinedValueRule(),
		UnresolvedTemplateRule(),
	}
}

// placeholderMarkers are literal fragments that indicate the model
// emitted scaffolding instead of content
var placeholderMarkers = []string{"todo", "placeholder", "..."}

// PlaceholderMarkerRule flags string values that consist of scaffolding
// markers rather than real content
func PlaceholderMarkerRule() SemanticRule {
	return SemanticRule{
		Name: "semantic.placeholder_marker",
		Check: func(result *completion.Result, fields map[string]any, s *schema.Schema) []validation.Issue {
			var issues []validation.Issue
			forEachString(result, fields, func(path, value string) {
				lowered := strings.ToLower(strings.TrimSpace(value))
				for _, marker := range placeholderMarkers {
					if lowered == marker || (marker != "..." && strings.Contains(lowered, marker)) {
						issues = append(issues, validation.Issue{
							Rule:     "semantic.placeholder_marker",
							Path:     path,
							Message:  "value contains placeholder marker " + quoted(marker),
							Severity: validation.SeverityWarning,
						})
						return
					}
				}
			})
			return issues
		},
	}
}

// EmptyTextFieldRule flags required string properties whose value is
// empty. Optional fields may legitimately be empty and are left alone.
func EmptyTextFieldRule() SemanticRule {
	return SemanticRule{
		Name: "semantic.empty_text",
		Check: func(result *completion.Result, fields map[string]any, s *schema.Schema) []validation.Issue {
			var issues []validation.Issue
			forEachRequiredString(fields, s, "", func(path, value string) {
				if strings.TrimSpace(value) == "" {
					issues = append(issues, validation.Issue{
						Rule:     "semantic.empty_text",
						Path:     path,
						Message:  "required text field is empty",
						Severity: validation.SeverityWarning,
					})
				}
			})
			return issues
		},
	}
}

// UndefinedValueRule flags literal "undefined" or "null" strings that
// leak from a failed substitution upstream
func UndefinedValueRule() SemanticRule {
	return SemanticRule{
		Name: "semantic.undefined_value",
		Check: func(result *completion.Result, fields map[string]any, s *schema.Schema) []validation.Issue {
			var issues []validation.Issue
			forEachString(result, fields, func(path, value string) {
				lowered := strings.ToLower(strings.TrimSpace(value))
				if lowered == "undefined" || lowered == "null" {
					issues = append(issues, validation.Issue{
						Rule:     "semantic.undefined_value",
						Path:     path,
						Message:  "value is an unresolved " + quoted(lowered),
						Severity: validation.SeverityWarning,
					})
				}
			})
			return issues
		},
	}
}

var unresolvedTemplateRegex = regexp.MustCompile(`\{\{\s*[a-zA-Z0-9_]+\s*\}\}`)

// UnresolvedTemplateRule flags template placeholders that survived
// rendering and were echoed back by the model
func UnresolvedTemplateRule() SemanticRule {
	return SemanticRule{
		Name: "semantic.unresolved_template",
		Check: func(result *completion.Result, fields map[string]any, s *schema.Schema) []validation.Issue {
			var issues []validation.Issue
			forEachString(result, fields, func(path, value string) {
				if unresolvedTemplateRegex.MatchString(value) {
					issues = append(issues, validation.Issue{
						Rule:     "semantic.unresolved_template",
						Path:     path,
						Message:  "value contains an unresolved template placeholder",
						Severity: validation.SeverityWarning,
					})
				}
			})
			return issues
		},
	}
}

// forEachRequiredString visits string values of schema-required
// properties, descending through nested objects and array items.
func forEachRequiredString(value any, s *schema.Schema, path string, visit func(path, value string)) {
	if s == nil {
		return
	}

	switch s.Kind {
	case schema.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return
		}

		required := make(map[string]bool, len(s.Required))
		for _, name := range s.Required {
			required[name] = true
		}

		for name, prop := range s.Properties {
			child, present := obj[name]
			if !present {
				continue
			}
			if required[name] && prop.Kind == schema.KindString {
				if str, ok := child.(string); ok {
					visit(joinPath(path, name), str)
				}
				continue
			}
			forEachRequiredString(child, prop, joinPath(path, name), visit)
		}

	case schema.KindArray:
		arr, ok := value.([]any)
		if !ok {
			return
		}
		for i, item := range arr {
			forEachRequiredString(item, s.Items, indexPath(path, i), visit)
		}
	}
}

// forEachString visits every string value of a structured result, or
// the raw text once when the result is unstructured.
func forEachString(result *completion.Result, fields map[string]any, visit func(path, value string)) {
	if fields == nil {
		visit("", result.Text)
		return
	}
	for path, value := range flattenStrings(fields, "") {
		visit(path, value)
	}
}

// flattenStrings collects string leaves of a decoded JSON tree by path
func flattenStrings(value any, path string) map[string]string {
	out := make(map[string]string)

	switch v := value.(type) {
	case string:
		out[path] = v
	case map[string]any:
		for name, child := range v {
			for p, s := range flattenStrings(child, joinPath(path, name)) {
				out[p] = s
			}
		}
	case []any:
		for i, child := range v {
			for p, s := range flattenStrings(child, indexPath(path, i)) {
				out[p] = s
			}
		}
	}

	return out
}

func quoted(s string) string {
	return `"` + s + `"`
}
