package prompt

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render fills the user-message template with the named input values.
// An unresolved placeholder is an error; extra input values are ignored.
func (v *Version) Render(input map[string]string) (string, error) {
	var missing []string

	rendered := placeholderRegex.ReplaceAllStringFunc(v.Template, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		value, ok := input[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", goerr.New("unresolved template placeholders",
			goerr.V("prompt_id", v.ID),
			goerr.V("placeholders", missing))
	}

	return rendered, nil
}

// RenderFull builds the complete instruction text sent to the completion
// service: system block, guardrails, worked examples, then the rendered
// user message.
func (v *Version) RenderFull(input map[string]string) (string, error) {
	rendered, err := v.Render(input)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	if v.System != "" {
		sb.WriteString(v.System)
		sb.WriteString("\n\n")
	}

	if len(v.Guardrails.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		for _, c := range v.Guardrails.Constraints {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(v.Guardrails.Negations) > 0 {
		sb.WriteString("Never:\n")
		for _, n := range v.Guardrails.Negations {
			sb.WriteString("- ")
			sb.WriteString(n)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for i, ex := range v.Examples {
		if i == 0 {
			sb.WriteString("Examples:\n")
		}
		for k, val := range ex.Input {
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(val)
			sb.WriteString("\n")
		}
		sb.WriteString("-> ")
		sb.WriteString(ex.Output)
		sb.WriteString("\n\n")
	}

	sb.WriteString(rendered)

	if v.Guardrails.RequireSelfReview {
		sb.WriteString("\n\nReview your answer against the constraints before responding.")
	}

	return sb.String(), nil
}

// Placeholders returns the distinct placeholder names of the template
// in order of first appearance.
func (v *Version) Placeholders() []string {
	seen := map[string]bool{}
	var names []string

	for _, m := range placeholderRegex.FindAllStringSubmatch(v.Template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	return names
}
