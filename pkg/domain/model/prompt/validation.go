package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

var (
	// PromptID format: alphanumeric characters + '_', '-', '.' allowed except at the beginning and end
	// Examples: "gen-handler", "gen_handler", "gen.handler.v2"
	promptIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

	// Semantic versioning format: Major.Minor.Patch
	// Examples: "1.0.0", "1.2.3", "10.0.0"
	versionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ValidatePromptID validates the format of a prompt ID
func ValidatePromptID(id types.PromptID) error {
	if id.IsEmpty() {
		return goerr.New("prompt ID cannot be empty")
	}

	if len(id) > 64 {
		return goerr.New("prompt ID cannot be longer than 64 characters")
	}

	if !promptIDRegex.MatchString(id.String()) {
		return goerr.New("prompt ID format is invalid",
			goerr.V("format", "alphanumeric characters with '_', '-', '.' allowed except at beginning and end"),
			goerr.V("prompt_id", id))
	}

	return nil
}

// ValidateVersionString validates the format of a version string
func ValidateVersionString(version string) error {
	if version == "" {
		return goerr.New("version cannot be empty")
	}

	if !versionRegex.MatchString(version) {
		return goerr.New("version format is invalid",
			goerr.V("format", "semantic versioning (Major.Minor.Patch)"),
			goerr.V("version", version))
	}

	return nil
}

// ValidateVersion validates the complete Version struct
func ValidateVersion(v *Version) error {
	if v == nil {
		return goerr.New("prompt version cannot be nil")
	}

	if err := ValidatePromptID(v.ID); err != nil {
		return goerr.Wrap(err, "invalid prompt ID")
	}

	if err := ValidateVersionString(v.Version); err != nil {
		return goerr.Wrap(err, "invalid version")
	}

	if !v.Provider.IsValid() {
		return goerr.New("invalid LLM provider",
			goerr.V("provider", v.Provider.String()))
	}

	if result := v.Sampling.Validate(); !result.Valid {
		return goerr.New("invalid sampling config",
			goerr.V("violations", result.Violations))
	}

	if v.Template == "" {
		return goerr.New("prompt template cannot be empty")
	}

	if len(v.System) > 20000 {
		return goerr.New("system block cannot be longer than 20000 characters")
	}

	if v.OutputSchema != nil {
		if err := v.OutputSchema.Validate(); err != nil {
			return goerr.Wrap(err, "invalid output schema")
		}
	}

	return nil
}

// CompareVersions compares two MAJOR.MINOR.PATCH version strings.
// Returns -1 if a < b, 0 if equal, 1 if a > b. Both inputs must already
// satisfy ValidateVersionString.
func CompareVersions(a, b string) int {
	pa := strings.SplitN(a, ".", 3)
	pb := strings.SplitN(b, ".", 3)

	for i := 0; i < 3; i++ {
		na, _ := strconv.Atoi(pa[i])
		nb, _ := strconv.Atoi(pb[i])
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}

	return 0
}
