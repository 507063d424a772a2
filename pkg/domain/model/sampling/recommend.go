package sampling

import "github.com/m-mizutani/goerr/v2"

// UseCase is the closed set of generation purposes with preset configs
type UseCase string

const (
	UseCaseCode     UseCase = "code"
	UseCaseTests    UseCase = "tests"
	UseCaseDocs     UseCase = "docs"
	UseCaseExamples UseCase = "examples"
	UseCaseCreative UseCase = "creative"
)

// IsValid checks if the UseCase is valid
func (u UseCase) IsValid() bool {
	switch u {
	case UseCaseCode, UseCaseTests, UseCaseDocs, UseCaseExamples, UseCaseCreative:
		return true
	default:
		return false
	}
}

// defaultSeed pins generation for the deterministic presets
const defaultSeed = int64(42)

// Recommend maps a use case to a preset config for the given model,
// ordered from most deterministic (seeded, near-zero temperature) to
// most creative.
func Recommend(useCase UseCase, model string) (Config, error) {
	if !useCase.IsValid() {
		return Config{}, goerr.New("unknown use case", goerr.V("use_case", useCase))
	}

	seed := defaultSeed

	switch useCase {
	case UseCaseTests:
		return Config{Temperature: 0.0, TopP: 0.8, Seed: &seed, MaxTokens: 4096, Model: model}, nil
	case UseCaseCode:
		return Config{Temperature: 0.1, TopP: 0.9, Seed: &seed, MaxTokens: 4096, Model: model}, nil
	case UseCaseExamples:
		return Config{Temperature: 0.2, TopP: 0.9, Seed: &seed, MaxTokens: 2048, Model: model}, nil
	case UseCaseDocs:
		return Config{Temperature: 0.4, TopP: 0.95, MaxTokens: 2048, Model: model}, nil
	case UseCaseCreative:
		return Config{Temperature: 0.9, TopP: 1.0, MaxTokens: 2048, Model: model}, nil
	default:
		return Config{}, goerr.New("unknown use case", goerr.V("use_case", useCase))
	}
}
