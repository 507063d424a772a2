package usecase

import (
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
	"github.com/m-mizutani/komainu/pkg/service/breaker"
	"github.com/m-mizutani/komainu/pkg/service/fallback"
	"github.com/m-mizutani/komainu/pkg/service/monitor"
	"github.com/m-mizutani/komainu/pkg/service/retry"
	"github.com/m-mizutani/komainu/pkg/service/validate"
)

// UseCases wires the call-safety pipeline: registry, retry-protected
// execution, validation, circuit breaking, fallback, and monitoring.
type UseCases struct {
	repo        interfaces.PromptRepository
	client      interfaces.CompletionClient
	retry       *retry.Strategy
	breaker     *breaker.Breaker
	validator   *validate.Validator
	chain       *fallback.Chain
	monitor     *monitor.Monitor
	storageRepo *storage.Client
}

// Option is a functional option for UseCases
type Option func(*UseCases)

// WithPromptRepository sets the prompt repository
func WithPromptRepository(repo interfaces.PromptRepository) Option {
	return func(uc *UseCases) {
		uc.repo = repo
	}
}

// WithCompletionClient sets the primary completion client
func WithCompletionClient(client interfaces.CompletionClient) Option {
	return func(uc *UseCases) {
		uc.client = client
	}
}

// WithRetryStrategy sets the retry strategy
func WithRetryStrategy(s *retry.Strategy) Option {
	return func(uc *UseCases) {
		uc.retry = s
	}
}

// WithCircuitBreaker sets the circuit breaker
func WithCircuitBreaker(b *breaker.Breaker) Option {
	return func(uc *UseCases) {
		uc.breaker = b
	}
}

// WithValidator sets the output validator
func WithValidator(v *validate.Validator) Option {
	return func(uc *UseCases) {
		uc.validator = v
	}
}

// WithFallbackChain sets the fallback chain
func WithFallbackChain(c *fallback.Chain) Option {
	return func(uc *UseCases) {
		uc.chain = c
	}
}

// WithMonitor sets the metrics monitor
func WithMonitor(m *monitor.Monitor) Option {
	return func(uc *UseCases) {
		uc.monitor = m
	}
}

// WithStorageRepository enables metrics export archiving
func WithStorageRepository(client *storage.Client) Option {
	return func(uc *UseCases) {
		uc.storageRepo = client
	}
}

// New creates the use case set. Components left unconfigured get
// working defaults so tests can construct a minimal pipeline.
func New(opts ...Option) *UseCases {
	uc := &UseCases{}
	for _, opt := range opts {
		opt(uc)
	}

	if uc.retry == nil {
		uc.retry, _ = retry.New()
	}
	if uc.breaker == nil {
		uc.breaker = breaker.New()
	}
	if uc.validator == nil {
		uc.validator = validate.New()
	}
	if uc.monitor == nil {
		uc.monitor = monitor.New()
	}
	if uc.chain == nil && uc.repo != nil && uc.client != nil {
		uc.chain = fallback.New(uc.repo, uc.client, uc.validator)
	}

	return uc
}

// Monitor exposes the monitor for controllers
func (uc *UseCases) Monitor() *monitor.Monitor {
	return uc.monitor
}

// Breaker exposes the circuit breaker state for health endpoints
func (uc *UseCases) Breaker() *breaker.Breaker {
	return uc.breaker
}

// Ensure UseCases implements the use case interfaces
var (
	_ interfaces.CallUseCases     = (*UseCases)(nil)
	_ interfaces.RegistryUseCases = (*UseCases)(nil)
	_ interfaces.MetricsUseCases  = (*UseCases)(nil)
)
