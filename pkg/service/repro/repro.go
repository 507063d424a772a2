package repro

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTrials      = 5
	defaultConcurrency = 2
	matchThreshold     = 0.8
)

// Report is the outcome of one reproducibility run
type Report struct {
	PromptID       types.PromptID `json:"prompt_id"`
	Version        string         `json:"version"`
	Trials         int            `json:"trials"`
	MeanSimilarity float64        `json:"mean_similarity"`
	MinSimilarity  float64        `json:"min_similarity"`
	Passed         bool           `json:"passed"`
	TotalLatency   time.Duration  `json:"total_latency"`
	TotalCost      float64        `json:"total_cost"`
	Outputs        []string       `json:"outputs,omitempty"`
}

// Tester runs the same input repeatedly under one sampling config and
// scores pairwise output similarity. Offline diagnostic only; never
// part of the live call path.
type Tester struct {
	client      interfaces.CompletionClient
	trials      int
	concurrency int
}

// Option is a functional option for Tester
type Option func(*Tester)

// WithTrials overrides the trial count
func WithTrials(n int) Option {
	return func(t *Tester) {
		if n > 1 {
			t.trials = n
		}
	}
}

// WithConcurrency overrides the number of parallel trials
func WithConcurrency(n int) Option {
	return func(t *Tester) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// New creates a new reproducibility tester
func New(client interfaces.CompletionClient, opts ...Option) *Tester {
	t := &Tester{
		client:      client,
		trials:      defaultTrials,
		concurrency: defaultConcurrency,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Run executes the trials and scores mean pairwise similarity against
// the 80%-match threshold.
func (t *Tester) Run(ctx context.Context, version *prompt.Version, input map[string]string) (*Report, error) {
	rendered, err := version.RenderFull(input)
	if err != nil {
		return nil, err
	}

	outputs := make([]string, t.trials)
	latencies := make([]time.Duration, t.trials)
	costs := make([]float64, t.trials)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for i := 0; i < t.trials; i++ {
		g.Go(func() error {
			result, err := t.client.Generate(ctx, &completion.Request{
				CallID:           types.NewCallID(ctx),
				PromptID:         version.ID,
				Version:          version.Version,
				Provider:         version.Provider,
				Sampling:         version.Sampling,
				Rendered:         rendered,
				StructuredOutput: version.OutputSchema != nil,
			})
			if err != nil {
				return goerr.Wrap(err, "reproducibility trial failed")
			}

			mu.Lock()
			outputs[i] = result.Text
			latencies[i] = result.Latency
			costs[i] = result.Cost
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		PromptID:      version.ID,
		Version:       version.Version,
		Trials:        t.trials,
		MinSimilarity: 1.0,
		Outputs:       outputs,
	}

	for _, l := range latencies {
		report.TotalLatency += l
	}
	for _, c := range costs {
		report.TotalCost += c
	}

	// Mean pairwise similarity over all distinct output pairs
	pairs := 0
	sum := 0.0
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			s := Similarity(outputs[i], outputs[j])
			sum += s
			if s < report.MinSimilarity {
				report.MinSimilarity = s
			}
			pairs++
		}
	}

	if pairs > 0 {
		report.MeanSimilarity = sum / float64(pairs)
	} else {
		report.MeanSimilarity = 1.0
	}
	report.Passed = report.MeanSimilarity >= matchThreshold

	return report, nil
}

// Similarity is 1 minus the normalized Levenshtein distance of two
// strings. Identical strings score 1, fully disjoint strings 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}

	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row table
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min3(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
