package repro_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/service/repro"
)

type sequenceClient struct {
	mu      sync.Mutex
	outputs []string
	next    int
}

func (c *sequenceClient) Generate(ctx context.Context, req *completion.Request) (*completion.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.outputs[c.next%len(c.outputs)]
	c.next++
	return &completion.Result{
		Text:    text,
		Latency: 10 * time.Millisecond,
		Cost:    0.001,
	}, nil
}

func testVersion() *prompt.Version {
	return &prompt.Version{
		ID:       "gen-summary",
		Version:  "1.0.0",
		Provider: types.LLMProviderClaude,
		Sampling: sampling.Config{Temperature: 0, TopP: 0.9, Model: "claude-sonnet-4-20250514"},
		Template: "Summarize: {{text}}",
	}
}

func TestSimilarity(t *testing.T) {
	gt.Equal(t, repro.Similarity("abc", "abc"), 1.0)
	gt.Equal(t, repro.Similarity("", ""), 1.0)
	gt.Equal(t, repro.Similarity("abcd", "wxyz"), 0.0)

	// One substitution in four characters
	gt.Equal(t, repro.Similarity("abcd", "abcx"), 0.75)
}

func TestIdenticalOutputsPass(t *testing.T) {
	ctx := context.Background()
	client := &sequenceClient{outputs: []string{"the same answer"}}

	tester := repro.New(client, repro.WithTrials(5))
	report, err := tester.Run(ctx, testVersion(), map[string]string{"text": "input"})

	gt.NoError(t, err)
	gt.Equal(t, report.Trials, 5)
	gt.Equal(t, report.MeanSimilarity, 1.0)
	gt.True(t, report.Passed)
	gt.Equal(t, report.TotalLatency, 50*time.Millisecond)
}

func TestDivergentOutputsFail(t *testing.T) {
	ctx := context.Background()
	client := &sequenceClient{outputs: []string{
		"aaaaaaaaaa",
		"bbbbbbbbbb",
		"cccccccccc",
	}}

	// Serial trials keep the output sequence deterministic
	tester := repro.New(client, repro.WithTrials(3), repro.WithConcurrency(1))
	report, err := tester.Run(ctx, testVersion(), map[string]string{"text": "input"})

	gt.NoError(t, err)
	gt.Equal(t, report.MeanSimilarity, 0.0)
	gt.False(t, report.Passed)
}

func TestRenderFailurePropagates(t *testing.T) {
	ctx := context.Background()
	client := &sequenceClient{outputs: []string{"x"}}

	tester := repro.New(client)
	_, err := tester.Run(ctx, testVersion(), map[string]string{"wrong": "input"})
	gt.Error(t, err)
}
