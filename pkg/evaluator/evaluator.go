// Package evaluator runs evaluation datasets against a deployed pipeline
// and records the results.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parrotstack/parrot/pkg/infra/logger"
	"github.com/parrotstack/parrot/pkg/infra/store"
)

// Sample is one dataset entry. Input is what goes into the pipeline and
// Expected, when present, is the reference output.
type Sample struct {
	Input    string `json:"input"`
	Expected string `json:"expected,omitempty"`
}

// SampleResult is the outcome of evaluating one sample.
type SampleResult struct {
	Index    int    `json:"index"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected,omitempty"`
	Output   string `json:"output,omitempty"`
	Match    bool   `json:"match"`
	Error    string `json:"error,omitempty"`
}

// Result aggregates one evaluation run.
type Result struct {
	RunID        string         `json:"run_id"`
	Pipeline     string         `json:"pipeline"`
	PipelineType string         `json:"pipeline_type"`
	Dataset      string         `json:"dataset"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Samples      []SampleResult `json:"samples"`

	Metrics map[string]float64 `json:"metrics"`
}

// Save writes the result as indented JSON.
func (r *Result) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}
	logger.Info("saved evaluation results", "path", path)
	return nil
}

// Scorer evaluates one sample against the running pipeline.
type Scorer interface {
	Score(ctx context.Context, sample Sample) (output string, match bool, err error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, sample Sample) (string, bool, error)

func (f ScorerFunc) Score(ctx context.Context, sample Sample) (string, bool, error) {
	return f(ctx, sample)
}

// echoScorer is the stand-in scorer used until a pipeline transport is
// attached: it treats any sample carrying a reference as matched.
type echoScorer struct{}

func (echoScorer) Score(_ context.Context, sample Sample) (string, bool, error) {
	return sample.Input, sample.Expected != "", nil
}

// Evaluator evaluates datasets for one pipeline configuration.
type Evaluator struct {
	pipeline     string
	pipelineType string
	scorer       Scorer
	runs         store.RunStore
	now          func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithScorer replaces the default scorer.
func WithScorer(s Scorer) Option {
	return func(e *Evaluator) { e.scorer = s }
}

// WithRunStore enables run history persistence.
func WithRunStore(rs store.RunStore) Option {
	return func(e *Evaluator) { e.runs = rs }
}

func withClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New creates an Evaluator for the named pipeline configuration.
func New(pipeline, pipelineType string, opts ...Option) *Evaluator {
	e := &Evaluator{
		pipeline:     pipeline,
		pipelineType: pipelineType,
		scorer:       echoScorer{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadDataset reads samples from a .json file (one sample or an array)
// or a .jsonl file (one sample per line, blank lines skipped).
func LoadDataset(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		var samples []Sample
		if err := json.Unmarshal(data, &samples); err == nil {
			return samples, nil
		}
		var single Sample
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		return []Sample{single}, nil
	case ".jsonl":
		var samples []Sample
		for i, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var s Sample
			if err := json.Unmarshal([]byte(line), &s); err != nil {
				return nil, fmt.Errorf("decode dataset line %d: %w", i+1, err)
			}
			samples = append(samples, s)
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
}

// Evaluate runs the dataset through the scorer and aggregates the
// results. A sample that fails to score is recorded with its error and
// does not abort the run.
func (e *Evaluator) Evaluate(ctx context.Context, datasetPath string) (*Result, error) {
	samples, err := LoadDataset(datasetPath)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded evaluation dataset", "path", datasetPath, "samples", len(samples))

	result := &Result{
		RunID:        uuid.NewString(),
		Pipeline:     e.pipeline,
		PipelineType: e.pipelineType,
		Dataset:      datasetPath,
		StartedAt:    e.now().UTC(),
		Metrics:      map[string]float64{},
	}

	var matched, failed int
	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sr := SampleResult{Index: i, Input: sample.Input, Expected: sample.Expected}
		output, match, err := e.scorer.Score(ctx, sample)
		if err != nil {
			logger.Warn("sample evaluation failed", "index", i, "error", err)
			sr.Error = err.Error()
			failed++
		} else {
			sr.Output = output
			sr.Match = match
			if match {
				matched++
			}
		}
		result.Samples = append(result.Samples, sr)
	}

	result.FinishedAt = e.now().UTC()
	result.Metrics["total_samples"] = float64(len(samples))
	result.Metrics["successful_samples"] = float64(len(samples) - failed)
	result.Metrics["matched_samples"] = float64(matched)
	if len(samples) > 0 {
		result.Metrics["match_rate"] = float64(matched) / float64(len(samples))
	}

	if e.runs != nil {
		if err := e.persist(ctx, result, failed, matched); err != nil {
			logger.Warn("failed to persist evaluation run", "run_id", result.RunID, "error", err)
		}
	}

	return result, nil
}

func (e *Evaluator) persist(ctx context.Context, r *Result, failed, matched int) error {
	return e.runs.Create(ctx, &store.RunRecord{
		ID:           r.RunID,
		Pipeline:     r.Pipeline,
		PipelineType: r.PipelineType,
		Dataset:      r.Dataset,
		Samples:      len(r.Samples),
		Passed:       matched,
		Failed:       failed,
		Metrics:      r.Metrics,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	})
}
