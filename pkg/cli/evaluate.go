package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parrotstack/parrot/pkg/config"
	"github.com/parrotstack/parrot/pkg/evaluator"
	"github.com/parrotstack/parrot/pkg/infra/logger"
	"github.com/parrotstack/parrot/pkg/infra/store"
)

// newRunStore is swapped out in tests.
var newRunStore = func(dbPath string) (store.RunStore, error) {
	return store.NewSQLiteStore(dbPath)
}

// NewEvaluateCommand runs an evaluation dataset against a configuration.
func NewEvaluateCommand(root *RootCommand) *cobra.Command {
	var dataset string
	var output string
	var metric string

	cmd := &cobra.Command{
		Use:   "evaluate NAME",
		Short: "Evaluate a pipeline configuration on a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			spec, err := config.LoadSpec(root.Config().General.ConfigDir, name)
			if err != nil {
				return err
			}

			opts := []evaluator.Option{}
			runs, err := newRunStore(root.Config().Evaluation.HistoryDB)
			if err != nil {
				logger.Warn("evaluation history unavailable", "error", err)
			} else {
				defer runs.Close()
				opts = append(opts, evaluator.WithRunStore(runs))
			}

			e := evaluator.New(name, spec.Type, opts...)
			result, err := e.Evaluate(cmd.Context(), dataset)
			if err != nil {
				return err
			}

			if output != "" {
				if err := result.Save(output); err != nil {
					return err
				}
			}

			score, ok := result.Metrics[metric]
			if !ok {
				names := make([]string, 0, len(result.Metrics))
				for name := range result.Metrics {
					names = append(names, name)
				}
				sort.Strings(names)
				return fmt.Errorf("unknown metric %q, available: %s", metric, strings.Join(names, ", "))
			}

			summary := struct {
				RunID   string             `json:"run_id"`
				Samples int                `json:"samples"`
				Metric  string             `json:"metric"`
				Score   float64            `json:"score"`
				Metrics map[string]float64 `json:"metrics"`
			}{
				RunID:   result.RunID,
				Samples: len(result.Samples),
				Metric:  metric,
				Score:   score,
				Metrics: result.Metrics,
			}
			return PrintOutput(summary, root.OutputOptions())
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Path to the evaluation dataset (.json or .jsonl)")
	cmd.Flags().StringVar(&output, "output", "", "Path to save the full results as JSON")
	cmd.Flags().StringVar(&metric, "metric", "match_rate", "Metric reported as the summary score")
	cmd.MarkFlagRequired("dataset")

	return cmd
}

type runRow struct {
	ID       string  `json:"id"`
	Pipeline string  `json:"pipeline"`
	Dataset  string  `json:"dataset"`
	Samples  int     `json:"samples"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Started  string  `json:"started_at"`
	Rate     float64 `json:"match_rate"`
}

// NewRunsCommand lists past evaluation runs.
func NewRunsCommand(root *RootCommand) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded evaluation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := newRunStore(root.Config().Evaluation.HistoryDB)
			if err != nil {
				return fmt.Errorf("open evaluation history: %w", err)
			}
			defer runs.Close()

			records, err := runs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([]runRow, 0, len(records))
			for _, r := range records {
				rows = append(rows, runRow{
					ID:       r.ID,
					Pipeline: r.Pipeline,
					Dataset:  r.Dataset,
					Samples:  r.Samples,
					Passed:   r.Passed,
					Failed:   r.Failed,
					Started:  r.StartedAt.Format("2006-01-02 15:04:05"),
					Rate:     r.Metrics["match_rate"],
				})
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}
