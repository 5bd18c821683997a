package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fontbake/internal/batch"
	"fontbake/internal/config"
	"fontbake/internal/pipeline"
	"fontbake/internal/tui"
)

func newBatchCmd() *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "batch <jobs-file>",
		Short: "Run every job of a YAML or JSON job document",
		Long: `Run every job of a job document. Without --continue-on-error jobs run one
at a time and the batch stops at the first failure. With it, all jobs run on
a worker pool bounded by --max-workers. The exit status is 0 only if every
job succeeded.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := batch.Load(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, "batch")
			if err != nil {
				return err
			}
			defer a.Close()

			base := a.settings.Options.Clone()
			if err := flags.apply(cmd.Flags(), &base); err != nil {
				return err
			}
			base.ApplyDefaults()

			p, err := a.pipeline(a.provisioner())
			if err != nil {
				return err
			}
			orch := &batch.Orchestrator{Converter: p, Logger: a.logger}
			runOpts := batch.Options{
				ContinueOnError: a.settings.ContinueOnError,
				MaxWorkers:      a.settings.MaxWorkers,
			}
			a.logger.Printf("batch %s: %d jobs, continue_on_error=%t, max_workers=%d",
				args[0], len(doc.Jobs), runOpts.ContinueOnError, runOpts.MaxWorkers)

			results, err := runBatch(cmd.Context(), cmd.OutOrStdout(), orch, base, doc, runOpts)
			if err != nil {
				return err
			}
			summary := batch.Summarize(len(doc.Jobs), results)
			a.logger.Printf("batch finished: %s", summary)
			if err := writeBatchResults(cmd.OutOrStdout(), results, summary); err != nil {
				return err
			}
			if !summary.OK() {
				return exitError{ExitFailure}
			}
			return nil
		},
	}

	cmd.Flags().Bool("continue-on-error", false, "Run all jobs concurrently and keep going after failures")
	cmd.Flags().Int("max-workers", 1, "Concurrent jobs with --continue-on-error")
	flags.register(cmd.Flags())
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, orch *batch.Orchestrator, base config.Options, doc batch.Document, opts batch.Options) ([]batch.Result, error) {
	switch tui.DetectMode(out, plainOut, outputJSON) {
	case tui.ModeTUI:
		return runBatchTUI(ctx, out, orch, base, doc, opts)
	case tui.ModePlain:
		opts.Reporter = plainReporter{out: out}
		opts.OnLine = func(job string, phase pipeline.Phase, line string) {
			fmt.Fprintf(out, "[%s:%s] %s\n", job, phase, line)
		}
	}
	return orch.Run(ctx, base, doc, opts), nil
}

func runBatchTUI(ctx context.Context, out io.Writer, orch *batch.Orchestrator, base config.Options, doc batch.Document, opts batch.Options) ([]batch.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := batch.Jobs(base, doc)
	model := tui.NewBatchModel(fmt.Sprintf("Baking %d fonts", len(jobs)), jobs)

	var results []batch.Result
	finished := make(chan struct{})
	err := tui.RunWithWork(out, model, func(send func(tea.Msg)) {
		defer close(finished)
		reporter := tui.NewBatchReporter(send, jobs)
		opts.Reporter = reporter
		opts.OnLine = reporter.Line
		results = orch.Run(ctx, base, doc, opts)
	})
	// The table may be closed before the work ends (q or ctrl+c).
	cancel()
	<-finished
	return results, err
}

// plainReporter prints one line per job transition.
type plainReporter struct {
	out io.Writer
}

func (r plainReporter) Start(job batch.Job) {
	fmt.Fprintf(r.out, "==> %s\n", job.Name)
}

func (r plainReporter) Complete(res batch.Result) {
	status := "ok"
	if !res.Success {
		status = "FAILED"
	}
	fmt.Fprintf(r.out, "<== %s %s: %s\n", res.JobName, status, res.Message)
}

type batchPayload struct {
	Results []batch.Result `json:"results"`
	Summary batch.Summary  `json:"summary"`
}

func writeBatchResults(out io.Writer, results []batch.Result, summary batch.Summary) error {
	if outputJSON {
		if results == nil {
			results = []batch.Result{}
		}
		data, err := json.MarshalIndent(batchPayload{Results: results, Summary: summary}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode batch json: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, res := range results {
		if !res.Success {
			fmt.Fprintf(out, "%s %s\n%s\n", tui.StatusStyle(tui.StatusFailed).Render("failed"), res.JobName, res.Message)
		}
	}
	fmt.Fprintln(out, summary.String())
	return nil
}
