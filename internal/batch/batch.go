package batch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"fontbake/internal/config"
	"fontbake/internal/pipeline"
)

// Converter runs a single job.
type Converter interface {
	Run(ctx context.Context, opts config.Options, onLine pipeline.LineFunc) (pipeline.Result, error)
}

// Job is one merged, ready-to-run entry of a document.
type Job struct {
	Index   int
	Name    string
	Options config.Options
	// Err is set when the job could not be resolved from its descriptor.
	Err error
}

// Result is the outcome of one job.
type Result struct {
	Index   int              `json:"index"`
	JobName string           `json:"job"`
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Output  *pipeline.Result `json:"output,omitempty"`
}

// ProgressReporter receives notifications as jobs start and finish.
type ProgressReporter interface {
	Start(job Job)
	Complete(result Result)
}

// Options controls batch execution.
type Options struct {
	// ContinueOnError runs all jobs concurrently and never stops early.
	ContinueOnError bool
	// MaxWorkers bounds concurrent jobs when ContinueOnError is set.
	MaxWorkers int
	Reporter   ProgressReporter
	// OnLine receives editor log lines tagged with the job name.
	OnLine func(job string, phase pipeline.Phase, line string)
}

// Orchestrator executes job documents.
type Orchestrator struct {
	Converter Converter
	Logger    *log.Logger
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}

// Jobs merges every descriptor of doc onto base.
func Jobs(base config.Options, doc Document) []Job {
	jobs := make([]Job, len(doc.Jobs))
	for i, d := range doc.Jobs {
		opts, err := resolveJob(base, d, doc.BaseDir)
		jobs[i] = Job{Index: i, Name: d.Name(i), Options: opts, Err: err}
	}
	return jobs
}

// Run executes doc. Without ContinueOnError jobs run one at a time and the
// batch stops at the first failure, returning the results so far. With it,
// every job runs on a bounded worker pool. Results are always in document
// order.
func (o *Orchestrator) Run(ctx context.Context, base config.Options, doc Document, opts Options) []Result {
	jobs := Jobs(base, doc)
	if !opts.ContinueOnError {
		return o.runSequential(ctx, jobs, opts)
	}
	return o.runPool(ctx, jobs, opts)
}

func (o *Orchestrator) runSequential(ctx context.Context, jobs []Job, opts Options) []Result {
	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		res := o.runJob(ctx, job, opts)
		results = append(results, res)
		if !res.Success {
			o.logf("stopping batch after failed job %s", job.Name)
			break
		}
	}
	return results
}

func (o *Orchestrator) runPool(ctx context.Context, jobs []Job, opts Options) []Result {
	results := make([]Result, len(jobs))
	concurrency := opts.MaxWorkers
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			results[i] = o.finish(job, opts, fmt.Errorf("not started: %w", err), nil)
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = o.finish(job, opts, fmt.Errorf("not started: %w", ctx.Err()), nil)
			continue
		}
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.runJob(ctx, job, opts)
		}()
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) runJob(ctx context.Context, job Job, opts Options) Result {
	if opts.Reporter != nil {
		opts.Reporter.Start(job)
	}
	if job.Err != nil {
		return o.finish(job, opts, job.Err, nil)
	}
	var onLine pipeline.LineFunc
	if opts.OnLine != nil {
		onLine = func(phase pipeline.Phase, line string) { opts.OnLine(job.Name, phase, line) }
	}
	o.logf("job %d (%s) starting", job.Index, job.Name)
	out, err := o.Converter.Run(ctx, job.Options, onLine)
	if err != nil {
		return o.finish(job, opts, err, nil)
	}
	return o.finish(job, opts, nil, &out)
}

func (o *Orchestrator) finish(job Job, opts Options, err error, out *pipeline.Result) Result {
	res := Result{Index: job.Index, JobName: job.Name, Success: err == nil, Output: out}
	if err != nil {
		res.Message = err.Error()
		o.logf("job %d (%s) failed: %v", job.Index, job.Name, err)
	} else {
		res.Message = out.ArtifactPath
		o.logf("job %d (%s) produced %s", job.Index, job.Name, out.ArtifactPath)
	}
	if opts.Reporter != nil {
		opts.Reporter.Complete(res)
	}
	return res
}

// Summary counts outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Skipped counts jobs never attempted because the batch stopped early.
	Skipped int `json:"skipped"`
}

// Summarize counts results against the number of jobs in the document.
func Summarize(total int, results []Result) Summary {
	s := Summary{Total: total}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	s.Skipped = total - len(results)
	return s
}

// OK reports whether every job ran and succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

func (s Summary) String() string {
	msg := fmt.Sprintf("%d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	return msg
}
