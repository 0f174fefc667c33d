// Package setup runs the one-shot pipeline: provision, load, enrich, persist, upload
// and sample query embedding.
package setup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/repository/corpus"
	"github.com/kailas-cloud/vecbot/internal/usecase/enrich"
)

// Step names one stage of the pipeline.
type Step string

// Pipeline steps in execution order.
const (
	StepProvision   Step = "provision"
	StepLoad        Step = "load"
	StepEnrich      Step = "enrich"
	StepPersist     Step = "persist"
	StepUpload      Step = "upload"
	StepQueryVector Step = "query-vector"
)

// dependsOn lists the steps that must succeed before a step may run.
var dependsOn = map[Step][]Step{
	StepEnrich:  {StepLoad},
	StepPersist: {StepEnrich},
	StepUpload:  {StepProvision, StepPersist},
}

// StepStatus is the outcome of one step.
type StepStatus string

// Step outcomes.
const (
	StatusOK      StepStatus = "ok"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// StepResult records how one step ended.
type StepResult struct {
	Step     Step
	Status   StepStatus
	Detail   string
	Err      error
	Duration time.Duration
}

// Report is the outcome of a full run.
type Report struct {
	Steps  []StepResult
	Tokens int
}

// Status returns the outcome of step, or "" if it never ran.
func (r *Report) Status(step Step) StepStatus {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return ""
}

// Err joins the errors of every failed step.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", s.Step, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Options configure a run.
type Options struct {
	Schema          *schema.Index
	DataPath        string
	OutputPath      string
	QueryVectorPath string
	SampleQuery     string
	SkipProvision   bool
	SkipUpload      bool
	Progress        enrich.ProgressFunc
}

// Runner executes the pipeline.
type Runner struct {
	provisioner Provisioner
	enricher    Enricher
	embed       Embedder
	corpus      Corpus
	logger      *zap.Logger
}

// New creates a Runner. A nil corpus uses the JSON file implementation.
func New(p Provisioner, e Enricher, embed Embedder, c Corpus, logger *zap.Logger) *Runner {
	if c == nil {
		c = fileCorpus{}
	}
	return &Runner{provisioner: p, enricher: e, embed: embed, corpus: c, logger: logger}
}

// Run executes every step. A failed step marks all steps depending on it as skipped;
// independent steps still run.
func (r *Runner) Run(ctx context.Context, opts Options) *Report {
	ctx, usage := domain.NewContextWithUsage(ctx)
	rep := &Report{}

	var (
		source   []record.Record
		enriched []record.Record
	)

	r.step(ctx, rep, StepProvision, opts.SkipProvision, func(ctx context.Context) (string, error) {
		if err := r.provisioner.Provision(ctx, opts.Schema); err != nil {
			return "", err
		}
		return opts.Schema.Name, nil
	})

	r.step(ctx, rep, StepLoad, false, func(context.Context) (string, error) {
		recs, err := r.corpus.Load(opts.DataPath)
		if err != nil {
			return "", err
		}
		source = recs
		return fmt.Sprintf("%d records from %s", len(recs), opts.DataPath), nil
	})

	r.step(ctx, rep, StepEnrich, false, func(ctx context.Context) (string, error) {
		out, err := r.enricher.Enrich(ctx, source, opts.Progress)
		if err != nil {
			return "", err
		}
		enriched = out
		return fmt.Sprintf("%d records", len(out)), nil
	})

	r.step(ctx, rep, StepPersist, false, func(context.Context) (string, error) {
		if err := r.corpus.Persist(opts.OutputPath, enriched); err != nil {
			return "", err
		}
		return opts.OutputPath, nil
	})

	r.step(ctx, rep, StepUpload, opts.SkipUpload, func(ctx context.Context) (string, error) {
		n, err := r.enricher.Upload(ctx, opts.Schema.Name, enriched)
		if err != nil {
			return fmt.Sprintf("%d uploaded", n), err
		}
		return fmt.Sprintf("%d documents", n), nil
	})

	r.step(ctx, rep, StepQueryVector, opts.SampleQuery == "", func(ctx context.Context) (string, error) {
		res, err := r.embed.Embed(ctx, opts.SampleQuery)
		if err != nil {
			return "", err
		}
		if err := r.corpus.WriteJSON(opts.QueryVectorPath, res.Embedding); err != nil {
			return "", err
		}
		return opts.QueryVectorPath, nil
	})

	rep.Tokens = usage.TotalTokens()
	return rep
}

func (r *Runner) step(
	ctx context.Context, rep *Report, step Step, skip bool,
	fn func(context.Context) (string, error),
) {
	if skip {
		rep.Steps = append(rep.Steps, StepResult{Step: step, Status: StatusSkipped, Detail: "disabled"})
		r.logger.Info("Step skipped", zap.String("step", string(step)))
		return
	}
	// A disabled provision step means the index already exists.
	for _, dep := range dependsOn[step] {
		if st := rep.Status(dep); st == StatusFailed || (st == StatusSkipped && dep != StepProvision) {
			rep.Steps = append(rep.Steps, StepResult{
				Step:   step,
				Status: StatusSkipped,
				Detail: fmt.Sprintf("%s did not complete", dep),
			})
			r.logger.Warn("Step skipped", zap.String("step", string(step)), zap.String("blocked_by", string(dep)))
			return
		}
	}
	if err := ctx.Err(); err != nil {
		rep.Steps = append(rep.Steps, StepResult{Step: step, Status: StatusFailed, Err: err})
		return
	}

	start := time.Now()
	detail, err := fn(ctx)
	res := StepResult{Step: step, Status: StatusOK, Detail: detail, Err: err, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusFailed
		r.logger.Error("Step failed", zap.String("step", string(step)), zap.Duration("duration", res.Duration), zap.Error(err))
	} else {
		r.logger.Info("Step completed", zap.String("step", string(step)), zap.String("detail", detail), zap.Duration("duration", res.Duration))
	}
	rep.Steps = append(rep.Steps, res)
}

type fileCorpus struct{}

func (fileCorpus) Load(path string) ([]record.Record, error) { return corpus.Load(path) }

func (fileCorpus) Persist(path string, records []record.Record) error {
	return corpus.Persist(path, records)
}

func (fileCorpus) WriteJSON(path string, v any) error { return corpus.WriteJSON(path, v) }
