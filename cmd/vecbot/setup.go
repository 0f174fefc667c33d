package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/usecase/setup"
)

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Provision the index, enrich the corpus with embeddings and upload it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "Source JSON array (default from config)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Enriched JSON output (default from config)"},
			&cli.StringFlag{Name: "query-vector", Usage: "Sample query vector output (default from config)"},
			&cli.StringFlag{Name: "sample-query", Usage: "Sample query to embed; empty string skips the step"},
			&cli.BoolFlag{Name: "skip-provision", Usage: "Do not create or update the index"},
			&cli.BoolFlag{Name: "skip-upload", Usage: "Do not upload enriched documents"},
			&cli.BoolFlag{Name: "no-progress", Usage: "Hide the progress bar"},
		},
		Action: withApp(runSetup),
	}
}

func runSetup(ctx context.Context, c *cli.Context, a *app) error {
	enricher, err := a.enrichService()
	if err != nil {
		return err
	}

	e := a.cfg.Enrichment
	opts := setup.Options{
		Schema:          &a.cfg.Schema,
		DataPath:        stringOr(c, "data", e.DataPath),
		OutputPath:      stringOr(c, "output", e.OutputPath),
		QueryVectorPath: stringOr(c, "query-vector", e.QueryVectorPath),
		SampleQuery:     stringOr(c, "sample-query", e.SampleQuery),
		SkipProvision:   c.Bool("skip-provision"),
		SkipUpload:      c.Bool("skip-upload"),
	}

	var bar *enrichProgress
	if !c.Bool("no-progress") {
		bar = &enrichProgress{}
		opts.Progress = bar.report
	}

	runner := setup.New(a.provisionService(), enricher, a.embedder, nil, a.logger)
	report := runner.Run(ctx, opts)
	bar.finish()

	for _, s := range report.Steps {
		line := fmt.Sprintf("%-14s %-8s %s", s.Step, s.Status, s.Detail)
		if s.Err != nil {
			line += " (" + s.Err.Error() + ")"
		}
		if _, err := fmt.Fprintln(c.App.Writer, line); err != nil {
			return err
		}
	}
	a.logger.Info("Setup finished", zap.Int("embedding_tokens", report.Tokens))
	return report.Err()
}

// stringOr returns the flag value when set on the command line, otherwise fallback.
func stringOr(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

// enrichProgress renders enrichment progress on stderr.
type enrichProgress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (p *enrichProgress) report(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("embedding"),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

func (p *enrichProgress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
