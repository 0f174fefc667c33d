package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
	"github.com/kailas-cloud/vecbot/internal/repository/corpus"
)

func provisionCommand() *cli.Command {
	return &cli.Command{
		Name:  "provision",
		Usage: "Create or update the search index from the configured schema",
		Action: withApp(func(ctx context.Context, c *cli.Context, a *app) error {
			if err := a.provisionService().Provision(ctx, &a.cfg.Schema); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.App.Writer, "index %s provisioned\n", a.cfg.Schema.Name)
			return err
		}),
	}
}

func describeCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Print the schema of the live index",
		Action: withApp(func(ctx context.Context, c *cli.Context, a *app) error {
			idx, err := a.provisionService().Describe(ctx, a.cfg.Search.IndexName)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, idx)
		}),
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run one query against the index and print the results as JSON",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Query mode: " + modeNames(),
				Value:   string(mode.PureVector),
			},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Query text (or pass it as the argument)"},
			&cli.StringFlag{Name: "filter", Usage: "Raw filter expression passed to the backend verbatim"},
			&cli.StringSliceFlag{Name: "match", Usage: "Exact-match condition key=value, repeatable"},
			&cli.StringSliceFlag{Name: "field", Usage: "Vector field to search, repeatable"},
			&cli.StringSliceFlag{Name: "select", Usage: "Document field to return, repeatable"},
			&cli.IntFlag{Name: "top", Usage: "Number of results to return (0 uses the configured default)"},
			&cli.IntFlag{Name: "k", Usage: "Nearest neighbors per vector field (0 uses the configured default)"},
			&cli.StringFlag{Name: "semantic", Usage: "Semantic configuration for semantic-hybrid"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Context, a *app) error {
			text := c.String("text")
			if text == "" {
				text = strings.Join(c.Args().Slice(), " ")
			}
			expr, err := matchExpression(c.StringSlice("match"))
			if err != nil {
				return err
			}

			ctx, usage := domain.NewContextWithUsage(ctx)
			set, err := a.searchService().Query(ctx, request.Params{
				Mode:         mode.Mode(c.String("mode")),
				Text:         text,
				Filter:       expr,
				RawFilter:    c.String("filter"),
				VectorFields: c.StringSlice("field"),
				K:            c.Int("k"),
				Top:          c.Int("top"),
				Select:       c.StringSlice("select"),
				Semantic:     c.String("semantic"),
			})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, struct {
				Results any `json:"results"`
				Answers any `json:"answers,omitempty"`
				Tokens  int `json:"embedding_tokens"`
			}{set.Results, set.Answers, usage.TotalTokens()})
		}),
	}
}

func embedCommand() *cli.Command {
	return &cli.Command{
		Name:      "embed",
		Usage:     "Embed one text and print or save the vector",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Text to embed (or pass it as the argument)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the vector as a JSON array to this file"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Context, a *app) error {
			text := c.String("text")
			if text == "" {
				text = strings.Join(c.Args().Slice(), " ")
			}
			res, err := a.embedder.Embed(ctx, text)
			if err != nil {
				return err
			}
			if out := c.String("output"); out != "" {
				if err := corpus.WriteJSON(out, res.Embedding); err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "%d-dim vector written to %s (%d tokens)\n",
					len(res.Embedding), out, res.TotalTokens)
				return err
			}
			return printJSON(c.App.Writer, res.Embedding)
		}),
	}
}

// matchExpression turns key=value pairs into a must-only filter expression.
func matchExpression(pairs []string) (filter.Expression, error) {
	if len(pairs) == 0 {
		return filter.Expression{}, nil
	}
	must := make([]filter.Condition, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return filter.Expression{}, fmt.Errorf("match %q: expected key=value", p)
		}
		cond, err := filter.NewMatch(key, value)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, cond)
	}
	return filter.NewExpression(must, nil, nil)
}

func modeNames() string {
	names := make([]string, 0, len(mode.All))
	for _, m := range mode.All {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
