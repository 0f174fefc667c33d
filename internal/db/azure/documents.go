package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
)

// actionUpload replaces the stored document as a whole.
const actionUpload = "upload"

type indexBatchDTO struct {
	Value []map[string]any `json:"value"`
}

type indexResultDTO struct {
	Value []indexItemDTO `json:"value"`
}

type indexItemDTO struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

// UploadDocuments sends documents in chunks of the configured batch size,
// several chunks in flight at once. A 207 reply carries per-document failures.
func (c *Client) UploadDocuments(ctx context.Context, index string, docs []record.Record) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	results := make([]batch.Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(docs); start += c.batchSize {
		end := min(start+c.batchSize, len(docs))
		g.Go(func() error {
			return c.uploadChunk(gctx, index, docs[start:end], results[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) uploadChunk(ctx context.Context, index string, docs []record.Record, out []batch.Result) error {
	body := indexBatchDTO{Value: make([]map[string]any, len(docs))}
	for i, doc := range docs {
		item := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			item[k] = v
		}
		item["@search.action"] = actionUpload
		body.Value[i] = item
	}

	var resp indexResultDTO
	status, err := c.doJSONStatus(ctx, db.OpIndexDocs, http.MethodPost, indexPath(index)+"/docs/index", body, &resp)
	if err != nil {
		return err
	}
	if len(resp.Value) != len(docs) {
		return &db.Error{Op: db.OpIndexDocs, Err: fmt.Errorf(
			"status %d: service reported %d results for %d documents", status, len(resp.Value), len(docs))}
	}

	// The service answers in request order.
	for i, item := range resp.Value {
		if item.Status {
			out[i] = batch.NewOK(item.Key)
			continue
		}
		msg := item.ErrorMessage
		if msg == "" {
			msg = http.StatusText(item.StatusCode)
		}
		out[i] = batch.NewError(item.Key, errors.New(msg))
	}
	return nil
}
