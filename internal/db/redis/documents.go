package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
)

// UploadDocuments stores every document as JSON under the index prefix in a
// single DoMulti round-trip. JSON.SET replaces the whole document.
func (s *Store) UploadDocuments(ctx context.Context, index string, docs []record.Record) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	idx, err := s.GetIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	keyField := idx.KeyField()

	results := make([]batch.Result, len(docs))
	cmds := make([]rueidis.Completed, 0, len(docs))
	pos := make([]int, 0, len(docs))

	for i, doc := range docs {
		key, err := doc.Key(keyField)
		if err != nil {
			results[i] = batch.NewError(fmt.Sprintf("#%d", i), err)
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			results[i] = batch.NewError(key, fmt.Errorf("marshal document: %w", err))
			continue
		}
		results[i] = batch.NewOK(key)
		cmds = append(cmds, s.b().Arbitrary("JSON.SET").
			Keys(s.docPrefix(index)+key).Args("$", string(data)).Build())
		pos = append(pos, i)
	}

	if len(cmds) == 0 {
		return results, nil
	}
	for j, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			i := pos[j]
			results[i] = batch.NewError(results[i].Key(), &db.Error{Op: db.OpJSONSet, Err: err})
		}
	}
	return results, nil
}
