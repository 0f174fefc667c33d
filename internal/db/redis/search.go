package redis

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

const vectorScoreAlias = "__vector_score"

// hit is one FT.SEARCH entry before fusion.
type hit struct {
	key   string
	score float64
	doc   map[string]any
}

// Search runs one KNN query per vector field and, when the query has text,
// one full-text query. Multiple rankings are fused with Reciprocal Rank Fusion.
func (s *Store) Search(ctx context.Context, q *db.Query) (*result.Set, error) {
	if q.Semantic != nil {
		return nil, fmt.Errorf("index %q: %w", q.Index, domain.ErrSemanticNotSupported)
	}
	if q.Vector == nil && q.Text == "" {
		return nil, fmt.Errorf("query needs a vector or text: %w", domain.ErrInvalidInput)
	}
	idx, err := s.GetIndex(ctx, q.Index)
	if err != nil {
		return nil, err
	}

	prefilter, err := buildFilter(q.Filter, idx)
	if err != nil {
		return nil, err
	}
	if q.RawFilter != "" {
		prefilter = strings.TrimSpace(prefilter + " (" + q.RawFilter + ")")
	}

	var rankings [][]hit
	if q.Vector != nil {
		for _, name := range q.Vector.Fields {
			f, ok := idx.FieldByName(name)
			if !ok || !f.IsVector() {
				return nil, fmt.Errorf("field %q is not a vector field of %q: %w", name, q.Index, domain.ErrInvalidInput)
			}
			algo, _ := idx.Algorithm(f.VectorConfig)
			hits, err := s.searchKNN(ctx, q.Index, name, q.Vector, prefilter, algo.Metric)
			if err != nil {
				return nil, err
			}
			rankings = append(rankings, hits)
		}
	}
	if q.Text != "" {
		limit := q.Top
		if q.Vector != nil && q.Vector.K > limit {
			limit = q.Vector.K
		}
		hits, err := s.searchText(ctx, q.Index, q.Text, prefilter, limit)
		if err != nil {
			return nil, err
		}
		rankings = append(rankings, hits)
	}

	var hits []hit
	if len(rankings) == 1 {
		hits = rankings[0]
	} else {
		hits = fuseRRF(rankings...)
	}

	out := make([]result.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, result.SearchResult{
			Document: project(h.doc, idx, q.Select),
			Score:    h.score,
		})
	}
	return &result.Set{Results: result.Truncate(out, q.Top)}, nil
}

func (s *Store) searchKNN(
	ctx context.Context, index, field string, vq *db.VectorQuery, prefilter string, metric schema.Metric,
) ([]hit, error) {
	if len(vq.Vector) == 0 {
		return nil, fmt.Errorf("vector is required: %w", domain.ErrInvalidInput)
	}
	if vq.K <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidInput)
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", vq.K, field, vectorScoreAlias)
	queryStr := "*=>" + knnPart
	if prefilter != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", prefilter, knnPart)
	}

	args := []string{
		index, queryStr,
		"RETURN", "2", "$", vectorScoreAlias,
		"LIMIT", "0", strconv.Itoa(vq.K),
		"PARAMS", "2", "BLOB", vectorToBytes(vq.Vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	hits, err := parseKNNResult(raw, s.docPrefix(index), metric)
	if err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

func (s *Store) searchText(ctx context.Context, index, text, prefilter string, limit int) ([]hit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput)
	}
	queryStr := "(" + escapeQuery(text) + ")"
	if prefilter != "" {
		queryStr = prefilter + " " + queryStr
	}

	args := []string{
		index, queryStr,
		"RETURN", "1", "$",
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseTextResult(raw, s.docPrefix(index))
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage, prefix string, metric schema.Metric) ([]hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]hit, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		pairs := parseFieldPairs(fields)
		doc, err := decodeDocument(pairs["$"])
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
		h := hit{key: strings.TrimPrefix(key, prefix), doc: doc}
		if d, err := strconv.ParseFloat(pairs[vectorScoreAlias], 64); err == nil {
			h.score = similarity(d, metric)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func parseTextResult(raw []rueidis.RedisMessage, prefix string) ([]hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]hit, 0, total)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		doc, err := decodeDocument(parseFieldPairs(fields)["$"])
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
		hits = append(hits, hit{key: strings.TrimPrefix(key, prefix), score: score, doc: doc})
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func decodeDocument(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return doc, nil
}

// similarity converts an FT vector distance into a higher-is-better score.
func similarity(distance float64, metric schema.Metric) float64 {
	switch metric {
	case schema.Euclidean:
		return 1 / (1 + distance)
	default:
		// COSINE and IP distances are 1 - similarity
		return 1 - distance
	}
}

// project drops vector fields and keeps only selected fields when a select list is given.
func project(doc map[string]any, idx *schema.Index, selectFields []string) map[string]any {
	out := make(map[string]any, len(doc))
	if len(selectFields) > 0 {
		for _, name := range selectFields {
			if v, ok := doc[name]; ok {
				out[name] = v
			}
		}
		return out
	}
	for k, v := range doc {
		if f, ok := idx.FieldByName(k); ok && f.IsVector() {
			continue
		}
		out[k] = v
	}
	return out
}

// --- Filter building ---

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter using the
// index schema to pick TAG, TEXT or NUMERIC syntax per field.
func buildFilter(expr filter.Expression, idx *schema.Index) (string, error) {
	if expr.IsEmpty() {
		return "", nil
	}

	var parts []string
	for _, cond := range expr.Must() {
		p, err := buildCondition(cond, idx)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	if len(expr.Should()) > 0 {
		should := make([]string, 0, len(expr.Should()))
		for _, cond := range expr.Should() {
			p, err := buildCondition(cond, idx)
			if err != nil {
				return "", err
			}
			should = append(should, p)
		}
		parts = append(parts, "("+strings.Join(should, " | ")+")")
	}

	for _, cond := range expr.MustNot() {
		p, err := buildCondition(cond, idx)
		if err != nil {
			return "", err
		}
		parts = append(parts, "-"+p)
	}

	return strings.Join(parts, " "), nil
}

func buildCondition(cond filter.Condition, idx *schema.Index) (string, error) {
	f, ok := idx.FieldByName(cond.Key())
	if !ok {
		return "", fmt.Errorf("filter field %q is not in index %q: %w", cond.Key(), idx.Name, domain.ErrInvalidInput)
	}

	if cond.IsRange() {
		if !f.Type.IsNumeric() {
			return "", fmt.Errorf("range filter on non-numeric field %q: %w", f.Name, domain.ErrInvalidInput)
		}
		return buildNumericFilter(f.Name, *cond.Range()), nil
	}

	switch {
	case f.Type.IsNumeric():
		v, err := strconv.ParseFloat(cond.Match(), 64)
		if err != nil {
			return "", fmt.Errorf("filter value %q for numeric field %q: %w", cond.Match(), f.Name, domain.ErrInvalidInput)
		}
		return fmt.Sprintf("@%s:[%g %g]", f.Name, v, v), nil
	case f.Type == schema.String && f.Searchable && !f.Key:
		return fmt.Sprintf("@%s:\"%s\"", f.Name, escapeQuery(cond.Match())), nil
	case f.Type == schema.String || f.Type == schema.StringCollection:
		return buildTagFilter(f.Name, cond.Match()), nil
	default:
		return "", fmt.Errorf("field %q of type %s is not filterable: %w", f.Name, f.Type, domain.ErrInvalidInput)
	}
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = fmt.Sprintf("(%g", *r.GT())
	} else if r.GTE() != nil {
		minBound = fmt.Sprintf("%g", *r.GTE())
	}

	if r.LT() != nil {
		maxBound = fmt.Sprintf("(%g", *r.LT())
	} else if r.LTE() != nil {
		maxBound = fmt.Sprintf("%g", *r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
