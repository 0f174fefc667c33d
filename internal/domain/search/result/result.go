// Package result holds query hits and semantic answers returned by a search backend.
package result

import "sort"

// Caption is an extractive caption produced by semantic reranking.
type Caption struct {
	Text       string `json:"text"`
	Highlights string `json:"highlights,omitempty"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	Document      map[string]any `json:"document"`
	Score         float64        `json:"score"`
	RerankerScore *float64       `json:"reranker_score,omitempty"`
	Captions      []Caption      `json:"captions,omitempty"`
}

// RankScore is the reranker score when present, otherwise the retrieval score.
func (r SearchResult) RankScore() float64 {
	if r.RerankerScore != nil {
		return *r.RerankerScore
	}
	return r.Score
}

// Text returns a document field as a string. Non-string values yield "".
func (r SearchResult) Text(field string) string {
	s, _ := r.Document[field].(string)
	return s
}

// SemanticAnswer is an extractive answer produced by semantic reranking.
type SemanticAnswer struct {
	Key        string  `json:"key"`
	Text       string  `json:"text"`
	Highlights string  `json:"highlights,omitempty"`
	Score      float64 `json:"score"`
}

// Set is the outcome of one query.
type Set struct {
	Results []SearchResult   `json:"results"`
	Answers []SemanticAnswer `json:"answers,omitempty"`
}

// Sort orders results by descending rank score. Ties keep backend order.
func Sort(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RankScore() > results[j].RankScore()
	})
}

// Truncate sorts results and keeps at most top of them.
func Truncate(results []SearchResult, top int) []SearchResult {
	Sort(results)
	if top > 0 && len(results) > top {
		return results[:top]
	}
	return results
}
