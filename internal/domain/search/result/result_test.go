package result

import "testing"

func ptr(f float64) *float64 { return &f }

func TestRankScore(t *testing.T) {
	r := SearchResult{Score: 0.8}
	if r.RankScore() != 0.8 {
		t.Errorf("RankScore() = %f", r.RankScore())
	}
	r.RerankerScore = ptr(2.5)
	if r.RankScore() != 2.5 {
		t.Errorf("RankScore() with reranker = %f", r.RankScore())
	}
}

func TestTruncate(t *testing.T) {
	results := []SearchResult{
		{Document: map[string]any{"id": "a"}, Score: 0.1},
		{Document: map[string]any{"id": "b"}, Score: 0.9},
		{Document: map[string]any{"id": "c"}, Score: 0.5},
		{Document: map[string]any{"id": "d"}, Score: 0.7},
	}
	got := Truncate(results, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"b", "d", "c"}
	for i, id := range want {
		if got[i].Text("id") != id {
			t.Errorf("[%d] = %q, want %q", i, got[i].Text("id"), id)
		}
	}
}

func TestTruncate_RerankerWins(t *testing.T) {
	results := []SearchResult{
		{Document: map[string]any{"id": "a"}, Score: 0.9, RerankerScore: ptr(1.0)},
		{Document: map[string]any{"id": "b"}, Score: 0.1, RerankerScore: ptr(3.0)},
	}
	got := Truncate(results, 0)
	if got[0].Text("id") != "b" {
		t.Errorf("first = %q, want b", got[0].Text("id"))
	}
}

func TestText_NonString(t *testing.T) {
	r := SearchResult{Document: map[string]any{"GateCapacity": 150}}
	if r.Text("GateCapacity") != "" || r.Text("missing") != "" {
		t.Error("expected empty text for non-string or missing field")
	}
}
