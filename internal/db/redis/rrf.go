package redis

import "sort"

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// The first ranking a document appears in provides its fields.
func fuseRRF(rankings ...[]hit) []hit {
	type scored struct {
		hit   hit
		first int
	}

	merged := make(map[string]*scored)
	order := 0
	for _, ranking := range rankings {
		for rank, h := range ranking {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[h.key]; ok {
				existing.hit.score += s
				continue
			}
			h.score = s
			merged[h.key] = &scored{hit: h, first: order}
			order++
		}
	}

	fused := make([]*scored, 0, len(merged))
	for _, s := range merged {
		fused = append(fused, s)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].hit.score != fused[j].hit.score {
			return fused[i].hit.score > fused[j].hit.score
		}
		return fused[i].first < fused[j].first
	})

	out := make([]hit, len(fused))
	for i, s := range fused {
		out[i] = s.hit
	}
	return out
}

// sortHits orders hits by descending score, keeping backend order on ties.
func sortHits(hits []hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
}
