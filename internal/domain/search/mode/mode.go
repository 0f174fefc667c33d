package mode

// Mode is the query shape sent to the search index.
type Mode string

// Query mode constants.
const (
	// PureVector runs nearest-neighbor search over a single vector field.
	PureVector Mode = "pure-vector"
	// CrossFieldVector runs nearest-neighbor search over several vector fields at once.
	CrossFieldVector Mode = "cross-field-vector"
	// FilteredVector adds a boolean filter on scalar fields to vector search.
	FilteredVector Mode = "filtered-vector"
	// Hybrid combines keyword relevance on the query text with vector search.
	Hybrid Mode = "hybrid"
	// SemanticHybrid adds semantic reranking, captions and answers to hybrid search.
	SemanticHybrid Mode = "semantic-hybrid"
)

// All lists every supported mode.
var All = []Mode{PureVector, CrossFieldVector, FilteredVector, Hybrid, SemanticHybrid}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	for _, v := range All {
		if m == v {
			return true
		}
	}
	return false
}

// MatchesText reports whether the query text also takes part in keyword matching.
func (m Mode) MatchesText() bool {
	return m == Hybrid || m == SemanticHybrid
}
