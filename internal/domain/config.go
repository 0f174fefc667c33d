package domain

// KeyPrefix namespaces every key vecbot writes into a shared Redis/Valkey.
const KeyPrefix = "vecbot:"

// VectorConfig describes how vector fields are declared when the config omits them.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
	M              int
	EFConstruction int
	EFSearch       int
}

// DefaultVectorConfig returns the HNSW settings used with text-embedding-ada-002.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-ada-002",
		Dimensions:     DefaultDimensions,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
		M:              4,
		EFConstruction: 400,
		EFSearch:       500,
	}
}
