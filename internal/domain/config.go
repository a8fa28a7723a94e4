package domain

// Default HNSW build parameters for stores that build the index themselves.
const (
	DefaultHNSWM              = 16
	DefaultHNSWEFConstruction = 200
)

// HNSWParams are the graph build parameters of an approximate vector index.
type HNSWParams struct {
	M              int
	EFConstruction int
}

// WithDefaults fills unset parameters.
func (p HNSWParams) WithDefaults() HNSWParams {
	if p.M <= 0 {
		p.M = DefaultHNSWM
	}
	if p.EFConstruction <= 0 {
		p.EFConstruction = DefaultHNSWEFConstruction
	}
	return p
}
