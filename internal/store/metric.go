package store

// Metric names a pgvector distance operator.
type Metric string

const (
	Cosine       Metric = "cosine"
	L2           Metric = "l2"
	InnerProduct Metric = "inner_product"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case Cosine, L2, InnerProduct:
		return true
	}
	return false
}

// Operator returns the pgvector operator that orders rows nearest first.
func (m Metric) Operator() string {
	switch m {
	case L2:
		return "<->"
	case InnerProduct:
		return "<#>"
	default:
		return "<=>"
	}
}

// Score turns a distance into a similarity where higher is closer.
// Cosine yields 1 - d, roughly [-1, 1]. The others negate the distance
// (for <#> that is the inner product itself).
func (m Metric) Score(distance float64) float64 {
	switch m {
	case L2, InnerProduct:
		return -distance
	default:
		return 1 - distance
	}
}
