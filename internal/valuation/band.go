package valuation

// Band is the qualitative valuation label derived from a percentile rank
type Band string

const (
	BandUndervalued  Band = "undervalued"
	BandSlightlyLow  Band = "slightly_low"
	BandFair         Band = "fair"
	BandSlightlyHigh Band = "slightly_high"
	BandOvervalued   Band = "overvalued"

	// BandNoData marks an undefined rank; it is never FAIR
	BandNoData Band = "no_data"
)

// Fixed cut points, inclusive-lower / exclusive-upper
const (
	cutSlightlyLow  = 20.0
	cutFair         = 50.0
	cutSlightlyHigh = 80.0
	cutOvervalued   = 90.0
)

// BandFor maps a rank in [0,100] to its band
func BandFor(rank float64) Band {
	switch {
	case rank < cutSlightlyLow:
		return BandUndervalued
	case rank < cutFair:
		return BandSlightlyLow
	case rank < cutSlightlyHigh:
		return BandFair
	case rank < cutOvervalued:
		return BandSlightlyHigh
	default:
		return BandOvervalued
	}
}
