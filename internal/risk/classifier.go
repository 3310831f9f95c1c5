// Package risk maps energy-performance rating bands to distress tiers.
package risk

// Tier is a coarse risk bucket used to color dashboard badges.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Classification is the tier and display score derived from a rating band.
type Classification struct {
	Tier  Tier    `json:"tier"`
	Score float64 `json:"score"`
}

// Classify returns the classification for an EPC asset rating band.
// Absent or unrecognized bands fall through to the low tier so a badge can always be rendered.
func Classify(band string) Classification {
	switch {
	case band == "F" || band == "G":
		return Classification{Tier: TierCritical, Score: 9.1}
	case band == "E":
		return Classification{Tier: TierHigh, Score: 7.5}
	case band == "D":
		return Classification{Tier: TierMedium, Score: 5.2}
	default:
		return Classification{Tier: TierLow, Score: 2.4}
	}
}

// ClassifyPtr is Classify for optional bands.
func ClassifyPtr(band *string) Classification {
	if band == nil {
		return Classify("")
	}
	return Classify(*band)
}

// Badge returns the dashboard badge variant for the tier.
func (t Tier) Badge() string {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow:
		return string(t)
	default:
		return "neutral"
	}
}
