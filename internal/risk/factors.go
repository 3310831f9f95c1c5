package risk

// Factor is one axis of the dossier risk matrix.
type Factor struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Tier  Tier    `json:"tier"`
}

// Factors returns the static five-factor risk matrix shown in the dossier.
// These scores are placeholders and are not derived from Classify.
func Factors() []Factor {
	return []Factor{
		{Name: "Credit", Score: 8.5, Tier: TierCritical},
		{Name: "Market", Score: 6.2, Tier: TierHigh},
		{Name: "Liquidity", Score: 7.8, Tier: TierCritical},
		{Name: "Operational", Score: 5.4, Tier: TierMedium},
		{Name: "Legal", Score: 8.1, Tier: TierCritical},
	}
}
