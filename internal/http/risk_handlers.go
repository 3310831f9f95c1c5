package http

import (
	nethttp "net/http"

	"vantage-distress-ui/internal/risk"
)

// classifyHandler exposes the band classifier. The band is used verbatim; a missing band classifies as low.
func classifyHandler(w nethttp.ResponseWriter, r *nethttp.Request) {
	var band *string
	if values, ok := r.URL.Query()["band"]; ok && len(values) > 0 {
		band = &values[0]
	}

	c := risk.ClassifyPtr(band)
	recordClassification(c.Tier, "api")
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"meta": map[string]any{
			"band":    band,
			"present": band != nil,
		},
		"data": map[string]any{
			"tier":  c.Tier,
			"score": c.Score,
			"badge": c.Tier.Badge(),
		},
	})
}

func factorsHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	factors := risk.Factors()
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"meta": map[string]any{"count": len(factors)},
		"data": factors,
	})
}
