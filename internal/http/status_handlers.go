package http

import (
	"context"
	nethttp "net/http"
	"time"

	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
)

func servicesStatusHandler(store *epc.Store, registry *companieshouse.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"generated_at": time.Now().UTC(),
			"services": map[string]any{
				"database":        storeStatus(ctx, store),
				"companies_house": registryStatus(ctx, registry),
			},
		})
	}
}

func storeStatus(ctx context.Context, store *epc.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "database integration disabled"}
	}

	start := time.Now()
	stats, err := store.ServiceStats(ctx)
	recordDBQuery(store.Driver(), "ServiceStats", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}
	return map[string]any{"enabled": true, "ok": true, "stats": stats}
}

func registryStatus(ctx context.Context, registry *companieshouse.Client) map[string]any {
	if registry == nil || !registry.Enabled() {
		return map[string]any{"enabled": false, "ok": false, "fallback": "demo", "error": "companies house integration disabled"}
	}

	start := time.Now()
	latency, err := registry.Ping(ctx)
	recordExternalProbe("companies_house", "Ping", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}
	return map[string]any{"enabled": true, "ok": true, "latency_ms": latency}
}
