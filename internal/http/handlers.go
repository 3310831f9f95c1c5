package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
	"vantage-distress-ui/internal/corporate"
	"vantage-distress-ui/internal/risk"
)

// classifiedAsset is an asset as emitted by the API, with its computed risk.
type classifiedAsset struct {
	epc.Asset
	Risk risk.Classification `json:"risk"`
}

func classifyAssets(items []epc.Asset, source string) []classifiedAsset {
	out := make([]classifiedAsset, 0, len(items))
	for _, a := range items {
		c := risk.ClassifyPtr(a.AssetRatingBand)
		recordClassification(c.Tier, source)
		out = append(out, classifiedAsset{Asset: a, Risk: c})
	}
	return out
}

func statusHandler(version string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status":  "Vantage System Online",
			"version": version,
		})
	}
}

func distressScanHandler(defaultLimit, maxLimit int, store *epc.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "database integration disabled (set APP_DB_ENABLED=true)",
			})
			return
		}

		limit := parseLimit(r, defaultLimit, maxLimit)
		start := time.Now()
		items, err := store.DistressScan(r.Context(), limit)
		recordDBQuery(store.Driver(), "DistressScan", time.Since(start).Seconds(), err)
		if err != nil {
			writeJSON(w, storeErrorStatus(err), map[string]any{
				"error": "failed to run distress scan",
			})
			return
		}

		data := classifyAssets(items, "epc")
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"count": len(data),
			"meta": map[string]any{
				"limit": limit,
				"count": len(data),
				"bands": epc.DistressBands,
			},
			"data": data,
		})
	}
}

func searchHandler(defaultLimit, maxLimit int, store *epc.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "database integration disabled (set APP_DB_ENABLED=true)",
			})
			return
		}

		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{
				"error": "query parameter q is required",
			})
			return
		}

		limit := parseLimit(r, defaultLimit, maxLimit)
		start := time.Now()
		items, err := store.Search(r.Context(), q, limit)
		recordDBQuery(store.Driver(), "Search", time.Since(start).Seconds(), err)
		if err != nil {
			status := storeErrorStatus(err)
			if errors.Is(err, epc.ErrEmptyQuery) {
				status = nethttp.StatusBadRequest
			}
			writeJSON(w, status, map[string]any{
				"error": "failed to search assets",
			})
			return
		}

		data := classifyAssets(items, "epc")
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"query": q,
				"limit": limit,
				"count": len(data),
			},
			"data": data,
		})
	}
}

func comparablesHandler(store *epc.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "database integration disabled (set APP_DB_ENABLED=true)",
			})
			return
		}

		postcode := epc.NormalizePostcode(r.URL.Query().Get("postcode"))
		if postcode == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{
				"error": "query parameter postcode is required",
			})
			return
		}

		limit := parseLimit(r, epc.MaxComparableSales, epc.MaxComparableSales)
		start := time.Now()
		comps, err := store.Comparables(r.Context(), postcode, limit)
		recordDBQuery(store.Driver(), "Comparables", time.Since(start).Seconds(), err)
		if err != nil {
			writeJSON(w, storeErrorStatus(err), map[string]any{
				"error": "failed to load comparables",
			})
			return
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"postcode":           comps.Postcode,
				"limit":              limit,
				"count":              len(comps.Sales),
				"matched":            comps.Matched,
				"avg_price_per_sqft": comps.AvgPricePerSqft,
			},
			"data": comps.Sales,
		})
	}
}

func companyRouter(builder *corporate.Builder) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		trimmed := strings.TrimPrefix(r.URL.Path, "/api/companies/")
		parts := strings.Split(strings.Trim(trimmed, "/"), "/")
		if len(parts) != 2 || parts[0] == "" {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}

		action := parts[1]
		switch action {
		case "structure", "charges", "dossier":
		default:
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}

		number, err := companieshouse.NormalizeNumber(parts[0])
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{
				"error": fmt.Sprintf("invalid company number: %q", parts[0]),
			})
			return
		}
		if builder == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "companies house integration disabled (set COMPANIES_HOUSE_KEY)",
			})
			return
		}

		var (
			data any
			meta = map[string]any{"company_number": number}
		)
		switch action {
		case "structure":
			s, err := builder.Structure(r.Context(), number)
			if err != nil {
				writeRegistryError(w, err, number, "failed to build company structure")
				return
			}
			meta["source"] = s.Source
			meta["depth"] = s.Depth
			data = s
		case "charges":
			c, err := builder.Charges(r.Context(), number)
			if err != nil {
				writeRegistryError(w, err, number, "failed to fetch company charges")
				return
			}
			meta["source"] = c.Source
			meta["count"] = c.Summary.Total
			data = c
		case "dossier":
			d, err := builder.Dossier(r.Context(), number)
			if err != nil {
				writeRegistryError(w, err, number, "failed to build company dossier")
				return
			}
			meta["source"] = d.Structure.Source
			meta["depth"] = d.Structure.Depth
			meta["count"] = d.Charges.Summary.Total
			data = d
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": meta,
			"data": data,
		})
	}
}

func writeRegistryError(w nethttp.ResponseWriter, err error, number, message string) {
	switch {
	case errors.Is(err, companieshouse.ErrNotFound):
		writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": fmt.Sprintf("company not found: %s", number)})
	case errors.Is(err, companieshouse.ErrDisabled):
		writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"error": "companies house integration disabled (set COMPANIES_HOUSE_KEY)"})
	case errors.Is(err, companieshouse.ErrInvalidNumber):
		writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, nethttp.StatusGatewayTimeout, map[string]any{"error": message})
	default:
		writeJSON(w, nethttp.StatusBadGateway, map[string]any{"error": message})
	}
}

func storeErrorStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nethttp.ErrHandlerTimeout) {
		return nethttp.StatusGatewayTimeout
	}
	return nethttp.StatusInternalServerError
}

func parseLimit(r *nethttp.Request, defaultLimit, maxLimit int) int {
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}
