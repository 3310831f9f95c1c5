package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vantage-distress-ui/internal/config"
	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
	"vantage-distress-ui/internal/corporate"
	"vantage-distress-ui/internal/demo"
)

func newTestStore(t *testing.T) *epc.Store {
	t.Helper()
	store, err := epc.Open("sqlite", filepath.Join(t.TempDir(), "vantage.db"), time.Second, 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	band := func(b string) *string { return &b }
	_, err = store.InsertAssets(context.Background(), []epc.Asset{
		{UPRN: "1", Address: "1 Hollybush Place, E2", AssetRatingBand: band("E"), FloorArea: decimal.NewNullDecimal(decimal.NewFromInt(94))},
		{UPRN: "2", Address: "Unit 4b, Shoreditch", AssetRatingBand: band("F"), FloorArea: decimal.NewNullDecimal(decimal.NewFromInt(450))},
		{UPRN: "3", Address: "The Old Brewery, Brick Lane", AssetRatingBand: band("G")},
		{UPRN: "4", Address: "77 Whitechapel Rd", AssetRatingBand: band("D")},
	})
	if err != nil {
		t.Fatalf("seed assets: %v", err)
	}
	return store
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
	return payload
}

func TestDistressScanHandler_DBDisabled(t *testing.T) {
	rr := serve(distressScanHandler(50, 500, nil), http.MethodGet, "/api/distress-scan?limit=20")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	if decode(t, rr)["error"] == nil {
		t.Fatalf("expected error field in response")
	}
}

func TestDistressScanHandler_ClassifiesEachAsset(t *testing.T) {
	rr := serve(distressScanHandler(50, 500, newTestStore(t)), http.MethodGet, "/api/distress-scan")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	payload := decode(t, rr)
	if payload["count"].(float64) != 2 {
		t.Fatalf("expected 2 distressed assets, got %v", payload["count"])
	}
	data := payload["data"].([]any)
	first := data[0].(map[string]any)
	if first["asset_rating_band"] != "G" {
		t.Fatalf("expected worst band first, got %v", first["asset_rating_band"])
	}
	for _, item := range data {
		r := item.(map[string]any)["risk"].(map[string]any)
		if r["tier"] != "critical" || r["score"].(float64) != 9.1 {
			t.Fatalf("expected critical/9.1, got %v", r)
		}
	}
}

func TestDistressScanHandler_FloorAreaIsNumber(t *testing.T) {
	rr := serve(distressScanHandler(50, 500, newTestStore(t)), http.MethodGet, "/api/distress-scan")
	data := decode(t, rr)["data"].([]any)

	areas := map[string]any{}
	for _, item := range data {
		asset := item.(map[string]any)
		areas[asset["uprn"].(string)] = asset["floor_area"]
	}
	area, ok := areas["2"].(float64)
	if !ok || area != 450 {
		t.Fatalf("expected floor_area 450 as a JSON number, got %#v", areas["2"])
	}
	if areas["3"] != nil {
		t.Fatalf("expected null floor_area when absent, got %#v", areas["3"])
	}
}

func TestDistressScanHandler_LimitClampedToMax(t *testing.T) {
	rr := serve(distressScanHandler(50, 1, newTestStore(t)), http.MethodGet, "/api/distress-scan?limit=100")
	meta := decode(t, rr)["meta"].(map[string]any)
	if meta["limit"].(float64) != 1 || meta["count"].(float64) != 1 {
		t.Fatalf("expected limit clamped to 1, got %v", meta)
	}
}

func TestSearchHandler(t *testing.T) {
	h := searchHandler(10, 500, newTestStore(t))

	rr := serve(h, http.MethodGet, "/api/search?q=++")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty query, got %d", rr.Code)
	}

	rr = serve(h, http.MethodGet, "/api/search?q=WHITECHAPEL")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	payload := decode(t, rr)
	data := payload["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(data))
	}
	r := data[0].(map[string]any)["risk"].(map[string]any)
	if r["tier"] != "medium" || r["score"].(float64) != 5.2 {
		t.Fatalf("expected medium/5.2, got %v", r)
	}
	if payload["meta"].(map[string]any)["query"] != "WHITECHAPEL" {
		t.Fatalf("expected query echoed in meta")
	}
}

type notFoundRegistry struct{}

func (notFoundRegistry) Enabled() bool { return true }

func (notFoundRegistry) Profile(_ context.Context, number string) (*companieshouse.Profile, error) {
	return nil, fmt.Errorf("%w: %s", companieshouse.ErrNotFound, number)
}

func (notFoundRegistry) Officers(context.Context, string) ([]companieshouse.Officer, error) {
	return nil, nil
}

func (notFoundRegistry) PSC(context.Context, string) ([]companieshouse.PSC, error) { return nil, nil }

func (notFoundRegistry) Charges(context.Context, string) (*companieshouse.ChargeList, error) {
	return nil, fmt.Errorf("upstream status=500")
}

type deadlineRegistry struct{ notFoundRegistry }

func (deadlineRegistry) Profile(context.Context, string) (*companieshouse.Profile, error) {
	return nil, fmt.Errorf("get company profile: %w", context.DeadlineExceeded)
}

func (deadlineRegistry) Charges(context.Context, string) (*companieshouse.ChargeList, error) {
	return nil, fmt.Errorf("get charges: %w", context.DeadlineExceeded)
}

func TestCompanyRouter_DemoStructure(t *testing.T) {
	h := companyRouter(corporate.NewBuilder(nil, demo.Registry{}, 2))

	rr := serve(h, http.MethodGet, "/api/companies/9234567/structure")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	meta := payload["meta"].(map[string]any)
	if meta["company_number"] != "09234567" || meta["source"] != "demo" {
		t.Fatalf("unexpected meta: %v", meta)
	}
	root := payload["data"].(map[string]any)["root"].(map[string]any)
	if root["name"] != "SHOREDITCH INDUSTRIAL LTD" {
		t.Fatalf("unexpected root: %v", root["name"])
	}
}

func TestCompanyRouter_Dossier(t *testing.T) {
	h := companyRouter(corporate.NewBuilder(nil, demo.Registry{}, 2))

	rr := serve(h, http.MethodGet, "/api/companies/07345678/dossier")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	data := decode(t, rr)["data"].(map[string]any)
	charges := data["charges"].(map[string]any)
	if charges["distressed"] != true {
		t.Fatalf("expected distressed charges, got %v", charges)
	}
	if len(charges["timeline"].([]any)) != 4 {
		t.Fatalf("expected 4 timeline events")
	}
}

func TestCompanyRouter_Errors(t *testing.T) {
	demoRouter := companyRouter(corporate.NewBuilder(nil, demo.Registry{}, 2))
	liveRouter := companyRouter(corporate.NewBuilder(notFoundRegistry{}, nil, 2))
	slowRouter := companyRouter(corporate.NewBuilder(deadlineRegistry{}, nil, 2))

	cases := []struct {
		name   string
		h      http.Handler
		target string
		want   int
	}{
		{"unknown action", demoRouter, "/api/companies/09234567/unknown", http.StatusNotFound},
		{"missing action", demoRouter, "/api/companies/09234567", http.StatusNotFound},
		{"invalid number", demoRouter, "/api/companies/09-234/structure", http.StatusBadRequest},
		{"too long", demoRouter, "/api/companies/12345678901/charges", http.StatusBadRequest},
		{"not in registry", liveRouter, "/api/companies/00000001/structure", http.StatusNotFound},
		{"upstream failure", liveRouter, "/api/companies/00000001/charges", http.StatusBadGateway},
		{"structure timeout", slowRouter, "/api/companies/00000001/structure", http.StatusGatewayTimeout},
		{"charges timeout", slowRouter, "/api/companies/00000001/charges", http.StatusGatewayTimeout},
		{"dossier timeout", slowRouter, "/api/companies/00000001/dossier", http.StatusGatewayTimeout},
		{"no builder", companyRouter(nil), "/api/companies/00000001/charges", http.StatusServiceUnavailable},
		{"no source", companyRouter(corporate.NewBuilder(nil, nil, 2)), "/api/companies/00000001/charges", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(tc.h, http.MethodGet, tc.target)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestComparablesHandler(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.InsertAssets(ctx, []epc.Asset{
		{UPRN: "10", Address: "12, Whitechapel Road.", Postcode: "E1 1BY", FloorArea: decimal.NewNullDecimal(decimal.NewFromInt(100))},
	})
	if err != nil {
		t.Fatalf("seed assets: %v", err)
	}
	_, err = store.InsertSales(ctx, []epc.Sale{
		{TransactionID: "A1", Price: 538200, TransferDate: "2023-05-01", Postcode: "E1 1BY", Address: "12 WHITECHAPEL ROAD"},
		{TransactionID: "A2", Price: 300000, TransferDate: "2024-01-10", Postcode: "E1 1BY", Address: "99 MILE END ROAD"},
	})
	if err != nil {
		t.Fatalf("seed sales: %v", err)
	}
	h := comparablesHandler(store)

	if rr := serve(h, http.MethodGet, "/api/comparables?postcode=+"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without postcode, got %d", rr.Code)
	}

	rr := serve(h, http.MethodGet, "/api/comparables?postcode=e1+1by&limit=100")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	meta := payload["meta"].(map[string]any)
	if meta["postcode"] != "E1 1BY" || meta["limit"].(float64) != 20 || meta["count"].(float64) != 2 || meta["matched"].(float64) != 1 {
		t.Fatalf("unexpected meta: %v", meta)
	}
	if avg, ok := meta["avg_price_per_sqft"].(float64); !ok || avg != 500 {
		t.Fatalf("expected avg_price_per_sqft 500, got %#v", meta["avg_price_per_sqft"])
	}
	data := payload["data"].([]any)
	if first := data[0].(map[string]any); first["transaction_id"] != "A2" || first["price_per_sqft"] != nil {
		t.Fatalf("expected newest unmatched sale first, got %v", first)
	}
	if second := data[1].(map[string]any); second["matched_uprn"] != "10" || second["floor_area"].(float64) != 100 {
		t.Fatalf("expected sale matched to uprn 10, got %v", second)
	}
}

func TestComparablesHandler_DBDisabled(t *testing.T) {
	rr := serve(comparablesHandler(nil), http.MethodGet, "/api/comparables?postcode=E1+1BY")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestClassifyHandler(t *testing.T) {
	cases := []struct {
		target string
		tier   string
		score  float64
	}{
		{"/api/risk/classify?band=F", "critical", 9.1},
		{"/api/risk/classify?band=G", "critical", 9.1},
		{"/api/risk/classify?band=E", "high", 7.5},
		{"/api/risk/classify?band=D", "medium", 5.2},
		{"/api/risk/classify?band=A", "low", 2.4},
		{"/api/risk/classify?band=f", "low", 2.4},
		{"/api/risk/classify?band=", "low", 2.4},
		{"/api/risk/classify", "low", 2.4},
	}
	for _, tc := range cases {
		rr := serve(http.HandlerFunc(classifyHandler), http.MethodGet, tc.target)
		data := decode(t, rr)["data"].(map[string]any)
		if data["tier"] != tc.tier || data["score"].(float64) != tc.score || data["badge"] != tc.tier {
			t.Fatalf("%s: expected %s/%v, got %v", tc.target, tc.tier, tc.score, data)
		}
	}
}

func TestFactorsHandler(t *testing.T) {
	rr := serve(http.HandlerFunc(factorsHandler), http.MethodGet, "/api/risk/factors")
	data := decode(t, rr)["data"].([]any)
	if len(data) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(data))
	}
	if data[0].(map[string]any)["name"] != "Credit" {
		t.Fatalf("unexpected first factor: %v", data[0])
	}
}

func TestServicesStatusHandler_Disabled(t *testing.T) {
	rr := serve(servicesStatusHandler(nil, nil), http.MethodGet, "/api/status/services")
	services := decode(t, rr)["services"].(map[string]any)
	for _, name := range []string{"database", "companies_house"} {
		svc := services[name].(map[string]any)
		if svc["enabled"] != false {
			t.Fatalf("expected %s disabled, got %v", name, svc)
		}
	}
}

func TestServicesStatusHandler_Store(t *testing.T) {
	rr := serve(servicesStatusHandler(newTestStore(t), nil), http.MethodGet, "/api/status/services")
	db := decode(t, rr)["services"].(map[string]any)["database"].(map[string]any)
	if db["ok"] != true {
		t.Fatalf("expected database ok, got %v", db)
	}
	stats := db["stats"].(map[string]any)
	if stats["assets_total"].(float64) != 4 || stats["distressed_total"].(float64) != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	d := deps{
		cfg:     config.Config{DefaultScanLimit: 50, DefaultSearchLimit: 10, MaxLimit: 500, AllowedOrigin: "*"},
		version: "test",
		builder: corporate.NewBuilder(nil, demo.Registry{}, 2),
	}
	return newHandler(d, zap.NewNop())
}

func TestRouter_StatusAndMiddleware(t *testing.T) {
	h := testHandler(t)

	rr := serve(h, http.MethodGet, "/api/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	payload := decode(t, rr)
	if payload["status"] != "Vantage System Online" || payload["version"] != "test" {
		t.Fatalf("unexpected status payload: %v", payload)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("expected request id to be propagated")
	}
}

func TestRouter_MethodHandling(t *testing.T) {
	h := testHandler(t)

	if rr := serve(h, http.MethodPost, "/api/distress-scan"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodOptions, "/api/distress-scan"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/api/distress-scan"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/ready"); rr.Code != http.StatusOK {
		t.Fatalf("expected ready without a store, got %d", rr.Code)
	}
}

func TestRouter_DashboardAndMetrics(t *testing.T) {
	h := testHandler(t)

	rr := serve(h, http.MethodGet, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Vantage", "1 Hollybush Place, E2", `"critical"`, "Liquidity", "openDossier(items[0])", "/api/comparables?postcode="} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}

	if rr := serve(h, http.MethodGet, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = serve(h, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}
	for _, want := range []string{"vantage_http_requests_total", "vantage_classified_assets_total"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestNormalizeMetricPath(t *testing.T) {
	cases := map[string]string{
		"/":                                 "/",
		"/api/companies/09234567/structure": "/api/companies/{number}/structure",
		"/api/companies/09234567/charges":   "/api/companies/{number}/charges",
		"/api/companies/09234567/dossier":   "/api/companies/{number}/dossier",
		"/api/companies/09234567/whatever":  "/api/companies/{other}",
		"/api/distress-scan":                "/api/distress-scan",
		"/api/comparables":                  "/api/comparables",
		"/metrics":                          "/metrics",
		"/wp-login.php":                     "{unmatched}",
	}
	for in, want := range cases {
		if got := normalizeMetricPath(in); got != want {
			t.Fatalf("normalizeMetricPath(%q) = %q, want %q", in, got, want)
		}
	}
}
