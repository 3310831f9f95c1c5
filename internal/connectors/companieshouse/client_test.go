package companieshouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeRegistry(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/company/01234567", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-key" || pass != "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"company_number":"01234567","company_name":"SHOREDITCH ESTATES LTD","company_status":"active","has_charges":true,"accounts":{"overdue":true}}`))
	})
	mux.HandleFunc("/company/01234567/charges", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":1,"satisfied_count":0,"items":[{"charge_code":"012345670001","status":"outstanding","created_on":"2019-03-01","persons_entitled":[{"name":"Barclays Bank PLC"}]}]}`))
	})
	mux.HandleFunc("/company/01234567/officers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"name":"DOE, Jane","officer_role":"director"},{"name":"ROE, Rick","officer_role":"director","resigned_on":"2020-01-01"}]}`))
	})
	mux.HandleFunc("/search/companies", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "nobody" {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"company_number":"01234567","title":"SHOREDITCH ESTATES LTD","company_status":"active"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ProfileCached(t *testing.T) {
	var hits int64
	srv := newFakeRegistry(t, &hits)

	var observed []string
	c := NewClient(srv.URL, "test-key", time.Second, time.Minute, WithObserver(func(op string, _ float64, _ error) {
		observed = append(observed, op)
	}))

	p, err := c.Profile(context.Background(), "01234567")
	require.NoError(t, err)
	assert.Equal(t, "SHOREDITCH ESTATES LTD", p.CompanyName)
	assert.True(t, p.Accounts.Overdue)

	_, err = c.Profile(context.Background(), "01234567")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
	assert.Equal(t, []string{"Profile"}, observed)
}

func TestClient_NotFound(t *testing.T) {
	var hits int64
	srv := newFakeRegistry(t, &hits)
	c := NewClient(srv.URL, "test-key", time.Second, time.Minute)

	_, err := c.Profile(context.Background(), "99999999")
	assert.ErrorIs(t, err, ErrNotFound)

	charges, err := c.Charges(context.Background(), "99999999")
	require.NoError(t, err)
	assert.Empty(t, charges.Items)

	psc, err := c.PSC(context.Background(), "01234567")
	require.NoError(t, err)
	assert.Empty(t, psc)
}

func TestClient_OfficersAndCharges(t *testing.T) {
	var hits int64
	srv := newFakeRegistry(t, &hits)
	c := NewClient(srv.URL, "test-key", time.Second, 0)

	officers, err := c.Officers(context.Background(), "01234567")
	require.NoError(t, err)
	require.Len(t, officers, 2)
	assert.True(t, officers[0].Active())
	assert.False(t, officers[1].Active())

	charges, err := c.Charges(context.Background(), "01234567")
	require.NoError(t, err)
	require.Len(t, charges.Items, 1)
	assert.Equal(t, "Barclays Bank PLC", charges.Items[0].PersonsEntitled[0].Name)
}

func TestClient_SearchCompany(t *testing.T) {
	var hits int64
	srv := newFakeRegistry(t, &hits)
	c := NewClient(srv.URL, "test-key", time.Second, time.Minute)

	hit, err := c.SearchCompany(context.Background(), "shoreditch estates")
	require.NoError(t, err)
	assert.Equal(t, "01234567", hit.CompanyNumber)

	_, err = c.SearchCompany(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient("https://example.invalid", "", time.Second, time.Minute)
	assert.False(t, c.Enabled())

	_, err := c.Profile(context.Background(), "01234567")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPSC_Corporate(t *testing.T) {
	assert.True(t, PSC{Kind: "corporate-entity-person-with-significant-control"}.Corporate())
	assert.True(t, PSC{Kind: "legal-person-person-with-significant-control"}.Corporate())
	assert.False(t, PSC{Kind: "individual-person-with-significant-control"}.Corporate())
}

func TestAddressString(t *testing.T) {
	a := Address{Premises: "Unit 4b", AddressLine1: " Shoreditch High St ", PostalCode: "E1 6JE"}
	assert.Equal(t, "Unit 4b, Shoreditch High St, E1 6JE", a.String())
}
