// Package companieshouse is a small client for the Companies House public data API.
package companieshouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("companies house integration disabled")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("companies house record not found")
)

// Address is a registered office or correspondence address.
type Address struct {
	Premises     string `json:"premises,omitempty"`
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Locality     string `json:"locality,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
}

// String joins the non-empty address parts.
func (a Address) String() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Premises, a.AddressLine1, a.AddressLine2, a.Locality, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// SearchResult is one hit from the company search endpoint.
type SearchResult struct {
	CompanyNumber  string `json:"company_number"`
	Title          string `json:"title"`
	CompanyStatus  string `json:"company_status"`
	AddressSnippet string `json:"address_snippet"`
}

// Profile is the company profile resource.
type Profile struct {
	CompanyNumber           string  `json:"company_number"`
	CompanyName             string  `json:"company_name"`
	CompanyStatus           string  `json:"company_status"`
	Type                    string  `json:"type"`
	DateOfCreation          string  `json:"date_of_creation"`
	Jurisdiction            string  `json:"jurisdiction"`
	HasCharges              bool    `json:"has_charges"`
	RegisteredOfficeAddress Address `json:"registered_office_address"`
	Accounts                struct {
		Overdue bool   `json:"overdue"`
		NextDue string `json:"next_due"`
	} `json:"accounts"`
}

// Officer is a director, secretary or other appointment.
type Officer struct {
	Name        string `json:"name"`
	OfficerRole string `json:"officer_role"`
	AppointedOn string `json:"appointed_on"`
	ResignedOn  string `json:"resigned_on,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// Active reports whether the appointment has not been resigned.
func (o Officer) Active() bool {
	return strings.TrimSpace(o.ResignedOn) == ""
}

// PSC is a person with significant control.
type PSC struct {
	Name             string   `json:"name"`
	Kind             string   `json:"kind"`
	NaturesOfControl []string `json:"natures_of_control"`
	NotifiedOn       string   `json:"notified_on"`
	CeasedOn         string   `json:"ceased_on,omitempty"`
	Identification   struct {
		LegalForm          string `json:"legal_form,omitempty"`
		CountryRegistered  string `json:"country_registered,omitempty"`
		PlaceRegistered    string `json:"place_registered,omitempty"`
		RegistrationNumber string `json:"registration_number,omitempty"`
	} `json:"identification"`
}

// Corporate reports whether the PSC is a company or other legal person.
func (p PSC) Corporate() bool {
	return strings.HasPrefix(p.Kind, "corporate-entity") || strings.HasPrefix(p.Kind, "legal-person")
}

// Active reports whether the PSC has not ceased.
func (p PSC) Active() bool {
	return strings.TrimSpace(p.CeasedOn) == ""
}

// Charge is a registered mortgage or charge.
type Charge struct {
	ChargeCode     string `json:"charge_code"`
	ChargeNumber   int    `json:"charge_number"`
	Status         string `json:"status"`
	CreatedOn      string `json:"created_on"`
	DeliveredOn    string `json:"delivered_on"`
	SatisfiedOn    string `json:"satisfied_on,omitempty"`
	Classification struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"classification"`
	SecuredDetails struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"secured_details"`
	PersonsEntitled []struct {
		Name string `json:"name"`
	} `json:"persons_entitled"`
}

// ChargeList is the charges collection for a company.
type ChargeList struct {
	TotalCount         int      `json:"total_count"`
	UnfilteredCount    int      `json:"unfiltered_count"`
	SatisfiedCount     int      `json:"satisfied_count"`
	PartSatisfiedCount int      `json:"part_satisfied_count"`
	Items              []Charge `json:"items"`
}

// Client performs authenticated Companies House lookups with an in-memory response cache.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Cache
	observe func(operation string, seconds float64, err error)
}

// Option customizes a Client.
type Option func(*Client)

// WithObserver registers a callback invoked after every upstream request.
func WithObserver(fn func(operation string, seconds float64, err error)) Option {
	return func(c *Client) { c.observe = fn }
}

// NewClient returns a Companies House client for baseURL authenticated with apiKey.
// A non-positive cacheTTL keeps responses until the process restarts.
func NewClient(baseURL, apiKey string, timeout, cacheTTL time.Duration, opts ...Option) *Client {
	if cacheTTL <= 0 {
		cacheTTL = cache.NoExpiration
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
		cache:   cache.New(cacheTTL, 2*cacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether both a base URL and an API key are configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// SearchCompany returns the top match for a company name.
func (c *Client) SearchCompany(ctx context.Context, name string) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(name))
	q.Set("items_per_page", "1")

	var raw struct {
		Items []SearchResult `json:"items"`
	}
	if err := c.getJSON(ctx, "SearchCompany", "/search/companies", q, &raw); err != nil {
		return nil, err
	}
	if len(raw.Items) == 0 {
		return nil, fmt.Errorf("%w: no company matches %q", ErrNotFound, name)
	}
	return &raw.Items[0], nil
}

// Profile returns the company profile.
func (c *Client) Profile(ctx context.Context, number string) (*Profile, error) {
	var out Profile
	if err := c.getJSON(ctx, "Profile", "/company/"+url.PathEscape(number), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Officers returns all appointments, including resigned ones.
func (c *Client) Officers(ctx context.Context, number string) ([]Officer, error) {
	var raw struct {
		Items []Officer `json:"items"`
	}
	if err := c.getJSON(ctx, "Officers", "/company/"+url.PathEscape(number)+"/officers", nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Officer{}, nil
		}
		return nil, err
	}
	return raw.Items, nil
}

// PSC returns persons with significant control, including ceased ones.
func (c *Client) PSC(ctx context.Context, number string) ([]PSC, error) {
	var raw struct {
		Items []PSC `json:"items"`
	}
	if err := c.getJSON(ctx, "PSC", "/company/"+url.PathEscape(number)+"/persons-with-significant-control", nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []PSC{}, nil
		}
		return nil, err
	}
	return raw.Items, nil
}

// Charges returns registered charges. A company with no charges yields an empty list.
func (c *Client) Charges(ctx context.Context, number string) (*ChargeList, error) {
	var out ChargeList
	if err := c.getJSON(ctx, "Charges", "/company/"+url.PathEscape(number)+"/charges", nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ChargeList{Items: []Charge{}}, nil
		}
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Charge{}
	}
	return &out, nil
}

// Ping checks API reachability and credentials.
func (c *Client) Ping(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, ErrDisabled
	}
	start := time.Now()
	req, err := c.newRequest(ctx, "/search/companies?q=vantage&items_per_page=1")
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("companies house status=%d", resp.StatusCode)
	}
	return time.Since(start).Milliseconds(), nil
}

func (c *Client) newRequest(ctx context.Context, pathAndQuery string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, err
	}
	// The API key is the basic auth username with an empty password.
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}

	pathAndQuery := path
	if len(query) > 0 {
		pathAndQuery += "?" + query.Encode()
	}
	if blob, ok := c.cache.Get(pathAndQuery); ok {
		return json.Unmarshal(blob.([]byte), out)
	}

	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(operation, time.Since(start).Seconds(), err)
		}
	}()

	req, err := c.newRequest(ctx, pathAndQuery)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("companies house status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(blob)))
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return err
	}
	c.cache.SetDefault(pathAndQuery, blob)
	return nil
}
