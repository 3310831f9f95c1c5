package epc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoKnownColumns is returned when a CSV header has none of the expected columns.
var ErrNoKnownColumns = errors.New("no known columns in csv header")

var ownerColumnAliases = map[string]string{
	"uprn":                         "uprn",
	"company_name":                 "company_name",
	"proprietor name (1)":          "company_name",
	"proprietor_name":              "company_name",
	"company_number":               "company_number",
	"company registration no. (1)": "company_number",
	"company_registration_no_1":    "company_number",
	"company_registration_number":  "company_number",
}

// ParseAssetsCSV reads an EPC non-domestic certificates export.
// Headers are matched case-insensitively; unknown columns are ignored.
func ParseAssetsCSV(r io.Reader) ([]Asset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header, func(h string) string {
		switch h {
		case "uprn", "address", "asset_rating_band", "floor_area", "property_type", "local_authority", "postcode", "lmk_key", "inspection_date":
			return h
		}
		return ""
	})
	if len(idx) == 0 {
		return nil, ErrNoKnownColumns
	}

	out := make([]Asset, 0, 256)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		item := Asset{
			UPRN:           get("uprn"),
			Address:        get("address"),
			PropertyType:   get("property_type"),
			LocalAuthority: get("local_authority"),
			Postcode:       NormalizePostcode(get("postcode")),
			LMKKey:         get("lmk_key"),
			InspectionDate: get("inspection_date"),
		}
		if b := strings.ToUpper(get("asset_rating_band")); b != "" {
			item.AssetRatingBand = &b
		}
		if area := get("floor_area"); area != "" {
			if d, err := decimal.NewFromString(area); err == nil {
				item.FloorArea = decimal.NewNullDecimal(d)
			}
		}
		if item.UPRN == "" && item.Address == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// ParseOwnersCSV reads UPRN to company links. Land Registry CCOD column names are accepted.
func ParseOwnersCSV(r io.Reader) ([]Owner, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header, func(h string) string { return ownerColumnAliases[h] })
	if _, ok := idx["uprn"]; !ok {
		return nil, ErrNoKnownColumns
	}
	if _, ok := idx["company_name"]; !ok {
		return nil, ErrNoKnownColumns
	}

	out := make([]Owner, 0, 256)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		o := Owner{UPRN: get("uprn"), CompanyName: get("company_name"), CompanyNumber: get("company_number")}
		if o.UPRN == "" || o.CompanyName == "" {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func headerIndex(header []string, canonical func(string) string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name := canonical(h)
		if name == "" {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}
