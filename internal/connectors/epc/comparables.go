package epc

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"
)

const (
	// MaxComparableSales caps the recent sales considered for one postcode.
	MaxComparableSales = 20
	// AddressMatchThreshold is the similarity above which a sale and an EPC record describe the same unit.
	AddressMatchThreshold = 0.8

	ppdColumns = 16
)

var sqmPerSqft = decimal.RequireFromString("10.764")

// ErrPostcodeRequired is returned when a comparables lookup has no postcode.
var ErrPostcodeRequired = errors.New("postcode required")

// Sale is one Land Registry price paid transaction.
type Sale struct {
	TransactionID string `json:"transaction_id"`
	Price         int64  `json:"price_paid"`
	TransferDate  string `json:"transfer_date"`
	Postcode      string `json:"postcode"`
	PropertyType  string `json:"property_type"`
	Address       string `json:"full_address"`
}

// Comparable is a sale enriched with the floor area of its matched EPC record.
type Comparable struct {
	Sale
	MatchedUPRN  string              `json:"matched_uprn,omitempty"`
	FloorArea    decimal.NullDecimal `json:"floor_area"`
	PricePerSqm  decimal.NullDecimal `json:"price_per_sqm"`
	PricePerSqft decimal.NullDecimal `json:"price_per_sqft"`
}

// Comparables summarises recent sales around one postcode.
type Comparables struct {
	Postcode        string              `json:"postcode"`
	Sales           []Comparable        `json:"sales"`
	Matched         int                 `json:"matched"`
	AvgPricePerSqft decimal.NullDecimal `json:"avg_price_per_sqft"`
}

// NormalizePostcode upper-cases a postcode and collapses its whitespace.
func NormalizePostcode(pc string) string {
	return strings.Join(strings.Fields(strings.ToUpper(pc)), " ")
}

// normalizeAddress strips punctuation that differs between the price paid and EPC registers.
func normalizeAddress(addr string) string {
	addr = strings.NewReplacer(",", " ", ".", "").Replace(strings.ToUpper(addr))
	return strings.Join(strings.Fields(addr), " ")
}

// addressSimilarity is the matching-characters ratio of two normalised addresses, in [0, 1].
func addressSimilarity(a, b string) float64 {
	a, b = normalizeAddress(a), normalizeAddress(b)
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// ParseSalesCSV reads the headerless price paid CSV. Rows transferred before
// sinceYear are skipped; a zero sinceYear keeps everything.
func ParseSalesCSV(r io.Reader, sinceYear int) ([]Sale, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	out := make([]Sale, 0, 256)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < ppdColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, ppdColumns, len(rec))
		}

		date := strings.TrimSpace(rec[2])
		if len(date) > 10 {
			date = date[:10]
		}
		if len(date) < 4 {
			return nil, fmt.Errorf("line %d: invalid transfer date %q", line, rec[2])
		}
		year, err := strconv.Atoi(date[:4])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid transfer date %q", line, rec[2])
		}
		if sinceYear > 0 && year < sinceYear {
			continue
		}
		price, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q", line, rec[1])
		}
		postcode := NormalizePostcode(rec[3])
		if postcode == "" {
			continue
		}

		out = append(out, Sale{
			TransactionID: strings.Trim(strings.TrimSpace(rec[0]), "{}"),
			Price:         price,
			TransferDate:  date,
			Postcode:      postcode,
			PropertyType:  strings.TrimSpace(rec[4]),
			Address:       saleAddress(rec[7], rec[8], rec[9]),
		})
	}
	return out, nil
}

func saleAddress(paon, saon, street string) string {
	return strings.ToUpper(strings.Join(strings.Fields(paon+" "+saon+" "+street), " "))
}

// InsertSales upserts sales by transaction id in a single transaction.
func (s *Store) InsertSales(ctx context.Context, sales []Sale) (int, error) {
	if len(sales) == 0 {
		return 0, nil
	}
	d, err := dialectFor(s.driver)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(d.upsertSale))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, sale := range sales {
		if _, err := stmt.ExecContext(ctx, sale.TransactionID, sale.Price, sale.TransferDate, NormalizePostcode(sale.Postcode), sale.PropertyType, sale.Address); err != nil {
			return 0, fmt.Errorf("insert sale %s: %w", sale.TransactionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(sales), nil
}

// Comparables returns the most recent sales in postcode, each matched against
// EPC records in the same postcode to derive a price per square foot.
func (s *Store) Comparables(ctx context.Context, postcode string, limit int) (*Comparables, error) {
	postcode = NormalizePostcode(postcode)
	if postcode == "" {
		return nil, ErrPostcodeRequired
	}
	if limit <= 0 || limit > MaxComparableSales {
		limit = MaxComparableSales
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	sales, err := s.recentSales(ctx, postcode, limit)
	if err != nil {
		return nil, err
	}
	candidates, err := s.queryAssets(ctx, `
SELECT`+assetColumns+`
FROM raw_epc_commercial e
LEFT JOIN asset_owners o
  ON o.uprn = e.uprn
WHERE e.postcode = ?
ORDER BY e.address;`, 0, postcode)
	if err != nil {
		return nil, err
	}

	out := &Comparables{Postcode: postcode, Sales: make([]Comparable, 0, len(sales))}
	total := decimal.Zero
	for _, sale := range sales {
		c := Comparable{Sale: sale}
		if a, ok := matchAsset(sale.Address, candidates); ok {
			c.MatchedUPRN = a.UPRN
			c.FloorArea = a.FloorArea
			perSqm := decimal.NewFromInt(sale.Price).Div(a.FloorArea.Decimal)
			perSqft := perSqm.Div(sqmPerSqft)
			c.PricePerSqm = decimal.NewNullDecimal(perSqm.Round(2))
			c.PricePerSqft = decimal.NewNullDecimal(perSqft.Round(2))
			total = total.Add(perSqft)
			out.Matched++
		}
		out.Sales = append(out.Sales, c)
	}
	if out.Matched > 0 {
		out.AvgPricePerSqft = decimal.NewNullDecimal(total.Div(decimal.NewFromInt(int64(out.Matched))).Round(2))
	}
	return out, nil
}

func (s *Store) recentSales(ctx context.Context, postcode string, limit int) ([]Sale, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT transaction_id, price_paid, transfer_date, postcode, property_type, full_address
FROM raw_ppd_staging
WHERE postcode = ?
ORDER BY transfer_date DESC, transaction_id
LIMIT ?;`), postcode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Sale, 0, limit)
	for rows.Next() {
		var (
			sale                  Sale
			propertyType, address *string
		)
		if err := rows.Scan(&sale.TransactionID, &sale.Price, &sale.TransferDate, &sale.Postcode, &propertyType, &address); err != nil {
			return nil, err
		}
		if propertyType != nil {
			sale.PropertyType = *propertyType
		}
		if address != nil {
			sale.Address = *address
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// matchAsset returns the first candidate with a usable floor area whose
// address is similar enough to the sale's.
func matchAsset(address string, candidates []Asset) (Asset, bool) {
	for _, a := range candidates {
		if !a.FloorArea.Valid || !a.FloorArea.Decimal.IsPositive() {
			continue
		}
		if addressSimilarity(address, a.Address) > AddressMatchThreshold {
			return a, true
		}
	}
	return Asset{}, false
}
