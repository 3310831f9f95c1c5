package epc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"vantage-distress-ui/internal/config"
)

func init() {
	// Floor areas and prices go out as JSON numbers, as dashboard clients expect.
	decimal.MarshalJSONWithoutQuotes = true
}

// DistressBands are the rating bands returned by the distress scan.
var DistressBands = []string{"F", "G"}

// ErrEmptyQuery is returned when a search has no text.
var ErrEmptyQuery = errors.New("search query required")

// Asset is one commercial EPC record, optionally linked to its owning company.
type Asset struct {
	UPRN            string              `json:"uprn"`
	Address         string              `json:"address"`
	AssetRatingBand *string             `json:"asset_rating_band"`
	FloorArea       decimal.NullDecimal `json:"floor_area"`
	PropertyType    string              `json:"property_type"`
	LocalAuthority  string              `json:"local_authority"`
	Postcode        string              `json:"postcode,omitempty"`
	InspectionDate  string              `json:"inspection_date,omitempty"`
	LMKKey          string              `json:"lmk_key,omitempty"`
	CompanyName     *string             `json:"company_name,omitempty"`
	CompanyNumber   *string             `json:"company_number,omitempty"`
}

// Band returns the rating band or "" when absent.
func (a Asset) Band() string {
	if a.AssetRatingBand == nil {
		return ""
	}
	return *a.AssetRatingBand
}

// Owner links a UPRN to a registered company.
type Owner struct {
	UPRN          string
	CompanyName   string
	CompanyNumber string
}

// ServiceStats contains lightweight DB health and volume counters.
type ServiceStats struct {
	Driver          string `json:"driver"`
	PingMS          int64  `json:"ping_ms"`
	AssetsTotal     int64  `json:"assets_total"`
	DistressedTotal int64  `json:"distressed_total"`
	OwnersTotal     int64  `json:"owners_total"`
}

// Store wraps SQL access to the EPC commercial register.
type Store struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
}

// NewStore opens the configured database and verifies connectivity.
func NewStore(cfg config.Config) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return Open(cfg.DBDriver, dsn, cfg.DBConnTimeout, cfg.DBQueryTimeout)
}

// Open creates a Store for driver ("sqlite", "mysql" or "postgres") and dsn.
// Tables are created when missing using the DDL of the driver's dialect.
func Open(driver, dsn string, connTimeout, queryTimeout time.Duration) (*Store, error) {
	sqlDriver, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}

	if sqlDriver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if connTimeout <= 0 {
		connTimeout = 5 * time.Second
	}
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, driver: sqlDriver, queryTimeout: queryTimeout}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure %s schema: %w", sqlDriver, err)
	}
	return s, nil
}

func driverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	case "postgres", "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

const assetColumns = `
  e.uprn,
  e.address,
  e.asset_rating_band,
  e.floor_area,
  e.property_type,
  e.local_authority,
  e.postcode,
  e.inspection_date,
  e.lmk_key,
  o.company_name,
  o.company_number`

// DistressScan returns assets rated F or G, worst band first.
func (s *Store) DistressScan(ctx context.Context, limit int) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
SELECT` + assetColumns + `
FROM raw_epc_commercial e
LEFT JOIN asset_owners o
  ON o.uprn = e.uprn
WHERE e.asset_rating_band IN (?, ?)
ORDER BY e.asset_rating_band DESC, e.address
LIMIT ?;`

	return s.queryAssets(ctx, query, limit, DistressBands[0], DistressBands[1], limit)
}

// Search returns assets whose address contains q, case-insensitively.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]Asset, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
SELECT` + assetColumns + `
FROM raw_epc_commercial e
LEFT JOIN asset_owners o
  ON o.uprn = e.uprn
WHERE LOWER(e.address) LIKE ?
ORDER BY e.address
LIMIT ?;`

	return s.queryAssets(ctx, query, limit, "%"+strings.ToLower(q)+"%", limit)
}

func (s *Store) queryAssets(ctx context.Context, query string, limit int, args ...any) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if limit < 0 {
		limit = 0
	}
	out := make([]Asset, 0, limit)
	for rows.Next() {
		var (
			uprn, address, band, propertyType sql.NullString
			localAuthority, postcode          sql.NullString
			inspection, lmk                   sql.NullString
			companyName, companyNumber        sql.NullString
			item                              Asset
		)
		if err := rows.Scan(&uprn, &address, &band, &item.FloorArea, &propertyType, &localAuthority, &postcode, &inspection, &lmk, &companyName, &companyNumber); err != nil {
			return nil, err
		}
		item.UPRN = uprn.String
		item.Address = address.String
		item.PropertyType = propertyType.String
		item.LocalAuthority = localAuthority.String
		item.Postcode = postcode.String
		item.InspectionDate = inspection.String
		item.LMKKey = lmk.String
		item.AssetRatingBand = nullableString(band)
		item.CompanyName = nullableString(companyName)
		item.CompanyNumber = nullableString(companyNumber)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertAssets appends assets to the register in a single transaction.
func (s *Store) InsertAssets(ctx context.Context, assets []Asset) (int, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
INSERT INTO raw_epc_commercial
  (uprn, address, asset_rating_band, floor_area, property_type, local_authority, postcode, inspection_date, lmk_key)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, a := range assets {
		var floorArea any
		if a.FloorArea.Valid {
			floorArea, _ = a.FloorArea.Decimal.Float64()
		}
		if _, err := stmt.ExecContext(ctx, a.UPRN, a.Address, a.Band(), floorArea, a.PropertyType, a.LocalAuthority, NormalizePostcode(a.Postcode), a.InspectionDate, a.LMKKey); err != nil {
			return 0, fmt.Errorf("insert asset uprn=%s: %w", a.UPRN, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(assets), nil
}

// InsertOwners replaces owner links for the given UPRNs in a single transaction.
func (s *Store) InsertOwners(ctx context.Context, owners []Owner) (int, error) {
	if len(owners) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, o := range owners {
		uprn := strings.TrimSpace(o.UPRN)
		if uprn == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM asset_owners WHERE uprn = ?;`), uprn); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO asset_owners (uprn, company_name, company_number) VALUES (?, ?, ?);`),
			uprn, strings.TrimSpace(o.CompanyName), strings.ToUpper(strings.TrimSpace(o.CompanyNumber))); err != nil {
			return 0, fmt.Errorf("insert owner uprn=%s: %w", uprn, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DistressedOwners returns owner links of F and G rated assets, those without a company number first.
func (s *Store) DistressedOwners(ctx context.Context, limit int) ([]Owner, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT o.uprn, o.company_name, o.company_number
FROM asset_owners o
JOIN raw_epc_commercial e
  ON e.uprn = o.uprn
WHERE e.asset_rating_band IN (?, ?)
ORDER BY CASE WHEN o.company_number IS NULL OR o.company_number = '' THEN 0 ELSE 1 END, o.uprn
LIMIT ?;`), DistressBands[0], DistressBands[1], limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Owner, 0, 16)
	for rows.Next() {
		var (
			o      Owner
			number sql.NullString
		)
		if err := rows.Scan(&o.UPRN, &o.CompanyName, &number); err != nil {
			return nil, err
		}
		o.CompanyNumber = number.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetOwnerCompanyNumber records the registry number resolved for an owner link.
func (s *Store) SetOwnerCompanyNumber(ctx context.Context, uprn, number string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE asset_owners SET company_number = ? WHERE uprn = ?;`), number, uprn)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no owner link for uprn=%s: %w", uprn, sql.ErrNoRows)
	}
	return nil
}

// ServiceStats returns DB health and register counters.
func (s *Store) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return nil, err
	}

	out := &ServiceStats{
		Driver: s.driver,
		PingMS: time.Since(start).Milliseconds(),
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_epc_commercial;`).Scan(&out.AssetsTotal); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM raw_epc_commercial WHERE asset_rating_band IN (?, ?);`), DistressBands[0], DistressBands[1]).Scan(&out.DistressedTotal); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM asset_owners;`).Scan(&out.OwnersTotal); err != nil {
		return nil, err
	}
	return out, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.String)
	if s == "" {
		return nil
	}
	return &s
}
