package epc

import (
	"context"
	"fmt"
)

// dialect holds the driver-specific SQL the store cannot express portably.
type dialect struct {
	schema     []string
	upsertSale string
}

const saleColumns = `(transaction_id, price_paid, transfer_date, postcode, property_type, full_address)`

var dialects = map[string]dialect{
	"sqlite": {
		schema: []string{`
CREATE TABLE IF NOT EXISTS raw_epc_commercial (
  uprn TEXT,
  address TEXT,
  asset_rating_band TEXT,
  floor_area REAL,
  property_type TEXT,
  local_authority TEXT,
  postcode TEXT,
  lmk_key TEXT,
  inspection_date TEXT
);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_band ON raw_epc_commercial(asset_rating_band);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_uprn ON raw_epc_commercial(uprn);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_postcode ON raw_epc_commercial(postcode);`,
			`
CREATE TABLE IF NOT EXISTS asset_owners (
  uprn TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  company_number TEXT NOT NULL DEFAULT ''
);`,
			`
CREATE TABLE IF NOT EXISTS raw_ppd_staging (
  transaction_id TEXT PRIMARY KEY,
  price_paid INTEGER NOT NULL,
  transfer_date TEXT NOT NULL,
  postcode TEXT NOT NULL,
  property_type TEXT,
  full_address TEXT
);`,
			`CREATE INDEX IF NOT EXISTS idx_ppd_postcode ON raw_ppd_staging(postcode);`,
		},
		upsertSale: `INSERT OR REPLACE INTO raw_ppd_staging ` + saleColumns + ` VALUES (?, ?, ?, ?, ?, ?);`,
	},
	// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
	"mysql": {
		schema: []string{`
CREATE TABLE IF NOT EXISTS raw_epc_commercial (
  uprn VARCHAR(20),
  address VARCHAR(255),
  asset_rating_band VARCHAR(2),
  floor_area DECIMAL(12,2),
  property_type VARCHAR(128),
  local_authority VARCHAR(16),
  postcode VARCHAR(10),
  lmk_key VARCHAR(64),
  inspection_date VARCHAR(10),
  KEY idx_epc_band (asset_rating_band),
  KEY idx_epc_uprn (uprn),
  KEY idx_epc_postcode (postcode)
) DEFAULT CHARSET=utf8mb4;`,
			`
CREATE TABLE IF NOT EXISTS asset_owners (
  uprn VARCHAR(20) PRIMARY KEY,
  company_name VARCHAR(255) NOT NULL,
  company_number VARCHAR(10) NOT NULL DEFAULT ''
) DEFAULT CHARSET=utf8mb4;`,
			`
CREATE TABLE IF NOT EXISTS raw_ppd_staging (
  transaction_id VARCHAR(40) PRIMARY KEY,
  price_paid BIGINT NOT NULL,
  transfer_date VARCHAR(10) NOT NULL,
  postcode VARCHAR(10) NOT NULL,
  property_type CHAR(1),
  full_address VARCHAR(255),
  KEY idx_ppd_postcode (postcode)
) DEFAULT CHARSET=utf8mb4;`,
		},
		upsertSale: `REPLACE INTO raw_ppd_staging ` + saleColumns + ` VALUES (?, ?, ?, ?, ?, ?);`,
	},
	"pgx": {
		schema: []string{`
CREATE TABLE IF NOT EXISTS raw_epc_commercial (
  uprn TEXT,
  address TEXT,
  asset_rating_band TEXT,
  floor_area NUMERIC(12,2),
  property_type TEXT,
  local_authority TEXT,
  postcode TEXT,
  lmk_key TEXT,
  inspection_date TEXT
);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_band ON raw_epc_commercial(asset_rating_band);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_uprn ON raw_epc_commercial(uprn);`,
			`CREATE INDEX IF NOT EXISTS idx_epc_postcode ON raw_epc_commercial(postcode);`,
			`
CREATE TABLE IF NOT EXISTS asset_owners (
  uprn TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  company_number TEXT NOT NULL DEFAULT ''
);`,
			`
CREATE TABLE IF NOT EXISTS raw_ppd_staging (
  transaction_id TEXT PRIMARY KEY,
  price_paid BIGINT NOT NULL,
  transfer_date TEXT NOT NULL,
  postcode TEXT NOT NULL,
  property_type TEXT,
  full_address TEXT
);`,
			`CREATE INDEX IF NOT EXISTS idx_ppd_postcode ON raw_ppd_staging(postcode);`,
		},
		upsertSale: `
INSERT INTO raw_ppd_staging ` + saleColumns + ` VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (transaction_id) DO UPDATE SET
  price_paid = EXCLUDED.price_paid,
  transfer_date = EXCLUDED.transfer_date,
  postcode = EXCLUDED.postcode,
  property_type = EXCLUDED.property_type,
  full_address = EXCLUDED.full_address;`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("no sql dialect for driver %q", driver)
	}
	return d, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	d, err := dialectFor(s.driver)
	if err != nil {
		return err
	}
	for _, stmt := range d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
