package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vantage-distress-ui/internal/config"
	"vantage-distress-ui/internal/connectors/companieshouse"
	"vantage-distress-ui/internal/connectors/epc"
	"vantage-distress-ui/internal/logging"
)

func main() {
	kind := flag.String("kind", "epc", "what to load: epc, owners, ppd or enrich")
	file := flag.String("file", "", "path to the csv file (epc, owners and ppd)")
	limit := flag.Int("limit", 10, "maximum owners to resolve (enrich)")
	since := flag.Int("since", 2020, "skip price paid transfers before this year, 0 keeps all (ppd)")
	flag.Parse()

	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{kind: *kind, file: *file, limit: *limit, since: *since}
	if err := run(ctx, cfg, logger, opts); err != nil {
		logger.Fatal("ingest failed", zap.String("kind", *kind), zap.Error(err))
	}
}

type options struct {
	kind  string
	file  string
	limit int
	since int
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, opts options) error {
	kind := strings.ToLower(strings.TrimSpace(opts.kind))
	file := opts.file
	switch kind {
	case "epc", "owners", "ppd":
		if strings.TrimSpace(file) == "" {
			return errors.New("-file is required")
		}
	case "enrich":
		if !cfg.RegistryEnabled() {
			return errors.New("companies house key missing (set COMPANIES_HOUSE_KEY)")
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}

	store, err := epc.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	start := time.Now()
	switch kind {
	case "epc":
		n, err := loadAssets(ctx, store, file)
		if err != nil {
			return err
		}
		logger.Info("assets loaded", zap.String("file", file), zap.Int("rows", n), zap.Duration("took", time.Since(start)))
	case "owners":
		n, err := loadOwners(ctx, store, file)
		if err != nil {
			return err
		}
		logger.Info("owners loaded", zap.String("file", file), zap.Int("rows", n), zap.Duration("took", time.Since(start)))
	case "ppd":
		n, err := loadSales(ctx, store, file, opts.since)
		if err != nil {
			return err
		}
		logger.Info("sales loaded", zap.String("file", file), zap.Int("since", opts.since), zap.Int("rows", n), zap.Duration("took", time.Since(start)))
	case "enrich":
		client := companieshouse.NewClient(cfg.CHBaseURL, cfg.CHAPIKey, cfg.CHTimeout, cfg.CHCacheTTL)
		n, err := enrichOwners(ctx, store, client, logger, opts.limit)
		if err != nil {
			return err
		}
		logger.Info("owners enriched", zap.Int("resolved", n), zap.Duration("took", time.Since(start)))
	}
	return nil
}

func loadAssets(ctx context.Context, store *epc.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	assets, err := epc.ParseAssetsCSV(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return store.InsertAssets(ctx, assets)
}

func loadOwners(ctx context.Context, store *epc.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	owners, err := epc.ParseOwnersCSV(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return store.InsertOwners(ctx, owners)
}

// loadSales upserts the price paid transactions of a headerless Land Registry export.
func loadSales(ctx context.Context, store *epc.Store, path string, since int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sales, err := epc.ParseSalesCSV(f, since)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return store.InsertSales(ctx, sales)
}

type companySearcher interface {
	SearchCompany(ctx context.Context, name string) (*companieshouse.SearchResult, error)
}

// enrichOwners resolves registry numbers for owners of distressed assets by company name.
// Misses are logged and skipped; only context cancellation aborts the run.
func enrichOwners(ctx context.Context, store *epc.Store, registry companySearcher, logger *zap.Logger, limit int) (int, error) {
	owners, err := store.DistressedOwners(ctx, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, o := range owners {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		match, err := registry.SearchCompany(ctx, o.CompanyName)
		if err != nil {
			logger.Warn("company lookup failed", zap.String("uprn", o.UPRN), zap.String("company", o.CompanyName), zap.Error(err))
			continue
		}
		number, err := companieshouse.NormalizeNumber(match.CompanyNumber)
		if err != nil {
			logger.Warn("registry returned unusable number", zap.String("uprn", o.UPRN), zap.String("number", match.CompanyNumber))
			continue
		}
		if number == o.CompanyNumber {
			continue
		}
		if err := store.SetOwnerCompanyNumber(ctx, o.UPRN, number); err != nil {
			return resolved, err
		}
		logger.Info("owner resolved",
			zap.String("uprn", o.UPRN),
			zap.String("company", match.Title),
			zap.String("number", number),
			zap.String("status", match.CompanyStatus),
		)
		resolved++
	}
	return resolved, nil
}
