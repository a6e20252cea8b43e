package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/db"
	"github.com/xenking/arena-booking/internal/domain/auth"
	"github.com/xenking/arena-booking/internal/repository"
)

type options struct {
	databaseURL  string
	fixtureFile  string
	apiKey       string
	apiKeyPepper string
	customerID   string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.fixtureFile, "fixture", "", "path to a venues YAML fixture (default: embedded db/seed/venues.yaml)")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or ARENA_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ARENA_API_KEY_PEPPER env)")
	flag.StringVar(&opts.customerID, "customer-id", "cus_default", "customer billed for bookings made with the seeded key")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("ARENA_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or ARENA_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("ARENA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data := db.SeedFixture
	if opts.fixtureFile != "" {
		lg.Info("Reading fixture", zap.String("path", opts.fixtureFile))
		b, err := os.ReadFile(opts.fixtureFile)
		if err != nil {
			return errors.Wrap(err, "read fixture")
		}
		data = b
	}
	venues, err := parseFixture(data, time.Now())
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	venueRepo := repository.NewVenueRepository(pool)
	ruleRepo := repository.NewDiscountRuleRepository(pool)
	for _, sv := range venues {
		if err := venueRepo.Upsert(ctx, sv.Venue); err != nil {
			return errors.Wrap(err, "seed venue")
		}
		n, err := ruleRepo.UpsertBatch(ctx, sv.Rules)
		if err != nil {
			return errors.Wrap(err, "seed rules")
		}
		lg.Info("Seeded venue",
			zap.String("id", sv.Venue.ID),
			zap.String("name", sv.Venue.Name),
			zap.Int("rules", n),
		)
	}

	_, keyHash := auth.Hash([]byte(opts.apiKeyPepper), opts.apiKey)
	key := auth.APIKey{
		ID:         "default",
		KeyHash:    keyHash,
		Name:       "Default key",
		CustomerID: opts.customerID,
		Scopes:     []string{auth.ScopeBookingsWrite},
	}
	if err := repository.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Seeded API key", zap.String("id", key.ID), zap.String("customer_id", key.CustomerID))

	return nil
}
