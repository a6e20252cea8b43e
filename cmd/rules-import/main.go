// Command rules-import bulk-loads discount rules from gzip-compressed NDJSON
// partner exports.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// ruleWriter is implemented by repository.DiscountRuleRepository.
type ruleWriter interface {
	UpsertBatch(ctx context.Context, rules []discount.Rule) (int, error)
}

type stats struct {
	imported   int
	duplicates int
	skipped    atomic.Int64
}

type importer struct {
	lg        *zap.Logger
	rules     ruleWriter
	batchSize int
	// seen flags rule ids that probably appeared earlier in the import. A
	// repeated id is still upserted and the last occurrence wins.
	seen  *bloom.BloomFilter
	stats stats
}

func newImporter(lg *zap.Logger, rules ruleWriter, batchSize int) *importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &importer{
		lg:        lg,
		rules:     rules,
		batchSize: batchSize,
		seen:      bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}
}

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz exports, used when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 500, "rules upserted per round trip")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	files := flag.Args()
	if len(files) == 0 {
		files, err = filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
		if err != nil {
			lg.Fatal("List exports", zap.Error(err))
		}
	}
	if len(files) == 0 {
		lg.Fatal("No export files found", zap.String("data_dir", dataDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		lg.Fatal("Connect to database", zap.Error(err))
	}
	defer pool.Close()

	imp := newImporter(lg, repository.NewDiscountRuleRepository(pool), batchSize)
	if err := imp.run(ctx, files); err != nil {
		lg.Fatal("Rules import failed", zap.Error(err))
	}
	lg.Info("Rules import completed",
		zap.Int("imported", imp.stats.imported),
		zap.Int("probable_duplicates", imp.stats.duplicates),
		zap.Int64("skipped", imp.stats.skipped.Load()),
	)
}

// run decodes all files concurrently and upserts the rules in batches from a
// single writer.
func (imp *importer) run(ctx context.Context, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(ctx)

	ch := make(chan discount.Rule, imp.batchSize)
	for i, path := range files {
		readers.Go(imp.readFile(rctx, i, path, ch))
	}
	g.Go(func() error {
		defer close(ch)
		return readers.Wait()
	})
	g.Go(func() error {
		return imp.write(ctx, ch)
	})
	return g.Wait()
}

func (imp *importer) readFile(ctx context.Context, idx int, path string, ch chan<- discount.Rule) func() error {
	return func() error {
		var count int
		err := streamGzFile(ctx, path, func(n int, line []byte) error {
			rule, err := decodeRule(line)
			if err != nil {
				imp.stats.skipped.Add(1)
				imp.lg.Warn("Skipping invalid line",
					zap.String("file", path),
					zap.Int("line", n),
					zap.Error(err),
				)
				return nil
			}
			select {
			case ch <- rule:
			case <-ctx.Done():
				return ctx.Err()
			}
			count++
			if count%progressEvery == 0 {
				imp.lg.Info("Read progress", zap.Int("file", idx+1), zap.Int("rules", count))
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "read file %d", idx+1)
		}
		imp.lg.Info("File read", zap.String("file", path), zap.Int("rules", count))
		return nil
	}
}

func (imp *importer) write(ctx context.Context, ch <-chan discount.Rule) error {
	batch := make([]discount.Rule, 0, imp.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := imp.rules.UpsertBatch(ctx, batch)
		imp.stats.imported += n
		if err != nil {
			return errors.Wrap(err, "upsert batch")
		}
		batch = batch[:0]
		return nil
	}

	for rule := range ch {
		if imp.seen.TestOrAddString(rule.ID) {
			imp.stats.duplicates++
			imp.lg.Debug("Probable duplicate rule id", zap.String("id", rule.ID))
		}
		batch = append(batch, rule)
		if len(batch) == imp.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
