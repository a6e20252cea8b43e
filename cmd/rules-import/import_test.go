package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/arena-booking/internal/domain/discount"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]discount.Rule
	err     error
}

func (f *fakeWriter) UpsertBatch(_ context.Context, rules []discount.Rule) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, append([]discount.Rule(nil), rules...))
	return len(rules), nil
}

func (f *fakeWriter) ids() []string {
	var out []string
	for _, b := range f.batches {
		for _, r := range b {
			out = append(out, r.ID)
		}
	}
	sort.Strings(out)
	return out
}

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDecodeRule(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, r discount.Rule)
	}{
		{
			name: "percentage",
			line: `{"id":"r1","venueId":"v1","kind":"percentage","title":"Ten","value":"10"}`,
			check: func(t *testing.T, r discount.Rule) {
				assert.True(t, r.Active)
				assert.Equal(t, discount.Percentage{Value: decimal.NewFromInt(10)}, r.Terms)
			},
		},
		{
			name: "bulk deal with numeric fields",
			line: `{"id":"r2","venueId":"v1","kind":"bulk_deal","buyQuantity":3,"getQuantity":1,"value":null}`,
			check: func(t *testing.T, r discount.Rule) {
				assert.Equal(t, discount.BulkDeal{Buy: 3, Get: 1}, r.Terms)
			},
		},
		{
			name: "time based",
			line: `{"id":"r3","venueId":"v1","kind":"time_based","value":12.5,"validDays":["Monday"," FRIDAY "],` +
				`"validStartTime":"09:00","validEndTime":"17:00","active":false,"createdAt":"2025-06-01T10:00:00Z","extra":[1,2]}`,
			check: func(t *testing.T, r discount.Rule) {
				tb, ok := r.Terms.(discount.TimeBased)
				require.True(t, ok)
				assert.True(t, decimal.RequireFromString("12.5").Equal(tb.Value))
				assert.Equal(t, []string{"monday", "friday"}, tb.Days)
				require.NotNil(t, tb.Window)
				assert.Equal(t, "17:00", tb.Window.End.String())
				assert.False(t, r.Active)
				assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), r.CreatedAt)
			},
		},
		{
			name: "unknown kind",
			line: `{"id":"r4","venueId":"v1","kind":"loyalty"}`,
			check: func(t *testing.T, r discount.Rule) {
				assert.Equal(t, discount.Unrecognized{Name: "loyalty"}, r.Terms)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := decodeRule([]byte(tt.line))
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestDecodeRule_Errors(t *testing.T) {
	for _, line := range []string{
		`not json`,
		`{"venueId":"v1","kind":"percentage"}`,
		`{"id":"r1","kind":"percentage"}`,
		`{"id":"r1","venueId":"v1","value":"ten"}`,
		`{"id":"r1","venueId":"v1","createdAt":"yesterday"}`,
		`{"id":"r1","venueId":"v1"} {"id":"r2","venueId":"v1"}`,
		`{"id":"r1","venueId":"v1"}garbage`,
	} {
		_, err := decodeRule([]byte(line))
		assert.Error(t, err, line)
	}
}

func TestImporter_Run(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.ndjson.gz",
		`{"id":"a1","venueId":"v1","kind":"percentage","value":"5"}`,
		`{"id":"a2","venueId":"v1","kind":"percentage","value":"6"}`,
		``,
		`{"id":"shared","venueId":"v1","kind":"percentage","value":"7"}`,
	)
	b := writeGz(t, dir, "b.ndjson.gz",
		`{"id":"b1","venueId":"v2","kind":"bulk_deal","buyQuantity":2,"getQuantity":1}`,
		`{broken`,
		`{"id":"shared","venueId":"v1","kind":"percentage","value":"8"}`,
	)

	core, logs := observer.New(zapcore.WarnLevel)
	w := &fakeWriter{}
	imp := newImporter(zap.New(core), w, 2)

	require.NoError(t, imp.run(context.Background(), []string{a, b}))

	assert.Equal(t, []string{"a1", "a2", "b1", "shared", "shared"}, w.ids())
	for _, batch := range w.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
	assert.Equal(t, 5, imp.stats.imported)
	assert.Equal(t, 1, imp.stats.duplicates)
	assert.EqualValues(t, 1, imp.stats.skipped.Load())
	assert.Equal(t, 1, logs.FilterMessage("Skipping invalid line").Len())
}

func TestImporter_RunErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeGz(t, dir, "a.ndjson.gz", `{"id":"a1","venueId":"v1","kind":"percentage","value":"5"}`)

	t.Run("missing file", func(t *testing.T) {
		imp := newImporter(zap.NewNop(), &fakeWriter{}, 10)
		err := imp.run(context.Background(), []string{filepath.Join(dir, "missing.ndjson.gz")})
		require.Error(t, err)
	})

	t.Run("writer error", func(t *testing.T) {
		imp := newImporter(zap.NewNop(), &fakeWriter{err: errors.New("db down")}, 10)
		err := imp.run(context.Background(), []string{path})
		require.ErrorContains(t, err, "db down")
	})
}
