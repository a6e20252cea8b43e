package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/arena-booking/internal/domain/discount"
)

const (
	// Most recently created first; id breaks ties so the order is stable
	// between the estimate and the charge.
	listActiveRulesByVenueSQL = `SELECT id, venue_id, kind, title, description, value,
		buy_quantity, get_quantity, valid_days,
		to_char(valid_start_time, 'HH24:MI'), to_char(valid_end_time, 'HH24:MI'),
		active, created_at
		FROM discount_rules
		WHERE venue_id = $1 AND active = TRUE
		ORDER BY created_at DESC, id`

	upsertRuleSQL = `INSERT INTO discount_rules (id, venue_id, kind, title, description, value,
		buy_quantity, get_quantity, valid_days, valid_start_time, valid_end_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::text::time, $11::text::time, $12, COALESCE($13, now()))
		ON CONFLICT (id) DO UPDATE SET
			venue_id = EXCLUDED.venue_id,
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			value = EXCLUDED.value,
			buy_quantity = EXCLUDED.buy_quantity,
			get_quantity = EXCLUDED.get_quantity,
			valid_days = EXCLUDED.valid_days,
			valid_start_time = EXCLUDED.valid_start_time,
			valid_end_time = EXCLUDED.valid_end_time,
			active = EXCLUDED.active`
)

var _ discount.Repository = (*DiscountRuleRepository)(nil)

// DiscountRuleRepository implements discount.Repository backed by PostgreSQL.
type DiscountRuleRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRuleRepository returns a DiscountRuleRepository that uses the
// given pool.
func NewDiscountRuleRepository(pool *pgxpool.Pool) *DiscountRuleRepository {
	return &DiscountRuleRepository{pool: pool}
}

// ListActiveByVenue returns the venue's active rules, newest first. Rows
// with kinds this build does not know are returned as discount.Unrecognized.
func (r *DiscountRuleRepository) ListActiveByVenue(ctx context.Context, venueID string) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, listActiveRulesByVenueSQL, venueID)
	if err != nil {
		return nil, fmt.Errorf("listing rules for venue %q: %w", venueID, err)
	}
	rules, err := pgx.CollectRows(rows, scanRule)
	if err != nil {
		return nil, fmt.Errorf("listing rules for venue %q: %w", venueID, err)
	}
	return rules, nil
}

// Upsert inserts the rule or updates it in place. The creation time of an
// existing rule is kept so its position in the venue's ordering is stable.
func (r *DiscountRuleRepository) Upsert(ctx context.Context, rule discount.Rule) error {
	_, err := r.pool.Exec(ctx, upsertRuleSQL, upsertRuleArgs(rule)...)
	if err != nil {
		return fmt.Errorf("upserting rule %q: %w", rule.ID, err)
	}
	return nil
}

// UpsertBatch upserts rules in a single round trip and returns how many were
// written.
func (r *DiscountRuleRepository) UpsertBatch(ctx context.Context, rules []discount.Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(upsertRuleSQL, upsertRuleArgs(rule)...)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for i := range rules {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upserting rule %q: %w", rules[i].ID, err)
		}
	}
	return len(rules), nil
}

func upsertRuleArgs(rule discount.Rule) []any {
	f := discount.FieldsOf(rule.Terms)

	var buy, get *int32
	if rule.Kind() == discount.KindBulkDeal {
		b, g := int32(f.BuyQuantity), int32(f.GetQuantity)
		buy, get = &b, &g
	}

	days := f.ValidDays
	if days == nil {
		days = []string{}
	}

	var createdAt *time.Time
	if !rule.CreatedAt.IsZero() {
		createdAt = &rule.CreatedAt
	}

	return []any{
		rule.ID, rule.VenueID, f.Kind, rule.Title, rule.Description, f.Value,
		buy, get, days, nullString(f.ValidStartTime), nullString(f.ValidEndTime),
		rule.Active, createdAt,
	}
}

func scanRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule       discount.Rule
		f          discount.Fields
		buy, get   *int32
		start, end *string
	)
	err := row.Scan(
		&rule.ID, &rule.VenueID, &f.Kind, &rule.Title, &rule.Description, &f.Value,
		&buy, &get, &f.ValidDays, &start, &end,
		&rule.Active, &rule.CreatedAt,
	)
	if buy != nil {
		f.BuyQuantity = int(*buy)
	}
	if get != nil {
		f.GetQuantity = int(*get)
	}
	if start != nil {
		f.ValidStartTime = *start
	}
	if end != nil {
		f.ValidEndTime = *end
	}
	rule.Terms = discount.TermsFrom(f)
	return rule, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
