// Package ledger appends immutable billing events and maintains the daily
// revenue rollup. Events are retained for 90 days; the rollup is append-only.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

const (
	eventSchemaVersion = 1
	eventRetention     = 90 * 24 * time.Hour
)

// Operator cost per page for each upstream provider. Providers absent from
// the table cost the operator nothing (they are only reachable through
// tenant-owned credentials, which the tenant pays for directly).
var defaultPageCosts = map[string]float64{
	"openai":    0.03,
	"anthropic": 0.02,
}

// BillingEvent is an immutable record of one metered call. Profit may be
// negative on the free tier, which charges zero.
type BillingEvent struct {
	SchemaVersion  int     `json:"schema_version"`
	TenantID       string  `json:"tenant_id"`
	Timestamp      int64   `json:"timestamp"`
	PagesProcessed int64   `json:"pages_processed"`
	AmountCharged  float64 `json:"amount_charged"`
	ProviderCost   float64 `json:"provider_cost"`
	Profit         float64 `json:"profit"`
	Provider       string  `json:"provider"`
}

type Ledger struct {
	store     kvstore.Store
	tenants   *tenant.RecordStore
	policy    tenant.Policy
	pageCosts map[string]float64
	now       func() time.Time
}

func New(store kvstore.Store, tenants *tenant.RecordStore, policy tenant.Policy) *Ledger {
	return &Ledger{
		store:     store,
		tenants:   tenants,
		policy:    policy,
		pageCosts: defaultPageCosts,
		now:       time.Now,
	}
}

// Record charges the tenant for pages consumed via provider: it increments
// the usage counter atomically, appends a billing event and bumps the daily
// revenue rollup.
//
// Once the counter increment has succeeded it is never rolled back. If the
// event append or the rollup fails afterwards the failure is logged for
// reconciliation and the event is still returned; undercounting quota
// consumption would be worse than a gap in the analytics trail.
func (l *Ledger) Record(ctx context.Context, tenantID string, pages int64, provider string) (*BillingEvent, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("pages must be positive, got %d", pages)
	}

	rec, err := l.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	providerCost := l.pageCosts[provider] * float64(pages)
	amountCharged := l.policy.Limits(rec.Tier).PricePerPage * float64(pages)

	if _, err := l.tenants.IncrementUsage(ctx, tenantID, pages); err != nil {
		return nil, err
	}

	now := l.now()
	event := &BillingEvent{
		SchemaVersion:  eventSchemaVersion,
		TenantID:       tenantID,
		Timestamp:      now.Unix(),
		PagesProcessed: pages,
		AmountCharged:  amountCharged,
		ProviderCost:   providerCost,
		Profit:         amountCharged - providerCost,
		Provider:       provider,
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ledger: marshal billing event for %s (usage already counted, needs reconciliation): %v", tenantID, err)
		return event, nil
	}
	// Nanosecond key component keeps two events for the same tenant within
	// one second from overwriting each other.
	eventKey := fmt.Sprintf("billing:%s:%d", tenantID, now.UnixNano())
	if err := l.store.Set(ctx, eventKey, string(data), eventRetention); err != nil {
		log.Printf("ledger: append billing event for %s failed (usage already counted, needs reconciliation): %v", tenantID, err)
	}

	if _, err := l.store.IncrByFloat(ctx, dailyRevenueKey(now), event.Profit); err != nil {
		log.Printf("ledger: daily revenue rollup for %s failed (profit %.4f unrecorded, needs reconciliation): %v", tenantID, event.Profit, err)
	}

	return event, nil
}

// DailyRevenue reads the rollup for a UTC calendar day. A day with no events
// reads as zero.
func (l *Ledger) DailyRevenue(ctx context.Context, day time.Time) (float64, error) {
	val, err := l.store.Get(ctx, dailyRevenueKey(day))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daily revenue: %w", err)
	}
	revenue, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed daily revenue value %q: %w", val, err)
	}
	return revenue, nil
}

func dailyRevenueKey(t time.Time) string {
	return "dailyRevenue:" + t.UTC().Format("2006-01-02")
}
