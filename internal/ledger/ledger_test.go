package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

func setupLedger(t *testing.T) (*Ledger, *tenant.RecordStore, *kvstore.Memory) {
	t.Helper()
	mem := kvstore.NewMemory()
	tenants := tenant.NewRecordStore(mem)
	l := New(mem, tenants, tenant.DefaultPolicy())
	return l, tenants, mem
}

func createTenant(t *testing.T, tenants *tenant.RecordStore, id string, tier tenant.Tier) {
	t.Helper()
	if err := tenants.Save(context.Background(), tenant.NewRecord(id, tier, tenant.DefaultPolicy())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordBasicTierScenario(t *testing.T) {
	// Basic tier: quota 500, price 0.05/page; openai costs 0.03/page.
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierBasic)

	event, err := l.Record(context.Background(), "t1", 10, "openai")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if !almostEqual(event.AmountCharged, 0.50) {
		t.Errorf("AmountCharged = %v, want 0.50", event.AmountCharged)
	}
	if !almostEqual(event.ProviderCost, 0.30) {
		t.Errorf("ProviderCost = %v, want 0.30", event.ProviderCost)
	}
	if !almostEqual(event.Profit, 0.20) {
		t.Errorf("Profit = %v, want 0.20", event.Profit)
	}
	if event.PagesProcessed != 10 {
		t.Errorf("PagesProcessed = %d, want 10", event.PagesProcessed)
	}

	rec, err := tenants.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.CurrentUsage != 10 {
		t.Errorf("CurrentUsage = %d, want 10", rec.CurrentUsage)
	}
}

func TestRecordFreeTierNegativeProfit(t *testing.T) {
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierFree)

	event, err := l.Record(context.Background(), "t1", 5, "openai")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !almostEqual(event.AmountCharged, 0) {
		t.Errorf("AmountCharged = %v, want 0 on free tier", event.AmountCharged)
	}
	if !almostEqual(event.Profit, -0.15) {
		t.Errorf("Profit = %v, want -0.15", event.Profit)
	}
}

func TestRecordUnknownTenant(t *testing.T) {
	l, _, _ := setupLedger(t)

	_, err := l.Record(context.Background(), "nobody", 1, "openai")
	if !errors.Is(err, tenant.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRejectsNonPositivePages(t *testing.T) {
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierBasic)

	for _, pages := range []int64{0, -1} {
		if _, err := l.Record(context.Background(), "t1", pages, "openai"); err == nil {
			t.Errorf("Record(%d pages) should have failed", pages)
		}
	}
}

func TestRecordAppendsEventWithRetention(t *testing.T) {
	l, tenants, mem := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierBasic)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 42, time.UTC)
	l.now = func() time.Time { return fixed }

	if _, err := l.Record(context.Background(), "t1", 10, "anthropic"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	key := fmt.Sprintf("billing:t1:%d", fixed.UnixNano())
	raw, err := mem.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("billing event not persisted at %s: %v", key, err)
	}

	var stored BillingEvent
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored event is not valid JSON: %v", err)
	}
	if stored.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", stored.SchemaVersion)
	}
	if stored.Timestamp != fixed.Unix() {
		t.Errorf("Timestamp = %d, want %d", stored.Timestamp, fixed.Unix())
	}
	if stored.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", stored.Provider)
	}
}

func TestDailyRevenueSumsProfitAcrossTenants(t *testing.T) {
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierBasic)   // profit 0.02/page on openai
	createTenant(t, tenants, "t2", tenant.TierPremium) // profit 0.01/page on openai

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	if _, err := l.Record(context.Background(), "t1", 10, "openai"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	l.now = func() time.Time { return fixed.Add(time.Hour) }
	if _, err := l.Record(context.Background(), "t2", 20, "openai"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	revenue, err := l.DailyRevenue(context.Background(), fixed)
	if err != nil {
		t.Fatalf("DailyRevenue failed: %v", err)
	}
	// 10 * (0.05-0.03) + 20 * (0.04-0.03)
	if !almostEqual(revenue, 0.40) {
		t.Errorf("DailyRevenue = %v, want 0.40", revenue)
	}
}

func TestDailyRevenueEmptyDayIsZero(t *testing.T) {
	l, _, _ := setupLedger(t)

	revenue, err := l.DailyRevenue(context.Background(), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DailyRevenue failed: %v", err)
	}
	if revenue != 0 {
		t.Errorf("DailyRevenue = %v, want 0 for a day with no events", revenue)
	}
}

func TestRecordConcurrentIncrementsLoseNothing(t *testing.T) {
	// Regression test for the lost-update race: N concurrent 1-page calls
	// must leave the counter at exactly N.
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierEnterprise)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := l.Record(context.Background(), "t1", 1, "openai"); err != nil {
				t.Errorf("Record failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := tenants.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.CurrentUsage != n {
		t.Errorf("CurrentUsage = %d, want %d (lost updates)", rec.CurrentUsage, n)
	}
}

func TestRecordUnknownProviderCostsNothing(t *testing.T) {
	// Providers outside the operator cost table are only reachable through
	// tenant-owned credentials; the operator's cost for them is zero.
	l, tenants, _ := setupLedger(t)
	createTenant(t, tenants, "t1", tenant.TierBasic)

	event, err := l.Record(context.Background(), "t1", 10, "mistral")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !almostEqual(event.ProviderCost, 0) {
		t.Errorf("ProviderCost = %v, want 0 for unknown provider", event.ProviderCost)
	}
	if !almostEqual(event.Profit, event.AmountCharged) {
		t.Errorf("Profit = %v, want full amount charged", event.Profit)
	}
}
