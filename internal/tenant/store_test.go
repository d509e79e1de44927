package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
)

func TestRecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(kvstore.NewMemory())

	rec := NewRecord("t1", TierPremium, DefaultPolicy())
	rec.CustomCredentials["openai"] = "sk-own-key"
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Tier != TierPremium {
		t.Errorf("Tier = %q, want premium", loaded.Tier)
	}
	if loaded.MonthlyQuota != 5000 {
		t.Errorf("MonthlyQuota = %d, want 5000", loaded.MonthlyQuota)
	}
	if loaded.CurrentUsage != 0 {
		t.Errorf("CurrentUsage = %d, want 0", loaded.CurrentUsage)
	}
	if loaded.CustomCredentials["openai"] != "sk-own-key" {
		t.Errorf("CustomCredentials = %v, want openai key preserved", loaded.CustomCredentials)
	}
}

func TestRecordStoreLoadMissing(t *testing.T) {
	store := NewRecordStore(kvstore.NewMemory())

	_, err := store.Load(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStoreFailsClosedOnMalformedTier(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	store := NewRecordStore(mem)

	// Persisted state with a tier outside the enumeration must read as
	// not-found, not as a crash or a half-parsed record.
	err := mem.HSet(ctx, "tenant:t1", map[string]string{
		"schema_version":     "1",
		"tier":               "platinum",
		"monthly_quota":      "100",
		"current_usage":      "0",
		"preferred_provider": "openai",
	})
	if err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	if _, err := store.Load(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed tier, got %v", err)
	}
}

func TestRecordStoreFailsClosedOnMalformedCounters(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	store := NewRecordStore(mem)

	err := mem.HSet(ctx, "tenant:t1", map[string]string{
		"tier":          "basic",
		"monthly_quota": "not-a-number",
		"current_usage": "0",
	})
	if err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	if _, err := store.Load(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed quota, got %v", err)
	}
}

func TestProfileIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(kvstore.NewMemory())

	first := &Profile{SchemaVersion: 1, Email: "a@example.com", CreatedAt: 100, Tier: TierBasic}
	if err := store.SaveProfile(ctx, "t1", first); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	second := &Profile{SchemaVersion: 1, Email: "b@example.com", CreatedAt: 200, Tier: TierPremium}
	if err := store.SaveProfile(ctx, "t1", second); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	loaded, err := store.LoadProfile(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if loaded.Email != "a@example.com" || loaded.CreatedAt != 100 {
		t.Errorf("profile was rewritten: %+v, want the first write preserved", loaded)
	}
}

func TestLoadProfileMissing(t *testing.T) {
	store := NewRecordStore(kvstore.NewMemory())

	if _, err := store.LoadProfile(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIncrementUsage(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(kvstore.NewMemory())

	rec := NewRecord("t1", TierBasic, DefaultPolicy())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	total, err := store.IncrementUsage(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}
	if total != 10 {
		t.Errorf("post-increment usage = %d, want 10", total)
	}

	loaded, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.CurrentUsage != 10 {
		t.Errorf("CurrentUsage = %d, want 10", loaded.CurrentUsage)
	}
}
