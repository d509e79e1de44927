package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
)

const recordSchemaVersion = "1"

const (
	fieldSchemaVersion     = "schema_version"
	fieldTier              = "tier"
	fieldMonthlyQuota      = "monthly_quota"
	fieldCurrentUsage      = "current_usage"
	fieldPreferredProvider = "preferred_provider"
	fieldCustomCredentials = "custom_credentials"
)

func recordKey(tenantID string) string  { return "tenant:" + tenantID }
func profileKey(tenantID string) string { return "profile:" + tenantID }

// RecordStore persists tenant records as flat field hashes so the usage
// counter can be incremented atomically at the store, not read-modify-written
// by the process.
type RecordStore struct {
	store kvstore.Store
}

func NewRecordStore(store kvstore.Store) *RecordStore {
	return &RecordStore{store: store}
}

// Load reads the record for tenantID. Malformed persisted state is reported
// as ErrNotFound rather than an unrelated fault; store outages propagate as
// kvstore.ErrUnavailable.
func (s *RecordStore) Load(ctx context.Context, tenantID string) (*Record, error) {
	fields, err := s.store.HGetAll(ctx, recordKey(tenantID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}

	tier, err := ParseTier(fields[fieldTier])
	if err != nil {
		log.Printf("tenant: malformed record for %s: %v", tenantID, err)
		return nil, ErrNotFound
	}
	quota, err := strconv.ParseInt(fields[fieldMonthlyQuota], 10, 64)
	if err != nil {
		log.Printf("tenant: malformed record for %s: bad monthly_quota %q", tenantID, fields[fieldMonthlyQuota])
		return nil, ErrNotFound
	}
	usage, err := strconv.ParseInt(fields[fieldCurrentUsage], 10, 64)
	if err != nil {
		log.Printf("tenant: malformed record for %s: bad current_usage %q", tenantID, fields[fieldCurrentUsage])
		return nil, ErrNotFound
	}

	creds := map[string]string{}
	if raw := fields[fieldCustomCredentials]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &creds); err != nil {
			log.Printf("tenant: malformed record for %s: bad custom_credentials: %v", tenantID, err)
			return nil, ErrNotFound
		}
	}

	return &Record{
		TenantID:          tenantID,
		Tier:              tier,
		MonthlyQuota:      quota,
		CurrentUsage:      usage,
		PreferredProvider: fields[fieldPreferredProvider],
		CustomCredentials: creds,
	}, nil
}

// Save replaces the whole record. There are no partial-field writes; the
// only other mutation path is IncrementUsage.
func (s *RecordStore) Save(ctx context.Context, r *Record) error {
	creds, err := json.Marshal(r.CustomCredentials)
	if err != nil {
		return fmt.Errorf("marshal custom credentials: %w", err)
	}
	fields := map[string]string{
		fieldSchemaVersion:     recordSchemaVersion,
		fieldTier:              string(r.Tier),
		fieldMonthlyQuota:      strconv.FormatInt(r.MonthlyQuota, 10),
		fieldCurrentUsage:      strconv.FormatInt(r.CurrentUsage, 10),
		fieldPreferredProvider: r.PreferredProvider,
		fieldCustomCredentials: string(creds),
	}
	if err := s.store.HSet(ctx, recordKey(r.TenantID), fields); err != nil {
		return fmt.Errorf("save tenant %s: %w", r.TenantID, err)
	}
	return nil
}

// IncrementUsage atomically adds pages to the tenant's usage counter and
// returns the post-increment value. Concurrent calls can never lose updates
// because the addition happens at the store.
func (s *RecordStore) IncrementUsage(ctx context.Context, tenantID string, pages int64) (int64, error) {
	total, err := s.store.HIncrBy(ctx, recordKey(tenantID), fieldCurrentUsage, pages)
	if err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", tenantID, err)
	}
	return total, nil
}

// SaveProfile persists the identity metadata. Profiles are write-once: the
// first write wins and re-creation of a tenant does not touch it.
func (s *RecordStore) SaveProfile(ctx context.Context, tenantID string, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if _, err := s.store.SetNX(ctx, profileKey(tenantID), string(data), 0); err != nil {
		return fmt.Errorf("save profile %s: %w", tenantID, err)
	}
	return nil
}

// LoadProfile reads the identity metadata for tenantID.
func (s *RecordStore) LoadProfile(ctx context.Context, tenantID string) (*Profile, error) {
	raw, err := s.store.Get(ctx, profileKey(tenantID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", tenantID, err)
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Printf("tenant: malformed profile for %s: %v", tenantID, err)
		return nil, ErrNotFound
	}
	return &p, nil
}
