// Package api is the thin HTTP surface over the metering service. Handlers
// translate the service's typed failures into status codes and do nothing
// else; all entitlement logic lives below.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/pdf-gateway/internal/auth"
	"github.com/vnmchuo/pdf-gateway/internal/credential"
	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/metering"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
	"github.com/vnmchuo/pdf-gateway/pkg/ratelimit"
)

type Handler struct {
	metering *metering.Service
	keys     auth.Store
	limiter  *ratelimit.Limiter
	tracer   trace.Tracer
}

func NewHandler(m *metering.Service, keys auth.Store, limiter *ratelimit.Limiter, tracer trace.Tracer) *Handler {
	return &Handler{
		metering: m,
		keys:     keys,
		limiter:  limiter,
		tracer:   tracer,
	}
}

// HandleResolveCredential hands the caller the provider key its next upstream
// call should use. The caller reports back through HandleRecordUsage once the
// work is done.
func (h *Handler) HandleResolveCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provider is required"})
		return
	}

	ctx, span := h.tracer.Start(ctx, "api.resolve_credential")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("provider", req.Provider),
	)

	key, err := h.metering.ResolveCredential(ctx, tenantID, req.Provider)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"provider":   req.Provider,
		"credential": key,
	})
}

// HandleRecordUsage charges the authenticated tenant for pages consumed.
func (h *Handler) HandleRecordUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var req struct {
		Pages    int64  `json:"pages"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Pages <= 0 || req.Provider == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pages must be positive and provider is required"})
		return
	}

	ctx, span := h.tracer.Start(ctx, "api.record_usage")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("provider", req.Provider),
		attribute.Int64("pages", req.Pages),
	)

	event, err := h.metering.RecordUsage(ctx, tenantID, req.Pages, req.Provider)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// HandleUsageStats reports the tenant's usage against its quota.
func (h *Handler) HandleUsageStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	stats, err := h.metering.GetUsageStats(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleCreateTenant provisions a tenant record and profile. Not idempotent:
// posting the same id again resets usage state.
func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
		Email    string `json:"email"`
		Tier     string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TenantID == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id and email are required"})
		return
	}
	tier, err := tenant.ParseTier(req.Tier)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec, err := h.metering.CreateTenant(r.Context(), req.TenantID, req.Email, tier)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant_id":          rec.TenantID,
		"subscription_tier":  rec.Tier,
		"monthly_quota":      rec.MonthlyQuota,
		"current_usage":      rec.CurrentUsage,
		"preferred_provider": rec.PreferredProvider,
	})
}

// HandleDailyRevenue reads the revenue rollup for a UTC date (default today).
func (h *Handler) HandleDailyRevenue(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		var err error
		day, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'date' format (use YYYY-MM-DD)"})
			return
		}
	}

	revenue, err := h.metering.DailyRevenue(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":        day.Format("2006-01-02"),
		"revenue_usd": revenue,
	})
}

// HandleCreateKey mints an API key for a tenant. The plaintext key is
// returned exactly once; only its hash is stored.
func (h *Handler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	secret := "pgw_" + uuid.New().String()
	apiKey := &auth.APIKey{
		TenantID: req.TenantID,
		KeyHash:  auth.HashKey(secret),
		Active:   true,
	}
	if err := h.keys.Create(r.Context(), apiKey); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":        apiKey.ID,
		"tenant_id": apiKey.TenantID,
		"key":       secret,
	})
}

// HandleRevokeKey deactivates an API key.
func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "id")
	if err := h.keys.Revoke(r.Context(), keyID); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "api key not found"})
			return
		}
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// prepare extracts the authenticated tenant and applies the per-tenant rate
// limit. It writes the response itself on failure.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := auth.GetTenantID(r.Context())
	if tenantID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", false
	}

	allowed, err := h.limiter.Allow(r.Context(), tenantID)
	if err != nil {
		// A limiter store fault is our outage, not the tenant's fault.
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable, retry later"})
		return "", false
	}
	if !allowed {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60",
		})
		return "", false
	}

	return tenantID, true
}

// writeError maps the metering error taxonomy onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var quotaErr tenant.QuotaExceededError
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error": "monthly quota exceeded, please upgrade your plan",
		})
	case errors.Is(err, credential.ErrNotConfigured):
		log.Printf("api: operator misconfiguration: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case errors.Is(err, kvstore.ErrUnavailable):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable, retry later"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
