// Package auth authenticates requests and binds them to a tenant, either by
// API key or by JWT.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragstack/ragchat/internal/models"
	"github.com/ragstack/ragchat/internal/tenant"
)

type APIKeyMiddleware struct {
	db            *pgxpool.Pool
	headerName    string
	tenantService *tenant.Service
}

func NewAPIKeyMiddleware(db *pgxpool.Pool, headerName string, ts *tenant.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		db:            db,
		headerName:    headerName,
		tenantService: ts,
	}
}

// Authenticate resolves the API key header to a tenant. Requests without
// the header pass through untouched so the JWT middleware can have a go.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		hash := HashAPIKey(key)

		var ak models.APIKey
		err := m.db.QueryRow(r.Context(),
			`SELECT id, tenant_id, key_hash, name, usage_count, last_used_at, expires_at, created_at
			 FROM api_keys WHERE key_hash = $1`, hash,
		).Scan(&ak.ID, &ak.TenantID, &ak.KeyHash, &ak.Name, &ak.UsageCount, &ak.LastUsedAt, &ak.ExpiresAt, &ak.CreatedAt)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if ak.ExpiresAt != nil && ak.ExpiresAt.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "API key expired")
			return
		}

		// Usage accounting is best effort; an update failure must not block
		// the request.
		if _, err := m.db.Exec(r.Context(),
			"UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $1 WHERE id = $2",
			time.Now().UTC(), ak.ID,
		); err != nil {
			slog.Warn("api key usage update failed", "error", err)
		}

		t, err := m.tenantService.GetByID(r.Context(), ak.TenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// RequireTenant rejects requests that passed through both authenticators
// without picking up a tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant.FromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
