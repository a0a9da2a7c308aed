package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/models"
	"github.com/danceforge/backoffice/internal/storage"
)

// ClientStore looks up API clients by key
type ClientStore interface {
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error
}

// AuthMiddleware handles API key authentication
type AuthMiddleware struct {
	store  ClientStore
	logger *zap.Logger
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(store ClientStore, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{store: store, logger: logger}
}

// Authenticate verifies the API key.
// Accepts "Authorization: Bearer <key>", a raw key in Authorization,
// the X-API-Key header, or an api_key query parameter (websocket clients).
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondError(w, http.StatusUnauthorized, "missing_api_key",
				"provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		client, err := m.store.GetClientByApiKey(r.Context(), apiKey)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && client == nil) {
			m.logger.Warn("invalid api key attempt",
				zap.String("key_prefix", models.MaskKey(apiKey)),
				zap.String("remote_addr", r.RemoteAddr),
			)
			respondError(w, http.StatusUnauthorized, "invalid_api_key", "the provided api key is not valid")
			return
		}
		if err != nil {
			m.logger.Error("failed to lookup api client",
				zap.Error(err),
				zap.String("key_prefix", models.MaskKey(apiKey)),
			)
			respondError(w, http.StatusInternalServerError, "authentication_error", "internal server error")
			return
		}

		if !client.IsActive {
			m.logger.Warn("inactive client attempt",
				zap.String("client", client.Name),
				zap.String("key_prefix", client.MaskedApiKey()),
			)
			respondError(w, http.StatusUnauthorized, "client_inactive", "this api key has been deactivated")
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.UpdateClientLastUsed(ctx, apiKey); err != nil {
				m.logger.Error("failed to update client last_used_at",
					zap.Error(err),
					zap.String("client", client.Name),
				)
			}
		}()

		m.logger.Debug("authenticated request",
			zap.String("client", client.Name),
			zap.String("key_prefix", client.MaskedApiKey()),
		)

		next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), client)))
	})
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
				return
			}

			if !client.HasPermission(permission) {
				m.logger.Warn("permission denied",
					zap.String("client", client.Name),
					zap.String("required", permission),
					zap.Strings("has", client.Permissions),
				)
				respondError(w, http.StatusForbidden, "permission_denied",
					"client does not have required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}
