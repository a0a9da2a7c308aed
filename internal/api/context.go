package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/models"
)

type contextKey struct{}

// ClientFromContext returns the authenticated API client, or nil
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(contextKey{}).(*models.ApiClient)
	return client
}

// ContextWithClient stores the authenticated API client
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, contextKey{}, client)
}

// requestFields identifies who asked for a run in log lines
func requestFields(r *http.Request) []zap.Field {
	fields := []zap.Field{zap.String("request_id", middleware.GetReqID(r.Context()))}
	if client := ClientFromContext(r.Context()); client != nil {
		fields = append(fields, zap.String("client", client.Name))
	}
	return fields
}
