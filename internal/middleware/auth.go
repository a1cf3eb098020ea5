package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/audit"
	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/httputil"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/repository"
	"github.com/whalix/dashboard-server/internal/util"
)

const lastSeenResolution = 5 * time.Minute

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.DashboardUser {
	if user, ok := ctx.Value(UserContextKey).(*model.DashboardUser); ok {
		return user
	}
	return nil
}

func WithUser(ctx context.Context, user *model.DashboardUser) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// AuthMiddleware resolves the bearer token to a dashboard user.
type AuthMiddleware struct {
	userRepo repository.DashboardUserRepository
	now      func() time.Time
}

func NewAuthMiddleware(userRepo repository.DashboardUserRepository) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo, now: time.Now}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		user, err := m.userRepo.FindByTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteError(w, apperrors.Database(err))
			return
		}

		if user == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			httputil.WriteError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		now := m.now()
		if user.LastSeenAt == nil || now.Sub(*user.LastSeenAt) > lastSeenResolution {
			if err := m.userRepo.TouchLastSeen(r.Context(), user.ID, now); err != nil {
				log.Warn().Err(err).Str("userId", user.ID).Msg("failed to update last seen")
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// TenantGuard restricts /tenants/{tenantId} routes to the user's own tenant.
func TenantGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		tenantID := chi.URLParam(r, "tenantId")
		if !util.IsValidTenantID(tenantID) {
			httputil.WriteError(w, apperrors.InvalidInput("tenantId", "malformed identifier"))
			return
		}

		if !util.ConstantTimeEqual(tenantID, user.TenantID) {
			audit.LogFromRequest(r, audit.Event{
				Type:     audit.EventTenantMismatch,
				UserID:   user.ID,
				TenantID: user.TenantID,
				Details:  map[string]interface{}{"requested": tenantID},
			})
			httputil.WriteError(w, apperrors.Forbidden("Access to this tenant is not allowed"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken accepts a query token for EventSource clients, which cannot
// set headers.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
