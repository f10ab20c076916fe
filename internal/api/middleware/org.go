package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clauselens/clauselens/internal/api"
)

type contextKey string

// orgIDHeader names the calling organization; the fronting gateway
// authenticates the caller and sets it.
const orgIDHeader = "X-Org-ID"

const OrgIDKey contextKey = "org_id"

// OrgContext resolves the calling organization from the X-Org-ID header
// and stores it on the request context. Requests without an org are
// rejected before they reach a handler.
func OrgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(orgIDHeader))
		if orgID == "" {
			api.Error(w, http.StatusUnauthorized, "missing X-Org-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), OrgIDKey, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgID returns the org ID from context.
func GetOrgID(ctx context.Context) string {
	orgID, _ := ctx.Value(OrgIDKey).(string)
	return orgID
}
