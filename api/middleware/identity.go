package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/responses"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	UserIDHeader   = "X-User-Id"
	UserRoleHeader = "X-User-Role"

	RoleStaff = "staff"
)

// Identity trusts the caller headers set by the upstream gateway. A request
// without a valid X-User-Id is rejected with 401.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing "+UserIDHeader+" header"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid "+UserIDHeader+" header"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if role := strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader))); role != "" {
				ctx = WithRole(ctx, role)
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
