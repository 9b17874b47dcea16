package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/datumgrid/gis-resource-server/internal/api/common"
	"github.com/datumgrid/gis-resource-server/internal/introspect"
	"github.com/datumgrid/gis-resource-server/internal/logger"
)

// headerToken is the legacy token header, accepted alongside a standard
// bearer Authorization header.
const headerToken = "token"

// Introspector abstracts the introspection engine for testability.
type Introspector interface {
	Introspect(ctx context.Context, req introspect.Request) (*introspect.AuthorizedContext, error)
}

// extractToken returns the bearer token from the Authorization header or the
// legacy token header.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, found := strings.CutPrefix(h, "Bearer "); found {
			return token
		}
	}
	return r.Header.Get(headerToken)
}

// IntrospectionMiddleware gates a route tree behind the token introspection
// engine. On success the authorized context is stored in the request
// context; on failure the taxonomy reason is translated to a response and
// the chain halts.
func IntrospectionMiddleware(engine Introspector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				common.WriteErrorResponse(w, http.StatusUnauthorized, common.URNInvalidAuthToken,
					"missing authorization token")
				return
			}

			authCtx, err := engine.Introspect(r.Context(), introspect.Request{
				Token:      token,
				ResourceID: common.ResourceIDFrom(r),
				Method:     r.Method,
				Endpoint:   r.URL.Path,
			})
			if err != nil {
				logger.Debugf("introspection refused %s %s: %v", r.Method, r.URL.Path, err)
				writeIntrospectionFailure(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(common.WithAuthorizedContext(r.Context(), authCtx)))
		})
	}
}

// writeIntrospectionFailure maps a taxonomy reason onto an HTTP response.
// The engine itself never deals in status codes.
func writeIntrospectionFailure(w http.ResponseWriter, err error) {
	switch introspect.ReasonOf(err) {
	case introspect.ReasonMalformedResourceID:
		common.WriteErrorResponse(w, http.StatusBadRequest, common.URNBadRequest,
			"malformed resource id")
	case introspect.ReasonResourceNotFound:
		common.WriteErrorResponse(w, http.StatusNotFound, common.URNResourceNotFound,
			"resource not found")
	case introspect.ReasonUpstreamUnavailable:
		common.WriteErrorResponse(w, http.StatusBadGateway, common.URNBackendError,
			"catalogue lookup failed")
	case introspect.ReasonRoleNotPermitted:
		common.WriteErrorResponse(w, http.StatusUnauthorized, common.URNInvalidAuthToken,
			"only consumer access allowed")
	case introspect.ReasonAccessDenied:
		common.WriteErrorResponse(w, http.StatusUnauthorized, common.URNInvalidAuthToken,
			"no access provided to endpoint")
	default:
		// InvalidSignature, AudienceMismatch, IssuerMismatch, IdentityMismatch
		common.WriteErrorResponse(w, http.StatusUnauthorized, common.URNInvalidAuthToken,
			"authorization failed")
	}
}
