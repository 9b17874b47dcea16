package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datumgrid/gis-resource-server/internal/api"
	"github.com/datumgrid/gis-resource-server/internal/api/common"
	"github.com/datumgrid/gis-resource-server/internal/introspect"
)

type stubIntrospector struct {
	introspect func(ctx context.Context, req introspect.Request) (*introspect.AuthorizedContext, error)

	lastRequest introspect.Request
}

func (s *stubIntrospector) Introspect(ctx context.Context, req introspect.Request) (*introspect.AuthorizedContext, error) {
	s.lastRequest = req
	return s.introspect(ctx, req)
}

func allowAll(authCtx *introspect.AuthorizedContext) *stubIntrospector {
	return &stubIntrospector{
		introspect: func(_ context.Context, _ introspect.Request) (*introspect.AuthorizedContext, error) {
			return authCtx, nil
		},
	}
}

func refuseWith(reason introspect.Reason) *stubIntrospector {
	return &stubIntrospector{
		introspect: func(_ context.Context, _ introspect.Request) (*introspect.AuthorizedContext, error) {
			return nil, introspect.NewError(reason, nil)
		},
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	t.Parallel()

	handler := api.IntrospectionMiddleware(allowAll(nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities?id=a/b/c/d/e", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), common.URNInvalidAuthToken)
}

func TestMiddlewareTokenSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setHeader func(r *http.Request)
		wantToken string
	}{
		{
			name:      "bearer authorization header",
			setHeader: func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") },
			wantToken: "abc.def.ghi",
		},
		{
			name:      "legacy token header",
			setHeader: func(r *http.Request) { r.Header.Set("token", "abc.def.ghi") },
			wantToken: "abc.def.ghi",
		},
		{
			name: "bearer wins over legacy header",
			setHeader: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer from-bearer")
				r.Header.Set("token", "from-legacy")
			},
			wantToken: "from-bearer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := allowAll(&introspect.AuthorizedContext{UserID: "u1"})
			handler := api.IntrospectionMiddleware(engine)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities?id=a/b/c/d/e", nil)
			tt.setHeader(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantToken, engine.lastRequest.Token)
			assert.Equal(t, "a/b/c/d/e", engine.lastRequest.ResourceID)
		})
	}
}

func TestMiddlewareStoresAuthorizedContext(t *testing.T) {
	t.Parallel()

	want := &introspect.AuthorizedContext{UserID: "consumer-1", InstanceID: "a/b/c/d/e"}
	var got *introspect.AuthorizedContext
	handler := api.IntrospectionMiddleware(allowAll(want))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = common.AuthorizedContextFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities?id=a/b/c/d/e", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, got)
}

func TestMiddlewareFailureMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reason     introspect.Reason
		wantStatus int
		wantURN    string
	}{
		{"invalid signature", introspect.ReasonInvalidSignature, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"audience mismatch", introspect.ReasonAudienceMismatch, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"issuer mismatch", introspect.ReasonIssuerMismatch, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"identity mismatch", introspect.ReasonIdentityMismatch, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"role not permitted", introspect.ReasonRoleNotPermitted, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"access denied", introspect.ReasonAccessDenied, http.StatusUnauthorized, common.URNInvalidAuthToken},
		{"malformed resource id", introspect.ReasonMalformedResourceID, http.StatusBadRequest, common.URNBadRequest},
		{"resource not found", introspect.ReasonResourceNotFound, http.StatusNotFound, common.URNResourceNotFound},
		{"upstream unavailable", introspect.ReasonUpstreamUnavailable, http.StatusBadGateway, common.URNBackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := api.IntrospectionMiddleware(refuseWith(tt.reason))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run on refusal")
			}))

			req := httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities?id=a/b/c/d/e", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantURN)
		})
	}
}

func TestResourceIDFromPathVariant(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities/dom/sha/srv/grp/name", nil)
	assert.Equal(t, "dom/sha/srv/grp/name", common.ResourceIDFrom(req))

	req = httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/entities", nil)
	assert.Empty(t, common.ResourceIDFrom(req))
}
