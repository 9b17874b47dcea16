package introspect_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/datumgrid/gis-resource-server/internal/auth"
	"github.com/datumgrid/gis-resource-server/internal/catalogue/mocks"
	"github.com/datumgrid/gis-resource-server/internal/introspect"
)

var testOpenEndpoints = []string{"/ngsi-ld/v1/entities"}

// stubValidator satisfies auth.TokenValidator without cryptography, for
// exercising the pipeline stages after verification.
type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s *stubValidator) Verify(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func entitiesRequest(method string) introspect.Request {
	return introspect.Request{
		Token:      "token",
		ResourceID: testResourceID,
		Method:     method,
		Endpoint:   "/ngsi-ld/v1/entities",
	}
}

func TestIntrospectVerifyFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verifyErr  error
		wantReason introspect.Reason
	}{
		{"invalid_signature", auth.ErrInvalidToken, introspect.ReasonInvalidSignature},
		{"audience_mismatch", auth.ErrInvalidAudience, introspect.ReasonAudienceMismatch},
		{"issuer_mismatch", auth.ErrInvalidIssuer, introspect.ReasonIssuerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl) // resolver must not be reached
			resolver := newResolver(t, client, time.Minute)
			svc := introspect.NewService(&stubValidator{err: tt.verifyErr}, resolver, testOpenEndpoints, nil)

			_, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodGet))
			require.Error(t, err)
			assert.Equal(t, tt.wantReason, introspect.ReasonOf(err))
		})
	}
}

func TestIntrospectOpenEndpointSkipsIdentityCheck(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicyOpen, nil)
	client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil)
	resolver := newResolver(t, client, time.Minute)

	claims := consumerClaims()
	claims.IID = "rs:some/entirely/different/id" // would fail the identity check
	svc := introspect.NewService(&stubValidator{claims: claims}, resolver, testOpenEndpoints, nil)

	authCtx, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, "user-1", authCtx.UserID)
	assert.Equal(t, "some/entirely/different/id", authCtx.InstanceID)
	assert.Empty(t, authCtx.Expiry, "open path releases no expiry")
}

func TestIntrospectIdentityMismatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicySecure, nil)
	client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil)
	resolver := newResolver(t, client, time.Minute)

	claims := consumerClaims()
	claims.IID = "rs:someone/elses/resource/scope"
	svc := introspect.NewService(&stubValidator{claims: claims}, resolver, testOpenEndpoints, nil)

	_, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodGet))
	require.Error(t, err)
	assert.Equal(t, introspect.ReasonIdentityMismatch, introspect.ReasonOf(err))
}

func TestIntrospectSecureAllowed(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicySecure, nil)
	client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil)
	resolver := newResolver(t, client, time.Minute)

	claims := consumerClaims()
	claims.Exp = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local).Unix()
	svc := introspect.NewService(&stubValidator{claims: claims}, resolver, testOpenEndpoints, nil)

	authCtx, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, "user-1", authCtx.UserID)
	assert.Equal(t, testResourceID, authCtx.InstanceID)
	assert.Equal(t, "2026-03-14T09:26:53", authCtx.Expiry)
}

func TestIntrospectSecureMethodDenied(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicySecure, nil)
	client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil)
	resolver := newResolver(t, client, time.Minute)

	svc := introspect.NewService(&stubValidator{claims: consumerClaims()}, resolver, testOpenEndpoints, nil)

	_, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodPost))
	require.Error(t, err)
	assert.Equal(t, introspect.ReasonAccessDenied, introspect.ReasonOf(err))
}

func TestIntrospectNonConsumerAlwaysRefused(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims func() *auth.Claims
		expect func(client *mocks.MockClient)
	}{
		{
			name: "secure_resource",
			claims: func() *auth.Claims {
				c := consumerClaims()
				c.Role = "provider"
				return c
			},
			expect: func(client *mocks.MockClient) {
				client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicySecure, nil)
				client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil)
			},
		},
		{
			name: "service_token_open_path",
			claims: func() *auth.Claims {
				c := consumerClaims()
				c.Role = "admin"
				c.Sub = c.Iss // service token: resolver is bypassed
				return c
			},
			expect: func(*mocks.MockClient) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			tt.expect(client)
			resolver := newResolver(t, client, time.Minute)
			svc := introspect.NewService(&stubValidator{claims: tt.claims()}, resolver, testOpenEndpoints, nil)

			_, err := svc.Introspect(context.Background(), entitiesRequest(http.MethodGet))
			require.Error(t, err)
			assert.Equal(t, introspect.ReasonRoleNotPermitted, introspect.ReasonOf(err))
		})
	}
}

func TestIntrospectEndToEnd(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	validator := auth.NewValidatorWithKey(&key.PublicKey, "rs.gis.example.org", "auth.example.org")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub":  "user-1",
		"iss":  "auth.example.org",
		"aud":  "rs.gis.example.org",
		"role": "consumer",
		"iid":  "rs:" + testResourceID,
		"exp":  exp.Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GroupAccessPolicy(gomock.Any(), testGroupID).Return(introspect.PolicySecure, nil).Times(1)
	client.EXPECT().ResourceExists(gomock.Any(), testResourceID).Return(true, nil).Times(1)

	metrics := introspect.NewMetrics(prometheus.NewRegistry())
	resolver, err := introspect.NewAccessResolver(client, 100, time.Minute, metrics)
	require.NoError(t, err)
	svc := introspect.NewService(validator, resolver, testOpenEndpoints, metrics)

	authCtx, err := svc.Introspect(context.Background(), introspect.Request{
		Token:      token,
		ResourceID: testResourceID,
		Method:     http.MethodGet,
		Endpoint:   "/ngsi-ld/v1/entities",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", authCtx.UserID)
	assert.Equal(t, testResourceID, authCtx.InstanceID)
	assert.Equal(t, exp.In(time.Local).Format("2006-01-02T15:04:05"), authCtx.Expiry)

	// Replay: resolver answers from cache, decision unchanged.
	authCtx, err = svc.Introspect(context.Background(), entitiesRequestWithToken(token))
	require.NoError(t, err)
	assert.Equal(t, "user-1", authCtx.UserID)
}

func entitiesRequestWithToken(token string) introspect.Request {
	req := entitiesRequest(http.MethodGet)
	req.Token = token
	return req
}
