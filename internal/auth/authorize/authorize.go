// Package authorize decides whether validated claims permit a (method,
// endpoint) pair. Each role is a strategy variant over the same capability;
// adding a role means adding a variant, never branching on the role name in
// the introspection pipeline.
package authorize

import (
	"net/http"
	"strings"

	"github.com/datumgrid/gis-resource-server/internal/auth"
)

// Method is the HTTP method of an authorization request.
type Method string

// Methods appearing in the access matrices.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
)

// Endpoint identifies an API surface at the granularity access is declared.
type Endpoint string

// Known endpoints.
const (
	// EndpointEntities is the NGSI-LD entities query surface.
	EndpointEntities Endpoint = "/ngsi-ld/v1/entities"

	// EndpointAdmin is the server-info admin CRUD surface.
	EndpointAdmin Endpoint = "/admin/gis/serverInfo"
)

// EndpointFromPath maps a request path onto its endpoint. Path-parameter
// variants collapse onto their base endpoint.
func EndpointFromPath(path string) Endpoint {
	switch {
	case path == string(EndpointEntities),
		strings.HasPrefix(path, string(EndpointEntities)+"/"):
		return EndpointEntities
	case path == string(EndpointAdmin):
		return EndpointAdmin
	default:
		return Endpoint(path)
	}
}

// Request is an immutable (method, endpoint) pair, constructed per call.
type Request struct {
	Method   Method
	Endpoint Endpoint
}

// Strategy is the per-role decision function over (method, endpoint) pairs.
type Strategy interface {
	IsAuthorized(req Request, claims *auth.Claims) bool
}

// ForRole returns the strategy variant for role, or false when the role has
// no access to data endpoints.
func ForRole(role auth.Role) (Strategy, bool) {
	switch role {
	case auth.RoleConsumer:
		return consumerStrategy{}, true
	default:
		return nil, false
	}
}
