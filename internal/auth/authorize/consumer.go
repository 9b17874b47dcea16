package authorize

import "github.com/datumgrid/gis-resource-server/internal/auth"

// consumerAccess is the declarative ACL matrix for consumer tokens. Absent
// pairs are denied.
var consumerAccess = map[Request]bool{
	{Method: MethodGet, Endpoint: EndpointEntities}: true,
}

// consumerStrategy authorizes consumer-class tokens.
type consumerStrategy struct{}

func (consumerStrategy) IsAuthorized(req Request, _ *auth.Claims) bool {
	return consumerAccess[req]
}
