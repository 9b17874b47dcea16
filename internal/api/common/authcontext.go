package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/datumgrid/gis-resource-server/internal/introspect"
)

// entitiesPathPrefix is the path form of the entity query, carrying the
// resource id as the remaining segments.
const entitiesPathPrefix = "/ngsi-ld/v1/entities/"

type authCtxKey struct{}

// WithAuthorizedContext stores the introspection result in the request
// context.
func WithAuthorizedContext(ctx context.Context, authCtx *introspect.AuthorizedContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, authCtx)
}

// AuthorizedContextFrom returns the authorized context stored by the
// introspection middleware, or nil for unauthenticated routes.
func AuthorizedContextFrom(ctx context.Context) *introspect.AuthorizedContext {
	authCtx, _ := ctx.Value(authCtxKey{}).(*introspect.AuthorizedContext)
	return authCtx
}

// ResourceIDFrom extracts the requested resource identifier: the id query
// parameter, or the trailing segments of the entities path variant.
func ResourceIDFrom(r *http.Request) string {
	if id := r.URL.Query().Get("id"); id != "" {
		return id
	}
	if rest, found := strings.CutPrefix(r.URL.Path, entitiesPathPrefix); found {
		return strings.Trim(rest, "/")
	}
	return ""
}
