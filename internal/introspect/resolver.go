package introspect

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/datumgrid/gis-resource-server/internal/auth"
	"github.com/datumgrid/gis-resource-server/internal/cache"
	"github.com/datumgrid/gis-resource-server/internal/catalogue"
	"github.com/datumgrid/gis-resource-server/internal/logger"
)

// Access policies declared by the catalogue.
const (
	PolicyOpen   = "OPEN"
	PolicySecure = "SECURE"
)

// groupSegments is the resource-id prefix length at which access policy is
// declared upstream.
const groupSegments = 4

// IsOpen reports whether policy classifies a resource as open.
func IsOpen(policy string) bool {
	return strings.EqualFold(policy, PolicyOpen)
}

// AccessResolver determines a resource's access classification, consulting
// two independently keyed caches before falling back to the catalogue.
//
// The group cache holds ACL info for resource groups; the resource cache
// holds the resources known to exist, each carrying its group's policy. A
// resource entry is written only after the group policy is resolved and the
// resource's existence is confirmed upstream, never speculatively.
type AccessResolver struct {
	client        catalogue.Client
	groupCache    *cache.Cache[string, string]
	resourceCache *cache.Cache[string, string]
	metrics       *Metrics
}

// NewAccessResolver creates a resolver owning two bounded caches with the
// given access-based expiry window. The caches live for the process lifetime
// and are only invalidated by TTL expiry or capacity eviction.
func NewAccessResolver(client catalogue.Client, maxEntries int, ttl time.Duration, metrics *Metrics) (*AccessResolver, error) {
	groupCache, err := cache.New[string, string](maxEntries, ttl)
	if err != nil {
		return nil, err
	}
	resourceCache, err := cache.New[string, string](maxEntries, ttl)
	if err != nil {
		return nil, err
	}
	return &AccessResolver{
		client:        client,
		groupCache:    groupCache,
		resourceCache: resourceCache,
		metrics:       metrics,
	}, nil
}

// Classify returns the access policy governing resourceID. Service tokens
// (subject == issuer) classify as open without touching caches or network.
func (r *AccessResolver) Classify(ctx context.Context, claims *auth.Claims, resourceID string) (string, error) {
	if claims.IsServiceToken() {
		return PolicyOpen, nil
	}

	if policy, ok := r.resourceCache.Get(resourceID); ok {
		logger.Debugf("resource cache hit: %s", resourceID)
		r.metrics.observeCacheLookup("resource", true)
		return policy, nil
	}
	r.metrics.observeCacheLookup("resource", false)

	segments := strings.Split(resourceID, "/")
	if len(segments) < groupSegments {
		return "", NewError(ReasonMalformedResourceID, errors.New("id has fewer than 4 segments"))
	}
	groupID := resourceID
	if len(segments) > groupSegments {
		groupID = strings.Join(segments[:groupSegments], "/")
	}

	policy, err := r.groupPolicy(ctx, groupID)
	if err != nil {
		logger.Errorf("catalogue response failed for id (%s): %v", resourceID, err)
		return "", err
	}

	if err := r.confirmResource(ctx, resourceID, policy); err != nil {
		logger.Errorf("catalogue response failed for id (%s): %v", resourceID, err)
		return "", err
	}
	return policy, nil
}

// groupPolicy resolves the group's declared access policy, cache first.
func (r *AccessResolver) groupPolicy(ctx context.Context, groupID string) (string, error) {
	if policy, ok := r.groupCache.Get(groupID); ok {
		logger.Debugf("group cache hit: %s", groupID)
		r.metrics.observeCacheLookup("group", true)
		return policy, nil
	}
	r.metrics.observeCacheLookup("group", false)

	policy, err := r.client.GroupAccessPolicy(ctx, groupID)
	if err != nil {
		return "", classifyCatalogueError(err)
	}
	r.groupCache.Add(groupID, policy)
	return policy, nil
}

// confirmResource checks the exact resource id exists upstream and, on
// confirmation, propagates the group's policy into the resource cache.
func (r *AccessResolver) confirmResource(ctx context.Context, resourceID, groupPolicy string) error {
	// A concurrent request may have confirmed it since the first lookup.
	if _, ok := r.resourceCache.Get(resourceID); ok {
		return nil
	}

	exists, err := r.client.ResourceExists(ctx, resourceID)
	if err != nil {
		return classifyCatalogueError(err)
	}
	if !exists {
		return NewError(ReasonResourceNotFound, errors.New("catalogue item not found: "+resourceID))
	}
	r.resourceCache.Add(resourceID, groupPolicy)
	return nil
}

func classifyCatalogueError(err error) error {
	if errors.Is(err, catalogue.ErrUnavailable) {
		return NewError(ReasonUpstreamUnavailable, err)
	}
	return NewError(ReasonResourceNotFound, err)
}
