package introspect

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/datumgrid/gis-resource-server/internal/auth"
	"github.com/datumgrid/gis-resource-server/internal/auth/authorize"
	"github.com/datumgrid/gis-resource-server/internal/logger"
)

// expiryLayout renders claim expiry as a local-zone timestamp.
const expiryLayout = "2006-01-02T15:04:05"

// Request carries the four values the routing layer extracts from an HTTP
// request.
type Request struct {
	Token      string
	ResourceID string
	Method     string
	Endpoint   string
}

// AuthorizedContext is the only data released to the caller on success. It
// never includes raw claims or policy internals. Expiry is empty on the
// open-resource path.
type AuthorizedContext struct {
	UserID     string `json:"userid"`
	InstanceID string `json:"iid"`
	Expiry     string `json:"expiry,omitempty"`
}

// Service composes the token validator, the access resolver and the
// role-strategy engine into the per-request introspection pipeline:
// signature → audience → issuer → openness → identity → strategy, fail-fast.
type Service struct {
	validator     auth.TokenValidator
	resolver      *AccessResolver
	openEndpoints map[authorize.Endpoint]struct{}
	metrics       *Metrics
}

// NewService wires the pipeline. openEndpoints are the API endpoints exempt
// from role/identity checks when a resource is classified open.
func NewService(validator auth.TokenValidator, resolver *AccessResolver, openEndpoints []string, metrics *Metrics) *Service {
	open := make(map[authorize.Endpoint]struct{}, len(openEndpoints))
	for _, e := range openEndpoints {
		open[authorize.Endpoint(e)] = struct{}{}
	}
	return &Service{
		validator:     validator,
		resolver:      resolver,
		openEndpoints: open,
		metrics:       metrics,
	}
}

// Introspect decides whether the caller may perform the requested operation.
// The first failure halts the pipeline; every failure carries a taxonomy
// reason and leaves the caches in a valid state.
func (s *Service) Introspect(ctx context.Context, req Request) (*AuthorizedContext, error) {
	authCtx, err := s.introspect(ctx, req)
	if err != nil {
		s.metrics.observeDecision(string(ReasonOf(err)))
		return nil, err
	}
	s.metrics.observeDecision("allowed")
	return authCtx, nil
}

func (s *Service) introspect(ctx context.Context, req Request) (*AuthorizedContext, error) {
	claims, err := s.validator.Verify(ctx, req.Token)
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	policy, err := s.resolver.Classify(ctx, claims, req.ResourceID)
	if err != nil {
		return nil, err
	}
	isOpen := IsOpen(policy)

	if !isOpen {
		if !strings.EqualFold(req.ResourceID, claims.InstanceID()) {
			logger.Errorf("incorrect id value in jwt")
			return nil, NewError(ReasonIdentityMismatch, nil)
		}
	}

	return s.authorize(claims, isOpen, authorize.Request{
		Method:   authorize.Method(req.Method),
		Endpoint: authorize.EndpointFromPath(req.Endpoint),
	})
}

// authorize dispatches to the role's strategy variant and builds the
// authorized context on allow.
func (s *Service) authorize(claims *auth.Claims, isOpen bool, req authorize.Request) (*AuthorizedContext, error) {
	strategy, ok := authorize.ForRole(claims.Role)
	if !ok {
		return nil, NewError(ReasonRoleNotPermitted, errors.New("only consumer access allowed"))
	}

	if isOpen {
		if _, open := s.openEndpoints[req.Endpoint]; open {
			logger.Debugf("open resource, user access is allowed")
			return &AuthorizedContext{
				UserID:     claims.Sub,
				InstanceID: claims.InstanceID(),
			}, nil
		}
	}

	if !strategy.IsAuthorized(req, claims) {
		return nil, NewError(ReasonAccessDenied, errors.New("no access provided to endpoint"))
	}

	logger.Debugf("user access is allowed")
	return &AuthorizedContext{
		UserID:     claims.Sub,
		InstanceID: claims.InstanceID(),
		Expiry:     time.Unix(claims.Exp, 0).Format(expiryLayout),
	}, nil
}

func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidAudience):
		return NewError(ReasonAudienceMismatch, err)
	case errors.Is(err, auth.ErrInvalidIssuer):
		return NewError(ReasonIssuerMismatch, err)
	default:
		return NewError(ReasonInvalidSignature, err)
	}
}
