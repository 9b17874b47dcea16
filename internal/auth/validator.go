package auth

//go:generate mockgen -destination=mocks/mock_validator.go -package=mocks -source=validator.go TokenValidator

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datumgrid/gis-resource-server/internal/logger"
)

// Verification failures, surfaced to the introspection pipeline which maps
// them onto its failure taxonomy.
var (
	// ErrInvalidToken covers malformed tokens, bad signatures and expired
	// tokens, with no further distinction.
	ErrInvalidToken = errors.New("failed to decode/validate jwt token")

	// ErrInvalidAudience indicates the aud claim does not match this server.
	ErrInvalidAudience = errors.New("incorrect audience value in jwt")

	// ErrInvalidIssuer indicates the iss claim does not match the trusted
	// auth server.
	ErrInvalidIssuer = errors.New("incorrect iss value in jwt")
)

// TokenValidator verifies a bearer token and extracts its claim set.
type TokenValidator interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// tokenClaims is the wire shape of the token payload.
type tokenClaims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
	IID  string `json:"iid"`
}

// Validator implements TokenValidator against a static ES256 public key.
type Validator struct {
	parser   *jwt.Parser
	key      *ecdsa.PublicKey
	audience string
	issuer   string
}

var _ TokenValidator = (*Validator)(nil)

// NewValidator creates a validator that verifies signatures with the
// PEM-encoded ES256 public key at keyFile and re-checks audience and issuer.
func NewValidator(keyFile, audience, issuer string) (*Validator, error) {
	pem, err := os.ReadFile(filepath.Clean(keyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt public key: %w", err)
	}
	key, err := jwt.ParseECPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt public key: %w", err)
	}
	return NewValidatorWithKey(key, audience, issuer), nil
}

// NewValidatorWithKey creates a validator around an already-loaded key.
func NewValidatorWithKey(key *ecdsa.PublicKey, audience, issuer string) *Validator {
	return &Validator{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		key:      key,
		audience: audience,
		issuer:   issuer,
	}
}

// Verify checks the token signature and structure, then the audience and
// issuer claims. It is a pure function of the token and the configuration.
func (v *Validator) Verify(_ context.Context, token string) (*Claims, error) {
	var tc tokenClaims
	_, err := v.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		logger.Errorf("failed to decode/validate jwt token: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims := claimsFromToken(&tc)

	if !strings.EqualFold(v.audience, claims.Aud) {
		logger.Errorf("incorrect audience value in jwt")
		return nil, ErrInvalidAudience
	}
	if !strings.EqualFold(v.issuer, claims.Iss) {
		logger.Errorf("incorrect iss value in jwt")
		return nil, ErrInvalidIssuer
	}

	return claims, nil
}

func claimsFromToken(tc *tokenClaims) *Claims {
	c := &Claims{
		Sub:  tc.Subject,
		Iss:  tc.Issuer,
		Role: Role(tc.Role),
		IID:  tc.IID,
	}
	if len(tc.Audience) > 0 {
		c.Aud = tc.Audience[0]
	}
	if tc.ExpiresAt != nil {
		c.Exp = tc.ExpiresAt.Unix()
	}
	return c
}
