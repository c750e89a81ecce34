package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "unirecords"
	DefaultAccessTTL = 8 * time.Hour
)

var errMissingSecret = errors.New("auth: token secret is not configured")

// TokenClaims is the identity snapshot carried by an access token.
type TokenClaims struct {
	UserID int64
	Email  string
	Role   Role
}

// jwtClaims is the wire form of TokenClaims.
type jwtClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 access tokens.
type TokenSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// SignerOption configures TokenSigner.
type SignerOption func(*TokenSigner)

// WithIssuer overrides the iss claim written and required by the signer.
func WithIssuer(issuer string) SignerOption {
	return func(s *TokenSigner) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithSignerClock overrides the time source.
func WithSignerClock(fn func() time.Time) SignerOption {
	return func(s *TokenSigner) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenSigner returns a signer for secret. An empty secret is rejected.
func NewTokenSigner(secret string, opts ...SignerOption) (*TokenSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errMissingSecret
	}
	s := &TokenSigner{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs claims with the given lifetime.
func (s *TokenSigner) Issue(claims TokenClaims, ttl time.Duration) (AccessToken, error) {
	if claims.UserID <= 0 {
		return AccessToken{}, errors.New("auth: user id is required")
	}
	if !claims.Role.Valid() {
		return AccessToken{}, fmt.Errorf("auth: unknown role %q", claims.Role)
	}
	if ttl <= 0 {
		return AccessToken{}, errors.New("auth: ttl must be greater than zero")
	}

	now := s.now().UTC()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role.Exposed(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(claims.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return AccessToken{Token: signed, ExpiresAt: exp, TTL: ttl}, nil
}

// Verify checks signature, issuer and expiry. Every failure is ErrInvalidToken.
func (s *TokenSigner) Verify(token string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, ErrInvalidToken
	}

	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return TokenClaims{}, ErrInvalidToken
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	return TokenClaims{UserID: claims.UserID, Email: claims.Email, Role: role}, nil
}
