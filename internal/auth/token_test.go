package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenSignerIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	signer, err := NewTokenSigner("top-secret", WithIssuer("test-issuer"), WithSignerClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	tok, err := signer.Issue(TokenClaims{UserID: 42, Email: "t@x.edu", Role: RoleFaculty}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", tok.ExpiresAt)
	}

	claims, err := signer.Verify(tok.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "t@x.edu" || claims.Role != RoleFaculty {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// faculty travels as "teacher" on the wire
	parsed, _, err := jwt.NewParser().ParseUnverified(tok.Token, &jwtClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if role := parsed.Claims.(*jwtClaims).Role; role != "teacher" {
		t.Fatalf("expected exposed role teacher, got %q", role)
	}
}

func TestTokenSignerRejects(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	signer, err := NewTokenSigner("top-secret", WithSignerClock(clock))
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	valid, err := signer.Issue(TokenClaims{UserID: 7, Email: "s@x.edu", Role: RoleStudent}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := now.Add(2 * time.Hour)
	expiredView, _ := NewTokenSigner("top-secret", WithSignerClock(func() time.Time { return later }))
	otherSecret, _ := NewTokenSigner("another-secret", WithSignerClock(clock))
	otherIssuer, _ := NewTokenSigner("top-secret", WithIssuer("someone-else"), WithSignerClock(clock))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		UserID: 7,
		Role:   "student",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	cases := []struct {
		name   string
		signer *TokenSigner
		token  string
	}{
		{"expired", expiredView, valid.Token},
		{"wrong secret", otherSecret, valid.Token},
		{"wrong issuer", otherIssuer, valid.Token},
		{"malformed", signer, "not.a.jwt"},
		{"empty", signer, "   "},
		{"truncated", signer, valid.Token[:strings.LastIndex(valid.Token, ".")]},
		{"alg none", signer, noneToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.signer.Verify(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestTokenSignerIssueValidation(t *testing.T) {
	if _, err := NewTokenSigner(" "); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
	signer, err := NewTokenSigner("top-secret")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	if _, err := signer.Issue(TokenClaims{UserID: 0, Role: RoleAdmin}, time.Hour); err == nil {
		t.Fatalf("expected missing user id to fail")
	}
	if _, err := signer.Issue(TokenClaims{UserID: 1, Role: Role("dean")}, time.Hour); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	if _, err := signer.Issue(TokenClaims{UserID: 1, Role: RoleAdmin}, 0); err == nil {
		t.Fatalf("expected zero ttl to fail")
	}
}
