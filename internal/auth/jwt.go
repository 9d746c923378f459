// Package auth verifies bearer tokens issued by the platform's identity
// provider and exposes the caller identity carried in them.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// RoleAdmin grants access to the admin routes.
const RoleAdmin = "admin"

// Claims holds JWT claims. Subject is the platform user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UID   string
	Email string
	Role  string
}

// Verifier validates HS256 tokens and decides who is an admin.
type Verifier struct {
	secret      []byte
	issuer      string
	adminEmails map[string]struct{}
}

// NewVerifier creates a Verifier. An empty issuer disables the issuer check.
// adminEmails are treated as admins regardless of the role claim.
func NewVerifier(secret, issuer string, adminEmails []string) *Verifier {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Verifier{
		secret:      []byte(secret),
		issuer:      issuer,
		adminEmails: admins,
	}
}

// Verify parses and validates a token, returning the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// IsAdmin reports whether id may use the admin routes.
func (v *Verifier) IsAdmin(id *Identity) bool {
	if id == nil {
		return false
	}
	if id.Role == RoleAdmin {
		return true
	}
	_, ok := v.adminEmails[strings.ToLower(id.Email)]
	return ok
}

// Issue signs a token for uid. Used by local tooling and tests.
func (v *Verifier) Issue(uid, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    v.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
