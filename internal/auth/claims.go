// Package auth verifies the bearer tokens dashboard clients send. Tokens are
// HS256 JWTs minted for the owner; scopes come as a "scopes" array or as a
// space separated "scope" string.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Config is the shared secret tokens are signed with. Issuer is optional; when
// set the iss claim must match it.
type Config struct {
	Secret string
	Issuer string
}

// Claims is what handlers see of a verified token.
type Claims struct {
	Subject   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// HasScope is false for nil claims.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

type tokenClaims struct {
	Scopes scopeList `json:"scopes,omitempty"`
	Scope  scopeList `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// scopeList accepts ["a","b"] as well as "a b".
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	*s = strings.Fields(joined)
	return nil
}

// Verifier checks tokens against one Config. It is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// Verify returns ErrMissingToken for a blank token and wraps every other
// failure in ErrInvalidToken. A token must carry a subject and an expiry.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	if _, err := v.parser.ParseWithClaims(raw, &tc, v.key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" || tc.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	granted := tc.Scopes
	if len(granted) == 0 {
		granted = tc.Scope
	}
	scopes := make(map[string]struct{}, len(granted))
	for _, scope := range granted {
		if scope != "" {
			scopes[scope] = struct{}{}
		}
	}
	return &Claims{Subject: tc.Subject, Scopes: scopes, ExpiresAt: tc.ExpiresAt.Time}, nil
}

func (v *Verifier) key(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}
