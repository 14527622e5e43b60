// Package auth issues and verifies bearer tokens for host users.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"github.com/mappingforchange/geokey-airquality/internal/model"
)

var (
	ErrTokenInvalid = eris.New("auth: token invalid")
	ErrTokenExpired = eris.New("auth: token expired")
)

// Claims carries the host user a token was issued for.
type Claims struct {
	UserID      int64  `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Superuser   bool   `json:"superuser,omitempty"`
	jwt.RegisteredClaims
}

// User converts the claims into the acting user.
func (c *Claims) User() model.User {
	return model.User{
		ID:          c.UserID,
		DisplayName: c.DisplayName,
		Email:       c.Email,
		IsSuperuser: c.Superuser,
	}
}

// Tokens signs and verifies HS256 tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token service. ttl applies to issued tokens.
func NewTokens(secret, issuer string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, eris.New("auth: secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for u.
func (t *Tokens) Issue(u model.User) (string, error) {
	if u.IsAnonymous() {
		return "", eris.New("auth: cannot issue a token for an anonymous user")
	}
	now := t.now()
	claims := &Claims{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Superuser:   u.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its claims.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the acting user, or model.Anonymous.
func UserFrom(ctx context.Context) model.User {
	if u, ok := ctx.Value(ctxKey{}).(model.User); ok {
		return u
	}
	return model.Anonymous
}

// Middleware attaches the bearer token's user to the request context.
// Requests without an Authorization header continue as anonymous; a bad
// token is rejected by onError.
func (t *Tokens) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), model.Anonymous)))
				return
			}

			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				onError(w, r, ErrTokenInvalid)
				return
			}
			claims, err := t.Verify(strings.TrimSpace(raw))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}
