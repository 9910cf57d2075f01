package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by customer and back-office bearer tokens. The user id is
// the registered subject.
type Claims struct {
	IsAdmin bool `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

type Principal struct {
	UserID  string
	IsAdmin bool
}

type principalKey struct{}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func userID(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.UserID
}

// Authenticator verifies HMAC-signed bearer tokens.
type Authenticator struct {
	Secret []byte
	Issuer string
}

func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w, "invalid_request", "missing bearer token")
			return
		}
		claims, err := a.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			unauthorized(w, "invalid_token", "invalid jwt")
			return
		}
		p := Principal{UserID: claims.Subject, IsAdmin: claims.IsAdmin}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func (a *Authenticator) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(30 * time.Second), // small clock skew
	}
	if a.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Issuer))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, opts...); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	return claims, nil
}

// Sign issues a token; used by tooling and tests.
func (a *Authenticator) Sign(c Claims) (string, error) {
	if c.Issuer == "" {
		c.Issuer = a.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.Secret)
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); !ok || !p.IsAdmin {
			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", error_description="admin required"`)
			writeJSON(w, http.StatusForbidden, errorBody{Error: "insufficient_scope", Message: "admin required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: code, Message: desc})
}
