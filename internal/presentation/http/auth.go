package httppresentation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the caller proven by a bearer token.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Claims is the token payload: sub carries the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. An empty secret rejects every
// token, so only anonymous and guest access remain.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (a *Authenticator) Verify(token string) (Identity, error) {
	if len(a.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: token verification is disabled", errUnauthenticated)
	}
	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", errUnauthenticated)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", errUnauthenticated)
	}
	role := RoleCustomer
	if Role(claims.Role) == RoleAdmin {
		role = RoleAdmin
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

var errNoToken = errors.New("no bearer token")

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", errUnauthenticated)
	}
	return strings.TrimSpace(token), nil
}

// optionalAuth attaches the identity when a token is presented. A presented
// but invalid token is rejected rather than silently downgraded.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		id, err := h.auth.Verify(token)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return h.optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFrom(r.Context()); !ok {
			h.writeDomainError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return h.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := identityFrom(r.Context()); !id.IsAdmin() {
			h.writeDomainError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
