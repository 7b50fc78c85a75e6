package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"log"
	"net/http"
	"strings"
)

// AdminAuth guards operator routes with a static bearer token.
// With an empty token every admin request is refused.
type AdminAuth struct {
	digest []byte // sha256 of the token, so comparisons are fixed length
}

// NewAdminAuth creates the guard for token
func NewAdminAuth(token string) *AdminAuth {
	if token == "" {
		return &AdminAuth{}
	}
	sum := sha256.Sum256([]byte(token))
	return &AdminAuth{digest: sum[:]}
}

// Enabled reports whether a token is configured
func (a *AdminAuth) Enabled() bool {
	return a != nil && len(a.digest) > 0
}

// Valid checks a presented token in constant time
func (a *AdminAuth) Valid(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	return hmac.Equal(sum[:], a.digest)
}

// Middleware requires "Authorization: Bearer <token>"
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			writeError(w, "admin routes disabled", http.StatusForbidden)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !a.Valid(token) {
			log.Printf("🔐 Admin request rejected from %s", GetClientIP(r))
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
