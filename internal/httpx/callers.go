package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/exam-vouchers/internal/orders"
)

type callerKey struct{}

// Callers maps bearer tokens to caller identities.
type Callers struct {
	admin        map[string]bool
	institutions map[string]string
}

func NewCallers(adminTokens []string, institutionTokens map[string]string) Callers {
	c := Callers{admin: map[string]bool{}, institutions: map[string]string{}}
	for _, t := range adminTokens {
		c.admin[t] = true
	}
	for t, name := range institutionTokens {
		c.institutions[t] = name
	}
	return c
}

func (c Callers) resolve(token string) (orders.Caller, bool) {
	if c.admin[token] {
		return orders.Caller{Role: orders.RoleAdmin}, true
	}
	if name, ok := c.institutions[token]; ok {
		return orders.Caller{Role: orders.RoleInstitution, Institution: name}, true
	}
	return orders.Caller{}, false
}

// Middleware attaches the request's Caller. No Authorization header means an
// individual buyer; an unknown token is rejected.
func (c Callers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := orders.Anonymous()
		if h := r.Header.Get("Authorization"); h != "" {
			token, ok := strings.CutPrefix(h, "Bearer ")
			resolved, known := c.resolve(strings.TrimSpace(token))
			if !ok || !known {
				writeJSON(w, http.StatusUnauthorized, map[string]errorBody{"error": {
					Code: "UNAUTHORIZED", En: "Invalid access token", Ar: "رمز الوصول غير صالح",
				}})
				return
			}
			caller = resolved
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func CallerFrom(ctx context.Context) orders.Caller {
	if c, ok := ctx.Value(callerKey{}).(orders.Caller); ok {
		return c
	}
	return orders.Anonymous()
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFrom(r.Context()).IsAdmin() {
			writeJSON(w, http.StatusForbidden, map[string]errorBody{"error": {
				Code: "FORBIDDEN", En: "Admin access required", Ar: "يتطلب صلاحية المسؤول",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
