// Package tenant resolves the shop a request belongs to and carries it in the
// request context.
package tenant

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// DefaultHeader carries the tenant id when the shop is not on a subdomain.
const DefaultHeader = "X-Tenant-ID"

type contextKey struct{}

// Resolver finds the tenant from a header, then from the first label of the
// host below RootDomain, then falls back to DefaultTenant.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
}

// NewResolver returns a resolver. An empty headerName means DefaultHeader.
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.Trim(strings.ToLower(strings.TrimSpace(rootDomain)), "."),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware stores the resolved tenant on the request context. Requests that
// resolve to nothing pass through untouched; pair with RequireTenant to reject
// them.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.DefaultTenant
		}
		if id != "" {
			req = req.WithContext(WithTenant(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// RequireTenant rejects requests that reached it without a resolved tenant.
// Drafts, rates and discounts are all tenant scoped so there is no sensible
// fallback.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, ok := FromContext(req.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "TENANT_REQUIRED", "message": "tenant could not be resolved"},
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the tenant named by the header or subdomain, or "".
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); id != "" {
		return id
	}
	return r.subdomain(hostOnly(req.Host))
}

func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(host)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	if r.RootDomain != "" {
		prefix, ok := strings.CutSuffix(host, "."+r.RootDomain)
		if !ok {
			return ""
		}
		host = prefix
	}
	label, _, _ := strings.Cut(host, ".")
	return strings.TrimSpace(label)
}

// hostOnly strips any port and IPv6 brackets from a Host header value.
func hostOnly(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.Trim(hostport, "[]")
}

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the tenant on ctx. Blank ids count as absent.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(contextKey{}).(string)
	id = strings.TrimSpace(id)
	return id, id != ""
}
