package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/tenant"
)

func TestResolverPrefersHeader(t *testing.T) {
	r := tenant.NewResolver("", "bloom.shop", "")
	req := httptest.NewRequest(http.MethodGet, "http://rosebud.bloom.shop/api/v1/quotes", nil)
	require.Equal(t, "rosebud", r.Resolve(req))

	req.Header.Set("X-Tenant-ID", " tulip ")
	require.Equal(t, "tulip", r.Resolve(req))
}

func TestResolverSubdomain(t *testing.T) {
	r := tenant.NewResolver("X-Shop", "bloom.shop", "")
	cases := map[string]string{
		"rosebud.bloom.shop:8080": "rosebud",
		"bloom.shop":              "",
		"other.example.com":       "",
		"[::1]:8080":              "",
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		require.Equal(t, want, r.Resolve(req), host)
	}
}

func TestMiddlewareDefaultTenantAndRequire(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = tenant.FromContext(req.Context())
	})

	withDefault := tenant.NewResolver("", "", "main").Middleware(tenant.RequireTenant(inner))
	rec := httptest.NewRecorder()
	withDefault.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "localhost", seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = ""
	rec = httptest.NewRecorder()
	withDefault.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "main", seen)

	seen = ""
	strict := tenant.NewResolver("", "bloom.shop", "").Middleware(tenant.RequireTenant(inner))
	rec = httptest.NewRecorder()
	strict.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://bloom.shop/", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "TENANT_REQUIRED")
	require.Empty(t, seen)
}

func TestPrefixKey(t *testing.T) {
	require.Equal(t, "rosebud:tax:rates", tenant.PrefixKey("rosebud", "tax:rates"))
	require.Equal(t, "tax:rates", tenant.PrefixKey("", "tax:rates"))
}
