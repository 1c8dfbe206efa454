package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/common"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

func newIdem(t *testing.T) common.Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}
}

func send(h http.Handler, method, path, tenantID, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(common.IdempotencyHeader, key)
	}
	req = req.WithContext(tenant.WithTenant(req.Context(), tenantID))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	calls := 0
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	require.Equal(t, http.StatusCreated, send(h, http.MethodPost, "/api/v1/quotes", "rosebud", "abc").Code)
	rec := send(h, http.MethodPost, "/api/v1/quotes", "rosebud", "abc")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")

	require.Equal(t, http.StatusCreated, send(h, http.MethodPost, "/api/v1/quotes", "tulip", "abc").Code)
	require.Equal(t, http.StatusCreated, send(h, http.MethodPost, "/api/v1/quotes", "rosebud", "").Code)
	require.Equal(t, 3, calls)
}

func TestIdempotencyReleasesOnServerError(t *testing.T) {
	status := http.StatusInternalServerError
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	require.Equal(t, http.StatusInternalServerError, send(h, http.MethodPut, "/api/v1/drafts/d1", "rosebud", "k").Code)
	status = http.StatusOK
	require.Equal(t, http.StatusOK, send(h, http.MethodPut, "/api/v1/drafts/d1", "rosebud", "k").Code)
}

func TestIdempotencyIgnoresReads(t *testing.T) {
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/v1/drafts", "rosebud", "k").Code)
	require.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/v1/drafts", "rosebud", "k").Code)
}
