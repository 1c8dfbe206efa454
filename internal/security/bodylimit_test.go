package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoBody(t *testing.T, limit BodyLimit) http.Handler {
	t.Helper()
	return limit.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), r.ContentLength)
		_, _ = w.Write(data)
	}))
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	rr := httptest.NewRecorder()
	echoBody(t, BodyLimit{Max: 10}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader("hello")))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "hello", rr.Body.String())
}

func TestBodyLimitRejectsOversized(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader("excessive"))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	echoBody(t, BodyLimit{Max: 5}).ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.JSONEq(t, `{"error":{"code":"PAYLOAD_TOO_LARGE","message":"request body exceeds the limit for this endpoint","details":{"maxBytes":5}}}`, rr.Body.String())
}

func TestBodyLimitRejectsContentLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader("content"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	echoBody(t, BodyLimit{Max: 5}).ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitOverrides(t *testing.T) {
	limit := BodyLimit{Max: 5, Overrides: map[string]int64{"/api/v1/drafts": 20, "/api/v1/drafts/restore": 1}}
	require.Equal(t, int64(5), limit.limitFor("/api/v1/quotes"))
	require.Equal(t, int64(20), limit.limitFor("/api/v1/drafts/d-42"))
	require.Equal(t, int64(1), limit.limitFor("/api/v1/drafts/restore"))
	require.Equal(t, DefaultMaxBody, BodyLimit{}.limitFor("/api/v1/quotes"))

	rr := httptest.NewRecorder()
	echoBody(t, limit).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/drafts/d-42", strings.NewReader(`{"employee":"sam"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	echoBody(t, limit).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{"employee":"sam"}`)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitSkipsReads(t *testing.T) {
	rr := httptest.NewRecorder()
	handler := BodyLimit{Max: 1}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/drafts", strings.NewReader("ignored")))
	require.Equal(t, http.StatusNoContent, rr.Code)
}
