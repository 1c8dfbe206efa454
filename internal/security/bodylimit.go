package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-bloom/internal/common"
)

// DefaultMaxBody caps request bodies when BodyLimit.Max is unset.
const DefaultMaxBody int64 = 1 << 20

// BodyLimit caps request payloads. Paths under a key of Overrides use that
// limit instead of Max; the longest matching prefix wins. Accepted bodies are
// buffered and replayable, with ContentLength set.
type BodyLimit struct {
	Max       int64
	Overrides map[string]int64
}

func (b BodyLimit) limitFor(path string) int64 {
	limit, matched := b.Max, ""
	for prefix, n := range b.Overrides {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(matched) {
			limit, matched = n, prefix
		}
	}
	if limit <= 0 {
		return DefaultMaxBody
	}
	return limit
}

// Middleware rejects oversized payloads with 413 PAYLOAD_TOO_LARGE.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		limit := b.limitFor(r.URL.Path)
		if r.ContentLength > limit {
			tooLarge(w, limit)
			return
		}

		buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		_ = r.Body.Close()
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			tooLarge(w, limit)
			return
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the limit for this endpoint", map[string]int64{"maxBytes": limit})
}
