package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerIdempotencyKey    = "Idempotency-Key"
	headerIdempotentReplay  = "Idempotent-Replay"
	maxIdempotencyBody      = 1 << 20 // 1 MB
	maxIdempotencyKeyLength = 255
)

// ResponseStore is the subset of jetstream.KeyValue the idempotency
// middleware needs.
type ResponseStore interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that deduplicates POST/PUT/DELETE requests
// using the Idempotency-Key header and a NATS JetStream KV store. Keys are
// scoped to method and path. Server errors are not stored so the client can
// retry them with the same key.
func Idempotency(kv ResponseStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(headerIdempotencyKey)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLength {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"idempotency key too long"}`))
				return
			}
			key := idempotencyStoreKey(r.Method, r.URL.Path, header)

			entry, err := kv.Get(r.Context(), key)
			switch {
			case err == nil:
				var cached idempotencyEntry
				if err := json.Unmarshal(entry.Value(), &cached); err == nil {
					for k, vals := range cached.Headers {
						for _, v := range vals {
							w.Header().Add(k, v)
						}
					}
					w.Header().Set(headerIdempotentReplay, "true")
					w.WriteHeader(cached.StatusCode)
					_, _ = w.Write(cached.Body)
					return
				}
				slog.WarnContext(r.Context(), "idempotency: corrupt cache entry", "key", header)
			case !errors.Is(err, jetstream.ErrKeyNotFound):
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "key", header, "error", err)
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			data, err := json.Marshal(idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if _, err := kv.Put(r.Context(), key, data); err != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "key", header, "error", err)
			}
		})
	}
}

// idempotencyStoreKey hashes the scoped key into a valid KV key.
func idempotencyStoreKey(method, path, key string) string {
	sum := sha256.Sum256([]byte(method + " " + path + "\n" + key))
	return "idem." + hex.EncodeToString(sum[:])
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
