package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/r2blaze/r2blaze-backend/api/responses"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	pkgredis "github.com/r2blaze/r2blaze-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 200
)

// storedResponse is the redis value kept per key. Body is base64 in JSON.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

type idempotencyGate struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency replays the stored response when a request repeats its
// Idempotency-Key with the same body. Requests without the header pass
// through. Only 2xx responses are stored so a rejected initiate can be
// retried under the same key. Redis errors degrade to a plain pass-through.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	gate := &idempotencyGate{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, clientKey)
			fingerprint := fingerprintBody(body)

			if prior := gate.lookup(ctx, key); prior != nil {
				if prior.Fingerprint != fingerprint {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			rec := &captureRecorder{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status < 200 || status >= 300 {
				return
			}
			gate.remember(ctx, key, storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
		})
	}
}

func (g *idempotencyGate) lookup(ctx context.Context, key string) *storedResponse {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		g.warn(ctx, "idempotency.lookup_failed", err)
		return nil
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		g.warn(ctx, "idempotency.record_corrupt", err)
		return nil
	}
	return &prior
}

// remember uses SETNX so a concurrent duplicate that finished first keeps
// its response.
func (g *idempotencyGate) remember(ctx context.Context, key string, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		g.warn(ctx, "idempotency.encode_failed", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), g.ttl); err != nil {
		g.warn(ctx, "idempotency.store_failed", err)
	}
}

func (g *idempotencyGate) warn(ctx context.Context, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), msg)
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// captureRecorder keeps a copy of the body so a successful response can be
// stored after the handler returns.
type captureRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (c *captureRecorder) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}
