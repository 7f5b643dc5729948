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
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	mutationReplayTTL = 24 * time.Hour
	checkoutReplayTTL = 7 * 24 * time.Hour
	inFlightClaimTTL  = 2 * time.Minute
)

// replayWindows lists the routes that require an Idempotency-Key, keyed by
// method and chi route pattern, with how long a finished response is replayed.
var replayWindows = map[string]time.Duration{
	http.MethodPost + " /api/v1/checkout":                     checkoutReplayTTL,
	http.MethodPut + " /api/v1/cart":                          mutationReplayTTL,
	http.MethodPatch + " /api/v1/admin/orders/{orderId}/status": mutationReplayTTL,
}

func replayWindow(method, pattern string) (time.Duration, bool) {
	ttl, ok := replayWindows[method+" "+pattern]
	return ttl, ok
}

const (
	stateInFlight = "in_flight"
	stateDone     = "done"
)

// storedResponse is written as an in-flight claim before the handler runs and
// overwritten with the captured response once it returns.
type storedResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

var (
	errKeyMissing    = pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	errKeyInFlight   = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress")
	errKeyMismatched = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// Idempotency makes the routes in replayWindows safe to retry. The first
// request for a user, route and key runs; later ones with the same body get
// its response replayed, and duplicates arriving while it runs are rejected.
// 5xx responses are not kept so the client can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := replayWindow(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := r.Header.Get(idempotencyHeader)
			if clientKey == "" {
				fail(errKeyMissing)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			entry := idempotencyEntry{
				store:       store,
				logg:        logg,
				key:         store.IdempotencyKey(requestScope(r), clientKey),
				fingerprint: fingerprint(body),
			}
			won, err := entry.claim(ctx)
			if err != nil {
				fail(err)
				return
			}
			if !won {
				prior, err := entry.load(ctx)
				if err != nil {
					fail(err)
					return
				}
				prior.replay(w)
				return
			}
			entry.run(ctx, next, w, r, ttl)
		})
	}
}

type idempotencyEntry struct {
	store       pkgredis.IdempotencyStore
	logg        *logger.Logger
	key         string
	fingerprint string
}

func (e idempotencyEntry) claim(ctx context.Context) (bool, error) {
	raw, _ := json.Marshal(storedResponse{State: stateInFlight, Fingerprint: e.fingerprint})
	won, err := e.store.SetNX(ctx, e.key, string(raw), inFlightClaimTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return won, nil
}

// load returns the finished response another request stored under the key.
func (e idempotencyEntry) load(ctx context.Context) (*storedResponse, error) {
	raw, err := e.store.Get(ctx, e.key)
	if errors.Is(err, pkgredis.Nil) {
		// claim expired between SetNX and Get
		return nil, errKeyInFlight
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	switch {
	case prior.Fingerprint != e.fingerprint:
		return nil, errKeyMismatched
	case prior.State != stateDone:
		return nil, errKeyInFlight
	}
	return &prior, nil
}

func (e idempotencyEntry) run(ctx context.Context, next http.Handler, w http.ResponseWriter, r *http.Request, ttl time.Duration) {
	bg := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			e.warn(bg, "release idempotency key", e.store.Del(bg, e.key))
			panic(p)
		}
	}()

	capture := &capturingWriter{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		e.warn(bg, "release idempotency key", e.store.Del(bg, e.key))
		return
	}
	raw, err := json.Marshal(storedResponse{
		State:       stateDone,
		Fingerprint: e.fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		e.warn(bg, "encode idempotency record", err)
		return
	}
	e.warn(bg, "store idempotency record", e.store.Set(bg, e.key, string(raw), ttl))
}

func (e idempotencyEntry) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil || err == nil {
		return
	}
	e.logg.Error(e.logg.WithField(ctx, "idempotency_key", e.key), msg, err)
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// requestScope keeps keys from colliding across users and routes.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capturingWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
