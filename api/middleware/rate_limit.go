package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RateLimitStore is the fixed-window counter surface backing every limiter.
type RateLimitStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles anonymous auth endpoints per client IP and per
// submitted email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		name:       policyName(name, "auth"),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// UserRateLimitPolicy throttles an authenticated surface per user.
type UserRateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

func NewUserRateLimitPolicy(name string, window time.Duration, limit int) UserRateLimitPolicy {
	return UserRateLimitPolicy{name: policyName(name, "user"), window: window, limit: limit}
}

func (p UserRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

// counter is one fixed-window bucket checked for a request.
type counter struct {
	policy  string
	scope   string
	subject string
	limit   int
	window  time.Duration
	// logged in place of subject when the subject is sensitive
	redacted bool
}

func (c counter) key() string {
	return fmt.Sprintf("rl:%s:%s:%s", c.scope, c.policy, c.subject)
}

// AuthRateLimit checks the IP bucket first and then, when the body carries an
// email, the email bucket. The body is restored for the next handler.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				c := counter{policy: policy.name, scope: "ip", subject: ip, limit: policy.ipLimit, window: policy.window}
				if !enforce(ctx, w, store, logg, c) {
					return
				}
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := normalizeEmail(extractEmail(body)); email != "" {
					c := counter{policy: policy.name, scope: "email", subject: hashValue(email), limit: policy.emailLimit, window: policy.window, redacted: true}
					if !enforce(ctx, w, store, logg, c) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserRateLimit must run after Auth; requests without a user pass through.
func UserRateLimit(policy UserRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID != "" {
				c := counter{policy: policy.name, scope: "user", subject: userID, limit: policy.limit, window: policy.window}
				if !enforce(r.Context(), w, store, logg, c) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// enforce increments the bucket and writes the error response when the request
// must stop. A store failure rejects the request with a dependency error.
func enforce(ctx context.Context, w http.ResponseWriter, store RateLimitStore, logg *logger.Logger, c counter) bool {
	count, err := store.IncrWithTTL(ctx, c.key(), c.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
		return false
	}
	if count <= int64(c.limit) {
		return true
	}

	if logg != nil {
		fields := map[string]any{
			"scope":          c.scope,
			"policy":         c.policy,
			"attempts":       count,
			"limit":          c.limit,
			"window_seconds": int(c.window.Seconds()),
		}
		if c.redacted {
			fields["subject_hash"] = c.subject
		} else {
			fields["subject"] = c.subject
		}
		logg.Warn(logg.WithFields(ctx, fields), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(c.window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return false
}

func policyName(name, fallback string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	return name
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
