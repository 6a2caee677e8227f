package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/userspace/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket refilled at RequestsPerWindow per Window
// holding at most Burst tokens.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Rate limit profiles for the different endpoint classes.
var (
	// StrictLimit guards credential endpoints against brute force: 5 per minute.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit covers authenticated writes: 20 per minute.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}

	// LenientLimit covers authenticated reads: 100 per minute.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}

	// PublicLimit covers public, cacheable documents: 1000 per minute.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

// RateLimitProfiles groups the four profiles so they can be configured as a unit.
type RateLimitProfiles struct {
	Strict   RateLimitConfig
	Moderate RateLimitConfig
	Lenient  RateLimitConfig
	Public   RateLimitConfig
}

// DefaultRateLimitProfiles returns the built-in profiles.
func DefaultRateLimitProfiles() RateLimitProfiles {
	return RateLimitProfiles{Strict: StrictLimit, Moderate: ModerateLimit, Lenient: LenientLimit, Public: PublicLimit}
}

// RateLimitProfilesFromEnv returns the default profiles with any
// RATELIMIT_{STRICT,MODERATE,LENIENT,PUBLIC}_{REQUESTS,WINDOW_SEC,BURST}
// overrides applied. End-to-end tests use this to lift the limits.
func RateLimitProfilesFromEnv(lookup func(string) (string, bool)) RateLimitProfiles {
	p := DefaultRateLimitProfiles()
	p.Strict = ParseRateLimitFromEnv(lookup, "STRICT", p.Strict)
	p.Moderate = ParseRateLimitFromEnv(lookup, "MODERATE", p.Moderate)
	p.Lenient = ParseRateLimitFromEnv(lookup, "LENIENT", p.Lenient)
	p.Public = ParseRateLimitFromEnv(lookup, "PUBLIC", p.Public)
	return p
}

// ParseRateLimitFromEnv applies RATELIMIT_{prefix}_* overrides to def.
// Invalid or non-positive values are ignored.
func ParseRateLimitFromEnv(lookup func(string) (string, bool), prefix string, def RateLimitConfig) RateLimitConfig {
	positive := func(name string) (int, bool) {
		v, ok := lookup("RATELIMIT_" + prefix + "_" + name)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil && n > 0
	}

	config := def
	if n, ok := positive("REQUESTS"); ok {
		config.RequestsPerWindow = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		config.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		config.Burst = n
	}
	return config
}

// KeyExtractor groups requests for rate limiting. An empty key means the
// request cannot be attributed.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client address, preferring the first
// X-Forwarded-For hop and then X-Real-IP for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SubjectKeyExtractor extracts the authenticated subject from the request
// context. Returns an empty string for anonymous requests.
func SubjectKeyExtractor(r *http.Request) string {
	subject, _ := SubjectFromContext(r.Context())
	return subject
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// JSONFieldKeyExtractor extracts a top-level string field from a JSON request
// body, for example the login identifier. The body is restored so the handler
// can still decode it.
func JSONFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]any
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		v, _ := fields[fieldName].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// limiterIdleTTL is how long a key may stay unused before its limiter is
// dropped. An evicted key starts again with a full bucket.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter hands out one token bucket per key.
type keyedLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitor
	nextSweep time.Time
}

func newKeyedLimiter(config RateLimitConfig) *keyedLimiter {
	limit := rate.Inf
	if config.RequestsPerWindow > 0 && config.Window > 0 {
		limit = rate.Every(config.Window / time.Duration(config.RequestsPerWindow))
	}
	burst := max(config.Burst, 1)

	ttl := limiterIdleTTL
	if config.Window > ttl {
		ttl = config.Window
	}

	return &keyedLimiter{
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		visitors: make(map[string]*visitor),
	}
}

// reserve takes one token for key. It reports whether the request may
// proceed and, if not, how long until a token is available.
func (kl *keyedLimiter) reserve(key string, now time.Time) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if now.After(kl.nextSweep) {
		for k, v := range kl.visitors {
			if now.Sub(v.lastSeen) > kl.ttl {
				delete(kl.visitors, k)
			}
		}
		kl.nextSweep = now.Add(kl.ttl)
	}

	v, ok := kl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		// Rejected requests must not eat into the bucket.
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimitMiddleware throttles requests per key. Requests without a key are
// let through and logged.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	kl := newKeyedLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			allowed, delay := kl.reserve(key, time.Now())
			if !allowed {
				retryAfter := max(int(math.Ceil(delay.Seconds())), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"route", r.Pattern,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"code": "rate_limited",
					"notifications": []map[string]string{{
						"type":    "error",
						"message": "Too many requests. Please try again later.",
					}},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}

// RateLimitBySubject limits by authenticated subject, falling back to the
// client IP for anonymous requests.
func RateLimitBySubject(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		SubjectKeyExtractor,
		IPKeyExtractor,
	))
}

// RateLimitByIPAndJSONField limits by client IP plus a JSON body field, so
// login attempts are throttled per identifier as well as per address.
func RateLimitByIPAndJSONField(config RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		IPKeyExtractor,
		JSONFieldKeyExtractor(fieldName),
	))
}
