package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quakecache/internal/models"
)

// UnknownIdentity is used when the request carries no forwarded address.
const UnknownIdentity = "unknown"

// Middleware returns HTTP middleware that enforces limiter. retryAfter is
// advertised to throttled clients; with fixed windows the full window length
// is the worst-case wait.
func Middleware(limiter Limiter, retryAfter time.Duration) func(http.Handler) http.Handler {
	retryAfterSecs := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSecs < 1 {
		retryAfterSecs = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ClientIdentity(r)

			decision := limiter.Admit(r.Context(), identity)

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			if decision.Known {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			} else {
				w.Header().Set("X-RateLimit-Remaining", "unknown")
			}
			if !decision.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			}

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimitExceeded)
				errorResp.Details = map[string]string{"remaining": "0"}
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"identity", identity,
					"limit", decision.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentity returns the whole X-Forwarded-For value, so a proxy chain is
// an identity of its own. Repeated header lines are joined with ", ".
// UnknownIdentity is returned when the header is absent or blank.
func ClientIdentity(r *http.Request) string {
	xff := strings.TrimSpace(strings.Join(r.Header.Values("X-Forwarded-For"), ", "))
	if xff == "" {
		return UnknownIdentity
	}
	return xff
}
