package hipchat

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfter extracts how long to wait before the next call. It checks
// the standard Retry-After header first (seconds or HTTP date), then the
// platform's X-Ratelimit-Reset, which is a unix timestamp. Returns 0 when no
// usable hint is present.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	if retryAfter := h.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if t, err := http.ParseTime(retryAfter); err == nil {
			return positive(t.Sub(now))
		}
	}

	if reset := h.Get("X-Ratelimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			return positive(time.Unix(epoch, 0).Sub(now))
		}
	}
	return 0
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
