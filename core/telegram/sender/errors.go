package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/netutil"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// backoff decides whether err deserves another attempt and how long to wait.
// Flood errors wait for the interval Telegram asks for.
func backoff(err error, base time.Duration, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		wait := time.Duration(flood.RetryAfter) * time.Second
		if wait <= 0 {
			wait = base
		}
		return min(wait, maxFloodWait), true
	}
	if netutil.ShouldRetry(err) || netutil.ShouldRetryStatus(StatusOf(err)) {
		return base * time.Duration(attempt), true
	}
	return 0, false
}

// Classify maps a send error to a short label for logs and metrics.
func Classify(err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
		opErr  *net.OpError
		alert  tls.AlertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alert):
		return "tls"
	}

	switch status := StatusOf(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// StatusOf extracts the Bot API status code carried by err, or 0.
func StatusOf(err error) int {
	var (
		apiErr *tele.Error
		flood  tele.FloodError
		group  tele.GroupError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &flood):
		return http.StatusTooManyRequests
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &group):
		return http.StatusBadRequest
	}
	return 0
}

// Sanitize renders err with bot tokens redacted.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
