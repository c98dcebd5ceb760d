package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// HeaderRetryAfter is the retry-after header (seconds).
const HeaderRetryAfter = "Retry-After"

// maxRetryAfter caps how long a server-requested delay is honoured.
const maxRetryAfter = 2 * time.Minute

// Retrier paces provider calls and retries transient failures.
type Retrier struct {
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
	backoff    func(attempt int) time.Duration
}

// NewRetrier creates a retrier from cfg. A nil logger is replaced by a no-op one.
func NewRetrier(cfg Config, logger *zap.Logger) *Retrier {
	cfg = cfg.withDefaults()
	return &Retrier{
		maxRetries: cfg.MaxRetries,
		limiter:    NewLimiter(cfg.RequestsPerSecond),
		logger:     utils.OrNop(logger),
		backoff:    Backoff,
	}
}

// WithBackoff replaces the backoff schedule.
func (r *Retrier) WithBackoff(fn func(attempt int) time.Duration) *Retrier {
	r.backoff = fn
	return r
}

// Backoff returns 2^attempt + 1 seconds for the 0-based retry attempt.
func Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))+1) * time.Second
}

// Do runs fn until it succeeds, fails permanently, or the retries are used up.
// Every attempt waits on the rate limiter first. op names the call in logs and errors.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if werr := r.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("%s: %w", op, werr)
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if attempt >= r.maxRetries || !IsRetryable(err) {
			break
		}

		delay := r.backoff(attempt)
		if after, ok := retryAfter(err); ok {
			delay = after
		}
		r.logger.Warn("Provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether err is a rate limit, a server error, or a timeout.
func IsRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode returns the HTTP status carried by a provider error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		return 0, false
	}
	secs, perr := strconv.Atoi(apiErr.Response.Header.Get(HeaderRetryAfter))
	if perr != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d, true
}
