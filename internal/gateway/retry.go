package gateway

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/metrics"
)

// RetryConfig bounds the exponential backoff applied to transient
// provider errors.
type RetryConfig struct {
	// MaxRetries of 0 disables retrying.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxJitter   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < 0 || c.MaxJitter < 0 {
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// Backoff is the wait before retry number attempt (1-based): BaseBackoff
// doubled per earlier retry, capped at MaxBackoff, plus up to MaxJitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := c.BaseBackoff
	for i := 1; i < attempt && d < c.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, c.MaxBackoff)
	if c.MaxJitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(c.MaxJitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// queryWithRetry sends one prompt to b, retrying transient provider errors.
// Each retry is counted and logged against the model.
func (r *Router) queryWithRetry(ctx context.Context, b Backend, model catalog.Model, prompt string) (*Response, error) {
	log := clog.FromContext(ctx).With("model", model.ID)
	for retry := 0; ; retry++ {
		resp, err := b.Query(ctx, model, prompt)
		switch {
		case err == nil:
			return resp, nil
		case !IsTransient(err):
			return nil, err
		case retry == r.Retry.MaxRetries:
			return nil, fmt.Errorf("giving up after %d retries: %w", retry, err)
		}

		wait := r.Retry.Backoff(retry + 1)
		metrics.QueryRetries.WithLabelValues(string(model.Provider)).Inc()
		log.Warnf("transient error from %s (retry %d/%d in %s): %v", model.Provider, retry+1, r.Retry.MaxRetries, wait, err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// IsTransient reports whether err is a rate limit or overload response
// from either provider SDK.
func IsTransient(err error) bool {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return transientStatus(aerr.StatusCode)
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return transientStatus(oerr.StatusCode)
	}
	return false
}

func transientStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
