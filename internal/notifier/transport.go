package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// maxResponseBody caps how much of a vendor response is read for error reporting.
const maxResponseBody = 64 << 10

type httpSender struct {
	client     *http.Client
	maxRetries uint64
	logger     *zap.Logger
}

func newHTTPSender(o Options) *httpSender {
	return &httpSender{client: o.HTTPClient, maxRetries: o.MaxRetries, logger: o.Logger}
}

func (h *httpSender) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, h.maxRetries), ctx)
}

// responseCheck inspects a 2xx response body for vendor level errors.
type responseCheck func(body []byte) error

// do sends the request produced by build. Network errors, 429 and 5xx are
// retried; any other failure is returned as is.
func (h *httpSender) do(ctx context.Context, name string, build func(ctx context.Context) (*http.Request, error), check responseCheck) error {
	op := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.Wrap(err, "send request")
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body)))
		}
		if check != nil {
			if err := check(body); err != nil {
				return backoff.Permanent(err)
			}
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		h.logger.Warn("notification attempt failed, retrying",
			zap.String("notifier", name),
			zap.Duration("backoff", next),
			zap.Error(err))
	}
	err := backoff.RetryNotify(op, h.backOff(ctx), notify)
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Err
	}
	return err
}

// postJSON posts payload as JSON to url.
func (h *httpSender) postJSON(ctx context.Context, name, url string, payload any, check responseCheck) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	return h.do(ctx, name, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, check)
}
