package retry

import (
	"context"
	"io"
	"net/http"
	"time"
)

type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
	// MaxRetryAfter caps how long a Retry-After header may delay the next
	// attempt. Zero ignores the header.
	MaxRetryAfter time.Duration
}

type contextKey string

const retryCountContextKey contextKey = "retryCountKey"

func getRetryCount(ctx context.Context) uint {
	v := ctx.Value(retryCountContextKey)

	i, ok := v.(uint)
	if !ok {
		return 0
	}

	return i
}

func setRetryCount(ctx context.Context, retryCount uint) context.Context {
	return context.WithValue(ctx, retryCountContextKey, retryCount)
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retryCount := getRetryCount(request.Context())
	sleep, exceeded := t.retryStrategy().Sleep(retryCount)

	response, err := t.base().RoundTrip(request)
	if err != nil {
		if !exceeded && t.RetryOn != nil && t.RetryOn.CheckError(err) {
			return t.retry(request, retryCount, sleep)
		}
		return nil, err
	}
	if !exceeded && t.RetryOn != nil && t.RetryOn.CheckResponse(response) {
		if t.MaxRetryAfter > 0 {
			if d, ok := RetryAfter(response, time.Now()); ok {
				sleep = min(d, t.MaxRetryAfter)
			}
		}
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
		return t.retry(request, retryCount, sleep)
	}
	return response, nil
}

func (t *Transport) retry(request *http.Request, retryCount uint, sleep time.Duration) (*http.Response, error) {
	timer := time.NewTimer(sleep)
	select {
	case <-request.Context().Done():
		timer.Stop()
		return nil, request.Context().Err()
	case <-timer.C:
	}

	next := request.Clone(setRetryCount(request.Context(), retryCount+1))
	if request.Body != nil && request.Body != http.NoBody {
		if request.GetBody == nil {
			return nil, errBodyNotRewindable
		}
		body, err := request.GetBody()
		if err != nil {
			return nil, err
		}
		next.Body = body
	}
	return t.RoundTrip(next)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}

func (t *Transport) CancelRequest(request *http.Request) {
	type canceler interface {
		CancelRequest(*http.Request)
	}
	if cr, ok := t.base().(canceler); ok {
		cr.CancelRequest(request)
	}
}
