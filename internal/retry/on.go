package retry

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

type On struct {
	_5xx           bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	rateLimited    bool
	statusCodes    []int
}

// NewDefaultRetryOn retries what a design-export API or a controller callback
// can recover from: gateway errors, throttling and dropped connections.
func NewDefaultRetryOn() *On {
	return &On{
		_5xx:           false,
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		rateLimited:    true,
		statusCodes:    []int{},
	}
}

func NewRetryOnFromString(s string) (*On, error) {
	o := &On{}
	for _, s := range strings.Split(s, ",") {
		switch strings.TrimSpace(s) {
		case "5xx":
			o._5xx = true
		case "gateway-error":
			o.gatewayError = true
		case "connect-failure":
			o.connectFailure = true
		case "retriable-4xx":
			o.retriable4xx = true
		case "rate-limited":
			o.rateLimited = true
		default:
			statusCode, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, xerrors.Errorf("invalid retryOn: %s", s)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

// copy from https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (o *On) CheckResponse(response *http.Response) bool {
	if (o._5xx && response.StatusCode >= 500 && response.StatusCode < 600) ||
		(o.gatewayError && response.StatusCode >= 502 && response.StatusCode < 505) ||
		(o.retriable4xx && response.StatusCode == http.StatusConflict) ||
		(o.rateLimited && response.StatusCode == http.StatusTooManyRequests) {
		return true
	}

	for _, i := range o.statusCodes {
		if i == response.StatusCode {
			return true
		}
	}

	return false
}

func (o *On) CheckError(err error) bool {
	type temporary interface{ Temporary() bool }
	var terr temporary
	if (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		// ref https://www.envoyproxy.io/docs/envoy/latest/configuration/http/http_filters/router_filter#:~:text=Envoy%20will%20attempt%20a%20retry%20if%20the%20upstream%20server%20responds%20with%20any%205xx%20response%20code%2C%20or%20does%20not%20respond%20at%20all%20(disconnect/reset/read%20timeout).%20(Includes%20connect%2Dfailure%20and%20refused%2Dstream)
		if o.connectFailure || o._5xx {
			return true
		}
	}
	return false
}

// RetryAfter parses the Retry-After header in either of its forms,
// delay-seconds or an HTTP date.
func RetryAfter(response *http.Response, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(response.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
