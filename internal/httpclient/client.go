// Package httpclient builds the retrying HTTP client shared by the image
// host and video task clients.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Iron-Ham/image2video/internal/logging"
)

const (
	// DefaultMaxAttempts is the total number of tries, first attempt included.
	DefaultMaxAttempts = 3

	// DefaultWaitMin is the first backoff delay.
	DefaultWaitMin = 500 * time.Millisecond

	// DefaultWaitMax caps the backoff delay.
	DefaultWaitMax = 4 * time.Second

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
)

// retryStatuses are the server-side failures worth another attempt.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options configures New.
type Options struct {
	MaxAttempts int
	WaitMin     time.Duration
	WaitMax     time.Duration
	Timeout     time.Duration
	Logger      *logging.Logger
}

// DefaultOptions returns the retry policy used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		WaitMin:     DefaultWaitMin,
		WaitMax:     DefaultWaitMax,
		Timeout:     DefaultTimeout,
	}
}

// Client is an *http.Client whose transport retries. Its Do method is the
// standard one.
type Client struct {
	*http.Client
	rc *retryablehttp.Client
}

// CloseIdleConnections closes idle keep-alive connections of the
// underlying transport.
func (c *Client) CloseIdleConnections() {
	c.rc.HTTPClient.CloseIdleConnections()
}

// New returns a Client that retries transport errors and 500, 502, 503, 504
// responses with exponential backoff, POSTs included. After the last attempt
// the final response is returned as-is so callers can inspect it.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.WaitMin <= 0 {
		opts.WaitMin = def.WaitMin
	}
	if opts.WaitMax < opts.WaitMin {
		opts.WaitMax = max(def.WaitMax, opts.WaitMin)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxAttempts - 1
	rc.RetryWaitMin = opts.WaitMin
	rc.RetryWaitMax = opts.WaitMax
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = CheckRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = opts.Logger.WithComponent("http").Slog()

	return &Client{Client: rc.StandardClient(), rc: rc}
}

// CheckRetry retries on transport errors and on the statuses in retryStatuses.
// Context cancellation is never retried.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return retryStatuses[resp.StatusCode], nil
}
