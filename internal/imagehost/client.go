// Package imagehost uploads images to an ImgBB-compatible hosting service and
// returns their public URL.
package imagehost

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/httpclient"
	"github.com/Iron-Ham/image2video/internal/logging"
)

// DefaultEndpoint is the ImgBB upload API.
const DefaultEndpoint = "https://api.imgbb.com/1/upload"

// maxErrorBody bounds how much of a failed response is kept for logs.
const maxErrorBody = 512

// Doer sends HTTP requests. *http.Client and *httpclient.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client uploads base64-encoded images.
type Client struct {
	apiKey   string
	endpoint string
	http     Doer
	logger   *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the transport used for uploads.
func WithHTTPClient(d Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client authenticating with apiKey. Without
// WithHTTPClient it uses a retrying client with the default policy.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		o := httpclient.DefaultOptions()
		o.Logger = c.logger
		c.http = httpclient.New(o)
	}
	c.logger = c.logger.WithComponent("imagehost")
	return c
}

// Endpoint returns the upload URL in use.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload posts the base64 image as form fields key and image and returns the
// hosted URL from data.url. Network and non-2xx failures are
// TransportErrors; a response without success=true or without a URL is an
// AppError wrapping ErrUnexpectedResponse.
func (c *Client) Upload(ctx context.Context, imageBase64 string) (string, error) {
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", imageBase64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewInternalError("create upload request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.NewTransportError("upload request failed", err).WithEndpoint(c.endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTransportError("read upload response", err).WithEndpoint(c.endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("upload rejected",
			"status", resp.StatusCode,
			"body", truncate(string(body), maxErrorBody),
		)
		return "", errors.NewTransportError("upload rejected", nil).
			WithEndpoint(c.endpoint).
			WithStatusCode(resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return "", errors.NewAppError("Failed to upload image", errors.ErrUnexpectedResponse).
			WithOperation("upload_image")
	}

	result := gjson.ParseBytes(body)
	link := result.Get("data.url").String()
	if !result.Get("success").Bool() || link == "" {
		c.logger.Warn("upload response without url",
			"success", result.Get("success").Bool(),
			"error", result.Get("error.message").String(),
		)
		return "", errors.NewAppError("Failed to upload image", errors.ErrUnexpectedResponse).
			WithOperation("upload_image")
	}

	c.logger.Debug("image uploaded", "url", link, "size", len(imageBase64))
	return link, nil
}

// CloseIdleConnections releases idle keep-alive connections when the
// transport supports it.
func (c *Client) CloseIdleConnections() {
	if ci, ok := c.http.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
