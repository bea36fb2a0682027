// Package videotask submits image-to-video generation tasks to a Kling-style
// API and issues the bearer tokens it requires.
package videotask

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/httpclient"
	"github.com/Iron-Ham/image2video/internal/logging"
)

// Submission defaults used when no Params are configured.
const (
	DefaultModelName = "kling-v1-6"
	DefaultMode      = "pro"
	DefaultDuration  = "10"
	DefaultCfgScale  = 0.8
)

const maxErrorBody = 512

// Doer sends HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Params are the generation settings sent with every task.
type Params struct {
	ModelName string
	Mode      string
	Duration  string
	CfgScale  float64
}

// DefaultParams returns the stock generation settings.
func DefaultParams() Params {
	return Params{
		ModelName: DefaultModelName,
		Mode:      DefaultMode,
		Duration:  DefaultDuration,
		CfgScale:  DefaultCfgScale,
	}
}

type submitRequest struct {
	ModelName string  `json:"model_name"`
	Mode      string  `json:"mode"`
	Duration  string  `json:"duration"`
	Image     string  `json:"image"`
	Prompt    string  `json:"prompt"`
	CfgScale  float64 `json:"cfg_scale"`
}

// Client submits generation tasks.
type Client struct {
	apiURL string
	params Params
	http   Doer
	logger *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithParams overrides the generation settings. Zero fields keep defaults.
func WithParams(p Params) ClientOption {
	return func(c *Client) {
		if p.ModelName != "" {
			c.params.ModelName = p.ModelName
		}
		if p.Mode != "" {
			c.params.Mode = p.Mode
		}
		if p.Duration != "" {
			c.params.Duration = p.Duration
		}
		if p.CfgScale > 0 {
			c.params.CfgScale = p.CfgScale
		}
	}
}

// WithHTTPClient sets the transport used for submissions.
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

// NewClient creates a Client posting to apiURL.
func NewClient(apiURL string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL: apiURL,
		params: DefaultParams(),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		o := httpclient.DefaultOptions()
		o.Logger = c.logger
		c.http = httpclient.New(o)
	}
	c.logger = c.logger.WithComponent("videotask")
	return c
}

// Params returns the generation settings in use.
func (c *Client) Params() Params {
	return c.params
}

// Submit creates a generation task for imageURL and prompt and returns the
// task id. A response with a non-zero code is an AppError carrying the API
// message; network and non-2xx failures are TransportErrors.
func (c *Client) Submit(ctx context.Context, token, imageURL, prompt string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		ModelName: c.params.ModelName,
		Mode:      c.params.Mode,
		Duration:  c.params.Duration,
		Image:     imageURL,
		Prompt:    prompt,
		CfgScale:  c.params.CfgScale,
	})
	if err != nil {
		return "", errors.NewInternalError("marshal task request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewInternalError("create task request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.NewTransportError("task request failed", err).WithEndpoint(c.apiURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTransportError("read task response", err).WithEndpoint(c.apiURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("task rejected",
			"status", resp.StatusCode,
			"body", truncate(string(body), maxErrorBody),
		)
		return "", errors.NewTransportError("task rejected", nil).
			WithEndpoint(c.apiURL).
			WithStatusCode(resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return "", errors.NewAppError("Failed to submit video task", errors.ErrUnexpectedResponse).
			WithOperation("submit_task")
	}

	result := gjson.ParseBytes(body)
	if code := result.Get("code").Int(); code != 0 {
		msg := result.Get("message").String()
		c.logger.Warn("task refused", "code", code, "message", msg)
		return "", errors.NewAppError("Failed to submit video task",
			errors.Wrapf(errors.ErrUnexpectedResponse, "code %d: %s", code, msg)).
			WithOperation("submit_task")
	}

	taskID := result.Get("data.task_id").String()
	if taskID == "" {
		return "", errors.NewAppError("Failed to submit video task", errors.ErrUnexpectedResponse).
			WithOperation("submit_task")
	}

	c.logger.Info("video task submitted", "task_id", taskID, "model", c.params.ModelName)
	return taskID, nil
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
