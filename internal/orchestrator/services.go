// Package orchestrator drives the image-to-video chat flow: a user sends the
// trigger, then an image, then a prompt, and gets back a video task id.
//
// The Orchestrator owns a lifecycle machine, an event dispatcher, the per-user
// session tracker and two pipelines (image_upload and video_generation). The
// remote calls sit behind Services so they can be replaced in tests.
package orchestrator

import (
	"context"

	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/httpclient"
	"github.com/Iron-Ham/image2video/internal/imagehost"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/videotask"
)

// Services are the remote collaborators used by the pipeline steps.
type Services interface {
	// UploadImage hosts a base64-encoded image and returns its public URL.
	UploadImage(ctx context.Context, imageBase64 string) (string, error)

	// IssueToken returns a bearer token for the task API.
	IssueToken(ctx context.Context) (string, error)

	// SubmitVideoTask starts a generation task and returns its id.
	SubmitVideoTask(ctx context.Context, token, imageURL, prompt string) (string, error)
}

// Remote implements Services with the image host and task API clients. Both
// clients share one retrying HTTP client.
type Remote struct {
	http   *httpclient.Client
	images *imagehost.Client
	videos *videotask.Client
	tokens *videotask.TokenIssuer
}

// NewRemote builds the remote services from cfg.
func NewRemote(cfg *config.Config, logger *logging.Logger) *Remote {
	if logger == nil {
		logger = logging.NopLogger()
	}

	hc := httpclient.New(httpclient.Options{
		MaxAttempts: cfg.HTTP.MaxAttempts,
		WaitMin:     cfg.HTTP.RetryWaitMin(),
		WaitMax:     cfg.HTTP.RetryWaitMax(),
		Timeout:     cfg.HTTP.Timeout(),
		Logger:      logger,
	})

	return &Remote{
		http: hc,
		images: imagehost.NewClient(cfg.ImageHostAPIKey,
			imagehost.WithEndpoint(cfg.ImageHost.Endpoint),
			imagehost.WithHTTPClient(hc),
			imagehost.WithLogger(logger),
		),
		videos: videotask.NewClient(cfg.APIURL,
			videotask.WithParams(videotask.Params{
				ModelName: cfg.Video.ModelName,
				Mode:      cfg.Video.Mode,
				Duration:  cfg.Video.Duration,
				CfgScale:  cfg.Video.CfgScale,
			}),
			videotask.WithHTTPClient(hc),
			videotask.WithLogger(logger),
		),
		tokens: videotask.NewTokenIssuer(cfg.KeyID, cfg.Secret),
	}
}

// UploadImage implements Services.
func (r *Remote) UploadImage(ctx context.Context, imageBase64 string) (string, error) {
	return r.images.Upload(ctx, imageBase64)
}

// IssueToken implements Services.
func (r *Remote) IssueToken(ctx context.Context) (string, error) {
	return r.tokens.Issue(ctx)
}

// SubmitVideoTask implements Services.
func (r *Remote) SubmitVideoTask(ctx context.Context, token, imageURL, prompt string) (string, error) {
	return r.videos.Submit(ctx, token, imageURL, prompt)
}

// Close releases idle HTTP connections.
func (r *Remote) Close() {
	r.http.CloseIdleConnections()
}
