package orchestrator

import (
	"context"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/event"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/pipeline"
)

// Pipeline names.
const (
	PipelineImageUpload     = "image_upload"
	PipelineVideoGeneration = "video_generation"
)

// HandleValidationError records err and flags validation_failed.
func HandleValidationError(_ context.Context, err error, pc *pipeline.Context) (*pipeline.Context, error) {
	return recordFailure(pc, err, pipeline.MetaValidationFailed), nil
}

// HandleUploadError records err and flags upload_failed.
func HandleUploadError(_ context.Context, err error, pc *pipeline.Context) (*pipeline.Context, error) {
	return recordFailure(pc, err, pipeline.MetaUploadFailed), nil
}

// HandleGenerationError records err and flags generation_failed.
func HandleGenerationError(_ context.Context, err error, pc *pipeline.Context) (*pipeline.Context, error) {
	return recordFailure(pc, err, pipeline.MetaGenerationFailed), nil
}

// recordFailure appends err, sets flag and stores the text the user may see.
func recordFailure(pc *pipeline.Context, err error, flag string) *pipeline.Context {
	pc.AddError(err)
	pc.SetMeta(flag, true)
	pc.SetMeta(pipeline.MetaErrorMessage, errors.UserMessage(err))
	return pc
}

// NewUploadPipeline builds image_upload: validate_image_data then
// upload_image. Validation errors get the validation handler, anything else
// the upload handler.
func NewUploadPipeline(svc Services, d *event.Dispatcher, logger *logging.Logger) *pipeline.Pipeline {
	return pipeline.New(PipelineImageUpload, pipeline.WithLogger(logger)).
		AddStep("validate_image_data", ValidateImageData).
		AddStep("upload_image", UploadImage(svc, d)).
		AddErrorHandler(errors.KindValidation, HandleValidationError).
		SetDefaultErrorHandler(HandleUploadError)
}

// NewGenerationPipeline builds video_generation: validate_prompt then
// generate_video, with the generation handler as the fallback.
func NewGenerationPipeline(svc Services, d *event.Dispatcher, logger *logging.Logger) *pipeline.Pipeline {
	return pipeline.New(PipelineVideoGeneration, pipeline.WithLogger(logger)).
		AddStep("validate_prompt", ValidatePrompt).
		AddStep("generate_video", GenerateVideo(svc, d)).
		AddErrorHandler(errors.KindValidation, HandleValidationError).
		SetDefaultErrorHandler(HandleGenerationError)
}
