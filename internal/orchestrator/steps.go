package orchestrator

import (
	"context"
	"strings"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/event"
	"github.com/Iron-Ham/image2video/internal/pipeline"
)

// Data keys shared by the steps.
const (
	KeyImageData = "image_data"
	KeyImageURL  = "image_url"
	KeyPrompt    = "prompt"
	KeyTaskID    = "task_id"
	KeyUserID    = "user_id"
)

// ValidateImageData checks that image_data is present and non-empty.
func ValidateImageData(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	data, ok := pc.GetString(KeyImageData)
	if !ok {
		return nil, errors.NewValidationError("No image data provided").WithField(KeyImageData)
	}
	if data == "" {
		return nil, errors.NewValidationError("Empty image data").WithField(KeyImageData)
	}
	return pc, nil
}

// UploadImage returns the step that hosts image_data and writes image_url.
func UploadImage(svc Services, d *event.Dispatcher) pipeline.StepFunc {
	return func(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
		data, _ := pc.GetString(KeyImageData)
		userID, _ := pc.GetString(KeyUserID)

		d.Dispatch(event.NewBeforeImageUploadEvent(userID, len(data)))

		url, err := svc.UploadImage(ctx, data)
		if err != nil {
			return nil, errors.NewAppError("Failed to upload image", err).
				WithOperation("upload_image").
				WithRetryable(errors.IsRetryable(err))
		}
		if url == "" {
			return nil, errors.NewAppError("Failed to upload image", errors.ErrUnexpectedResponse).
				WithOperation("upload_image")
		}

		pc.Set(KeyImageURL, url)
		d.Dispatch(event.NewAfterImageUploadEvent(userID, url))
		return pc, nil
	}
}

// ValidatePrompt checks that prompt is present and not blank.
func ValidatePrompt(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	prompt, ok := pc.GetString(KeyPrompt)
	if !ok {
		return nil, errors.NewValidationError("No prompt provided").WithField(KeyPrompt)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.NewValidationError("Empty prompt").WithField(KeyPrompt)
	}
	return pc, nil
}

// GenerateVideo returns the step that submits image_url and prompt as a
// video task and writes task_id. A fresh token is issued per submission.
func GenerateVideo(svc Services, d *event.Dispatcher) pipeline.StepFunc {
	return func(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
		imageURL, _ := pc.GetString(KeyImageURL)
		prompt, _ := pc.GetString(KeyPrompt)
		if imageURL == "" || prompt == "" {
			return nil, errors.NewValidationError("Missing required data for video generation")
		}
		userID, _ := pc.GetString(KeyUserID)

		d.Dispatch(event.NewBeforeVideoGenerationEvent(userID, imageURL, prompt))

		token, err := svc.IssueToken(ctx)
		if err != nil {
			return nil, errors.NewAppError("Failed to submit video task", err).WithOperation("issue_token")
		}

		taskID, err := svc.SubmitVideoTask(ctx, token, imageURL, prompt)
		if err != nil {
			return nil, errors.NewAppError("Failed to submit video task", err).
				WithOperation("submit_task").
				WithRetryable(errors.IsRetryable(err))
		}
		if taskID == "" {
			return nil, errors.NewAppError("Failed to submit video task", errors.ErrUnexpectedResponse).
				WithOperation("submit_task")
		}

		pc.Set(KeyTaskID, taskID)
		d.Dispatch(event.NewAfterVideoGenerationEvent(userID, taskID))
		return pc, nil
	}
}
