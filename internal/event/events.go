// Package event defines the observation events emitted around the image2video
// pipeline steps and a synchronous Dispatcher that delivers them.
//
// The event set is fixed: subscribers can only attach to the four names
// below, and anything else is silently ignored.
package event

import "time"

// Event names. These are the only names a Dispatcher accepts.
const (
	BeforeImageUpload     = "before_image_upload"
	AfterImageUpload      = "after_image_upload"
	BeforeVideoGeneration = "before_video_generation"
	AfterVideoGeneration  = "after_video_generation"
)

// EventTypes returns every supported event name in pipeline order.
func EventTypes() []string {
	return []string{
		BeforeImageUpload,
		AfterImageUpload,
		BeforeVideoGeneration,
		AfterVideoGeneration,
	}
}

// IsKnown reports whether name belongs to the fixed event set.
func IsKnown(name string) bool {
	switch name {
	case BeforeImageUpload, AfterImageUpload, BeforeVideoGeneration, AfterVideoGeneration:
		return true
	}
	return false
}

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns one of the event names above.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// BeforeImageUploadEvent is emitted right before image bytes are sent to the image host.
type BeforeImageUploadEvent struct {
	baseEvent
	UserID    string
	ImageSize int // length of the base64 payload
}

// NewBeforeImageUploadEvent creates a BeforeImageUploadEvent.
func NewBeforeImageUploadEvent(userID string, imageSize int) BeforeImageUploadEvent {
	return BeforeImageUploadEvent{
		baseEvent: newBaseEvent(BeforeImageUpload),
		UserID:    userID,
		ImageSize: imageSize,
	}
}

// AfterImageUploadEvent is emitted once the image host returned a URL.
type AfterImageUploadEvent struct {
	baseEvent
	UserID   string
	ImageURL string
}

// NewAfterImageUploadEvent creates an AfterImageUploadEvent.
func NewAfterImageUploadEvent(userID, imageURL string) AfterImageUploadEvent {
	return AfterImageUploadEvent{
		baseEvent: newBaseEvent(AfterImageUpload),
		UserID:    userID,
		ImageURL:  imageURL,
	}
}

// BeforeVideoGenerationEvent is emitted right before a video task is submitted.
type BeforeVideoGenerationEvent struct {
	baseEvent
	UserID   string
	ImageURL string
	Prompt   string
}

// NewBeforeVideoGenerationEvent creates a BeforeVideoGenerationEvent.
func NewBeforeVideoGenerationEvent(userID, imageURL, prompt string) BeforeVideoGenerationEvent {
	return BeforeVideoGenerationEvent{
		baseEvent: newBaseEvent(BeforeVideoGeneration),
		UserID:    userID,
		ImageURL:  imageURL,
		Prompt:    prompt,
	}
}

// AfterVideoGenerationEvent is emitted once the video task API accepted the task.
type AfterVideoGenerationEvent struct {
	baseEvent
	UserID string
	TaskID string
}

// NewAfterVideoGenerationEvent creates an AfterVideoGenerationEvent.
func NewAfterVideoGenerationEvent(userID, taskID string) AfterVideoGenerationEvent {
	return AfterVideoGenerationEvent{
		baseEvent: newBaseEvent(AfterVideoGeneration),
		UserID:    userID,
		TaskID:    taskID,
	}
}
