package orchestrator

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/image2video/internal/errors"
)

// MessageType classifies inbound content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message is one inbound chat message.
type Message struct {
	UserID  string      `json:"user_id"`
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	// Attachment is an opaque reference resolved by an attachment.Source.
	Attachment string `json:"attachment,omitempty"`
}

// ReplyKind tells the chat host how to present a reply.
type ReplyKind string

const (
	ReplyText  ReplyKind = "text"
	ReplyError ReplyKind = "error"
)

// Reply is the orchestrator's answer to a Message. Handled is false when the
// message was not part of an image-to-video conversation and the host should
// pass it on.
type Reply struct {
	Kind    ReplyKind `json:"kind,omitempty"`
	Text    string    `json:"text,omitempty"`
	Handled bool      `json:"handled"`
}

// User-facing texts.
const (
	msgAskImage       = "Please send the image you want to animate within 3 minutes"
	msgNeedImage      = "Please send an image file"
	msgNoImageData    = "Failed to get image data. Please try again."
	msgAskPrompt      = "Please enter your desired animation effect description"
	msgLostImage      = "Image data not found. Please start over."
	msgUploadFailed   = "Failed to process image"
	msgGenerateFailed = "Failed to generate video"
	msgTimeoutFormat  = "Operation timed out. Please start over with '%s'."
	msgStartedFormat  = "Video generation started with task ID: %s\nThis may take 10-18 minutes. Please wait..."
)

func textReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text, Handled: true}
}

func errorReply(text string) Reply {
	return Reply{Kind: ReplyError, Text: text, Handled: true}
}

// timeoutError describes a conversation that outlived its window. Its
// message is the reply text.
func timeoutError(trigger string, window time.Duration) *errors.TimeoutError {
	return errors.NewTimeoutError("conversation", window).WithMessage(fmt.Sprintf(msgTimeoutFormat, trigger))
}

func startedReply(taskID string) Reply {
	return textReply(fmt.Sprintf(msgStartedFormat, taskID))
}
