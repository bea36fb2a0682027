package orchestrator

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/image2video/internal/attachment"
	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/event"
	"github.com/Iron-Ham/image2video/internal/lifecycle"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/Iron-Ham/image2video/internal/pipeline"
	"github.com/Iron-Ham/image2video/internal/session"
)

// DefaultTrigger starts a conversation when no trigger is configured.
const DefaultTrigger = "动起来"

// opHandleEvent names HandleEvent in lifecycle errors.
const opHandleEvent = "handle_event"

// Options configures New.
type Options struct {
	// Config is validated at Initialize. Required.
	Config *config.Config

	// Services overrides the remote clients built from Config.
	Services Services

	// Store holds per-user state. Defaults to a MemoryStore.
	Store session.Store

	// Attachments resolves image references. Defaults to
	// attachment.Default(Config.Attachment.Dir).
	Attachments attachment.Source

	// Callbacks are forwarded to the lifecycle machine.
	Callbacks lifecycle.Callbacks

	Logger *logging.Logger

	// Clock replaces time.Now for session timestamps.
	Clock func() time.Time
}

// Orchestrator drives the per-user image-to-video conversation. All methods
// are safe for concurrent use; messages from the same user are handled one
// at a time.
type Orchestrator struct {
	cfg         *config.Config
	logger      *logging.Logger
	machine     *lifecycle.Machine
	dispatcher  *event.Dispatcher
	tracker     *session.Tracker
	attachments attachment.Source
	trigger     string

	mu       sync.RWMutex
	services Services
	upload   *pipeline.Pipeline
	generate *pipeline.Pipeline

	// inflight is read-held by every HandleEvent past the state check. The
	// stop hook takes it exclusively, so sessions are cleared only after
	// running events have written their last state.
	inflight sync.RWMutex
	stopping bool
}

// New creates an Orchestrator in the UNINITIALIZED state.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("orchestrator")

	trigger := DefaultTrigger
	var timeout time.Duration
	attachDir := ""
	if opts.Config != nil {
		if opts.Config.Session.TriggerPrefix != "" {
			trigger = opts.Config.Session.TriggerPrefix
		}
		timeout = opts.Config.Session.SessionTimeout()
		attachDir = opts.Config.Attachment.Dir
	}

	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}

	attachments := opts.Attachments
	if attachments == nil {
		attachments = attachment.Default(attachDir)
	}

	o := &Orchestrator{
		cfg:         opts.Config,
		logger:      logger,
		dispatcher:  event.NewDispatcher(logger),
		attachments: attachments,
		trigger:     trigger,
		services:    opts.Services,
		tracker: session.NewTracker(store, timeout,
			session.WithClock(opts.Clock),
			session.WithLogger(logger),
		),
	}

	o.machine = lifecycle.NewMachine(lifecycle.Hooks{
		Initialize: o.initialize,
		Start:      o.start,
		Stop:       o.stop,
	}, opts.Callbacks, logger)

	return o
}

// Initialize validates the configuration, builds the remote services unless
// they were injected, and assembles the pipelines. Invalid configuration is
// a ConfigError and leaves the orchestrator UNINITIALIZED.
func (o *Orchestrator) Initialize(ctx context.Context) error { return o.machine.Initialize(ctx) }

// Start allows HandleEvent to process messages.
func (o *Orchestrator) Start(ctx context.Context) error { return o.machine.Start(ctx) }

// Pause suspends message handling; session state is kept.
func (o *Orchestrator) Pause(ctx context.Context) error { return o.machine.Pause(ctx) }

// Resume re-enables message handling after Pause.
func (o *Orchestrator) Resume(ctx context.Context) error { return o.machine.Resume(ctx) }

// Stop closes idle HTTP connections and drops every user's session. The
// orchestrator ends STOPPED even if cleanup fails.
func (o *Orchestrator) Stop(ctx context.Context) error { return o.machine.Stop(ctx) }

// State returns the lifecycle state.
func (o *Orchestrator) State() lifecycle.State {
	return o.machine.State()
}

// Subscribe attaches handler to one of the four pipeline events.
func (o *Orchestrator) Subscribe(eventType string, handler event.Handler) (string, bool) {
	return o.dispatcher.Subscribe(eventType, handler)
}

// Unsubscribe removes a subscription created by Subscribe.
func (o *Orchestrator) Unsubscribe(id string) bool {
	return o.dispatcher.Unsubscribe(id)
}

// Trigger returns the text prefix that starts a conversation.
func (o *Orchestrator) Trigger() string {
	return o.trigger
}

// Phase reports where userID is in the conversation without evicting an
// expired wait.
func (o *Orchestrator) Phase(ctx context.Context, userID string) (session.Phase, error) {
	e, err := o.tracker.Peek(ctx, userID)
	if err != nil {
		return "", err
	}
	return e.Phase, nil
}

func (o *Orchestrator) initialize(_ context.Context) error {
	if o.cfg == nil {
		return errors.NewConfigError("configuration not loaded", errors.ErrMissingConfig)
	}
	if errs := o.cfg.Validate(); len(errs) > 0 {
		return errors.NewConfigError("invalid configuration", config.ValidationErrors(errs)).
			WithKey(errs[0].Field)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.services == nil {
		o.services = NewRemote(o.cfg, o.logger)
	}
	o.upload = NewUploadPipeline(o.services, o.dispatcher, o.logger)
	o.generate = NewGenerationPipeline(o.services, o.dispatcher, o.logger)
	return nil
}

func (o *Orchestrator) start(_ context.Context) error {
	o.logger.Info("accepting messages",
		"trigger", o.trigger,
		"timeout", o.tracker.Timeout().String(),
	)
	return nil
}

func (o *Orchestrator) stop(ctx context.Context) error {
	o.inflight.Lock()
	o.stopping = true
	o.inflight.Unlock()

	o.mu.RLock()
	svc := o.services
	o.mu.RUnlock()

	if c, ok := svc.(interface{ Close() }); ok {
		c.Close()
	}
	if err := o.tracker.ResetAll(ctx); err != nil {
		return errors.Wrap(err, "clear sessions")
	}
	return nil
}

// HandleEvent processes one inbound message and returns the reply for the
// user. It fails with an IllegalStateError unless the orchestrator is
// STARTED. Remote failures never surface as errors; they become replies.
func (o *Orchestrator) HandleEvent(ctx context.Context, msg Message) (Reply, error) {
	if st := o.machine.State(); st != lifecycle.StateStarted {
		return Reply{}, errors.NewIllegalStateError(opHandleEvent, string(st)).WithCause(errors.ErrNotStarted)
	}

	o.inflight.RLock()
	defer o.inflight.RUnlock()
	if o.stopping {
		return Reply{}, errors.NewIllegalStateError(opHandleEvent, string(lifecycle.StateStopped)).
			WithCause(errors.ErrNotStarted)
	}

	if msg.UserID == "" {
		return Reply{}, nil
	}

	unlock := o.tracker.Lock(msg.UserID)
	defer unlock()

	logger := o.logger.WithUser(msg.UserID)

	entry, expired, err := o.tracker.Current(ctx, msg.UserID)
	if err != nil {
		return o.internalError(logger, "load session", err), nil
	}
	if expired {
		return errorReply(errors.UserMessage(timeoutError(o.trigger, o.tracker.Timeout()))), nil
	}

	if msg.Type == MessageText && strings.HasPrefix(msg.Content, o.trigger) {
		if err := o.tracker.Begin(ctx, msg.UserID); err != nil {
			return o.internalError(logger, "begin session", err), nil
		}
		logger.Info("conversation started")
		return textReply(msgAskImage), nil
	}

	switch entry.Phase {
	case session.PhaseAwaitingImage:
		return o.handleImage(ctx, logger, msg, entry), nil
	case session.PhaseAwaitingPrompt:
		return o.handlePrompt(ctx, logger, msg, entry), nil
	default:
		return Reply{}, nil
	}
}

func (o *Orchestrator) handleImage(ctx context.Context, logger *logging.Logger, msg Message, entry session.Entry) Reply {
	if msg.Type != MessageImage {
		return errorReply(msgNeedImage)
	}

	raw, err := o.attachments.Fetch(ctx, msg.Attachment)
	if err != nil || len(raw) == 0 {
		logger.Warn("image data unavailable", "error", errString(err))
		return errorReply(msgNoImageData)
	}

	o.mu.RLock()
	upload := o.upload
	o.mu.RUnlock()

	result := upload.Run(ctx, map[string]any{
		KeyImageData: base64.StdEncoding.EncodeToString(raw),
		KeyUserID:    msg.UserID,
	})

	imageURL, _ := result.GetString(KeyImageURL)
	if result.Failed() || imageURL == "" {
		logger.Warn("image upload failed",
			"run_id", result.MetaString(pipeline.MetaRunID),
			"error", errString(result.Err()),
		)
		if err := o.tracker.Touch(ctx, msg.UserID, entry); err != nil {
			return o.internalError(logger, "touch session", err)
		}
		return errorReply(failureText(result, msgUploadFailed))
	}

	if err := o.tracker.AwaitPrompt(ctx, msg.UserID, imageURL); err != nil {
		return o.internalError(logger, "save session", err)
	}
	logger.Info("image uploaded", "image_url", imageURL)
	return textReply(msgAskPrompt)
}

func (o *Orchestrator) handlePrompt(ctx context.Context, logger *logging.Logger, msg Message, entry session.Entry) Reply {
	if entry.ImageURL == "" {
		if err := o.tracker.Reset(ctx, msg.UserID); err != nil {
			return o.internalError(logger, "reset session", err)
		}
		return errorReply(msgLostImage)
	}

	o.mu.RLock()
	generate := o.generate
	o.mu.RUnlock()

	result := generate.Run(ctx, map[string]any{
		KeyImageURL: entry.ImageURL,
		KeyPrompt:   strings.TrimSpace(msg.Content),
		KeyUserID:   msg.UserID,
	})

	if result.Failed() {
		logger.Warn("video generation failed",
			"run_id", result.MetaString(pipeline.MetaRunID),
			"error", errString(result.Err()),
		)
		if err := o.tracker.Touch(ctx, msg.UserID, entry); err != nil {
			return o.internalError(logger, "touch session", err)
		}
		return errorReply(failureText(result, msgGenerateFailed))
	}

	taskID, _ := result.GetString(KeyTaskID)
	if err := o.tracker.Reset(ctx, msg.UserID); err != nil {
		logger.Warn("failed to clear session", "error", err.Error())
	}
	logger.Info("video task started", "task_id", taskID)
	return startedReply(taskID)
}

func (o *Orchestrator) internalError(logger *logging.Logger, op string, err error) Reply {
	logger.Error("internal error", "op", op, "severity", errors.GetSeverity(err).String(), "error", err.Error())
	return errorReply(errors.GenericUserMessage)
}

// failureText is the error_message recorded by the pipeline handlers, or
// fallback when none was recorded.
func failureText(pc *pipeline.Context, fallback string) string {
	if msg := pc.MetaString(pipeline.MetaErrorMessage); msg != "" {
		return msg
	}
	return fallback
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
