package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/logging"
)

// StepFunc is one unit of work. It returns the context to continue with
// (nil keeps the current one) or an error describing why it could not.
type StepFunc func(ctx context.Context, pc *Context) (*Context, error)

// ErrorHandler recovers from a step failure. It decides what the context
// looks like afterwards; recording err in pc.Errors makes the run stop.
type ErrorHandler func(ctx context.Context, err error, pc *Context) (*Context, error)

type step struct {
	name string
	fn   StepFunc
}

// Pipeline is an ordered list of steps plus a table of error handlers keyed
// by error kind. Configure it once, then call Run any number of times, from
// any number of goroutines.
type Pipeline struct {
	name string
	cfg  pipelineConfig

	mu             sync.RWMutex
	steps          []step
	handlers       map[errors.Kind]ErrorHandler
	defaultHandler ErrorHandler
}

// New creates an empty Pipeline.
func New(name string, opts ...Option) *Pipeline {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = cfg.logger.WithComponent("pipeline")

	return &Pipeline{
		name:     name,
		cfg:      cfg,
		handlers: make(map[errors.Kind]ErrorHandler),
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// AddStep appends a step.
func (p *Pipeline) AddStep(name string, fn StepFunc) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, step{name: name, fn: fn})
	return p
}

// AddErrorHandler registers the handler for kind, replacing any earlier one.
func (p *Pipeline) AddErrorHandler(kind errors.Kind, h ErrorHandler) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
	return p
}

// SetDefaultErrorHandler sets the handler used when no handler is
// registered for an error's kind.
func (p *Pipeline) SetDefaultErrorHandler(h ErrorHandler) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultHandler = h
	return p
}

// StepNames returns the registered step names in execution order.
func (p *Pipeline) StepNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Run executes the steps over a fresh context seeded with initial and
// returns the final context. The outcome is read from the context: a
// failed run has a non-empty Errors.
func (p *Pipeline) Run(ctx context.Context, initial map[string]any) *Context {
	p.mu.RLock()
	steps := make([]step, len(p.steps))
	copy(steps, p.steps)
	p.mu.RUnlock()

	runID := p.cfg.newRunID()
	logger := p.cfg.logger.WithPipeline(p.name, runID)

	pc := NewContext(initial)
	pc.SetMeta(MetaPipelineName, p.name)
	pc.SetMeta(MetaRunID, runID)

	logger.Debug("pipeline run started", "steps", len(steps))

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			pc.AddError(canceledError(p.name, err))
			logger.Warn("pipeline run canceled", "step", s.name, "error", err.Error())
			break
		}

		next, err := p.callStep(ctx, s, pc)
		if err == nil {
			if next != nil {
				pc = next
			}
			continue
		}

		pc = p.handle(ctx, logger.With("step", s.name), err, pc)
		if pc.Failed() {
			logger.Info("pipeline run stopped", "step", s.name, "errors", len(pc.Errors))
			return pc
		}
	}

	if !pc.Failed() {
		logger.Debug("pipeline run completed")
	}
	return pc
}

func canceledError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError("pipeline "+name, 0).WithCause(err)
	}
	return errors.NewInternalError("pipeline "+name+" canceled", errors.Join(errors.ErrCanceled, err))
}

func (p *Pipeline) callStep(ctx context.Context, s step, pc *Context) (next *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = errors.NewInternalError(
				fmt.Sprintf("step %s panicked", s.name),
				fmt.Errorf("%v\n%s", r, debug.Stack()),
			)
		}
	}()
	return s.fn(ctx, pc)
}

func (p *Pipeline) handle(ctx context.Context, logger *logging.Logger, stepErr error, pc *Context) *Context {
	kind := errors.KindOf(stepErr)

	p.mu.RLock()
	h, ok := p.handlers[kind]
	if !ok {
		h = p.defaultHandler
	}
	p.mu.RUnlock()

	if h == nil {
		logger.Error("unhandled step error",
			"kind", kind.String(),
			"severity", errors.GetSeverity(stepErr).String(),
			"error", stepErr.Error(),
		)
		pc.AddError(stepErr)
		return pc
	}

	logger.Debug("handling step error", "kind", kind.String(), "error", stepErr.Error())

	next, err := p.callHandler(ctx, h, stepErr, pc)
	if err != nil {
		logger.Error("error handler failed",
			"kind", kind.String(),
			"error", stepErr.Error(),
			"handler_error", err.Error(),
		)
		pc.AddError(errors.Wrapf(err, "error handler for %s failed", kind))
		return pc
	}
	if next == nil {
		return pc
	}
	return next
}

func (p *Pipeline) callHandler(ctx context.Context, h ErrorHandler, stepErr error, pc *Context) (next *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = errors.NewInternalError("error handler panicked", fmt.Errorf("%v", r))
		}
	}()
	return h(ctx, stepErr, pc)
}
