package lifecycle

import (
	"context"
	"sync"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/logging"
)

// State is a lifecycle state.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitialized   State = "INITIALIZED"
	StateStarted       State = "STARTED"
	StatePaused        State = "PAUSED"
	StateStopped       State = "STOPPED"
)

// Transition names, used in errors and logs.
const (
	OpInitialize = "initialize"
	OpStart      = "start"
	OpPause      = "pause"
	OpResume     = "resume"
	OpStop       = "stop"
)

// HookFunc performs owner-specific work for one transition.
type HookFunc func(ctx context.Context) error

// Hooks holds the owner's transition hooks. Nil hooks are skipped.
type Hooks struct {
	Initialize HookFunc
	Start      HookFunc
	Pause      HookFunc
	Resume     HookFunc
	Stop       HookFunc
}

// Callbacks holds notification callbacks.
type Callbacks struct {
	// OnTransition is called after a state change has been recorded.
	OnTransition func(from, to State)

	// OnHookError is called when a hook fails.
	OnHookError func(op string, err error)
}

type transition struct {
	op   string
	from []State
	to   State
}

var transitions = map[string]transition{
	OpInitialize: {op: OpInitialize, from: []State{StateUninitialized}, to: StateInitialized},
	OpStart:      {op: OpStart, from: []State{StateInitialized}, to: StateStarted},
	OpPause:      {op: OpPause, from: []State{StateStarted}, to: StatePaused},
	OpResume:     {op: OpResume, from: []State{StatePaused}, to: StateStarted},
	OpStop:       {op: OpStop, from: []State{StateInitialized, StateStarted, StatePaused}, to: StateStopped},
}

// Machine is the lifecycle state machine.
type Machine struct {
	hooks     Hooks
	callbacks Callbacks
	logger    *logging.Logger

	mu    sync.Mutex
	state State
}

// NewMachine creates a Machine in StateUninitialized.
func NewMachine(hooks Hooks, callbacks Callbacks, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{
		hooks:     hooks,
		callbacks: callbacks,
		logger:    logger.WithComponent("lifecycle"),
		state:     StateUninitialized,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsActive reports whether the machine is STARTED or PAUSED.
func (m *Machine) IsActive() bool {
	s := m.State()
	return s == StateStarted || s == StatePaused
}

// IsStarted reports whether the machine is STARTED.
func (m *Machine) IsStarted() bool {
	return m.State() == StateStarted
}

// Initialize moves UNINITIALIZED to INITIALIZED.
func (m *Machine) Initialize(ctx context.Context) error {
	return m.apply(ctx, transitions[OpInitialize], m.hooks.Initialize)
}

// Start moves INITIALIZED to STARTED.
func (m *Machine) Start(ctx context.Context) error {
	return m.apply(ctx, transitions[OpStart], m.hooks.Start)
}

// Pause moves STARTED to PAUSED.
func (m *Machine) Pause(ctx context.Context) error {
	return m.apply(ctx, transitions[OpPause], m.hooks.Pause)
}

// Resume moves PAUSED to STARTED.
func (m *Machine) Resume(ctx context.Context) error {
	return m.apply(ctx, transitions[OpResume], m.hooks.Resume)
}

// Stop moves INITIALIZED, STARTED or PAUSED to STOPPED. The state becomes
// STOPPED even when the Stop hook fails; the hook error is returned wrapped.
func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()

	t := transitions[OpStop]
	from := m.state
	if !allowed(t, from) {
		m.mu.Unlock()
		return m.illegal(t.op, from)
	}

	hookErr := m.runHook(ctx, t.op, m.hooks.Stop)
	m.state = t.to
	m.mu.Unlock()

	m.notify(from, t.to)
	if hookErr != nil {
		return errors.Wrap(hookErr, "stop hook failed")
	}
	return nil
}

func (m *Machine) apply(ctx context.Context, t transition, hook HookFunc) error {
	m.mu.Lock()

	from := m.state
	if !allowed(t, from) {
		m.mu.Unlock()
		return m.illegal(t.op, from)
	}

	if err := m.runHook(ctx, t.op, hook); err != nil {
		m.mu.Unlock()
		return err
	}

	m.state = t.to
	m.mu.Unlock()

	m.notify(from, t.to)
	return nil
}

func (m *Machine) runHook(ctx context.Context, op string, hook HookFunc) error {
	if hook == nil {
		return nil
	}
	err := hook(ctx)
	if err == nil {
		return nil
	}

	m.logger.Error("lifecycle hook failed", "transition", op, "error", err.Error())
	if m.callbacks.OnHookError != nil {
		m.callbacks.OnHookError(op, err)
	}
	return err
}

func (m *Machine) illegal(op string, from State) error {
	m.logger.Warn("illegal lifecycle transition", "transition", op, "state", string(from))
	return errors.NewIllegalStateError(op, string(from))
}

func (m *Machine) notify(from, to State) {
	m.logger.Info("lifecycle transition", "from", string(from), "to", string(to))
	if m.callbacks.OnTransition != nil {
		m.callbacks.OnTransition(from, to)
	}
}

func allowed(t transition, s State) bool {
	for _, from := range t.from {
		if from == s {
			return true
		}
	}
	return false
}
