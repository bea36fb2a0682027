package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/Iron-Ham/image2video/internal/errors"
)

func started(t *testing.T, hooks Hooks) *Machine {
	t.Helper()

	m := NewMachine(hooks, Callbacks{}, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	return m
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(Hooks{}, Callbacks{}, nil)

	if m.State() != StateUninitialized {
		t.Errorf("State() = %s, want %s", m.State(), StateUninitialized)
	}
	if m.IsActive() {
		t.Error("IsActive() = true for a new machine")
	}
}

func TestMachine_HappyPath(t *testing.T) {
	ctx := context.Background()

	var transitions []string
	m := NewMachine(Hooks{}, Callbacks{
		OnTransition: func(from, to State) {
			transitions = append(transitions, string(from)+"->"+string(to))
		},
	}, nil)

	steps := []struct {
		name   string
		run    func(context.Context) error
		want   State
		active bool
	}{
		{"initialize", m.Initialize, StateInitialized, false},
		{"start", m.Start, StateStarted, true},
		{"pause", m.Pause, StatePaused, true},
		{"resume", m.Resume, StateStarted, true},
		{"stop", m.Stop, StateStopped, false},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			t.Fatalf("%s() = %v", step.name, err)
		}
		if m.State() != step.want {
			t.Errorf("after %s State() = %s, want %s", step.name, m.State(), step.want)
		}
		if m.IsActive() != step.active {
			t.Errorf("after %s IsActive() = %v, want %v", step.name, m.IsActive(), step.active)
		}
	}

	if len(transitions) != 5 {
		t.Errorf("OnTransition called %d times, want 5: %v", len(transitions), transitions)
	}
}

func TestMachine_FromUninitializedOnlyInitialize(t *testing.T) {
	ctx := context.Background()

	ops := map[string]func(*Machine) error{
		"start":  func(m *Machine) error { return m.Start(ctx) },
		"pause":  func(m *Machine) error { return m.Pause(ctx) },
		"resume": func(m *Machine) error { return m.Resume(ctx) },
		"stop":   func(m *Machine) error { return m.Stop(ctx) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			m := NewMachine(Hooks{}, Callbacks{}, nil)
			err := op(m)

			var ise *apperrors.IllegalStateError
			if !errors.As(err, &ise) {
				t.Fatalf("%s() error = %v, want IllegalStateError", name, err)
			}
			if ise.State != string(StateUninitialized) {
				t.Errorf("IllegalStateError.State = %q, want %q", ise.State, StateUninitialized)
			}
			if m.State() != StateUninitialized {
				t.Errorf("State() = %s, want unchanged %s", m.State(), StateUninitialized)
			}
		})
	}

	m := NewMachine(Hooks{}, Callbacks{}, nil)
	if err := m.Initialize(ctx); err != nil {
		t.Errorf("Initialize() = %v, want nil", err)
	}
}

func TestMachine_IllegalTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("initialize twice", func(t *testing.T) {
		m := started(t, Hooks{})
		if err := m.Initialize(ctx); apperrors.KindOf(err) != apperrors.KindIllegalState {
			t.Errorf("Initialize() from STARTED = %v, want illegal state", err)
		}
		if m.State() != StateStarted {
			t.Errorf("State() = %s, want %s", m.State(), StateStarted)
		}
	})

	t.Run("resume while started", func(t *testing.T) {
		m := started(t, Hooks{})
		if err := m.Resume(ctx); apperrors.KindOf(err) != apperrors.KindIllegalState {
			t.Errorf("Resume() from STARTED = %v, want illegal state", err)
		}
	})

	t.Run("stopped is terminal", func(t *testing.T) {
		m := started(t, Hooks{})
		if err := m.Stop(ctx); err != nil {
			t.Fatalf("Stop() = %v", err)
		}
		for name, op := range map[string]func(context.Context) error{
			"start": m.Start, "stop": m.Stop, "initialize": m.Initialize,
		} {
			if err := op(ctx); apperrors.KindOf(err) != apperrors.KindIllegalState {
				t.Errorf("%s() from STOPPED = %v, want illegal state", name, err)
			}
		}
	})

	t.Run("stop from initialized", func(t *testing.T) {
		m := NewMachine(Hooks{}, Callbacks{}, nil)
		_ = m.Initialize(ctx)
		if err := m.Stop(ctx); err != nil {
			t.Errorf("Stop() from INITIALIZED = %v, want nil", err)
		}
		if m.State() != StateStopped {
			t.Errorf("State() = %s, want %s", m.State(), StateStopped)
		}
	})
}

func TestMachine_HookFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	hookErr := errors.New("missing api_url")

	var failedOp string
	m := NewMachine(Hooks{
		Initialize: func(context.Context) error { return hookErr },
	}, Callbacks{
		OnHookError: func(op string, err error) { failedOp = op },
	}, nil)

	err := m.Initialize(ctx)
	if !errors.Is(err, hookErr) {
		t.Fatalf("Initialize() = %v, want %v", err, hookErr)
	}
	if m.State() != StateUninitialized {
		t.Errorf("State() = %s, want %s", m.State(), StateUninitialized)
	}
	if failedOp != OpInitialize {
		t.Errorf("OnHookError op = %q, want %q", failedOp, OpInitialize)
	}
}

func TestMachine_HookRunsBeforeStateWrite(t *testing.T) {
	var m *Machine
	var seen State
	m = NewMachine(Hooks{
		Start: func(context.Context) error {
			seen = m.state
			return nil
		},
	}, Callbacks{}, nil)

	_ = m.Initialize(context.Background())
	_ = m.Start(context.Background())

	if seen != StateInitialized {
		t.Errorf("state during Start hook = %s, want %s", seen, StateInitialized)
	}
}

func TestMachine_StopAlwaysEndsStopped(t *testing.T) {
	teardown := errors.New("close idle connections failed")
	m := started(t, Hooks{
		Stop: func(context.Context) error { return teardown },
	})

	err := m.Stop(context.Background())
	if !errors.Is(err, teardown) {
		t.Errorf("Stop() = %v, want wrapped %v", err, teardown)
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %s, want %s", m.State(), StateStopped)
	}
}

func TestMachine_ConcurrentTransitions(t *testing.T) {
	m := NewMachine(Hooks{}, Callbacks{}, nil)
	_ = m.Initialize(context.Background())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Start(context.Background()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d concurrent Start calls succeeded, want exactly 1", succeeded)
	}
}
