// Package lifecycle provides the start/stop state machine that gates the
// image2video orchestrator.
//
// # States
//
//	UNINITIALIZED --Initialize--> INITIALIZED --Start--> STARTED
//	STARTED --Pause--> PAUSED --Resume--> STARTED
//	INITIALIZED | STARTED | PAUSED --Stop--> STOPPED
//
// Any other transition fails with an *errors.IllegalStateError and leaves
// the state untouched. STOPPED is terminal.
//
// # Hooks
//
// Owners plug behavior into transitions with a [Hooks] struct of closures.
// A hook runs before the new state is recorded; if it fails the transition
// is abandoned, except for Stop, which always ends in STOPPED and reports
// the hook failure to the caller.
//
// # Basic Usage
//
//	m := lifecycle.NewMachine(lifecycle.Hooks{
//	    Initialize: func(ctx context.Context) error { return cfg.Validate() },
//	    Stop:       func(ctx context.Context) error { return client.Close() },
//	}, lifecycle.Callbacks{}, logger)
//
//	if err := m.Initialize(ctx); err != nil {
//	    return err
//	}
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Stop(ctx)
//
// # Thread Safety
//
// [Machine] is safe for concurrent use. Hooks run while the machine's lock
// is held, so they must not call back into the same Machine. OnTransition
// runs after the lock is released.
package lifecycle
