// Package hotkey maps named global key bindings onto OS-level hotkey
// registrations and dispatches triggers to their handlers.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"snappad/config"
	"snappad/platform"
)

// Binding ties a logical action name to a key combination and handler.
// Handlers run on the dispatcher's own goroutine, never on the OS message
// loop thread; they must return quickly and hand off slow work.
type Binding struct {
	Name    string
	Combo   string
	Handler func()
}

// RegistrationError reports a single binding that could not be claimed.
// Registration failures are per-binding: the remaining bindings are still
// registered.
type RegistrationError struct {
	Name  string
	Combo string
	Err   error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("hotkey %q (%s): %v", e.Name, e.Combo, e.Err)
}

type registered struct {
	binding Binding
	active  bool
}

// Dispatcher registers bindings with the OS registrar and invokes handlers
// on trigger. The binding table is only mutated during Start and Stop.
type Dispatcher struct {
	registrar platform.Hotkeys
	bindings  []Binding

	mu     sync.Mutex
	byID   map[int]*registered
	stop   chan struct{}
	done   chan struct{}
	active bool
}

// NewDispatcher creates a dispatcher for the given bindings.
func NewDispatcher(registrar platform.Hotkeys, bindings []Binding) *Dispatcher {
	return &Dispatcher{
		registrar: registrar,
		bindings:  bindings,
		byID:      make(map[int]*registered),
	}
}

// Start registers all bindings and begins dispatching triggers. It returns
// one RegistrationError per binding that could not be claimed (duplicate
// combination in the table, unparsable combination, or an OS-level claim
// held by another application); the rest remain active. Whether a failed
// binding is fatal is the caller's decision.
func (d *Dispatcher) Start(ctx context.Context) ([]RegistrationError, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil, fmt.Errorf("dispatcher already started")
	}

	if err := d.registrar.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start hotkey registrar: %w", err)
	}

	var failures []RegistrationError
	seen := make(map[string]string) // combo -> binding name

	for i, b := range d.bindings {
		id := i + 1 // RegisterHotKey ids must be non-zero

		combo, err := parseCombo(b.Combo)
		if err != nil {
			failures = append(failures, RegistrationError{Name: b.Name, Combo: b.Combo, Err: err})
			continue
		}

		if prev, dup := seen[b.Combo]; dup {
			failures = append(failures, RegistrationError{
				Name:  b.Name,
				Combo: b.Combo,
				Err:   fmt.Errorf("combination already bound to %q", prev),
			})
			continue
		}

		if err := d.registrar.Register(id, combo); err != nil {
			failures = append(failures, RegistrationError{Name: b.Name, Combo: b.Combo, Err: err})
			continue
		}

		seen[b.Combo] = b.Name
		d.byID[id] = &registered{binding: b, active: true}
		slog.Info("Registered hotkey", "name", b.Name, "combo", b.Combo)
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.active = true

	go d.dispatch(ctx)

	return failures, nil
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case evt := <-d.registrar.Events():
			// Copy the binding under the lock; Stop mutates the table
			// concurrently with dispatch.
			d.mu.Lock()
			var binding Binding
			if reg, ok := d.byID[evt.ID]; ok && reg.active {
				binding = reg.binding
			}
			d.mu.Unlock()
			if binding.Handler == nil {
				continue
			}
			slog.Debug("Hotkey triggered", "name", binding.Name)
			binding.Handler()
		}
	}
}

// Stop unregisters all active bindings and stops dispatching. Idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false

	for id, reg := range d.byID {
		if !reg.active {
			continue
		}
		if err := d.registrar.Unregister(id); err != nil {
			slog.Warn("Failed to unregister hotkey", "name", reg.binding.Name, "error", err)
		}
		reg.active = false
	}
	close(d.stop)
	done := d.done
	d.mu.Unlock()

	<-done
}

// ActiveBindings returns the names of bindings currently registered.
func (d *Dispatcher) ActiveBindings() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var names []string
	for _, reg := range d.byID {
		if reg.active {
			names = append(names, reg.binding.Name)
		}
	}
	return names
}

func parseCombo(combo string) (platform.KeyCombo, error) {
	parsed, err := config.ParseHotkey(combo)
	if err != nil {
		return platform.KeyCombo{}, err
	}

	vk, err := platform.VKCode(parsed.Key)
	if err != nil {
		return platform.KeyCombo{}, err
	}

	return platform.KeyCombo{
		Ctrl:  parsed.Ctrl,
		Shift: parsed.Shift,
		Alt:   parsed.Alt,
		Win:   parsed.Win,
		Key:   vk,
	}, nil
}
