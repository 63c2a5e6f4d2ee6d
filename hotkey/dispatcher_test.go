package hotkey

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"snappad/platform"
)

// fakeRegistrar implements platform.Hotkeys in-process. Combos listed in
// claimed are rejected at Register the way the OS rejects a combination
// another application holds.
type fakeRegistrar struct {
	claimed map[int]bool // vk code -> already claimed

	mu         sync.Mutex
	registered map[int]platform.KeyCombo
	events     chan platform.TriggerEvent
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		claimed:    make(map[int]bool),
		registered: make(map[int]platform.KeyCombo),
		events:     make(chan platform.TriggerEvent, 16),
	}
}

func (f *fakeRegistrar) Start(ctx context.Context) error { return nil }

func (f *fakeRegistrar) Register(id int, combo platform.KeyCombo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[combo.Key] {
		return fmt.Errorf("hotkey already claimed by another application")
	}
	f.registered[id] = combo
	return nil
}

func (f *fakeRegistrar) Unregister(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.registered[id]; !ok {
		return fmt.Errorf("hotkey id %d not registered", id)
	}
	delete(f.registered, id)
	return nil
}

func (f *fakeRegistrar) Events() <-chan platform.TriggerEvent { return f.events }

func (f *fakeRegistrar) trigger(id int) {
	f.events <- platform.TriggerEvent{ID: id}
}

func (f *fakeRegistrar) registeredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestDispatcher_TriggerInvokesHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()

	var mu sync.Mutex
	var fired []string
	handler := func(name string) func() {
		return func() {
			mu.Lock()
			fired = append(fired, name)
			mu.Unlock()
		}
	}

	d := NewDispatcher(reg, []Binding{
		{Name: "save_note", Combo: "ctrl+alt+n", Handler: handler("save_note")},
		{Name: "enhance_prompt", Combo: "ctrl+alt+e", Handler: handler("enhance_prompt")},
	})

	failures, err := d.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	defer d.Stop()

	reg.trigger(2)
	reg.trigger(1)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 2
	})

	mu.Lock()
	assert.Equal(t, []string{"enhance_prompt", "save_note"}, fired)
	mu.Unlock()
}

func TestDispatcher_PartialRegistrationFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()
	vkN, err := platform.VKCode("n")
	require.NoError(t, err)
	reg.claimed[vkN] = true // another application holds ctrl+alt+n

	d := NewDispatcher(reg, []Binding{
		{Name: "toggle_dashboard", Combo: "ctrl+alt+s", Handler: func() {}},
		{Name: "save_note", Combo: "ctrl+alt+n", Handler: func() {}},
	})

	failures, err := d.Start(context.Background())
	require.NoError(t, err)
	defer d.Stop()

	require.Len(t, failures, 1)
	assert.Equal(t, "save_note", failures[0].Name)
	assert.Equal(t, "ctrl+alt+n", failures[0].Combo)
	assert.Error(t, failures[0].Err)

	// The other binding stays active.
	assert.Equal(t, []string{"toggle_dashboard"}, d.ActiveBindings())
	assert.Equal(t, 1, reg.registeredCount())
}

func TestDispatcher_DuplicateCombo(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()
	d := NewDispatcher(reg, []Binding{
		{Name: "first", Combo: "ctrl+alt+s", Handler: func() {}},
		{Name: "second", Combo: "ctrl+alt+s", Handler: func() {}},
	})

	failures, err := d.Start(context.Background())
	require.NoError(t, err)
	defer d.Stop()

	// Only the later duplicate fails; the first registration stands.
	require.Len(t, failures, 1)
	assert.Equal(t, "second", failures[0].Name)
	assert.Contains(t, failures[0].Err.Error(), `already bound to "first"`)
	assert.Equal(t, []string{"first"}, d.ActiveBindings())
}

func TestDispatcher_UnparsableCombo(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()
	d := NewDispatcher(reg, []Binding{
		{Name: "bad", Combo: "ctrl+alt+", Handler: func() {}},
		{Name: "good", Combo: "ctrl+alt+e", Handler: func() {}},
	})

	failures, err := d.Start(context.Background())
	require.NoError(t, err)
	defer d.Stop()

	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Name)
	assert.Equal(t, []string{"good"}, d.ActiveBindings())
}

func TestDispatcher_StopUnregistersAndIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()
	d := NewDispatcher(reg, []Binding{
		{Name: "toggle_dashboard", Combo: "ctrl+alt+s", Handler: func() {}},
	})

	_, err := d.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.registeredCount())

	d.Stop()
	assert.Zero(t, reg.registeredCount())
	assert.Empty(t, d.ActiveBindings())

	d.Stop() // second Stop is a no-op
}

func TestDispatcher_TriggerAfterStopIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()

	var mu sync.Mutex
	count := 0
	d := NewDispatcher(reg, []Binding{
		{Name: "toggle_dashboard", Combo: "ctrl+alt+s", Handler: func() {
			mu.Lock()
			count++
			mu.Unlock()
		}},
	})

	_, err := d.Start(context.Background())
	require.NoError(t, err)
	d.Stop()

	reg.trigger(1)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Zero(t, count)
	mu.Unlock()
}

func TestDispatcher_StopRacesTriggerDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()

	var mu sync.Mutex
	count := 0
	d := NewDispatcher(reg, []Binding{
		{Name: "toggle_dashboard", Combo: "ctrl+alt+s", Handler: func() {
			mu.Lock()
			count++
			mu.Unlock()
		}},
	})

	_, err := d.Start(context.Background())
	require.NoError(t, err)

	reg.trigger(1)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	// Keep triggers flowing while Stop deactivates the binding table.
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		for i := 0; i < 50; i++ {
			select {
			case reg.events <- platform.TriggerEvent{ID: 1}:
			default:
			}
		}
	}()

	d.Stop()
	<-senderDone

	// Handlers never run after Stop returns.
	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, count)
	mu.Unlock()
}

func TestDispatcher_DoubleStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newFakeRegistrar()
	d := NewDispatcher(reg, []Binding{
		{Name: "toggle_dashboard", Combo: "ctrl+alt+s", Handler: func() {}},
	})

	_, err := d.Start(context.Background())
	require.NoError(t, err)
	defer d.Stop()

	_, err = d.Start(context.Background())
	assert.Error(t, err)
}
