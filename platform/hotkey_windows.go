//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"
)

var (
	registerHotKey   = user32.NewProc("RegisterHotKey")
	unregisterHotKey = user32.NewProc("UnregisterHotKey")
	peekMessage      = user32.NewProc("PeekMessageW")
)

const (
	wmHotkey = 0x0312
	pmRemove = 0x0001

	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modWin      = 0x0008
	modNoRepeat = 0x4000
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type hotkeyRequest struct {
	register bool
	id       int
	combo    KeyCombo
	reply    chan error
}

// WindowsHotkeys implements the Hotkeys interface using RegisterHotKey.
// RegisterHotKey binds a hotkey to the calling thread, so all registration
// requests are marshalled onto the single locked OS thread that also runs
// the WM_HOTKEY message loop.
type WindowsHotkeys struct {
	events chan TriggerEvent
	reqs   chan hotkeyRequest
	done   chan struct{}
}

// NewHotkeys creates a new Windows hotkey registrar
func NewHotkeys() Hotkeys {
	return &WindowsHotkeys{
		events: make(chan TriggerEvent, 16),
		reqs:   make(chan hotkeyRequest),
		done:   make(chan struct{}),
	}
}

// Start launches the message loop thread. It returns once the loop is
// servicing requests; the loop exits when ctx is cancelled.
func (h *WindowsHotkeys) Start(ctx context.Context) error {
	go h.runLoop(ctx)
	return nil
}

// Events returns the trigger event channel.
func (h *WindowsHotkeys) Events() <-chan TriggerEvent {
	return h.events
}

// Register claims the combination system-wide. A combination already held
// by another application makes RegisterHotKey fail, which is returned to
// the caller as the per-binding error.
func (h *WindowsHotkeys) Register(id int, combo KeyCombo) error {
	return h.request(hotkeyRequest{register: true, id: id, combo: combo, reply: make(chan error, 1)})
}

// Unregister releases the combination. Unknown ids are ignored.
func (h *WindowsHotkeys) Unregister(id int) error {
	return h.request(hotkeyRequest{register: false, id: id, reply: make(chan error, 1)})
}

func (h *WindowsHotkeys) request(req hotkeyRequest) error {
	select {
	case h.reqs <- req:
	case <-h.done:
		return fmt.Errorf("hotkey loop stopped")
	}
	select {
	case err := <-req.reply:
		return err
	case <-h.done:
		return fmt.Errorf("hotkey loop stopped")
	}
}

func (h *WindowsHotkeys) runLoop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	registered := make(map[int]bool)

	defer func() {
		for id := range registered {
			unregisterHotKey.Call(0, uintptr(id))
		}
	}()

	var m msg
	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.reqs:
			if req.register {
				mods := comboModifiers(req.combo) | modNoRepeat
				r, _, err := registerHotKey.Call(0, uintptr(req.id), uintptr(mods), uintptr(req.combo.Key))
				if r == 0 {
					req.reply <- fmt.Errorf("RegisterHotKey failed: %w", err)
				} else {
					registered[req.id] = true
					req.reply <- nil
				}
			} else {
				if registered[req.id] {
					unregisterHotKey.Call(0, uintptr(req.id))
					delete(registered, req.id)
				}
				req.reply <- nil
			}

		default:
			// Non-blocking peek
			r, _, _ := peekMessage.Call(
				uintptr(unsafe.Pointer(&m)),
				0,
				0,
				0,
				pmRemove,
			)
			if r != 0 {
				if m.message == wmHotkey {
					select {
					case h.events <- TriggerEvent{ID: int(m.wParam)}:
					default:
					}
				}
				continue
			}
			// Small sleep to prevent busy loop
			runtime.Gosched()
		}
	}
}

func comboModifiers(combo KeyCombo) int {
	mods := 0
	if combo.Ctrl {
		mods |= modControl
	}
	if combo.Shift {
		mods |= modShift
	}
	if combo.Alt {
		mods |= modAlt
	}
	if combo.Win {
		mods |= modWin
	}
	return mods
}
