// Package coordinator wires the clipboard monitor, hotkey dispatcher,
// note store, and enhancement worker together behind a single façade, and
// funnels every cross-thread event into one loop so UI collaborators only
// ever see ordered notifications.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"snappad/clipboard"
	"snappad/config"
	"snappad/enhance"
	"snappad/hotkey"
	"snappad/platform"
	"snappad/storage"
)

// Logical binding names. The config maps each to a key combination.
const (
	BindingToggleDashboard = "toggle_dashboard"
	BindingSaveNote        = "save_note"
	BindingEnhancePrompt   = "enhance_prompt"
)

// defaultNotePriority is used when a note is captured via hotkey, where
// no priority picker is available.
const defaultNotePriority = 3

type event interface{}

type evClipboardChanged struct{}
type evNotesChanged struct{}
type evToggleDashboard struct{}
type evHotkey struct{ name string }
type evEnhanceResult struct{ result enhance.Result }
type evRegistrationFailed struct {
	binding string
	reason  string
}
type evShutdown struct{}

// Coordinator owns the background workers' lifecycles and is the only
// component that touches more than one of them.
type Coordinator struct {
	cfg        *config.Config
	store      *storage.DB
	history    *clipboard.History
	monitor    *clipboard.Monitor
	dispatcher *hotkey.Dispatcher
	worker     *enhance.Worker

	events chan event

	subMu   sync.Mutex
	subs    map[int]chan Notification
	nextSub int

	cancel   context.CancelFunc
	loopDone chan struct{}
	pumpDone chan struct{}
	started  bool
}

// New builds a coordinator from its collaborators. The clipboard and
// hotkey registrar are interfaces so tests can substitute fakes.
func New(cfg *config.Config, store *storage.DB, clip platform.Clipboard, registrar platform.Hotkeys, completer enhance.Completer) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		store:   store,
		history: clipboard.NewHistory(cfg.Clipboard.HistorySize),
		worker:  enhance.NewWorker(completer, cfg.AITimeout()),
		events:  make(chan event, 64),
		subs:    make(map[int]chan Notification),
	}

	c.monitor = clipboard.NewMonitor(clip, c.history, cfg.PollInterval(), func(string) {
		c.post(evClipboardChanged{})
	})

	c.dispatcher = hotkey.NewDispatcher(registrar, []hotkey.Binding{
		{Name: BindingToggleDashboard, Combo: cfg.Hotkeys.ToggleDashboard, Handler: func() { c.post(evHotkey{BindingToggleDashboard}) }},
		{Name: BindingSaveNote, Combo: cfg.Hotkeys.SaveNote, Handler: func() { c.post(evHotkey{BindingSaveNote}) }},
		{Name: BindingEnhancePrompt, Combo: cfg.Hotkeys.EnhancePrompt, Handler: func() { c.post(evHotkey{BindingEnhancePrompt}) }},
	})

	return c
}

// Start brings up the clipboard monitor, hotkey dispatcher, and
// enhancement result pump. Hotkey registration failures are non-fatal
// unless the config marks hotkeys as required; either way each failure is
// reported per-binding through the notification channel.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.started {
		return fmt.Errorf("coordinator already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.loopDone = make(chan struct{})
	c.pumpDone = make(chan struct{})

	go c.loop()
	go c.pumpResults()

	c.monitor.Start(ctx)

	failures, err := c.dispatcher.Start(ctx)
	if err != nil {
		c.stopLoops()
		return fmt.Errorf("failed to start hotkey dispatcher: %w", err)
	}
	for _, f := range failures {
		slog.Warn("Hotkey registration failed", "name", f.Name, "combo", f.Combo, "error", f.Err)
		c.post(evRegistrationFailed{binding: f.Name, reason: f.Err.Error()})
	}
	if len(failures) > 0 && c.cfg.Hotkeys.Required {
		c.Stop()
		return fmt.Errorf("required hotkeys could not be registered: %v", failures[0])
	}

	c.started = true
	slog.Info("Coordinator started",
		"history_size", c.cfg.Clipboard.HistorySize,
		"poll_interval", c.cfg.PollInterval(),
		"active_hotkeys", c.dispatcher.ActiveBindings())
	return nil
}

// Stop shuts the workers down in reverse start order and closes all
// subscriber channels. Safe to call once after Start.
func (c *Coordinator) Stop() {
	c.dispatcher.Stop()
	c.monitor.Stop()
	c.stopLoops()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subMu.Unlock()

	c.started = false
	slog.Info("Coordinator stopped")
}

func (c *Coordinator) stopLoops() {
	c.worker.Close()
	<-c.pumpDone

	select {
	case c.events <- evShutdown{}:
	case <-c.loopDone:
	}
	<-c.loopDone

	c.cancel()
}

// post enqueues an event for the coordinator loop. Events from a single
// source stay ordered; the queue is large enough that producers never
// stall behind the loop in practice, and shutdown drops instead of hanging.
func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.loopDone:
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)

	for ev := range c.events {
		switch ev := ev.(type) {
		case evClipboardChanged:
			c.publish(Notification{Kind: ClipboardHistoryChanged})

		case evNotesChanged:
			c.publish(Notification{Kind: NoteStoreChanged})

		case evToggleDashboard:
			c.publish(Notification{Kind: ToggleDashboard})

		case evHotkey:
			c.handleHotkey(ev.name)

		case evEnhanceResult:
			c.handleEnhanceResult(ev.result)

		case evRegistrationFailed:
			c.publish(Notification{
				Kind:    HotkeyRegistrationFailed,
				Binding: ev.binding,
				Reason:  ev.reason,
			})

		case evShutdown:
			return
		}
	}
}

func (c *Coordinator) pumpResults() {
	defer close(c.pumpDone)

	for res := range c.worker.Results() {
		select {
		case c.events <- evEnhanceResult{result: res}:
		case <-c.loopDone:
			return
		}
	}
}

func (c *Coordinator) handleHotkey(name string) {
	switch name {
	case BindingToggleDashboard:
		c.publish(Notification{Kind: ToggleDashboard})

	case BindingSaveNote:
		head, ok := c.history.Head()
		if !ok {
			slog.Warn("Save-note hotkey fired with empty clipboard history")
			return
		}
		if _, err := c.store.CreateNote(context.Background(), head.Content, defaultNotePriority); err != nil {
			slog.Error("Failed to save clipboard as note", "error", err)
			return
		}
		c.publish(Notification{Kind: NoteStoreChanged})

	case BindingEnhancePrompt:
		head, ok := c.history.Head()
		if !ok {
			slog.Warn("Enhance hotkey fired with empty clipboard history")
			return
		}
		c.worker.Submit(enhance.NewRequest(enhance.KindEnhance, head.Content, enhance.ResponseGeneral))
	}
}

func (c *Coordinator) handleEnhanceResult(res enhance.Result) {
	if res.Err != nil {
		slog.Warn("Enhancement failed", "request_id", res.Request.ID, "kind", res.Err.Kind.String(), "error", res.Err)
		c.publish(Notification{
			Kind:      EnhancementFailed,
			RequestID: res.Request.ID.String(),
			ErrorKind: res.Err.Kind.String(),
			Reason:    res.Err.Error(),
		})
		return
	}

	slog.Info("Enhancement completed", "request_id", res.Request.ID, "output_chars", len(res.Output))
	c.publish(Notification{
		Kind:      EnhancementCompleted,
		RequestID: res.Request.ID.String(),
		Output:    res.Output,
	})
}
