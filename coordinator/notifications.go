package coordinator

import "log/slog"

// NotificationKind identifies what changed.
type NotificationKind string

const (
	ClipboardHistoryChanged  NotificationKind = "clipboard_history_changed"
	NoteStoreChanged         NotificationKind = "note_store_changed"
	EnhancementCompleted     NotificationKind = "enhancement_completed"
	EnhancementFailed        NotificationKind = "enhancement_failed"
	HotkeyRegistrationFailed NotificationKind = "hotkey_registration_failed"
	ToggleDashboard          NotificationKind = "toggle_dashboard"
)

// Notification is an asynchronous message to UI collaborators. Fields
// beyond Kind are populated per kind: Output for completed enhancements,
// ErrorKind/Reason for failures, Binding/Reason for registration failures.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	RequestID string           `json:"request_id,omitempty"`
	Output    string           `json:"output,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Binding   string           `json:"binding,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Subscribe registers a notification channel. Messages preserve the order
// the coordinator loop published them in. The returned func unsubscribes
// and must be called before Stop if the subscriber exits first.
func (c *Coordinator) Subscribe() (<-chan Notification, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Notification, 32)
	c.subs[id] = ch

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

// publish fans a notification out to every subscriber. A subscriber that
// has fallen 32 messages behind loses this one rather than stalling the
// coordinator loop.
func (c *Coordinator) publish(n Notification) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
			slog.Warn("Dropping notification for slow subscriber", "kind", n.Kind)
		}
	}
}
