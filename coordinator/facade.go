package coordinator

import (
	"context"
	"fmt"

	"snappad/clipboard"
	"snappad/enhance"
	"snappad/storage"
)

// The façade below is what UI and tray collaborators call into. Every
// method returns promptly; long-running outcomes arrive as notifications.

// ToggleVisibility asks UI collaborators to show or hide the dashboard.
func (c *Coordinator) ToggleVisibility() {
	c.post(evToggleDashboard{})
}

// ListClipboardHistory returns a snapshot of the history, newest first.
func (c *Coordinator) ListClipboardHistory() []clipboard.Snapshot {
	return c.history.List()
}

// ClearClipboardHistory empties the clipboard history. Clearing an
// already empty history is a no-op and emits no notification.
func (c *Coordinator) ClearClipboardHistory() {
	if c.history.Clear() {
		c.post(evClipboardChanged{})
	}
}

// RestoreClipboardItem copies the history entry at index back to the OS
// clipboard. The history itself is not reordered; the monitor suppresses
// the resulting echo.
func (c *Coordinator) RestoreClipboardItem(index int) error {
	snap, ok := c.history.At(index)
	if !ok {
		return fmt.Errorf("no clipboard history item at index %d", index)
	}
	return c.monitor.CopyToClipboard(snap.Content)
}

// SaveClipboardHeadAsNote persists the most recent clipboard entry as a
// note with the default priority.
func (c *Coordinator) SaveClipboardHeadAsNote(ctx context.Context) (*storage.Note, error) {
	head, ok := c.history.Head()
	if !ok {
		return nil, fmt.Errorf("clipboard history is empty")
	}

	note, err := c.store.CreateNote(ctx, head.Content, defaultNotePriority)
	if err != nil {
		return nil, err
	}
	c.post(evNotesChanged{})
	return note, nil
}

// ListNotes returns all notes ordered by priority desc, then newest first.
func (c *Coordinator) ListNotes(ctx context.Context) ([]storage.Note, error) {
	return c.store.ListNotes(ctx)
}

// CreateNote persists a new note.
func (c *Coordinator) CreateNote(ctx context.Context, content string, priority int) (*storage.Note, error) {
	note, err := c.store.CreateNote(ctx, content, priority)
	if err != nil {
		return nil, err
	}
	c.post(evNotesChanged{})
	return note, nil
}

// UpdateNote updates the provided fields of a note. A nil field is left
// unchanged. Returns storage.ErrNotFound for an unknown id.
func (c *Coordinator) UpdateNote(ctx context.Context, id int64, content *string, priority *int) (*storage.Note, error) {
	note, err := c.store.UpdateNote(ctx, id, content, priority)
	if err != nil {
		return nil, err
	}
	c.post(evNotesChanged{})
	return note, nil
}

// DeleteNote removes a note. Returns storage.ErrNotFound for an unknown id.
// Confirmation is the caller's concern.
func (c *Coordinator) DeleteNote(ctx context.Context, id int64) error {
	if err := c.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	c.post(evNotesChanged{})
	return nil
}

// SubmitEnhancement queues text for prompt enhancement, superseding any
// request already in flight. The outcome arrives as a notification.
func (c *Coordinator) SubmitEnhancement(text string) {
	c.worker.Submit(enhance.NewRequest(enhance.KindEnhance, text, enhance.ResponseGeneral))
}

// SubmitSmartResponse queues text for a categorized smart response.
func (c *Coordinator) SubmitSmartResponse(text string, rt enhance.ResponseType) {
	c.worker.Submit(enhance.NewRequest(enhance.KindSmartResponse, text, rt))
}

// EnhanceClipboardHead submits the most recent clipboard entry for
// enhancement.
func (c *Coordinator) EnhanceClipboardHead() error {
	head, ok := c.history.Head()
	if !ok {
		return fmt.Errorf("clipboard history is empty")
	}
	c.SubmitEnhancement(head.Content)
	return nil
}
