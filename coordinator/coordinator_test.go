package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"snappad/config"
	"snappad/enhance"
	"snappad/platform"
	"snappad/storage"
)

type fakeClipboard struct {
	mu      sync.Mutex
	content string
}

func (f *fakeClipboard) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content, nil
}

func (f *fakeClipboard) Set(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = text
	return nil
}

func (f *fakeClipboard) put(text string) {
	f.mu.Lock()
	f.content = text
	f.mu.Unlock()
}

type fakeRegistrar struct {
	failCombos map[int]bool // vk code -> registration fails

	mu         sync.Mutex
	registered map[int]platform.KeyCombo
	events     chan platform.TriggerEvent
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		failCombos: make(map[int]bool),
		registered: make(map[int]platform.KeyCombo),
		events:     make(chan platform.TriggerEvent, 16),
	}
}

func (f *fakeRegistrar) Start(ctx context.Context) error { return nil }

func (f *fakeRegistrar) Register(id int, combo platform.KeyCombo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCombos[combo.Key] {
		return fmt.Errorf("hotkey already claimed by another application")
	}
	f.registered[id] = combo
	return nil
}

func (f *fakeRegistrar) Unregister(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, id)
	return nil
}

func (f *fakeRegistrar) Events() <-chan platform.TriggerEvent { return f.events }

func (f *fakeRegistrar) trigger(id int) {
	f.events <- platform.TriggerEvent{ID: id}
}

type fakeCompleter struct {
	cerr *enhance.Error
}

func (f *fakeCompleter) Enhance(ctx context.Context, prompt string) (string, *enhance.Error) {
	if f.cerr != nil {
		return "", f.cerr
	}
	return "enhanced: " + prompt, nil
}

func (f *fakeCompleter) SmartResponse(ctx context.Context, input string, rt enhance.ResponseType) (string, *enhance.Error) {
	if f.cerr != nil {
		return "", f.cerr
	}
	return "response: " + input, nil
}

// Hotkey registration ids follow the binding order in New.
const (
	idToggle  = 1
	idSave    = 2
	idEnhance = 3
)

func testConfig() *config.Config {
	return &config.Config{
		Clipboard: config.ClipboardConfig{HistorySize: 3, PollIntervalMs: 20},
		Hotkeys: config.HotkeyConfig{
			ToggleDashboard: "ctrl+alt+s",
			SaveNote:        "ctrl+alt+n",
			EnhancePrompt:   "ctrl+alt+e",
		},
		OpenAI: config.OpenAIConfig{Model: "gpt-4", MaxTokens: 1500, Temperature: 0.7, TimeoutSeconds: 5},
		Web:    config.WebConfig{Enabled: false},
	}
}

type fixture struct {
	cfg   *config.Config
	clip  *fakeClipboard
	reg   *fakeRegistrar
	comp  *fakeCompleter
	store *storage.DB
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		cfg:   testConfig(),
		clip:  &fakeClipboard{},
		reg:   newFakeRegistrar(),
		comp:  &fakeCompleter{},
		store: store,
	}
	f.coord = New(f.cfg, f.store, f.clip, f.reg, f.comp)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.coord.Start(context.Background()))
}

// awaitKind reads notifications until one of the wanted kind arrives,
// skipping unrelated kinds the background pollers may interleave.
func awaitKind(t *testing.T, ch <-chan Notification, kind NotificationKind) Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-ch:
			require.True(t, ok, "notification channel closed while waiting for %s", kind)
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", kind)
		}
	}
}

func TestCoordinator_ClipboardChangeNotifies(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.clip.put("hello world")
	awaitKind(t, ch, ClipboardHistoryChanged)

	history := f.coord.ListClipboardHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "hello world", history[0].Content)
}

func TestCoordinator_StartupClipboardSeedsHistory(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.clip.put("pre-existing")
	f.start(t)
	defer f.coord.Stop()

	require.Eventually(t, func() bool {
		return len(f.coord.ListClipboardHistory()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "pre-existing", f.coord.ListClipboardHistory()[0].Content)
}

func TestCoordinator_SaveNoteHotkey(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.clip.put("copy me")
	f.start(t)
	defer f.coord.Stop()

	require.Eventually(t, func() bool {
		return len(f.coord.ListClipboardHistory()) == 1
	}, time.Second, 5*time.Millisecond)

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.reg.trigger(idSave)
	awaitKind(t, ch, NoteStoreChanged)

	notes, err := f.coord.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "copy me", notes[0].Content)
	assert.Equal(t, 3, notes[0].Priority)
}

func TestCoordinator_SaveNoteHotkey_EmptyHistory(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	f.reg.trigger(idSave)
	time.Sleep(100 * time.Millisecond)

	notes, err := f.coord.ListNotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCoordinator_EnhanceHotkey(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.clip.put("my prompt")
	f.start(t)
	defer f.coord.Stop()

	require.Eventually(t, func() bool {
		return len(f.coord.ListClipboardHistory()) == 1
	}, time.Second, 5*time.Millisecond)

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.reg.trigger(idEnhance)

	n := awaitKind(t, ch, EnhancementCompleted)
	assert.Equal(t, "enhanced: my prompt", n.Output)
	assert.NotEmpty(t, n.RequestID)
}

func TestCoordinator_EnhancementFailureNotifies(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.comp.cerr = &enhance.Error{Kind: enhance.KindRateLimited, Err: fmt.Errorf("429")}
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.coord.SubmitEnhancement("text")

	n := awaitKind(t, ch, EnhancementFailed)
	assert.Equal(t, "rate_limited", n.ErrorKind)
	assert.NotEmpty(t, n.Reason)
	assert.Empty(t, n.Output)
}

func TestCoordinator_ToggleDashboard(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.reg.trigger(idToggle)
	awaitKind(t, ch, ToggleDashboard)

	f.coord.ToggleVisibility()
	awaitKind(t, ch, ToggleDashboard)
}

func TestCoordinator_RegistrationFailureNonFatal(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	vkN, err := platform.VKCode("n")
	require.NoError(t, err)
	f.reg.failCombos[vkN] = true

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.start(t)
	defer f.coord.Stop()

	n := awaitKind(t, ch, HotkeyRegistrationFailed)
	assert.Equal(t, BindingSaveNote, n.Binding)
	assert.NotEmpty(t, n.Reason)

	// The other two bindings still dispatch.
	f.reg.trigger(idToggle)
	awaitKind(t, ch, ToggleDashboard)
}

func TestCoordinator_RegistrationFailureFatalWhenRequired(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.cfg.Hotkeys.Required = true
	vkN, err := platform.VKCode("n")
	require.NoError(t, err)
	f.reg.failCombos[vkN] = true

	err = f.coord.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required hotkeys")
}

func TestCoordinator_NoteCRUDNotifies(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	ctx := context.Background()

	note, err := f.coord.CreateNote(ctx, "todo", 2)
	require.NoError(t, err)
	awaitKind(t, ch, NoteStoreChanged)

	newContent := "todo, urgently"
	_, err = f.coord.UpdateNote(ctx, note.ID, &newContent, nil)
	require.NoError(t, err)
	awaitKind(t, ch, NoteStoreChanged)

	require.NoError(t, f.coord.DeleteNote(ctx, note.ID))
	awaitKind(t, ch, NoteStoreChanged)

	err = f.coord.DeleteNote(ctx, note.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCoordinator_RestoreClipboardItem(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.clip.put("first")
	awaitKind(t, ch, ClipboardHistoryChanged)
	f.clip.put("second")
	awaitKind(t, ch, ClipboardHistoryChanged)

	require.NoError(t, f.coord.RestoreClipboardItem(1))

	got, err := f.clip.Get()
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	// The restore echo is suppressed: history keeps its order and no
	// change notification fires for the programmatic write.
	select {
	case n := <-ch:
		if n.Kind == ClipboardHistoryChanged {
			t.Fatalf("unexpected history change notification after restore")
		}
	case <-time.After(150 * time.Millisecond):
	}

	history := f.coord.ListClipboardHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].Content)
	assert.Equal(t, "first", history[1].Content)
}

func TestCoordinator_RestoreClipboardItem_BadIndex(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	assert.Error(t, f.coord.RestoreClipboardItem(0))
	assert.Error(t, f.coord.RestoreClipboardItem(-1))
}

func TestCoordinator_ClearClipboardHistory(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.clip.put("something")
	awaitKind(t, ch, ClipboardHistoryChanged)

	f.coord.ClearClipboardHistory()
	awaitKind(t, ch, ClipboardHistoryChanged)
	assert.Empty(t, f.coord.ListClipboardHistory())
}

func TestCoordinator_ClearEmptyHistoryDoesNotNotify(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)
	defer f.coord.Stop()

	ch, unsub := f.coord.Subscribe()
	defer unsub()

	f.coord.ClearClipboardHistory()

	select {
	case n := <-ch:
		t.Fatalf("unexpected %s notification for clearing an empty history", n.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCoordinator_StopClosesSubscribers(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	f.start(t)

	ch, unsub := f.coord.Subscribe()
	f.coord.Stop()

	// The channel is closed; unsubscribing afterwards is safe.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	unsub()
}
