package clipboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"snappad/platform"
)

// errorBackoff is how long the monitor waits after a failed read before
// polling again, so a wedged clipboard doesn't spam the log.
const errorBackoff = time.Second

// Monitor samples the OS clipboard at a fixed interval and feeds the
// history. Read failures on a tick are expected (non-text content, another
// process holding the clipboard) and are skipped, never surfaced.
type Monitor struct {
	clip     platform.Clipboard
	history  *History
	interval time.Duration
	onChange func(content string)

	mu       sync.Mutex
	lastSeen string

	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor that polls clip every interval and records
// changes into history. onChange is invoked once per logical change, from
// the monitor goroutine; it must hand off slow work. It may be nil.
func NewMonitor(clip platform.Clipboard, history *History, interval time.Duration, onChange func(content string)) *Monitor {
	return &Monitor{
		clip:     clip,
		history:  history,
		interval: interval,
		onChange: onChange,
	}
}

// Start launches the polling loop. It returns immediately; the loop stops
// when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.run(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.stop == nil {
		return
	}
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	// Prime with the current clipboard so startup content isn't reported
	// as a change, but non-blank content still seeds the history.
	if content, err := m.clip.Get(); err == nil {
		m.mu.Lock()
		m.lastSeen = content
		m.mu.Unlock()
		if strings.TrimSpace(content) != "" {
			m.history.Observe(content)
		}
	} else {
		slog.Debug("Clipboard not readable at startup", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.tick(); err != nil {
				slog.Debug("Clipboard read failed, skipping tick", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-m.stop:
					return
				case <-time.After(errorBackoff):
				}
			}
		}
	}
}

func (m *Monitor) tick() error {
	content, err := m.clip.Get()
	if err != nil {
		return err
	}

	m.mu.Lock()
	changed := content != m.lastSeen
	if changed {
		m.lastSeen = content
	}
	m.mu.Unlock()

	if !changed || strings.TrimSpace(content) == "" {
		return nil
	}

	if m.history.Observe(content) && m.onChange != nil {
		m.onChange(content)
	}
	return nil
}

// CopyToClipboard writes content to the OS clipboard and records it as
// already seen, so the write is not re-observed as a new change. The
// last-seen value is recorded before the OS write; a tick that races the
// write therefore never reports the echo.
func (m *Monitor) CopyToClipboard(content string) error {
	m.mu.Lock()
	prev := m.lastSeen
	m.lastSeen = content
	m.mu.Unlock()

	if err := m.clip.Set(content); err != nil {
		m.mu.Lock()
		if m.lastSeen == content {
			m.lastSeen = prev
		}
		m.mu.Unlock()
		return err
	}
	return nil
}
