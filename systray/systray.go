package systray

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/getlantern/systray"

	"snappad/coordinator"
)

// Manager manages the system tray icon and menu
type Manager struct {
	coord    *coordinator.Coordinator
	webPort  int
	iconData []byte
	quit     chan struct{}
}

// NewManager creates a new systray manager
func NewManager(coord *coordinator.Coordinator, webPort int, iconData []byte) *Manager {
	return &Manager{
		coord:    coord,
		webPort:  webPort,
		iconData: iconData,
		quit:     make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *Manager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *Manager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// onReady is called when the systray is ready
func (m *Manager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	systray.SetTitle("SnapPad")
	systray.SetTooltip("SnapPad - Clipboard History & Notes")

	mDashboard := systray.AddMenuItem("Open Dashboard", "Open the SnapPad dashboard in a browser")
	mToggle := systray.AddMenuItem("Toggle Dashboard", "Show or hide the dashboard window")
	mSaveNote := systray.AddMenuItem("Save Clipboard as Note", "Save the current clipboard content as a note")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit SnapPad")

	go func() {
		for {
			select {
			case <-mDashboard.ClickedCh:
				m.openDashboard()

			case <-mToggle.ClickedCh:
				m.coord.ToggleVisibility()

			case <-mSaveNote.ClickedCh:
				if _, err := m.coord.SaveClipboardHeadAsNote(context.Background()); err != nil {
					slog.Warn("Failed to save clipboard as note from tray", "error", err)
				}

			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *Manager) onExit() {
	slog.Info("System tray exited")
}

// openDashboard opens the dashboard in the default browser
func (m *Manager) openDashboard() {
	url := fmt.Sprintf("http://localhost:%d", m.webPort)
	slog.Info("Opening dashboard", "url", url)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		slog.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open dashboard", "error", err)
	}
}
