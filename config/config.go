package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Clipboard ClipboardConfig `toml:"clipboard"`
	Hotkeys   HotkeyConfig    `toml:"hotkeys"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Web       WebConfig       `toml:"web"`
}

type ClipboardConfig struct {
	HistorySize    int `toml:"history_size"`
	PollIntervalMs int `toml:"poll_interval_ms"`
}

type HotkeyConfig struct {
	ToggleDashboard string `toml:"toggle_dashboard"`
	SaveNote        string `toml:"save_note"`
	EnhancePrompt   string `toml:"enhance_prompt"`
	// Required makes a failed hotkey registration abort startup instead of
	// degrading to a logged warning.
	Required bool `toml:"required"`
}

type OpenAIConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Clipboard: ClipboardConfig{
			HistorySize:    10,
			PollIntervalMs: 500,
		},
		Hotkeys: HotkeyConfig{
			ToggleDashboard: "ctrl+alt+s",
			SaveNote:        "ctrl+alt+n",
			EnhancePrompt:   "ctrl+alt+e",
			Required:        false,
		},
		OpenAI: OpenAIConfig{
			APIKey:         "",
			Model:          "gpt-4",
			MaxTokens:      1500,
			Temperature:    0.7,
			TimeoutSeconds: 30,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8765,
		},
	}
}

// AppDir returns the application data directory, creating it if needed.
func AppDir() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	}

	dir := filepath.Join(appData, "SnapPad")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the TOML file.
// If the file doesn't exist, it creates it with default values.
// The OpenAI API key falls back to the OPENAI_API_KEY environment
// variable (a .env file is honored if present).
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()

	cfg := defaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Validate checks configuration values against their accepted ranges.
func (c *Config) Validate() error {
	if c.Clipboard.HistorySize < 1 || c.Clipboard.HistorySize > 50 {
		return fmt.Errorf("clipboard.history_size must be between 1 and 50, got %d", c.Clipboard.HistorySize)
	}
	if c.Clipboard.PollIntervalMs < 100 || c.Clipboard.PollIntervalMs > 5000 {
		return fmt.Errorf("clipboard.poll_interval_ms must be between 100 and 5000, got %d", c.Clipboard.PollIntervalMs)
	}
	if c.OpenAI.TimeoutSeconds < 1 || c.OpenAI.TimeoutSeconds > 300 {
		return fmt.Errorf("openai.timeout_seconds must be between 1 and 300, got %d", c.OpenAI.TimeoutSeconds)
	}
	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		return fmt.Errorf("web.port must be a valid port, got %d", c.Web.Port)
	}

	for name, combo := range map[string]string{
		"hotkeys.toggle_dashboard": c.Hotkeys.ToggleDashboard,
		"hotkeys.save_note":        c.Hotkeys.SaveNote,
		"hotkeys.enhance_prompt":   c.Hotkeys.EnhancePrompt,
	} {
		if _, err := ParseHotkey(combo); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// PollInterval returns the clipboard poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Clipboard.PollIntervalMs) * time.Millisecond
}

// AITimeout returns the enhancement request timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// KeyCombo represents a parsed keyboard combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string
}

// String renders the combo back in "ctrl+alt+s" form.
func (kc KeyCombo) String() string {
	var parts []string
	if kc.Ctrl {
		parts = append(parts, "ctrl")
	}
	if kc.Shift {
		parts = append(parts, "shift")
	}
	if kc.Alt {
		parts = append(parts, "alt")
	}
	if kc.Win {
		parts = append(parts, "win")
	}
	parts = append(parts, kc.Key)
	return strings.Join(parts, "+")
}

// ParseHotkey parses a hotkey combo string like "ctrl+alt+s" or "ctrl+win+v"
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	parts := strings.Split(strings.ToLower(combo), "+")

	if len(parts) == 0 {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	for i, part := range parts {
		part = strings.TrimSpace(part)

		isModifier := false
		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
			isModifier = true
		case "shift":
			kc.Shift = true
			isModifier = true
		case "alt":
			kc.Alt = true
			isModifier = true
		case "win", "windows":
			kc.Win = true
			isModifier = true
		}

		// If it's not a modifier and it's the last part, it's the key
		if !isModifier {
			if i == len(parts)-1 {
				kc.Key = part
			} else {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
		}
	}

	if !kc.Ctrl && !kc.Shift && !kc.Alt && !kc.Win {
		return kc, fmt.Errorf("no modifiers specified in combo")
	}
	if kc.Key == "" {
		return kc, fmt.Errorf("no key specified in combo")
	}

	return kc, nil
}
