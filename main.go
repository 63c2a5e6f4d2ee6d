package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snappad/config"
	"snappad/coordinator"
	"snappad/enhance"
	"snappad/platform"
	"snappad/storage"
	"snappad/systray"
	"snappad/web"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	configPath, _ := config.ConfigPath()
	slog.Info("Configuration loaded", "path", configPath)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err, "path", configPath)
		os.Exit(1)
	}

	if cfg.OpenAI.APIKey == "" {
		slog.Warn("No OpenAI API key configured; enhancement requests will fail until one is set")
	}

	// Open the note store. A schema newer than this build refuses to open.
	appDir, err := config.AppDir()
	if err != nil {
		slog.Error("Failed to resolve app directory", "error", err)
		os.Exit(1)
	}
	store, err := storage.Open(appDir)
	if err != nil {
		slog.Error("Failed to open note store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wire the coordinator
	client := enhance.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature)
	coord := coordinator.New(cfg, store, platform.NewClipboard(), platform.NewHotkeys(), client)

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		slog.Error("Failed to start coordinator", "error", err)
		os.Exit(1)
	}
	defer coord.Stop()

	// Dashboard server
	var server *web.Server
	if cfg.Web.Enabled {
		server = web.NewServer(coord, cfg.Web.Port)
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("Dashboard server error", "error", err)
			}
		}()
	}

	// System tray (blocking; owns the main thread)
	tray := systray.NewManager(coord, cfg.Web.Port, nil)
	go func() {
		select {
		case <-ctx.Done():
		case <-tray.WaitForQuit():
			cancel()
		}
		tray.Stop()
	}()

	slog.Info("SnapPad started",
		"toggle_hotkey", cfg.Hotkeys.ToggleDashboard,
		"save_note_hotkey", cfg.Hotkeys.SaveNote,
		"enhance_hotkey", cfg.Hotkeys.EnhancePrompt)

	tray.Run()

	// Tray loop has exited; give the dashboard a moment to drain.
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Warn("Dashboard server shutdown error", "error", err)
		}
	}

	slog.Info("SnapPad stopped")
}
