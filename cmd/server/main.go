package main

import (
	"log/slog"
	"os"
	"strconv"

	"advisory-cms/internal/app"
	"advisory-cms/internal/logger"
)

func main() {
	level := slog.LevelInfo
	if devMode, _ := strconv.ParseBool(os.Getenv("DEV_MODE")); devMode {
		level = slog.LevelDebug
	}

	logHandler := logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
