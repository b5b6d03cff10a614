package main

import (
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-assertive/internal/config"
)

// setupLogging applies logging.format. The text format keeps the standard
// logger as is; json routes the standard logger and gin's request log
// through a slog JSON handler writing to out. Call before building the router.
func setupLogging(cfg config.LoggingConfig, out io.Writer) {
	if !strings.EqualFold(cfg.Format, "json") {
		log.SetOutput(out)
		gin.DefaultWriter = out
		gin.DefaultErrorWriter = out
		return
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.Level)})
	slog.SetDefault(slog.New(handler))

	// log.Writer now feeds slog, one record per write
	gin.DefaultWriter = log.Writer()
	gin.DefaultErrorWriter = log.Writer()
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
