// Package logging wraps github.com/ternarybob/arbor into the app-wide
// structured logger: a singleton-with-fallback pattern scoped down to
// console + file writers.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/VamsiGaletiInfinize/crawler/internal/config"
)

var (
	global      arbor.ILogger
	globalMutex sync.RWMutex
)

// Get returns the global logger, falling back to a bare console logger if
// Setup hasn't run yet.
func Get() arbor.ILogger {
	globalMutex.RLock()
	if global != nil {
		defer globalMutex.RUnlock()
		return global
	}
	globalMutex.RUnlock()

	globalMutex.Lock()
	defer globalMutex.Unlock()
	if global == nil {
		global = arbor.NewLogger().WithConsoleWriter(writerConfig("15:04:05.000", ""))
		global.Warn().Msg("using fallback logger - Setup() should be called during startup")
	}
	return global
}

// Setup builds the logger from LoggingConfig and installs it as the
// global singleton, returning it for direct use during bootstrap.
func Setup(cfg config.LoggingConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05.000"
	}

	var hasConsole, hasFile bool
	for _, out := range cfg.Output {
		switch out {
		case "stdout", "console":
			hasConsole = true
		case "file":
			hasFile = true
		}
	}

	if hasFile {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			logger = logger.WithFileWriter(writerConfig(timeFormat, cfg.FilePath))
		}
	}
	if hasConsole || !hasFile {
		logger = logger.WithConsoleWriter(writerConfig(timeFormat, ""))
	}

	logger = logger.WithLevelFromString(cfg.Level)

	globalMutex.Lock()
	global = logger
	globalMutex.Unlock()

	return logger
}

func writerConfig(timeFormat, filename string) arbormodels.WriterConfiguration {
	writerType := arbormodels.LogWriterTypeConsole
	if filename != "" {
		writerType = arbormodels.LogWriterTypeFile
	}
	return arbormodels.WriterConfiguration{
		Type:       writerType,
		FileName:   filename,
		TimeFormat: timeFormat,
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 3,
	}
}

// Stop flushes any buffered writers before shutdown.
func Stop() {
	arborcommon.Stop()
}
