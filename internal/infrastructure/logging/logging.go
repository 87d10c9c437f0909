// Package logging points the standard logger at stdout and, optionally, a rotating file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dapursambal/storefront/internal/config"
)

// Setup configures the process-wide logger. The returned closer flushes the
// rotating file and is a no-op for console logging.
func Setup(settings config.LoggingSettings) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if settings.LogType != config.LogTypeFile {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	writer := &lumberjack.Logger{
		Filename:   settings.FilePath,
		MaxSize:    settings.MaxSize,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAge,
		Compress:   settings.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, writer))
	log.Printf("📝 Logging to %s (max %dMB, %d backups)", settings.FilePath, settings.MaxSize, settings.MaxBackups)
	return writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
