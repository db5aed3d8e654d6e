package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vesplit/vesplit/common/errors"
)

const (
	DefaultFileMaxSizeMB  = 100
	DefaultFileMaxBackups = 4
)

// WriterConfig shapes the rotating file sink behind Logger.SetFileWriter.
// MaxSize is in megabytes and MaxAge in days, following the rotation
// library's units.
type WriterConfig struct {
	Filename   string `json:"filename"`
	MaxSize    int    `json:"maxsize"`
	MaxAge     int    `json:"maxage"`
	MaxBackups int    `json:"maxbackups"`
	LocalTime  bool   `json:"localtime"`
	Compress   bool   `json:"compress"`
}

// NewWriter builds the rotating writer for cfg. An empty filename is
// rejected instead of silently logging nowhere; unset size and backup
// bounds fall back to defaults sized for a long-running daemon.
func NewWriter(cfg *WriterConfig) (io.Writer, error) {
	if cfg.Filename == "" {
		return nil, errors.IllegalArgumentError.New("log file name is empty")
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultFileMaxSizeMB
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultFileMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: maxBackups,
		LocalTime:  cfg.LocalTime,
		Compress:   cfg.Compress,
	}, nil
}
