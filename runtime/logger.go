package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/vfs"
	"github.com/wippyai/wasishim/wasi/preview1"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the runtime package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger of this package and of asyncify, vfs and
// preview1.
func SetLogger(l *zap.Logger) {
	logger = l
	asyncify.SetLogger(l.Named("asyncify"))
	vfs.SetLogger(l.Named("vfs"))
	preview1.SetLogger(l.Named("wasi"))
}
