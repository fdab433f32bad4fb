package common

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger behind the same call shape the rest of this
// codebase was written around: Info(verbosity, ...) gated by a configured
// verbosity level, Error(...) that can duplicate to stderr regardless of the
// configured output file, and a file-backed sink that can be rotated.
type Logger struct {
	impl              *zap.SugaredLogger
	stderrImpl        *zap.SugaredLogger // non-nil only when duplicating errors to stderr and impl isn't already stderr
	fileName          string
	verbosity         int
	duplicateToStderr bool
}

// MakeLogger builds a Logger writing to logFile ("stderr" means stderr; ""
// means stderr too, unless noLogsIfEmpty is set, in which case all output,
// errors included, is discarded). verbosity must be in [-1, 2]; -1 disables
// Info logging (Error still fires).
func MakeLogger(logFile string, verbosity int64, noLogsIfEmpty bool, duplicateToStderr bool) (*Logger, error) {
	if verbosity < -1 || verbosity > 2 {
		return nil, errors.New("incorrect verbosity passed")
	}

	if logFile == "" && noLogsIfEmpty {
		return &Logger{
			impl:              zap.NewNop().Sugar(),
			verbosity:         int(verbosity),
			duplicateToStderr: duplicateToStderr,
		}, nil
	}

	sink, err := openLogSink(logFile)
	if err != nil {
		return nil, err
	}

	zapLogger := newZapLogger(sink)
	logger := &Logger{
		impl:              zapLogger.Sugar(),
		fileName:          logFile,
		verbosity:         int(verbosity),
		duplicateToStderr: duplicateToStderr,
	}
	if duplicateToStderr && logFile != "" && logFile != "stderr" {
		logger.stderrImpl = newZapLogger(zapcore.AddSync(os.Stderr)).Sugar()
	}
	return logger, nil
}

func openLogSink(logFile string) (zapcore.WriteSyncer, error) {
	if logFile == "" || logFile == "stderr" {
		return zapcore.AddSync(os.Stderr), nil
	}
	out, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(out), nil
}

func newZapLogger(sink zapcore.WriteSyncer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), sink, zapcore.DebugLevel)
	return zap.New(core)
}

func (logger *Logger) Info(verbosity int, v ...interface{}) {
	if logger.verbosity >= verbosity {
		logger.impl.Info(v...)
	}
}

func (logger *Logger) Error(v ...interface{}) {
	logger.impl.Error(v...)
	if logger.stderrImpl != nil {
		logger.stderrImpl.Error(v...)
	}
}

func (logger *Logger) Debug(v ...interface{}) {
	logger.impl.Debug(v...)
}

// RotateLogFile reopens the backing file, for external log rotation (e.g. logrotate).
func (logger *Logger) RotateLogFile() error {
	if logger.fileName == "" || logger.fileName == "stderr" {
		return nil
	}
	sink, err := openLogSink(logger.fileName)
	if err != nil {
		return err
	}
	logger.impl = newZapLogger(sink).Sugar()
	return nil
}

func (logger *Logger) GetFileName() string {
	return logger.fileName
}

func (logger *Logger) GetFileSize() int64 {
	if logger.fileName == "" {
		return 0
	}
	stat, err := os.Stat(logger.fileName)
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (logger *Logger) Sync() {
	_ = logger.impl.Sync()
}
