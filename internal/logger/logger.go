package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled logging (info/warning/error) to per-level files
// and stdout/stderr.
type Logger struct {
	entry  *logrus.Entry
	logDir string
}

// levelFileHook copies entries of the given levels into a log file.
type levelFileHook struct {
	levels    []logrus.Level
	writer    io.Writer
	formatter logrus.Formatter
	mu        sync.Mutex
}

func (h *levelFileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}

// stderrHook sends error entries to stderr; everything else goes to stdout.
type stderrHook struct {
	formatter logrus.Formatter
}

func (h *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

func (h *stderrHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = os.Stderr.Write(line)
	return err
}

// NewLogger creates a Logger writing into logDir (info.log, warning.log,
// error.log). The directory is created when missing.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	formatter := &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}

	base := logrus.New()
	base.SetFormatter(formatter)
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(&levelFilter{out: os.Stdout})
	base.AddHook(&stderrHook{formatter: formatter})

	files := map[string][]logrus.Level{
		"info.log":    {logrus.InfoLevel, logrus.DebugLevel},
		"warning.log": {logrus.WarnLevel},
		"error.log":   {logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel},
	}
	for name, levels := range files {
		file, err := openLogFile(filepath.Join(logDir, name))
		if err != nil {
			return nil, err
		}
		base.AddHook(&levelFileHook{levels: levels, writer: file, formatter: formatter})
	}

	return &Logger{entry: logrus.NewEntry(base), logDir: logDir}, nil
}

// NewNop returns a Logger that discards everything. Used by tests and by
// callers that do not care about output.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// levelFilter drops error-level lines from stdout since stderrHook already
// wrote them.
type levelFilter struct {
	out io.Writer
}

func (f *levelFilter) Write(p []byte) (int, error) {
	for _, marker := range []string{"level=error", "level=fatal", "level=panic"} {
		if bytes.Contains(p, []byte(marker)) {
			return len(p), nil
		}
	}
	return f.out.Write(p)
}

func openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// WithField returns a Logger that adds key=value to every entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), logDir: l.logDir}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// Dir returns the directory holding the log files, empty for a nop logger.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("File %s has been cleared.", fileName)
	return nil
}
