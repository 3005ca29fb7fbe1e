package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// LogFormatter renders entries as
// [2024-03-07 10:15:00] [info ] [resolver.go:42] message | key=value
type LogFormatter struct{}

// Format renders a single log entry
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	fmt.Fprintf(buffer, "[%s] [%-5s]", entry.Time.Format("2006-01-02 15:04:05"), level)
	if entry.Caller != nil {
		fmt.Fprintf(buffer, " [%s:%d]", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	buffer.WriteString(" ")
	buffer.WriteString(strings.TrimRight(entry.Message, "\r\n"))

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buffer.WriteString(" |")
		for i, k := range keys {
			if i > 0 {
				buffer.WriteString(",")
			}
			fmt.Fprintf(buffer, " %s=%v", k, entry.Data[k])
		}
	}
	buffer.WriteString("\n")
	return buffer.Bytes(), nil
}

// Options controls Setup
type Options struct {
	Level string // logrus level name, defaults to info
	File  string // rotated log file, empty logs to stdout only
	Debug bool   // forces debug level and caller reporting
}

// Setup configures the shared logrus logger.
// Output goes to stdout and, when File is set, to a rotated file as well.
func Setup(opts Options) error {
	writerMu.Lock()
	defer writerMu.Unlock()

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("logging: invalid level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	log.SetLevel(level)
	log.SetReportCaller(opts.Debug)
	log.SetFormatter(&LogFormatter{})

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return nil
	}

	if dir := filepath.Dir(opts.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
	}
	logWriter = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logWriter))
	return nil
}

// Close flushes and closes the log file
func Close() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	log.SetOutput(os.Stdout)
}
