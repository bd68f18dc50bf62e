// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"k8s.io/klog/v2"
)

// Level is the severity of a log message.
type Level int

const (
	// LevelDebug is the severity of debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity of informational messages.
	LevelInfo
	// LevelWarn is the severity of warnings.
	LevelWarn
	// LevelError is the severity of errors.
	LevelError
)

// Logger is a logger instance bound to a single log source.
type Logger interface {
	// Debug emits a formatted debug message if debugging is on for the source.
	Debug(format string, args ...interface{})
	// Info emits a formatted informational message.
	Info(format string, args ...interface{})
	// Warn emits a formatted warning.
	Warn(format string, args ...interface{})
	// Error emits a formatted error message.
	Error(format string, args ...interface{})
	// Fatal emits a formatted error message and exits.
	Fatal(format string, args ...interface{})
	// Panic emits a formatted error message and panics.
	Panic(format string, args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// DebugEnabled checks if debug messages are enabled for the source.
	DebugEnabled() bool
	// EnableDebug turns debugging on or off for the source, returning the old state.
	EnableDebug(bool) bool
	// Source returns the source name of this logger.
	Source() string
	// SlogHandler returns an slog.Handler emitting through this logger.
	SlogHandler() slog.Handler
}

type logger struct {
	source string
}

// logging is the shared state of all loggers.
type logging struct {
	sync.RWMutex
	level   Level
	prefix  bool
	dbgmap  srcmap
	debug   map[string]bool
	loggers map[string]logger
}

var (
	log = &logging{
		level:   DefaultLevel,
		dbgmap:  make(srcmap),
		debug:   make(map[string]bool),
		loggers: make(map[string]logger),
	}
	deflog = log.get("default")
)

// Get returns the logger for the given source, creating it if necessary.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger is an alias for Get.
func NewLogger(source string) Logger {
	return log.get(source)
}

// Default returns the default logger.
func Default() Logger {
	return deflog
}

// SetLevel sets the lowest severity of messages which are emitted.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// Flush flushes any buffered messages of the backend.
func Flush() {
	klog.Flush()
}

func (l *logging) get(source string) logger {
	l.RLock()
	lg, ok := l.loggers[source]
	l.RUnlock()
	if ok {
		return lg
	}

	l.Lock()
	defer l.Unlock()

	if lg, ok = l.loggers[source]; ok {
		return lg
	}

	lg = logger{source: source}
	l.loggers[source] = lg
	l.debug[source] = l.dbgmap.enabled(source)

	return lg
}

// setDbgMap updates the debug source map, caller holds the lock.
func (l *logging) setDbgMap(m srcmap) {
	l.dbgmap = m
	for source := range l.loggers {
		l.debug[source] = m.enabled(source)
	}
}

// setPrefix sets source prefixing of messages, caller holds the lock.
func (l *logging) setPrefix(prefix bool) {
	l.prefix = prefix
}

func (l *logging) emit(source string, level Level, msg string) {
	l.RLock()
	if l.prefix {
		msg = "[" + source + "] " + msg
	}
	l.RUnlock()

	switch level {
	case LevelDebug:
		klog.InfoDepth(2, "D: "+msg)
	case LevelInfo:
		klog.InfoDepth(2, msg)
	case LevelWarn:
		klog.WarningDepth(2, msg)
	default:
		klog.ErrorDepth(2, msg)
	}
}

func (l *logging) passes(level Level) bool {
	l.RLock()
	defer l.RUnlock()
	return level >= l.level
}

func (lg logger) Debug(format string, args ...interface{}) {
	if !lg.DebugEnabled() {
		return
	}
	log.emit(lg.source, LevelDebug, fmt.Sprintf(format, args...))
}

func (lg logger) Info(format string, args ...interface{}) {
	if !log.passes(LevelInfo) {
		return
	}
	log.emit(lg.source, LevelInfo, fmt.Sprintf(format, args...))
}

func (lg logger) Warn(format string, args ...interface{}) {
	if !log.passes(LevelWarn) {
		return
	}
	log.emit(lg.source, LevelWarn, fmt.Sprintf(format, args...))
}

func (lg logger) Error(format string, args ...interface{}) {
	log.emit(lg.source, LevelError, fmt.Sprintf(format, args...))
}

func (lg logger) Fatal(format string, args ...interface{}) {
	log.emit(lg.source, LevelError, fmt.Sprintf(format, args...))
	klog.Flush()
	os.Exit(1)
}

func (lg logger) Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.emit(lg.source, LevelError, msg)
	panic(msg)
}

func (lg logger) Debugf(format string, args ...interface{}) {
	if !lg.DebugEnabled() {
		return
	}
	log.emit(lg.source, LevelDebug, fmt.Sprintf(format, args...))
}

func (lg logger) Infof(format string, args ...interface{}) {
	if !log.passes(LevelInfo) {
		return
	}
	log.emit(lg.source, LevelInfo, fmt.Sprintf(format, args...))
}

func (lg logger) Warnf(format string, args ...interface{}) {
	if !log.passes(LevelWarn) {
		return
	}
	log.emit(lg.source, LevelWarn, fmt.Sprintf(format, args...))
}

func (lg logger) Errorf(format string, args ...interface{}) {
	log.emit(lg.source, LevelError, fmt.Sprintf(format, args...))
}

func (lg logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()
	return log.debug[lg.source]
}

func (lg logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()
	old := log.debug[lg.source]
	log.debug[lg.source] = state
	return old
}

func (lg logger) Source() string {
	return lg.source
}

// loggerError returns a package-specific formatted error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("logger: "+format, args...)
}
