/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DebugEnabledFunc is a function type that determines if debug logging is enabled
// We use a function because we want to check the setting at log time, not when the logger is created
type DebugEnabledFunc func() bool

// DebugCheckFormatter drops debug and trace entries unless debugEnabled
// reports true when the entry is written.
type DebugCheckFormatter struct {
	formatter    logrus.Formatter
	debugEnabled DebugEnabledFunc
}

// Format implements logrus.Formatter.
func (f *DebugCheckFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if e.Level >= logrus.DebugLevel && (f.debugEnabled == nil || !f.debugEnabled()) {
		return nil, nil
	}
	return f.formatter.Format(e)
}

// NewLogger creates a new logger with dynamic debug checking
func NewLogger(out io.Writer, debugEnabled DebugEnabledFunc) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	// Let everything through, the formatter does the filtering.
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&DebugCheckFormatter{
		formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		},
		debugEnabled: debugEnabled,
	})
	return l
}

// Discard returns a logger that writes nothing.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// LoggerSetterGetter is an interface that can set and get a logger
type LoggerSetterGetter interface {
	// SetLogger sets a new logger
	SetLogger(l *logrus.Logger)
	// Logger returns the logger
	Logger() *logrus.Logger
}

type LogHolder struct {
	// We use atomic.Pointer for thread safety
	logger atomic.Pointer[logrus.Logger]
}

// Logger returns the logger for the LogHolder, or a discarding logger when none was set.
func (l *LogHolder) Logger() *logrus.Logger {
	if lg := l.logger.Load(); lg != nil {
		return lg
	}
	return Discard()
}

// SetLogger sets the logger for the LogHolder. A nil logger discards logs.
func (l *LogHolder) SetLogger(lg *logrus.Logger) {
	if lg == nil {
		lg = Discard()
	}
	l.logger.Store(lg)
}

// Ensure LogHolder implements LoggerSetterGetter
var _ LoggerSetterGetter = &LogHolder{}

type loggerKey struct{}

// WithLogger returns a context carrying entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// G returns the entry stored in ctx, or one backed by the standard logrus
// logger.
func G(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
			return e
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
