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
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type slogger struct {
	l     logger
	attrs []slog.Attr
	group string
}

var _ slog.Handler = &slogger{}

// SetSlogLogger sets up the default logger for the slog package to emit
// through the logger of the given source.
func SetSlogLogger(source string) {
	var l logger

	if source == "" {
		l = deflog
	} else {
		l = log.get(source)
	}

	slog.SetDefault(slog.New(l.SlogHandler()))
}

func (lg logger) SlogHandler() slog.Handler {
	return &slogger{l: lg}
}

func (s *slogger) Enabled(_ context.Context, level slog.Level) bool {
	switch {
	case level < slog.LevelInfo:
		return s.l.DebugEnabled()
	case level < slog.LevelWarn:
		return log.passes(LevelInfo)
	case level < slog.LevelError:
		return log.passes(LevelWarn)
	}
	return true
}

func (s *slogger) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(r.Message)
	for _, a := range s.attrs {
		s.writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		s.writeAttr(&b, a)
		return true
	})

	msg := b.String()
	switch {
	case r.Level < slog.LevelInfo:
		s.l.Debug("%s", msg)
	case r.Level < slog.LevelWarn:
		s.l.Info("%s", msg)
	case r.Level < slog.LevelError:
		s.l.Warn("%s", msg)
	default:
		s.l.Error("%s", msg)
	}
	return nil
}

func (s *slogger) writeAttr(b *strings.Builder, a slog.Attr) {
	key := a.Key
	if s.group != "" {
		key = s.group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value)
}

func (s *slogger) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *s
	n.attrs = append(append([]slog.Attr{}, s.attrs...), attrs...)
	return &n
}

func (s *slogger) WithGroup(name string) slog.Handler {
	n := *s
	if n.group != "" {
		n.group += "." + name
	} else {
		n.group = name
	}
	return &n
}
