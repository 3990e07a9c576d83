// Copyright 2024 The skylark Authors
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
	"os"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	debugLevel   = "debug"
	infoLevel    = "info"
	warningLevel = "warn"
	errorLevel   = "error"
	offLevel     = "off"
)

var (
	mu     sync.RWMutex
	logger = NewDefaultLogger(debugLevel, "logfmt")
)

// NewDefaultLogger creates a new go-kit logger with the configured level and format.
func NewDefaultLogger(lv, format string) kitlog.Logger {
	var lg kitlog.Logger
	var allow level.Option

	w := kitlog.NewSyncWriter(os.Stderr)
	if format == "json" {
		lg = kitlog.NewJSONLogger(w)
	} else {
		lg = kitlog.NewLogfmtLogger(w)
	}
	switch lv {
	case debugLevel:
		allow = level.AllowDebug()
	case infoLevel:
		allow = level.AllowInfo()
	case warningLevel:
		allow = level.AllowWarn()
	case errorLevel:
		allow = level.AllowError()
	case offLevel:
		allow = level.AllowNone()
	default:
		allow = level.AllowAll()
	}
	return kitlog.With(level.NewFilter(lg, allow), "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(4))
}

// SetDefaultLogger sets lg as the package default logger.
func SetDefaultLogger(lg kitlog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = lg
}

// Debugf uses fmt.Sprintf to log a 'debug' templated message.
func Debugf(msg string, args ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Debug(lg).Log("msg", fmt.Sprintf(msg, args...))
	})
}

// Debugw writes a 'debug' message to configured logger with some additional context.
func Debugw(msg string, keysAndValues ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Debug(lg).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
	})
}

// Infof uses fmt.Sprintf to log an 'info' templated message.
func Infof(msg string, args ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Info(lg).Log("msg", fmt.Sprintf(msg, args...))
	})
}

// Infow writes an 'info' message to configured logger with some additional context.
func Infow(msg string, keysAndValues ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Info(lg).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
	})
}

// Warnf uses fmt.Sprintf to log a 'warn' templated message.
func Warnf(msg string, args ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Warn(lg).Log("msg", fmt.Sprintf(msg, args...))
	})
}

// Warnw writes a 'warning' message to configured logger with some additional context.
func Warnw(msg string, keysAndValues ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Warn(lg).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
	})
}

// Errorf uses fmt.Sprintf to log an 'error' templated message.
func Errorf(msg string, args ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Error(lg).Log("msg", fmt.Sprintf(msg, args...))
	})
}

// Errorw writes an 'error' message to configured logger with some additional context.
func Errorw(msg string, keysAndValues ...interface{}) {
	withLogger(func(lg kitlog.Logger) {
		_ = level.Error(lg).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
	})
}

func withLogger(f func(lg kitlog.Logger)) {
	mu.RLock()
	defer mu.RUnlock()
	f(logger)
}
