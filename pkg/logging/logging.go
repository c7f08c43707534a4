// Package logging provides the package-wide logger used across the SDK.
//
// Components do not take a logger of their own: each derives a named logger
// from the one installed here with SetLogger (see Named) when it is built.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	log = l.Sugar().Named("livekit")
}

// SetLogger replaces the package default logger. Pass nil to restore the
// production default.
func SetLogger(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		base, _ := zap.NewProduction()
		l = base.Sugar().Named("livekit")
	}
	log = l
}

// Get returns the current default logger.
func Get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Named returns the default logger scoped under name; every component takes
// its logger this way.
func Named(name string) *zap.SugaredLogger {
	return Get().Named(name)
}
