package config

import (
	"sync"
)

// Live holds the configuration in effect. The server reads it for every
// new page so a reloaded file applies without a restart.
type Live struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewLive returns a holder for cfg.
func NewLive(cfg *Config) *Live {
	return &Live{cfg: cfg}
}

// Get returns the current configuration. Callers must not modify it.
func (l *Live) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Set replaces the configuration.
func (l *Live) Set(cfg *Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}
