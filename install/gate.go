package install

import (
	"context"
	"sync/atomic"
)

// Gate caches a positive IsInstalled answer; installation only goes one way.
type Gate struct {
	in        *Installer
	installed atomic.Bool
}

func NewGate(in *Installer) *Gate { return &Gate{in: in} }

func (g *Gate) Installed(ctx context.Context) bool {
	if g.installed.Load() {
		return true
	}
	if g.in.IsInstalled(ctx) {
		g.installed.Store(true)
		return true
	}
	return false
}

// Installer exposes the wrapped installer.
func (g *Gate) Installer() *Installer { return g.in }
