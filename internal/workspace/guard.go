package workspace

import (
	"context"
	"log/slog"
	"os"

	"github.com/dotcommander/zjj/internal/vcs"
)

// ScopedGuard owns a workspace created through a vcs.Driver and guarantees
// its teardown on every exit path, including a panicking one, unless
// explicitly disarmed.
type ScopedGuard struct {
	driver vcs.Driver
	name   string
	path   string
	armed  bool
}

// CreateWorkspace invokes driver.WorkspaceAdd and returns a guard owning the
// new workspace, armed for automatic cleanup.
func CreateWorkspace(ctx context.Context, driver vcs.Driver, name, path string) (*ScopedGuard, error) {
	if err := driver.WorkspaceAdd(ctx, name, path); err != nil {
		return nil, err
	}
	return &ScopedGuard{driver: driver, name: name, path: path, armed: true}, nil
}

// Disarm transitions the guard to unarmed; subsequent Release calls are a
// no-op. Call this once a workspace has been handed off to a longer-lived
// owner that will manage its own cleanup.
func (g *ScopedGuard) Disarm() {
	g.armed = false
}

// Armed reports whether the guard will still act on Release.
func (g *ScopedGuard) Armed() bool { return g.armed }

// Cleanup performs the release explicitly and disarms the guard. Safe to
// call multiple times.
func (g *ScopedGuard) Cleanup(ctx context.Context) {
	g.release(ctx)
	g.armed = false
}

// Release runs best-effort teardown if the guard is still armed: forgets the
// workspace via the driver, then recursively removes its directory. Failures
// are logged, never propagated or panicked — this method must be safe to
// call from a deferred recover() in a panicking goroutine.
func (g *ScopedGuard) Release(ctx context.Context) {
	g.release(ctx)
}

func (g *ScopedGuard) release(ctx context.Context) {
	if !g.armed {
		return
	}
	if err := g.driver.WorkspaceForget(ctx, g.name); err != nil {
		slog.Warn("scoped workspace guard: forget failed", "workspace", g.name, "error", err)
	}
	if err := os.RemoveAll(g.path); err != nil {
		slog.Warn("scoped workspace guard: directory removal failed", "workspace", g.name, "path", g.path, "error", err)
	}
	g.armed = false
}

// ReleaseOnPanic is meant to be deferred immediately after CreateWorkspace
// succeeds: it recovers any panic from the caller's remaining scope, runs
// Release, and re-panics so the original failure still propagates.
func (g *ScopedGuard) ReleaseOnPanic(ctx context.Context) {
	if r := recover(); r != nil {
		g.release(ctx)
		panic(r)
	}
}
