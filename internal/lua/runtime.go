// Package lua runs the optional automation script. All Lua execution
// happens on a single worker goroutine fed through a work queue.
package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/eventbus"
	"github.com/dokzlo13/huebridge/internal/lua/modules"
)

const workQueueSize = 100

// LuaWork represents work to be executed on the Lua VM.
// All Lua execution MUST go through this.
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L *lua.LState

	bridge *modules.BridgeModule

	workQueue chan LuaWork

	// closing is closed to tell senders to stop
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a Lua runtime with the log and bridge modules preloaded.
// Commands issued by scripts go through applier.
func NewRuntime(registry *device.Registry, applier modules.Applier, lightID func(int) uint32) *Runtime {
	r := &Runtime{
		L:         lua.NewState(),
		bridge:    modules.NewBridgeModule(registry, applier, lightID),
		workQueue: make(chan LuaWork, workQueueSize),
		closing:   make(chan struct{}),
	}
	r.L.PreloadModule("bridge", r.bridge.Loader)
	return r
}

// SetHistory backs bridge.history with the command ledger (must be called
// before Run).
func (r *Runtime) SetHistory(h modules.History) {
	r.bridge.SetHistory(h)
}

// Close signals the runtime to stop accepting new work and closes the Lua state.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	// workQueue is left open; Run exits on the closing signal.
	r.L.Close()
}

// Do queues work without blocking. It returns false if the runtime is
// closing, the queue is full or ctx is done.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// HandleEvent forwards light.changed events to the script's change handlers.
// It is an eventbus.Handler and never blocks the bus worker.
func (r *Runtime) HandleEvent(e eventbus.Event) {
	data := e.Data
	r.Do(context.Background(), func(ctx context.Context) {
		r.bridge.Notify(r.L, data)
	})
}

// Handlers returns how many change handlers the script registered.
// Must run on the Lua worker or before Run.
func (r *Runtime) Handlers() int {
	return r.bridge.HandlerCount()
}

// Run starts the Lua worker goroutine, the only goroutine that touches Lua.
// It exits when ctx is cancelled or the runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue before exiting
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(path string) error {
	r.L.PreloadModule("log", modules.NewLogModule(filepath.Base(path)).Loader)

	log.Info().Str("path", path).Msg("Loading Lua script")
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Int("handlers", r.bridge.HandlerCount()).Msg("Lua script loaded successfully")
	return nil
}

// LoadString executes Lua source under the given name (must be called before Run)
func (r *Runtime) LoadString(name, src string) error {
	r.L.PreloadModule("log", modules.NewLogModule(name).Loader)

	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("failed to execute Lua script %s: %w", name, err)
	}
	return nil
}
