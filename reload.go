// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Reloader is the cross-thread handoff between a background shader
// compile and the render loop.  It has three states: Idle, Compiling,
// and RebuildPending.  Request moves Idle to Compiling and spawns the
// compile goroutine; the goroutine moves Compiling to RebuildPending
// on success (or back to Idle on failure); Poll, called once per loop
// iteration on the render thread, drains the staged shaders and moves
// RebuildPending back to Idle.
//
// At most one compile is in flight: Request is guarded by a
// compare-and-swap, and a request arriving while Compiling is dropped,
// not queued.  No GPU handle ever crosses threads here -- only the
// compiled SPIR-V words do.
type Reloader struct {

	// Compile produces the new shaders -- typically Compiler.Compile.
	// It runs on the spawned goroutine and must not touch GPU state.
	Compile func() ([]SpirvShader, error)

	// optional structured logger -- nil is quiet
	Log *zap.Logger

	compiling      atomic.Bool
	rebuildPending atomic.Bool

	// staged is written by the compile goroutine while compiling is
	// true, and drained by the render thread only after it observes
	// compiling false and rebuildPending true.
	mu     sync.Mutex
	staged []SpirvShader
}

// NewReloader returns a Reloader using the given compile function.
func NewReloader(compile func() ([]SpirvShader, error)) *Reloader {
	return &Reloader{Compile: compile}
}

func (rl *Reloader) logger() *zap.Logger {
	if rl.Log == nil {
		return zap.NewNop()
	}
	return rl.Log
}

// Compiling reports whether a background compile is in flight.
func (rl *Reloader) Compiling() bool {
	return rl.compiling.Load()
}

// RebuildPending reports whether compiled shaders are staged and
// waiting for the render loop to consume them.
func (rl *Reloader) RebuildPending() bool {
	return rl.rebuildPending.Load()
}

// Request triggers a background compile.  If one is already in flight
// the request is dropped silently -- no queueing, no cancellation.
// Returns true if a compile was started.
func (rl *Reloader) Request() bool {
	if !rl.compiling.CompareAndSwap(false, true) {
		rl.logger().Debug("reload requested while compiling -- dropped")
		return false
	}
	go rl.run()
	return true
}

// run is the body of the compile goroutine.  The store order at the
// end matters: staged must be fully written before rebuildPending
// becomes observable, and compiling clears last so Poll never sees
// pending results while the goroutine could still be writing.
func (rl *Reloader) run() {
	shaders, err := rl.Compile()
	if err != nil {
		rl.logger().Warn("shader compile failed -- keeping last-good shaders", zap.Error(err))
		rl.compiling.Store(false)
		return
	}
	rl.mu.Lock()
	rl.staged = shaders
	rl.mu.Unlock()
	rl.rebuildPending.Store(true)
	rl.compiling.Store(false)
	rl.logger().Info("shader compile finished", zap.Int("modules", len(shaders)))
}

// Poll is called once per render-loop iteration, on the render thread.
// If a finished compile is waiting it returns the staged shaders and
// true, and the Reloader returns to Idle.  The caller then inserts the
// shaders into the Registry and rebuilds the pipelines before
// rendering the next frame.
func (rl *Reloader) Poll() ([]SpirvShader, bool) {
	if rl.compiling.Load() || !rl.rebuildPending.Load() {
		return nil, false
	}
	rl.mu.Lock()
	shaders := rl.staged
	rl.staged = nil
	rl.mu.Unlock()
	rl.rebuildPending.Store(false)
	return shaders, true
}
