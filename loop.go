// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// RenderParams is the small fixed-layout record pushed to the GPU once
// per pipeline per frame: the current surface resolution.  The render
// loop always pushes the live resolution, so rendering is not
// stretched after a resize.
type RenderParams struct {
	Width  uint32
	Height uint32
}

// RenderParamsBytes is the push-constant block size for RenderParams.
const RenderParamsBytes = 8

// Bytes returns the record in GPU push-constant layout (little-endian,
// two consecutive 32-bit words).
func (rp RenderParams) Bytes() []byte {
	return []byte{
		byte(rp.Width), byte(rp.Width >> 8), byte(rp.Width >> 16), byte(rp.Width >> 24),
		byte(rp.Height), byte(rp.Height >> 8), byte(rp.Height >> 16), byte(rp.Height >> 24),
	}
}

// EventKinds are the window event kinds the loop reacts to.
type EventKinds int32

const (
	// CloseEvent is a window close request -- terminates the loop.
	CloseEvent EventKinds = iota

	// ResizeEvent carries the new client-area size.
	ResizeEvent

	// KeyEvent is a key press.
	KeyEvent

	EventKindsN
)

// Keys are the key codes the loop cares about.  The window adapter
// maps its native codes to these; anything else is KeyUnknown.
type Keys int32

const (
	KeyUnknown Keys = iota
	KeyEscape
	KeyF5
	KeysN
)

// Event is one discrete window or input event.
type Event struct {

	// what happened
	Kind EventKinds

	// new client-area size, for ResizeEvent
	Size Extent

	// pressed key, for KeyEvent
	Key Keys
}

// Events is the black-box window event source.  Poll returns the
// events accumulated since the last call, in order, without blocking.
type Events interface {
	Poll() []Event
}

// Loop is the top-level render loop driver.  Each iteration dispatches
// window events (close, resize, keys), polls the Reloader at the one
// safe point where shader modules may be swapped, and renders one
// frame.  It runs on a single thread that is the sole owner of every
// GPU handle.
type Loop struct {

	// the graphics device
	Dev Device

	// window event source
	Events Events

	// presentation chain manager
	Surface *Surface

	// frame pacing primitives
	Sync *FrameSync

	// shader name to module handle mapping
	Registry *Registry

	// the pipelines rendered each frame
	Pipelines *PipelineSet

	// background-compile handoff
	Reloader *Reloader

	// key that triggers a shader reload -- default KeyF5
	ReloadKey Keys

	// render pass clear color
	ClearColor [4]float32

	// frame pacing rate -- default 60
	FPS int

	// optional structured logger -- nil is quiet
	Log *zap.Logger

	quit bool
}

// NewLoop assembles a Loop and all its owned components on the given
// device, creating the surface chain, the sync primitives, and an
// empty registry and pipeline set.  compile is the background compile
// function handed to the Reloader, typically Compiler.Compile.
func NewLoop(dev Device, ev Events, compile func() ([]SpirvShader, error)) (*Loop, error) {
	sync, err := NewFrameSync(dev)
	if err != nil {
		return nil, err
	}
	sf := NewSurface(dev)
	if err := sf.Create(); err != nil {
		return nil, err
	}
	reg := NewRegistry(dev)
	lp := &Loop{
		Dev:        dev,
		Events:     ev,
		Surface:    sf,
		Sync:       sync,
		Registry:   reg,
		Pipelines:  NewPipelineSet(dev, reg),
		Reloader:   NewReloader(compile),
		ReloadKey:  KeyF5,
		ClearColor: [4]float32{0, 0, 1, 0},
		FPS:        60,
	}
	return lp, nil
}

func (lp *Loop) logger() *zap.Logger {
	if lp.Log == nil {
		return zap.NewNop()
	}
	return lp.Log
}

// Stop makes Run return after the current iteration.
func (lp *Loop) Stop() {
	lp.quit = true
}

// Run drives the loop until Stop, Escape, or a close request -- or
// until a device, acquire, or present failure, which is returned and
// terminates rendering (no retry exists for those).  Must be called on
// the render thread.
func (lp *Loop) Run() error {
	tick := time.NewTicker(time.Second / time.Duration(lp.FPS))
	defer tick.Stop()
	for !lp.quit {
		if err := lp.Step(); err != nil {
			return err
		}
		<-tick.C
	}
	return nil
}

// Step runs exactly one loop iteration: dispatch pending events, poll
// the reload handoff, render one frame.  Split out from Run so tests
// and callers with their own pacing can drive iterations directly.
func (lp *Loop) Step() error {
	for _, ev := range lp.Events.Poll() {
		if err := lp.dispatch(ev); err != nil {
			return err
		}
		if lp.quit {
			return nil
		}
	}
	if err := lp.pollReload(); err != nil {
		return err
	}
	return lp.renderFrame()
}

func (lp *Loop) dispatch(ev Event) error {
	switch ev.Kind {
	case CloseEvent:
		lp.quit = true
	case ResizeEvent:
		lp.logger().Info("resize", zap.Uint32("width", ev.Size.Width), zap.Uint32("height", ev.Size.Height))
		return lp.Surface.Recreate(lp.Sync)
	case KeyEvent:
		switch ev.Key {
		case KeyEscape:
			lp.quit = true
		case lp.ReloadKey:
			lp.Reloader.Request()
		}
	}
	return nil
}

// pollReload consumes a finished background compile, if any: each
// staged module replaces its registry entry, then the whole pipeline
// set is rebuilt.  An unresolved module name aborts the rebuild but is
// not fatal -- the previous pipelines keep rendering.  Device errors
// propagate and terminate the loop.
func (lp *Loop) pollReload() error {
	shaders, ok := lp.Reloader.Poll()
	if !ok {
		return nil
	}
	for _, sh := range shaders {
		if err := lp.Registry.Insert(sh); err != nil {
			return err
		}
	}
	err := lp.Pipelines.Rebuild(lp.Surface.RenderPass)
	var unres *UnresolvedShaderModule
	if errors.As(err, &unres) {
		lp.logger().Warn("pipeline rebuild aborted", zap.Error(err))
		return nil
	}
	return err
}

// renderFrame renders and presents one frame: acquire the next image,
// record one render pass per pipeline into the reusable draw buffer
// (dynamic viewport and scissor from the live resolution, push the
// RenderParams record, one 3-vertex draw), and present.  Acquire and
// present failures are fatal: the frame cannot be produced.
func (lp *Loop) renderFrame() error {
	if len(lp.Pipelines.Pipelines) == 0 {
		return nil // nothing to render, and presenting an unwritten image would deadlock
	}
	idx, err := lp.Dev.AcquireNextImage(lp.Surface.Swapchain, lp.Sync.PresentReady)
	if err != nil {
		return err
	}
	fb := lp.Surface.Framebuffers[idx]
	ext := lp.Surface.Extent
	push := RenderParams{Width: ext.Width, Height: ext.Height}.Bytes()
	for _, pl := range lp.Pipelines.Pipelines {
		err := lp.Sync.RecordSubmit(func(cb CommandBuffer) {
			lp.Dev.CmdBeginRenderPass(cb, lp.Surface.RenderPass, fb, ext, lp.ClearColor)
			lp.Dev.CmdBindPipeline(cb, pl.Pipeline)
			lp.Dev.CmdSetViewport(cb, ext)
			lp.Dev.CmdSetScissor(cb, ext)
			lp.Dev.CmdPushConstants(cb, lp.Pipelines.Layout, push)
			lp.Dev.CmdDraw(cb, 3, 1, 0, 0)
			lp.Dev.CmdEndRenderPass(cb)
		})
		if err != nil {
			return err
		}
	}
	return lp.Dev.QueuePresent(lp.Surface.Swapchain, idx, lp.Sync.RenderDone)
}

// Destroy releases everything the loop owns, in dependency order,
// after draining in-flight GPU work.
func (lp *Loop) Destroy() {
	lp.Dev.WaitIdle()
	lp.Pipelines.Destroy()
	lp.Registry.Destroy()
	lp.Surface.Destroy()
	lp.Sync.Destroy()
}
