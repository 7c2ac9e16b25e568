// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

// FrameSync owns the GPU synchronization primitives that pace
// double-buffered frames: two semaphores ordering GPU-side stages
// (acquire -> render -> present), two fences gating CPU reuse of
// resources, and one command pool with a draw and a setup buffer.
// Fences start signaled so the first frame's wait passes immediately.
type FrameSync struct {

	// the device owning all primitives
	Dev Device

	// signaled when the acquired image is ready for rendering
	PresentReady Semaphore

	// signaled when rendering is done and the image can be presented
	RenderDone Semaphore

	// gates reuse of the draw command buffer
	DrawFence Fence

	// gates reuse of the setup command buffer
	SetupFence Fence

	// pool the command buffers are allocated from
	Pool CommandPool

	// reusable command buffer for per-frame draw recording
	DrawCmd CommandBuffer

	// command buffer for one-off setup work
	SetupCmd CommandBuffer
}

// NewFrameSync creates all synchronization primitives and the command
// pool with its two buffers.
func NewFrameSync(dev Device) (*FrameSync, error) {
	fs := &FrameSync{Dev: dev}
	var err error
	if fs.PresentReady, err = dev.CreateSemaphore(); err != nil {
		return nil, err
	}
	if fs.RenderDone, err = dev.CreateSemaphore(); err != nil {
		return nil, err
	}
	if fs.DrawFence, err = dev.CreateFence(true); err != nil {
		return nil, err
	}
	if fs.SetupFence, err = dev.CreateFence(true); err != nil {
		return nil, err
	}
	if fs.Pool, err = dev.CreateCommandPool(); err != nil {
		return nil, err
	}
	if err = fs.AllocCmdBuffs(); err != nil {
		return nil, err
	}
	return fs, nil
}

// AllocCmdBuffs allocates the setup and draw command buffers from the
// pool, in that order.
func (fs *FrameSync) AllocCmdBuffs() error {
	cbs, err := fs.Dev.AllocCommandBuffers(fs.Pool, 2)
	if err != nil {
		return err
	}
	fs.SetupCmd = cbs[0]
	fs.DrawCmd = cbs[1]
	return nil
}

// FreeCmdBuffs frees both command buffers back to the pool.  Used
// during swapchain recreation, after the framebuffers are gone and
// before the render pass goes.
func (fs *FrameSync) FreeCmdBuffs() {
	fs.Dev.FreeCommandBuffers(fs.Pool, []CommandBuffer{fs.SetupCmd, fs.DrawCmd})
	fs.SetupCmd = 0
	fs.DrawCmd = 0
}

// RecordSubmit records and submits one frame of draw commands.  It
// first waits on the draw fence from the *previous* frame and resets
// it -- this one-frame-delayed wait bounds reuse of the command buffer
// to "not before the GPU finished with it", while letting CPU
// recording of this frame overlap GPU execution of the last one.  The
// submit waits on PresentReady at the color-output stage and signals
// RenderDone plus the draw fence.
func (fs *FrameSync) RecordSubmit(record func(cb CommandBuffer)) error {
	dev := fs.Dev
	if err := dev.WaitForFence(fs.DrawFence); err != nil {
		return err
	}
	if err := dev.ResetFence(fs.DrawFence); err != nil {
		return err
	}
	if err := dev.ResetCommandBuffer(fs.DrawCmd); err != nil {
		return err
	}
	if err := dev.BeginCommandBuffer(fs.DrawCmd); err != nil {
		return err
	}
	record(fs.DrawCmd)
	if err := dev.EndCommandBuffer(fs.DrawCmd); err != nil {
		return err
	}
	return dev.QueueSubmit(fs.DrawCmd, fs.PresentReady, fs.RenderDone, fs.DrawFence)
}

// Destroy destroys all primitives.  The device must be idle.
func (fs *FrameSync) Destroy() {
	dev := fs.Dev
	dev.DestroySemaphore(fs.PresentReady)
	dev.DestroySemaphore(fs.RenderDone)
	dev.DestroyFence(fs.DrawFence)
	dev.DestroyFence(fs.SetupFence)
	dev.DestroyCommandPool(fs.Pool)
	fs.PresentReady, fs.RenderDone = 0, 0
	fs.DrawFence, fs.SetupFence = 0, 0
	fs.Pool, fs.DrawCmd, fs.SetupCmd = 0, 0, 0
}
