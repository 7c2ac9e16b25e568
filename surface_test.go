// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T) (*fakeDevice, *Surface, *FrameSync) {
	t.Helper()
	dev := newFakeDevice()
	sync, err := NewFrameSync(dev)
	require.NoError(t, err)
	sf := NewSurface(dev)
	require.NoError(t, sf.Create())
	return dev, sf, sync
}

func TestSurfaceCreate(t *testing.T) {
	dev, sf, _ := newTestChain(t)

	assert.Equal(t, Extent{Width: 1280, Height: 720}, sf.Extent)
	assert.Len(t, sf.Images, dev.NImages)
	assert.Len(t, sf.Views, dev.NImages)
	assert.Len(t, sf.Framebuffers, dev.NImages)
	assert.NotZero(t, sf.RenderPass)

	// min+1 images requested, identity transform, mailbox preferred
	assert.Equal(t, uint32(3), dev.LastConfig.ImageCount)
	assert.True(t, dev.LastConfig.Identity)
	assert.Equal(t, Mailbox, dev.LastConfig.PresentMode)
}

func TestSurfaceConfigClamp(t *testing.T) {
	dev := newFakeDevice()
	dev.Caps.MinImageCount = 3
	dev.Caps.MaxImageCount = 3
	sf := NewSurface(dev)
	require.NoError(t, sf.Create())
	assert.Equal(t, uint32(3), dev.LastConfig.ImageCount)
}

func TestSurfaceConfigFifoFallback(t *testing.T) {
	dev := newFakeDevice()
	dev.Caps.PresentModes = []PresentModes{Fifo, Immediate}
	sf := NewSurface(dev)
	require.NoError(t, sf.Create())
	assert.Equal(t, Fifo, dev.LastConfig.PresentMode)
}

func TestSurfaceConfigTransformFallback(t *testing.T) {
	dev := newFakeDevice()
	dev.Caps.SupportsIdentity = false
	sf := NewSurface(dev)
	require.NoError(t, sf.Create())
	assert.False(t, dev.LastConfig.Identity)
}

// The teardown half of a recreate must run in strict dependency order,
// after a device idle wait, and the old chain must be fully gone
// before any new object is created.
func assertRecreateOrder(t *testing.T, dev *fakeDevice) {
	t.Helper()
	wait := dev.opIndex("WaitIdle", 0)
	dfb := dev.opIndex("DestroyFramebuffer", 0)
	free := dev.opIndex("FreeCommandBuffers", 0)
	drp := dev.opIndex("DestroyRenderPass", 0)
	div := dev.opIndex("DestroyImageView", 0)
	dsc := dev.opIndex("DestroySwapchain", 0)
	csc := dev.opIndex("CreateSwapchain", 0)

	require.NotEqual(t, -1, wait)
	require.NotEqual(t, -1, csc)
	assert.Less(t, wait, dfb, "idle wait before any destruction")
	assert.Less(t, dfb, free, "framebuffers before command buffers")
	assert.Less(t, free, drp, "command buffers before render pass")
	assert.Less(t, drp, div, "render pass before image views")
	assert.Less(t, div, dsc, "image views before swapchain")
	assert.Less(t, dsc, csc, "old chain fully destroyed before the new one is created")
}

func TestSurfaceRecreateOrder(t *testing.T) {
	dev, sf, sync := newTestChain(t)

	dev.Ops = nil
	dev.Caps.CurrentExtent = Extent{Width: 800, Height: 600}
	require.NoError(t, sf.Recreate(sync))

	assertRecreateOrder(t, dev)
	assert.Equal(t, Extent{Width: 800, Height: 600}, sf.Extent)
}

func TestSurfaceRecreateRandomResizes(t *testing.T) {
	dev, sf, sync := newTestChain(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		dev.Ops = nil
		ext := Extent{
			Width:  uint32(1 + rng.Intn(3840)),
			Height: uint32(1 + rng.Intn(2160)),
		}
		dev.Caps.CurrentExtent = ext
		require.NoError(t, sf.Recreate(sync))
		assertRecreateOrder(t, dev)
		assert.Equal(t, ext, sf.Extent)

		// exactly one generation alive, nothing orphaned
		assert.Equal(t, 1, dev.liveCount("swapchain"))
		assert.Equal(t, 1, dev.liveCount("renderpass"))
		assert.Equal(t, dev.NImages, dev.liveCount("view"))
		assert.Equal(t, dev.NImages, dev.liveCount("framebuffer"))
		assert.Equal(t, 2, dev.liveCount("cmdbuf"))
	}
}

func TestSurfaceDestroy(t *testing.T) {
	dev, sf, sync := newTestChain(t)
	sf.Destroy()
	sync.Destroy()
	assert.Equal(t, 0, dev.liveCount("swapchain"))
	assert.Equal(t, 0, dev.liveCount("renderpass"))
	assert.Equal(t, 0, dev.liveCount("view"))
	assert.Equal(t, 0, dev.liveCount("framebuffer"))
	assert.Equal(t, 0, dev.liveCount("semaphore"))
	assert.Equal(t, 0, dev.liveCount("fence"))
	assert.Equal(t, 0, dev.liveCount("pool"))
	assert.Zero(t, sf.Swapchain)
}
