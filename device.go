// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

// Opaque handles for GPU objects, minted by a Device backend.
// 0 is always the nil handle.
type (
	ShaderModule   uint64
	PipelineLayout uint64
	PipelineHandle uint64
	Swapchain      uint64
	Image          uint64
	ImageView      uint64
	RenderPass     uint64
	Framebuffer    uint64
	Semaphore      uint64
	Fence          uint64
	CommandPool    uint64
	CommandBuffer  uint64
)

// Extent is a width, height pair in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// PresentModes are the swapchain presentation scheduling modes.
type PresentModes int32

const (
	// Fifo is vsync with no tearing -- guaranteed to be available.
	Fifo PresentModes = iota

	// Mailbox replaces queued images with newer ones -- low latency.
	Mailbox

	// Immediate presents with no queueing -- may tear.
	Immediate

	PresentModesN
)

func (pm PresentModes) String() string {
	switch pm {
	case Fifo:
		return "Fifo"
	case Mailbox:
		return "Mailbox"
	case Immediate:
		return "Immediate"
	}
	return "PresentModesInvalid"
}

// SurfaceCaps reports the current capabilities of the window surface,
// queried fresh before each swapchain (re)creation.
type SurfaceCaps struct {

	// minimum number of swapchain images the surface requires
	MinImageCount uint32

	// maximum number of swapchain images -- 0 means no limit
	MaxImageCount uint32

	// current surface extent, matching the window client area
	CurrentExtent Extent

	// true if the identity pre-transform is supported
	SupportsIdentity bool

	// present modes the surface supports
	PresentModes []PresentModes
}

// SwapchainConfig has the parameters for creating a swapchain,
// computed by Surface from the current SurfaceCaps.
type SwapchainConfig struct {

	// number of images requested
	ImageCount uint32

	// image resolution
	Extent Extent

	// use the identity pre-transform -- else the surface's current one
	Identity bool

	// presentation mode
	PresentMode PresentModes
}

// Device is the black-box graphics device that the harness renders
// through.  The vkb package implements it with Vulkan; tests implement
// it with a recording fake.  Creation calls can fail, and a failure is
// unrecoverable at the harness level (see Loop).  Destruction calls
// are unconditional and must tolerate being the last reference.
type Device interface {

	// CreateShaderModule uploads compiled SPIR-V words as a
	// GPU-resident shader module.
	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(sm ShaderModule)

	// CreatePipelineLayout makes a layout with a single push-constant
	// range of pushBytes bytes, visible to all stages.
	CreatePipelineLayout(pushBytes int) (PipelineLayout, error)
	DestroyPipelineLayout(pl PipelineLayout)

	// CreateGraphicsPipelines creates all given pipelines in one
	// batch.  On error no pipelines are returned and none leak.
	CreateGraphicsPipelines(cfgs []*PipelineConfig) ([]PipelineHandle, error)
	DestroyPipeline(p PipelineHandle)

	// SurfaceCaps queries the surface capabilities and the current
	// window resolution.
	SurfaceCaps() (SurfaceCaps, error)
	CreateSwapchain(cfg *SwapchainConfig) (Swapchain, error)
	DestroySwapchain(sc Swapchain)

	// SwapchainImages returns the presentable images owned by the
	// swapchain.  The images belong to the chain and are not
	// destroyed individually.
	SwapchainImages(sc Swapchain) ([]Image, error)
	CreateImageView(img Image) (ImageView, error)
	DestroyImageView(iv ImageView)

	// CreateRenderPass makes the render-target description compatible
	// with the surface pixel format: one color attachment, cleared on
	// load, final layout ready for present.
	CreateRenderPass() (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(rp RenderPass, iv ImageView, ext Extent) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sp Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fc Fence)

	// WaitForFence blocks until the fence signals -- no timeout.
	WaitForFence(fc Fence) error
	ResetFence(fc Fence) error

	CreateCommandPool() (CommandPool, error)
	DestroyCommandPool(cp CommandPool)
	AllocCommandBuffers(cp CommandPool, n int) ([]CommandBuffer, error)
	FreeCommandBuffers(cp CommandPool, cbs []CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error

	// Recording commands -- only valid between Begin and
	// EndCommandBuffer on the same buffer.
	CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, ext Extent, clear [4]float32)
	CmdBindPipeline(cb CommandBuffer, p PipelineHandle)
	CmdSetViewport(cb CommandBuffer, ext Extent)
	CmdSetScissor(cb CommandBuffer, ext Extent)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, data []byte)
	CmdDraw(cb CommandBuffer, vtxCount, instCount, firstVtx, firstInst int)
	CmdEndRenderPass(cb CommandBuffer)

	// AcquireNextImage blocks until a presentable image is available,
	// signaling the given semaphore.  Returns the image index.
	AcquireNextImage(sc Swapchain, signal Semaphore) (int, error)

	// QueueSubmit submits one command buffer, waiting on wait at the
	// color-output stage, signaling signal and fence on completion.
	QueueSubmit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error

	// QueuePresent presents the image at imageIndex, waiting on wait.
	QueuePresent(sc Swapchain, imageIndex int, wait Semaphore) error

	// WaitIdle blocks until the device has finished all in-flight work.
	WaitIdle()
}
