// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"fmt"
	"strings"
)

// fakeDevice is a recording Device: every call appends to Ops, handles
// are minted from a counter, and failures can be injected per call
// family.  It lets the full harness logic run without a GPU.
type fakeDevice struct {
	next uint64
	Ops  []string

	// configurable surface capabilities
	Caps    SurfaceCaps
	CapsErr error

	// injected failures -- nil means success
	ShaderErr   error
	PipelineErr error
	AcquireErr  error
	PresentErr  error

	// number of images per swapchain
	NImages int

	// image index returned by AcquireNextImage
	AcquireIdx int

	// last swapchain config seen by CreateSwapchain
	LastConfig SwapchainConfig

	// pipeline configs seen by the last CreateGraphicsPipelines
	LastPipelineCfgs []*PipelineConfig

	live map[uint64]string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		Caps: SurfaceCaps{
			MinImageCount:    2,
			CurrentExtent:    Extent{Width: 1280, Height: 720},
			SupportsIdentity: true,
			PresentModes:     []PresentModes{Fifo, Mailbox},
		},
		NImages: 3,
		live:    make(map[uint64]string),
	}
}

func (d *fakeDevice) op(format string, args ...any) {
	d.Ops = append(d.Ops, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) mint(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *fakeDevice) drop(h uint64) {
	delete(d.live, h)
}

// liveCount returns how many handles of the given kind are alive.
func (d *fakeDevice) liveCount(kind string) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// opIndex returns the index of the first op with the given prefix at
// or after from, or -1.
func (d *fakeDevice) opIndex(prefix string, from int) int {
	for i := from; i < len(d.Ops); i++ {
		if strings.HasPrefix(d.Ops[i], prefix) {
			return i
		}
	}
	return -1
}

// opCount returns how many ops have the given prefix.
func (d *fakeDevice) opCount(prefix string) int {
	n := 0
	for _, op := range d.Ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func (d *fakeDevice) CreateShaderModule(code []uint32) (ShaderModule, error) {
	if d.ShaderErr != nil {
		return 0, d.ShaderErr
	}
	h := d.mint("shader")
	d.op("CreateShaderModule %d", h)
	return ShaderModule(h), nil
}

func (d *fakeDevice) DestroyShaderModule(sm ShaderModule) {
	d.op("DestroyShaderModule %d", sm)
	d.drop(uint64(sm))
}

func (d *fakeDevice) CreatePipelineLayout(pushBytes int) (PipelineLayout, error) {
	h := d.mint("layout")
	d.op("CreatePipelineLayout %d bytes %d", h, pushBytes)
	return PipelineLayout(h), nil
}

func (d *fakeDevice) DestroyPipelineLayout(pl PipelineLayout) {
	d.op("DestroyPipelineLayout %d", pl)
	d.drop(uint64(pl))
}

func (d *fakeDevice) CreateGraphicsPipelines(cfgs []*PipelineConfig) ([]PipelineHandle, error) {
	d.LastPipelineCfgs = cfgs
	if d.PipelineErr != nil {
		return nil, d.PipelineErr
	}
	handles := make([]PipelineHandle, len(cfgs))
	for i := range cfgs {
		h := d.mint("pipeline")
		handles[i] = PipelineHandle(h)
	}
	d.op("CreateGraphicsPipelines %d", len(cfgs))
	return handles, nil
}

func (d *fakeDevice) DestroyPipeline(p PipelineHandle) {
	d.op("DestroyPipeline %d", p)
	d.drop(uint64(p))
}

func (d *fakeDevice) SurfaceCaps() (SurfaceCaps, error) {
	d.op("SurfaceCaps")
	if d.CapsErr != nil {
		return SurfaceCaps{}, d.CapsErr
	}
	return d.Caps, nil
}

func (d *fakeDevice) CreateSwapchain(cfg *SwapchainConfig) (Swapchain, error) {
	d.LastConfig = *cfg
	h := d.mint("swapchain")
	d.op("CreateSwapchain %d", h)
	return Swapchain(h), nil
}

func (d *fakeDevice) DestroySwapchain(sc Swapchain) {
	d.op("DestroySwapchain %d", sc)
	d.drop(uint64(sc))
}

func (d *fakeDevice) SwapchainImages(sc Swapchain) ([]Image, error) {
	d.op("SwapchainImages %d", sc)
	imgs := make([]Image, d.NImages)
	for i := range imgs {
		imgs[i] = Image(d.mint("image"))
	}
	return imgs, nil
}

func (d *fakeDevice) CreateImageView(img Image) (ImageView, error) {
	h := d.mint("view")
	d.op("CreateImageView %d", h)
	return ImageView(h), nil
}

func (d *fakeDevice) DestroyImageView(iv ImageView) {
	d.op("DestroyImageView %d", iv)
	d.drop(uint64(iv))
}

func (d *fakeDevice) CreateRenderPass() (RenderPass, error) {
	h := d.mint("renderpass")
	d.op("CreateRenderPass %d", h)
	return RenderPass(h), nil
}

func (d *fakeDevice) DestroyRenderPass(rp RenderPass) {
	d.op("DestroyRenderPass %d", rp)
	d.drop(uint64(rp))
}

func (d *fakeDevice) CreateFramebuffer(rp RenderPass, iv ImageView, ext Extent) (Framebuffer, error) {
	h := d.mint("framebuffer")
	d.op("CreateFramebuffer %d", h)
	return Framebuffer(h), nil
}

func (d *fakeDevice) DestroyFramebuffer(fb Framebuffer) {
	d.op("DestroyFramebuffer %d", fb)
	d.drop(uint64(fb))
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	h := d.mint("semaphore")
	d.op("CreateSemaphore %d", h)
	return Semaphore(h), nil
}

func (d *fakeDevice) DestroySemaphore(sp Semaphore) {
	d.op("DestroySemaphore %d", sp)
	d.drop(uint64(sp))
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	h := d.mint("fence")
	d.op("CreateFence %d signaled %v", h, signaled)
	return Fence(h), nil
}

func (d *fakeDevice) DestroyFence(fc Fence) {
	d.op("DestroyFence %d", fc)
	d.drop(uint64(fc))
}

func (d *fakeDevice) WaitForFence(fc Fence) error {
	d.op("WaitForFence %d", fc)
	return nil
}

func (d *fakeDevice) ResetFence(fc Fence) error {
	d.op("ResetFence %d", fc)
	return nil
}

func (d *fakeDevice) CreateCommandPool() (CommandPool, error) {
	h := d.mint("pool")
	d.op("CreateCommandPool %d", h)
	return CommandPool(h), nil
}

func (d *fakeDevice) DestroyCommandPool(cp CommandPool) {
	d.op("DestroyCommandPool %d", cp)
	d.drop(uint64(cp))
}

func (d *fakeDevice) AllocCommandBuffers(cp CommandPool, n int) ([]CommandBuffer, error) {
	d.op("AllocCommandBuffers %d", n)
	cbs := make([]CommandBuffer, n)
	for i := range cbs {
		cbs[i] = CommandBuffer(d.mint("cmdbuf"))
	}
	return cbs, nil
}

func (d *fakeDevice) FreeCommandBuffers(cp CommandPool, cbs []CommandBuffer) {
	d.op("FreeCommandBuffers %d", len(cbs))
	for _, cb := range cbs {
		d.drop(uint64(cb))
	}
}

func (d *fakeDevice) ResetCommandBuffer(cb CommandBuffer) error {
	d.op("ResetCommandBuffer %d", cb)
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb CommandBuffer) error {
	d.op("BeginCommandBuffer %d", cb)
	return nil
}

func (d *fakeDevice) EndCommandBuffer(cb CommandBuffer) error {
	d.op("EndCommandBuffer %d", cb)
	return nil
}

func (d *fakeDevice) CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, ext Extent, clear [4]float32) {
	d.op("CmdBeginRenderPass %d fb %d", rp, fb)
}

func (d *fakeDevice) CmdBindPipeline(cb CommandBuffer, p PipelineHandle) {
	d.op("CmdBindPipeline %d", p)
}

func (d *fakeDevice) CmdSetViewport(cb CommandBuffer, ext Extent) {
	d.op("CmdSetViewport %dx%d", ext.Width, ext.Height)
}

func (d *fakeDevice) CmdSetScissor(cb CommandBuffer, ext Extent) {
	d.op("CmdSetScissor %dx%d", ext.Width, ext.Height)
}

func (d *fakeDevice) CmdPushConstants(cb CommandBuffer, layout PipelineLayout, data []byte) {
	d.op("CmdPushConstants %d bytes", len(data))
}

func (d *fakeDevice) CmdDraw(cb CommandBuffer, vtxCount, instCount, firstVtx, firstInst int) {
	d.op("CmdDraw %d", vtxCount)
}

func (d *fakeDevice) CmdEndRenderPass(cb CommandBuffer) {
	d.op("CmdEndRenderPass")
}

func (d *fakeDevice) AcquireNextImage(sc Swapchain, signal Semaphore) (int, error) {
	d.op("AcquireNextImage %d", sc)
	if d.AcquireErr != nil {
		return 0, d.AcquireErr
	}
	return d.AcquireIdx, nil
}

func (d *fakeDevice) QueueSubmit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error {
	d.op("QueueSubmit cb %d wait %d signal %d fence %d", cb, wait, signal, fence)
	return nil
}

func (d *fakeDevice) QueuePresent(sc Swapchain, imageIndex int, wait Semaphore) error {
	d.op("QueuePresent %d idx %d wait %d", sc, imageIndex, wait)
	return d.PresentErr
}

func (d *fakeDevice) WaitIdle() {
	d.op("WaitIdle")
}

var _ Device = (*fakeDevice)(nil)
