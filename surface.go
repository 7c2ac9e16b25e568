// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import "go.uber.org/zap"

// Surface manages the presentation image chain for a window: the
// swapchain, the per-image views, the render-target description
// (render pass), and the per-image framebuffers.  Its resolution
// always matches the window client area as of the last (re)creation.
// On resize, Recreate tears the whole generation down in strict
// dependency order -- after a device idle wait -- before constructing
// the next one, so no in-flight frame is corrupted and nothing is
// orphaned.
type Surface struct {

	// the device that owns all chain objects
	Dev Device

	// number of images to request beyond the surface minimum
	ExtraImages uint32

	// vulkan-level swapchain handle
	Swapchain Swapchain

	// presentable images, owned by the swapchain
	Images []Image

	// one view per image
	Views []ImageView

	// render-target description shared by all framebuffers
	RenderPass RenderPass

	// one framebuffer per image
	Framebuffers []Framebuffer

	// resolution of the current generation
	Extent Extent

	// optional structured logger -- nil is quiet
	Log *zap.Logger
}

// NewSurface returns a Surface for the given device, requesting one
// image beyond the surface minimum.
func NewSurface(dev Device) *Surface {
	return &Surface{Dev: dev, ExtraImages: 1}
}

// config computes the swapchain parameters from fresh surface caps:
// min+1 images clamped to the surface maximum, identity pre-transform
// when supported (else the surface's current transform), and Mailbox
// presentation when available (else Fifo, which is always available).
func (sf *Surface) config() (*SwapchainConfig, error) {
	caps, err := sf.Dev.SurfaceCaps()
	if err != nil {
		return nil, err
	}
	count := caps.MinImageCount + sf.ExtraImages
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	mode := Fifo
	for _, pm := range caps.PresentModes {
		if pm == Mailbox {
			mode = Mailbox
			break
		}
	}
	return &SwapchainConfig{
		ImageCount:  count,
		Extent:      caps.CurrentExtent,
		Identity:    caps.SupportsIdentity,
		PresentMode: mode,
	}, nil
}

// Create builds the first generation of the chain: swapchain, views,
// render pass, and framebuffers.  The FrameSync command buffers are
// already allocated by NewFrameSync.
func (sf *Surface) Create() error {
	cfg, err := sf.config()
	if err != nil {
		return err
	}
	if sf.Swapchain, err = sf.Dev.CreateSwapchain(cfg); err != nil {
		return err
	}
	sf.Extent = cfg.Extent
	if sf.Images, err = sf.Dev.SwapchainImages(sf.Swapchain); err != nil {
		return err
	}
	sf.Views = make([]ImageView, len(sf.Images))
	for i, img := range sf.Images {
		if sf.Views[i], err = sf.Dev.CreateImageView(img); err != nil {
			return err
		}
	}
	if sf.RenderPass, err = sf.Dev.CreateRenderPass(); err != nil {
		return err
	}
	sf.Framebuffers = make([]Framebuffer, len(sf.Views))
	for i, iv := range sf.Views {
		if sf.Framebuffers[i], err = sf.Dev.CreateFramebuffer(sf.RenderPass, iv, sf.Extent); err != nil {
			return err
		}
	}
	if sf.Log != nil {
		sf.Log.Info("surface chain created",
			zap.Uint32("width", sf.Extent.Width),
			zap.Uint32("height", sf.Extent.Height),
			zap.Int("images", len(sf.Images)))
	}
	return nil
}

// free destroys the current generation in strict dependency order:
// framebuffers, then the command buffers, then the render pass, then
// the image views, then the swapchain.  The caller has already waited
// for the device to go idle.
func (sf *Surface) free(sync *FrameSync) {
	for _, fb := range sf.Framebuffers {
		sf.Dev.DestroyFramebuffer(fb)
	}
	sf.Framebuffers = nil
	sync.FreeCmdBuffs()
	sf.Dev.DestroyRenderPass(sf.RenderPass)
	sf.RenderPass = 0
	for _, iv := range sf.Views {
		sf.Dev.DestroyImageView(iv)
	}
	sf.Views = nil
	sf.Images = nil
	sf.Dev.DestroySwapchain(sf.Swapchain)
	sf.Swapchain = 0
}

// Recreate replaces the entire chain after a window resize.  It waits
// for the device to go fully idle, frees the old generation (see
// free), then builds the new chain at the current window resolution
// and re-allocates the FrameSync command buffers.  Pipelines are
// deliberately not rebuilt: their viewport and scissor are dynamic
// state, and the new render pass is layout-compatible with the one
// they were created against.
func (sf *Surface) Recreate(sync *FrameSync) error {
	sf.Dev.WaitIdle()
	sf.free(sync)
	cfg, err := sf.config()
	if err != nil {
		return err
	}
	if sf.Swapchain, err = sf.Dev.CreateSwapchain(cfg); err != nil {
		return err
	}
	sf.Extent = cfg.Extent
	if sf.Images, err = sf.Dev.SwapchainImages(sf.Swapchain); err != nil {
		return err
	}
	sf.Views = make([]ImageView, len(sf.Images))
	for i, img := range sf.Images {
		if sf.Views[i], err = sf.Dev.CreateImageView(img); err != nil {
			return err
		}
	}
	if sf.RenderPass, err = sf.Dev.CreateRenderPass(); err != nil {
		return err
	}
	if err = sync.AllocCmdBuffs(); err != nil {
		return err
	}
	sf.Framebuffers = make([]Framebuffer, len(sf.Views))
	for i, iv := range sf.Views {
		if sf.Framebuffers[i], err = sf.Dev.CreateFramebuffer(sf.RenderPass, iv, sf.Extent); err != nil {
			return err
		}
	}
	if sf.Log != nil {
		sf.Log.Info("surface chain recreated",
			zap.Uint32("width", sf.Extent.Width),
			zap.Uint32("height", sf.Extent.Height))
	}
	return nil
}

// Destroy tears down the chain at shutdown, after a device idle wait.
// The FrameSync still owns its command buffers at this point, so only
// the chain objects are destroyed here.
func (sf *Surface) Destroy() {
	sf.Dev.WaitIdle()
	for _, fb := range sf.Framebuffers {
		sf.Dev.DestroyFramebuffer(fb)
	}
	sf.Framebuffers = nil
	if sf.RenderPass != 0 {
		sf.Dev.DestroyRenderPass(sf.RenderPass)
		sf.RenderPass = 0
	}
	for _, iv := range sf.Views {
		sf.Dev.DestroyImageView(iv)
	}
	sf.Views = nil
	sf.Images = nil
	if sf.Swapchain != 0 {
		sf.Dev.DestroySwapchain(sf.Swapchain)
		sf.Swapchain = 0
	}
}
