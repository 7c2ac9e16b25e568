// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkb

import (
	"errors"
	"unsafe"

	vk "github.com/goki/vulkan"

	"goki.dev/vhot"
)

// mapping tables from vhot fixed-function enums to vulkan values
var (
	ShaderStageFlags = [vhot.ShaderTypesN]vk.ShaderStageFlagBits{
		vhot.VertexShader:   vk.ShaderStageVertexBit,
		vhot.FragmentShader: vk.ShaderStageFragmentBit,
	}

	TopologyVals = [vhot.TopologiesN]vk.PrimitiveTopology{
		vhot.PointList:     vk.PrimitiveTopologyPointList,
		vhot.LineList:      vk.PrimitiveTopologyLineList,
		vhot.LineStrip:     vk.PrimitiveTopologyLineStrip,
		vhot.TriangleList:  vk.PrimitiveTopologyTriangleList,
		vhot.TriangleStrip: vk.PrimitiveTopologyTriangleStrip,
	}

	PolygonModeVals = [vhot.PolygonModesN]vk.PolygonMode{
		vhot.Fill:  vk.PolygonModeFill,
		vhot.Line:  vk.PolygonModeLine,
		vhot.Point: vk.PolygonModePoint,
	}

	CullModeVals = [vhot.CullModesN]vk.CullModeFlagBits{
		vhot.CullNone:  vk.CullModeNone,
		vhot.CullBack:  vk.CullModeBackBit,
		vhot.CullFront: vk.CullModeFrontBit,
	}

	FrontFaceVals = [vhot.FrontFacesN]vk.FrontFace{
		vhot.CCW: vk.FrontFaceCounterClockwise,
		vhot.CW:  vk.FrontFaceClockwise,
	}

	DynamicStateVals = [vhot.DynamicStatesN]vk.DynamicState{
		vhot.DynViewport: vk.DynamicStateViewport,
		vhot.DynScissor:  vk.DynamicStateScissor,
	}

	PresentModeVals = [vhot.PresentModesN]vk.PresentMode{
		vhot.Fifo:      vk.PresentModeFifo,
		vhot.Mailbox:   vk.PresentModeMailbox,
		vhot.Immediate: vk.PresentModeImmediate,
	}
)

// Backend implements vhot.Device on a vulkan device bound to one
// window surface.  Every vhot handle is an entry in one of the
// per-type tables below; 0 is never issued.  Backend is not
// thread-safe: like the harness itself, it is driven from the single
// render thread.
type Backend struct {

	// the instance and physical device
	GPU *GPU

	// vulkan handle for the window surface
	Surface vk.Surface

	// the logical device bound to Surface's present queue family
	Dev vk.Device

	// the combined graphics + present queue
	Queue vk.Queue

	// queue family index for Queue
	QueueIndex uint32

	// the surface pixel format, chosen at Init
	Format vk.SurfaceFormat

	next      uint64
	shaders   map[vhot.ShaderModule]vk.ShaderModule
	chainImgs map[vhot.Swapchain][]vhot.Image
	layouts map[vhot.PipelineLayout]vk.PipelineLayout
	pipes   map[vhot.PipelineHandle]vk.Pipeline
	chains  map[vhot.Swapchain]vk.Swapchain
	images  map[vhot.Image]vk.Image
	views   map[vhot.ImageView]vk.ImageView
	passes  map[vhot.RenderPass]vk.RenderPass
	fbos    map[vhot.Framebuffer]vk.Framebuffer
	semas   map[vhot.Semaphore]vk.Semaphore
	fences  map[vhot.Fence]vk.Fence
	pools   map[vhot.CommandPool]vk.CommandPool
	cmds    map[vhot.CommandBuffer]vk.CommandBuffer
	cmdOwn  map[vhot.CommandBuffer]vk.CommandPool
}

var _ vhot.Device = (*Backend)(nil)

// NewBackend creates a Backend for the given surface on gp, finding a
// present-capable queue family, creating the logical device with the
// swapchain extension, and selecting the surface pixel format.
func NewBackend(gp *GPU, surface vk.Surface) (*Backend, error) {
	b := &Backend{
		GPU:     gp,
		Surface: surface,
		shaders:   make(map[vhot.ShaderModule]vk.ShaderModule),
		chainImgs: make(map[vhot.Swapchain][]vhot.Image),
		layouts: make(map[vhot.PipelineLayout]vk.PipelineLayout),
		pipes:   make(map[vhot.PipelineHandle]vk.Pipeline),
		chains:  make(map[vhot.Swapchain]vk.Swapchain),
		images:  make(map[vhot.Image]vk.Image),
		views:   make(map[vhot.ImageView]vk.ImageView),
		passes:  make(map[vhot.RenderPass]vk.RenderPass),
		fbos:    make(map[vhot.Framebuffer]vk.Framebuffer),
		semas:   make(map[vhot.Semaphore]vk.Semaphore),
		fences:  make(map[vhot.Fence]vk.Fence),
		pools:   make(map[vhot.CommandPool]vk.CommandPool),
		cmds:    make(map[vhot.CommandBuffer]vk.CommandBuffer),
		cmdOwn:  make(map[vhot.CommandBuffer]vk.CommandPool),
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	var qCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(b.GPU.GPU, &qCount, nil)
	qProps := make([]vk.QueueFamilyProperties, qCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(b.GPU.GPU, &qCount, qProps)
	found := false
	for i := uint32(0); i < qCount; i++ {
		qProps[i].Deref()
		if qProps[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(b.GPU.GPU, i, b.Surface, &present)
		if present.B() {
			b.QueueIndex = i
			found = true
			break
		}
	}
	if !found {
		return errors.New("vulkan error: no queue family with graphics + present support")
	}

	qci := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: b.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{qci},
		EnabledExtensionCount:   1,
		PpEnabledExtensionNames: []string{"VK_KHR_swapchain\x00"},
	}
	var dev vk.Device
	if err := newError(vk.CreateDevice(b.GPU.GPU, &dci, nil, &dev)); err != nil {
		return err
	}
	b.Dev = dev
	var queue vk.Queue
	vk.GetDeviceQueue(dev, b.QueueIndex, 0, &queue)
	b.Queue = queue

	var fmtCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(b.GPU.GPU, b.Surface, &fmtCount, nil)
	if fmtCount == 0 {
		return errors.New("vulkan error: surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, fmtCount)
	vk.GetPhysicalDeviceSurfaceFormats(b.GPU.GPU, b.Surface, &fmtCount, formats)
	formats[0].Deref()
	b.Format = formats[0]
	if b.Format.Format == vk.FormatUndefined {
		b.Format.Format = vk.FormatB8g8r8a8Srgb
	}
	return nil
}

// Destroy destroys the logical device and the surface.  All handles
// must have been destroyed first.
func (b *Backend) Destroy() {
	if b.Dev != nil {
		vk.DeviceWaitIdle(b.Dev)
		vk.DestroyDevice(b.Dev, nil)
		b.Dev = nil
	}
	if b.Surface != vk.NullSurface {
		vk.DestroySurface(b.GPU.Instance, b.Surface, nil)
		b.Surface = vk.NullSurface
	}
}

func (b *Backend) mint() uint64 {
	b.next++
	return b.next
}

//////////////////////////////////////////////////////////////
// Shaders and pipelines

func (b *Backend) CreateShaderModule(code []uint32) (vhot.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var mod vk.ShaderModule
	if err := newError(vk.CreateShaderModule(b.Dev, &smci, nil, &mod)); err != nil {
		return 0, err
	}
	h := vhot.ShaderModule(b.mint())
	b.shaders[h] = mod
	return h, nil
}

func (b *Backend) DestroyShaderModule(sm vhot.ShaderModule) {
	if mod, ok := b.shaders[sm]; ok {
		vk.DestroyShaderModule(b.Dev, mod, nil)
		delete(b.shaders, sm)
	}
}

func (b *Backend) CreatePipelineLayout(pushBytes int) (vhot.PipelineLayout, error) {
	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	if pushBytes > 0 {
		plci.PushConstantRangeCount = 1
		plci.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       uint32(pushBytes),
		}}
	}
	var lay vk.PipelineLayout
	if err := newError(vk.CreatePipelineLayout(b.Dev, &plci, nil, &lay)); err != nil {
		return 0, err
	}
	h := vhot.PipelineLayout(b.mint())
	b.layouts[h] = lay
	return h, nil
}

func (b *Backend) DestroyPipelineLayout(pl vhot.PipelineLayout) {
	if lay, ok := b.layouts[pl]; ok {
		vk.DestroyPipelineLayout(b.Dev, lay, nil)
		delete(b.layouts, pl)
	}
}

func (b *Backend) CreateGraphicsPipelines(cfgs []*vhot.PipelineConfig) ([]vhot.PipelineHandle, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	infos := make([]vk.GraphicsPipelineCreateInfo, len(cfgs))
	for i, cfg := range cfgs {
		stages := make([]vk.PipelineShaderStageCreateInfo, len(cfg.Stages))
		for j, st := range cfg.Stages {
			stages[j] = vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  ShaderStageFlags[st.Stage],
				Module: b.shaders[st.Module],
				PName:  safeString(st.Entry),
			}
		}
		dyns := make([]vk.DynamicState, len(cfg.Dynamic))
		for j, ds := range cfg.Dynamic {
			dyns[j] = DynamicStateVals[ds]
		}
		var cb vk.PipelineColorBlendAttachmentState
		cb.ColorWriteMask = 0xF
		if cfg.AlphaBlend {
			cb.BlendEnable = vk.True
			cb.SrcColorBlendFactor = vk.BlendFactorOne
			cb.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			cb.ColorBlendOp = vk.BlendOpAdd
			cb.SrcAlphaBlendFactor = vk.BlendFactorOne
			cb.DstAlphaBlendFactor = vk.BlendFactorZero
			cb.AlphaBlendOp = vk.BlendOpAdd
		}
		infos[i] = vk.GraphicsPipelineCreateInfo{
			SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount: uint32(len(stages)),
			PStages:    stages,
			PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
				SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
			},
			PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
				SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
				Topology: TopologyVals[cfg.Topology],
			},
			PViewportState: &vk.PipelineViewportStateCreateInfo{
				SType:         vk.StructureTypePipelineViewportStateCreateInfo,
				ViewportCount: 1,
				ScissorCount:  1,
			},
			PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
				SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
				PolygonMode: PolygonModeVals[cfg.Polygons],
				CullMode:    vk.CullModeFlags(CullModeVals[cfg.CullFace]),
				FrontFace:   FrontFaceVals[cfg.FrontFace],
				LineWidth:   cfg.LineWidth,
			},
			PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
				SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
				RasterizationSamples: vk.SampleCount1Bit,
			},
			PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
				SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
				AttachmentCount: 1,
				PAttachments:    []vk.PipelineColorBlendAttachmentState{cb},
			},
			PDynamicState: &vk.PipelineDynamicStateCreateInfo{
				SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
				DynamicStateCount: uint32(len(dyns)),
				PDynamicStates:    dyns,
			},
			Layout:     b.layouts[cfg.Layout],
			RenderPass: b.passes[cfg.RenderPass],
		}
	}
	pipes := make([]vk.Pipeline, len(infos))
	ret := vk.CreateGraphicsPipelines(b.Dev, vk.PipelineCache(vk.NullHandle),
		uint32(len(infos)), infos, nil, pipes)
	if err := newError(ret); err != nil {
		return nil, err
	}
	handles := make([]vhot.PipelineHandle, len(pipes))
	for i, p := range pipes {
		h := vhot.PipelineHandle(b.mint())
		b.pipes[h] = p
		handles[i] = h
	}
	return handles, nil
}

func (b *Backend) DestroyPipeline(p vhot.PipelineHandle) {
	if pipe, ok := b.pipes[p]; ok {
		vk.DestroyPipeline(b.Dev, pipe, nil)
		delete(b.pipes, p)
	}
}

//////////////////////////////////////////////////////////////
// Surface chain

func (b *Backend) SurfaceCaps() (vhot.SurfaceCaps, error) {
	var vkCaps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(b.GPU.GPU, b.Surface, &vkCaps)
	if err := newError(ret); err != nil {
		return vhot.SurfaceCaps{}, err
	}
	vkCaps.Deref()
	vkCaps.CurrentExtent.Deref()
	caps := vhot.SurfaceCaps{
		MinImageCount: vkCaps.MinImageCount,
		MaxImageCount: vkCaps.MaxImageCount,
		CurrentExtent: vhot.Extent{
			Width:  vkCaps.CurrentExtent.Width,
			Height: vkCaps.CurrentExtent.Height,
		},
		SupportsIdentity: vk.SurfaceTransformFlagBits(vkCaps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0,
	}
	var pmCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(b.GPU.GPU, b.Surface, &pmCount, nil)
	vkModes := make([]vk.PresentMode, pmCount)
	vk.GetPhysicalDeviceSurfacePresentModes(b.GPU.GPU, b.Surface, &pmCount, vkModes)
	for _, vm := range vkModes {
		switch vm {
		case vk.PresentModeFifo:
			caps.PresentModes = append(caps.PresentModes, vhot.Fifo)
		case vk.PresentModeMailbox:
			caps.PresentModes = append(caps.PresentModes, vhot.Mailbox)
		case vk.PresentModeImmediate:
			caps.PresentModes = append(caps.PresentModes, vhot.Immediate)
		}
	}
	return caps, nil
}

func (b *Backend) CreateSwapchain(cfg *vhot.SwapchainConfig) (vhot.Swapchain, error) {
	preTransform := vk.SurfaceTransformIdentityBit
	if !cfg.Identity {
		var vkCaps vk.SurfaceCapabilities
		if err := newError(vk.GetPhysicalDeviceSurfaceCapabilities(b.GPU.GPU, b.Surface, &vkCaps)); err != nil {
			return 0, err
		}
		vkCaps.Deref()
		preTransform = vkCaps.CurrentTransform
	}
	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         b.Surface,
		MinImageCount:   cfg.ImageCount,
		ImageFormat:     b.Format.Format,
		ImageColorSpace: b.Format.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  cfg.Extent.Width,
			Height: cfg.Extent.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      PresentModeVals[cfg.PresentMode],
		Clipped:          vk.True,
	}
	var sc vk.Swapchain
	if err := newError(vk.CreateSwapchain(b.Dev, &scci, nil, &sc)); err != nil {
		return 0, err
	}
	h := vhot.Swapchain(b.mint())
	b.chains[h] = sc
	return h, nil
}

func (b *Backend) DestroySwapchain(sc vhot.Swapchain) {
	if chain, ok := b.chains[sc]; ok {
		vk.DestroySwapchain(b.Dev, chain, nil)
		delete(b.chains, sc)
	}
	// the chain's images die with it
	for _, img := range b.chainImgs[sc] {
		delete(b.images, img)
	}
	delete(b.chainImgs, sc)
}

func (b *Backend) SwapchainImages(sc vhot.Swapchain) ([]vhot.Image, error) {
	chain := b.chains[sc]
	var count uint32
	if err := newError(vk.GetSwapchainImages(b.Dev, chain, &count, nil)); err != nil {
		return nil, err
	}
	vkImgs := make([]vk.Image, count)
	if err := newError(vk.GetSwapchainImages(b.Dev, chain, &count, vkImgs)); err != nil {
		return nil, err
	}
	imgs := make([]vhot.Image, count)
	for i, vi := range vkImgs {
		h := vhot.Image(b.mint())
		b.images[h] = vi
		imgs[i] = h
	}
	b.chainImgs[sc] = imgs
	return imgs, nil
}

func (b *Backend) CreateImageView(img vhot.Image) (vhot.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    b.images[img],
		ViewType: vk.ImageViewType2d,
		Format:   b.Format.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := newError(vk.CreateImageView(b.Dev, &ivci, nil, &view)); err != nil {
		return 0, err
	}
	h := vhot.ImageView(b.mint())
	b.views[h] = view
	return h, nil
}

func (b *Backend) DestroyImageView(iv vhot.ImageView) {
	if view, ok := b.views[iv]; ok {
		vk.DestroyImageView(b.Dev, view, nil)
		delete(b.views, iv)
	}
}

func (b *Backend) CreateRenderPass() (vhot.RenderPass, error) {
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vk.AttachmentDescription{{
			Format:         b.Format.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		}},
		SubpassCount: 1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments: []vk.AttachmentReference{{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}},
		}},
		DependencyCount: 1,
		PDependencies: []vk.SubpassDependency{{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		}},
	}
	var rp vk.RenderPass
	if err := newError(vk.CreateRenderPass(b.Dev, &rpci, nil, &rp)); err != nil {
		return 0, err
	}
	h := vhot.RenderPass(b.mint())
	b.passes[h] = rp
	return h, nil
}

func (b *Backend) DestroyRenderPass(rp vhot.RenderPass) {
	if pass, ok := b.passes[rp]; ok {
		vk.DestroyRenderPass(b.Dev, pass, nil)
		delete(b.passes, rp)
	}
}

func (b *Backend) CreateFramebuffer(rp vhot.RenderPass, iv vhot.ImageView, ext vhot.Extent) (vhot.Framebuffer, error) {
	fbci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      b.passes[rp],
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{b.views[iv]},
		Width:           ext.Width,
		Height:          ext.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := newError(vk.CreateFramebuffer(b.Dev, &fbci, nil, &fb)); err != nil {
		return 0, err
	}
	h := vhot.Framebuffer(b.mint())
	b.fbos[h] = fb
	return h, nil
}

func (b *Backend) DestroyFramebuffer(fb vhot.Framebuffer) {
	if vfb, ok := b.fbos[fb]; ok {
		vk.DestroyFramebuffer(b.Dev, vfb, nil)
		delete(b.fbos, fb)
	}
}

//////////////////////////////////////////////////////////////
// Synchronization and commands

func (b *Backend) CreateSemaphore() (vhot.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if err := newError(vk.CreateSemaphore(b.Dev, &sci, nil, &sem)); err != nil {
		return 0, err
	}
	h := vhot.Semaphore(b.mint())
	b.semas[h] = sem
	return h, nil
}

func (b *Backend) DestroySemaphore(sp vhot.Semaphore) {
	if sem, ok := b.semas[sp]; ok {
		vk.DestroySemaphore(b.Dev, sem, nil)
		delete(b.semas, sp)
	}
}

func (b *Backend) CreateFence(signaled bool) (vhot.Fence, error) {
	fci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fen vk.Fence
	if err := newError(vk.CreateFence(b.Dev, &fci, nil, &fen)); err != nil {
		return 0, err
	}
	h := vhot.Fence(b.mint())
	b.fences[h] = fen
	return h, nil
}

func (b *Backend) DestroyFence(fc vhot.Fence) {
	if fen, ok := b.fences[fc]; ok {
		vk.DestroyFence(b.Dev, fen, nil)
		delete(b.fences, fc)
	}
}

func (b *Backend) WaitForFence(fc vhot.Fence) error {
	ret := vk.WaitForFences(b.Dev, 1, []vk.Fence{b.fences[fc]}, vk.True, vk.MaxUint64)
	return newError(ret)
}

func (b *Backend) ResetFence(fc vhot.Fence) error {
	return newError(vk.ResetFences(b.Dev, 1, []vk.Fence{b.fences[fc]}))
}

func (b *Backend) CreateCommandPool() (vhot.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: b.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := newError(vk.CreateCommandPool(b.Dev, &cpci, nil, &pool)); err != nil {
		return 0, err
	}
	h := vhot.CommandPool(b.mint())
	b.pools[h] = pool
	return h, nil
}

func (b *Backend) DestroyCommandPool(cp vhot.CommandPool) {
	if pool, ok := b.pools[cp]; ok {
		vk.DestroyCommandPool(b.Dev, pool, nil)
		delete(b.pools, cp)
	}
}

func (b *Backend) AllocCommandBuffers(cp vhot.CommandPool, n int) ([]vhot.CommandBuffer, error) {
	pool := b.pools[cp]
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	vkCbs := make([]vk.CommandBuffer, n)
	if err := newError(vk.AllocateCommandBuffers(b.Dev, &cbai, vkCbs)); err != nil {
		return nil, err
	}
	cbs := make([]vhot.CommandBuffer, n)
	for i, vcb := range vkCbs {
		h := vhot.CommandBuffer(b.mint())
		b.cmds[h] = vcb
		b.cmdOwn[h] = pool
		cbs[i] = h
	}
	return cbs, nil
}

func (b *Backend) FreeCommandBuffers(cp vhot.CommandPool, cbs []vhot.CommandBuffer) {
	pool := b.pools[cp]
	vkCbs := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if vcb, ok := b.cmds[cb]; ok {
			vkCbs = append(vkCbs, vcb)
			delete(b.cmds, cb)
			delete(b.cmdOwn, cb)
		}
	}
	if len(vkCbs) > 0 {
		vk.FreeCommandBuffers(b.Dev, pool, uint32(len(vkCbs)), vkCbs)
	}
}

func (b *Backend) ResetCommandBuffer(cb vhot.CommandBuffer) error {
	return newError(vk.ResetCommandBuffer(b.cmds[cb], 0))
}

func (b *Backend) BeginCommandBuffer(cb vhot.CommandBuffer) error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return newError(vk.BeginCommandBuffer(b.cmds[cb], &cbbi))
}

func (b *Backend) EndCommandBuffer(cb vhot.CommandBuffer) error {
	return newError(vk.EndCommandBuffer(b.cmds[cb]))
}

func (b *Backend) CmdBeginRenderPass(cb vhot.CommandBuffer, rp vhot.RenderPass, fb vhot.Framebuffer, ext vhot.Extent, clear [4]float32) {
	vk.CmdBeginRenderPass(b.cmds[cb], &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.passes[rp],
		Framebuffer: b.fbos[fb],
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: ext.Width, Height: ext.Height},
		},
		ClearValueCount: 1,
		PClearValues: []vk.ClearValue{
			vk.NewClearValue([]float32{clear[0], clear[1], clear[2], clear[3]}),
		},
	}, vk.SubpassContentsInline)
}

func (b *Backend) CmdBindPipeline(cb vhot.CommandBuffer, p vhot.PipelineHandle) {
	vk.CmdBindPipeline(b.cmds[cb], vk.PipelineBindPointGraphics, b.pipes[p])
}

func (b *Backend) CmdSetViewport(cb vhot.CommandBuffer, ext vhot.Extent) {
	vk.CmdSetViewport(b.cmds[cb], 0, 1, []vk.Viewport{{
		Width:    float32(ext.Width),
		Height:   float32(ext.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (b *Backend) CmdSetScissor(cb vhot.CommandBuffer, ext vhot.Extent) {
	vk.CmdSetScissor(b.cmds[cb], 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: ext.Width, Height: ext.Height},
	}})
}

func (b *Backend) CmdPushConstants(cb vhot.CommandBuffer, layout vhot.PipelineLayout, data []byte) {
	if len(data) == 0 {
		return
	}
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	vk.CmdPushConstants(b.cmds[cb], b.layouts[layout], stages, 0,
		uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (b *Backend) CmdDraw(cb vhot.CommandBuffer, vtxCount, instCount, firstVtx, firstInst int) {
	vk.CmdDraw(b.cmds[cb], uint32(vtxCount), uint32(instCount), uint32(firstVtx), uint32(firstInst))
}

func (b *Backend) CmdEndRenderPass(cb vhot.CommandBuffer) {
	vk.CmdEndRenderPass(b.cmds[cb])
}

func (b *Backend) AcquireNextImage(sc vhot.Swapchain, signal vhot.Semaphore) (int, error) {
	var idx uint32
	ret := vk.AcquireNextImage(b.Dev, b.chains[sc], vk.MaxUint64,
		b.semas[signal], vk.NullFence, &idx)
	if ret == vk.Suboptimal {
		return int(idx), nil
	}
	if err := newError(ret); err != nil {
		return 0, err
	}
	return int(idx), nil
}

func (b *Backend) QueueSubmit(cb vhot.CommandBuffer, wait, signal vhot.Semaphore, fence vhot.Fence) error {
	ret := vk.QueueSubmit(b.Queue, 1, []vk.SubmitInfo{{
		SType: vk.StructureTypeSubmitInfo,
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.semas[wait]},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{b.cmds[cb]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.semas[signal]},
	}}, b.fences[fence])
	return newError(ret)
}

func (b *Backend) QueuePresent(sc vhot.Swapchain, imageIndex int, wait vhot.Semaphore) error {
	ret := vk.QueuePresent(b.Queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.semas[wait]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.chains[sc]},
		PImageIndices:      []uint32{uint32(imageIndex)},
	})
	if ret == vk.Suboptimal {
		return nil
	}
	return newError(ret)
}

func (b *Backend) WaitIdle() {
	vk.DeviceWaitIdle(b.Dev)
}
