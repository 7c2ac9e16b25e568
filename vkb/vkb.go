// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkb implements the vhot.Device interface on Vulkan, via the
// goki vulkan bindings and glfw for windowing.  The handle types in
// vhot map to real Vulkan objects held in per-type tables here, so the
// rest of the harness never touches cgo.
package vkb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// Init initializes glfw and the vulkan loader.
// IMPORTANT: must be called on the main initial thread!
func Init() error {
	if err := glfw.Init(); err != nil {
		return err
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return vk.Init()
}

// Terminate shuts down glfw -- call as last thing before quitting.
// IMPORTANT: must be called on the main initial thread!
func Terminate() {
	glfw.Terminate()
}

// newError converts a non-success vulkan result to an error.
func newError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return fmt.Errorf("vulkan error: %s (%d)", vk.Error(ret).Error(), ret)
}

// safeString returns s NUL-terminated for passing through cgo.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

// ValidationLayer is the standard vulkan validation layer, enabled by
// Options.DebugLayer.
const ValidationLayer = "VK_LAYER_KHRONOS_validation\x00"

// Options configure GPU instance creation.
type Options struct {

	// application name reported to the driver
	Name string

	// enable the vulkan validation layer
	DebugLayer bool
}

// GPU holds the vulkan instance and the selected physical device.
// One GPU serves any number of window surfaces.
type GPU struct {

	// the vulkan instance
	Instance vk.Instance

	// the selected physical device
	GPU vk.PhysicalDevice

	// instance extensions to request, e.g. from
	// glfw Window.GetRequiredInstanceExtensions
	InstanceExts []string

	// creation options
	Opts Options
}

// NewGPU returns a new GPU with given options.  Call AddInstanceExt
// with the window's required extensions, then Config.
func NewGPU(opts Options) *GPU {
	return &GPU{Opts: opts}
}

// AddInstanceExt adds instance extensions to request at Config.
func (gp *GPU) AddInstanceExt(ext ...string) {
	gp.InstanceExts = append(gp.InstanceExts, ext...)
}

// Config creates the vulkan instance and selects the first physical
// device with a graphics-capable queue family.
func (gp *GPU) Config() error {
	exts := make([]string, len(gp.InstanceExts))
	for i, ex := range gp.InstanceExts {
		exts[i] = safeString(ex)
	}
	ici := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			PApplicationName: safeString(gp.Opts.Name),
			ApiVersion:       vk.MakeVersion(1, 1, 0),
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	if gp.Opts.DebugLayer {
		ici.EnabledLayerCount = 1
		ici.PpEnabledLayerNames = []string{ValidationLayer}
	}
	var inst vk.Instance
	if err := newError(vk.CreateInstance(&ici, nil, &inst)); err != nil {
		return err
	}
	gp.Instance = inst
	vk.InitInstance(inst)

	var devCount uint32
	vk.EnumeratePhysicalDevices(gp.Instance, &devCount, nil)
	if devCount == 0 {
		return errors.New("vulkan error: no GPU devices found")
	}
	devs := make([]vk.PhysicalDevice, devCount)
	vk.EnumeratePhysicalDevices(gp.Instance, &devCount, devs)
	for _, dev := range devs {
		var qCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &qCount, nil)
		qProps := make([]vk.QueueFamilyProperties, qCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &qCount, qProps)
		for _, qp := range qProps {
			qp.Deref()
			if qp.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				gp.GPU = dev
				return nil
			}
		}
	}
	return errors.New("vulkan error: no GPU with graphics queue found")
}

// Destroy destroys the instance.  Backends on this GPU must be
// destroyed first.
func (gp *GPU) Destroy() {
	if gp.Instance != nil {
		vk.DestroyInstance(gp.Instance, nil)
		gp.Instance = nil
	}
}
