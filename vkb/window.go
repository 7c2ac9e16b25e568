// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkb

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"goki.dev/vhot"
)

// Window wraps a glfw window plus a vulkan surface on it, and adapts
// glfw input callbacks into the vhot.Events queue consumed by the
// render loop.  Poll must be called on the main thread, per glfw.
type Window struct {

	// the underlying glfw window
	Win *glfw.Window

	// vulkan surface handle on the window
	Surface vk.Surface

	queue  []vhot.Event
	closed bool
}

var _ vhot.Events = (*Window)(nil)

// NewWindow creates a glfw window with no client API (vulkan renders
// into it directly) and installs the input callbacks.  The window is
// created before the GPU so its required instance extensions
// (RequiredExts) can be added to the GPU before Config; call
// InitSurface after gp.Config to make the vulkan surface.
func NewWindow(width, height int, title string) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}
	w := &Window{Win: win}
	win.SetKeyCallback(w.onKey)
	win.SetFramebufferSizeCallback(w.onResize)
	return w, nil
}

// RequiredExts returns the instance extensions this window needs,
// for GPU.AddInstanceExt.
func (w *Window) RequiredExts() []string {
	return w.Win.GetRequiredInstanceExtensions()
}

// InitSurface creates the vulkan surface on gp's instance.
// Call after gp.Config.
func (w *Window) InitSurface(gp *GPU) error {
	surfPtr, err := w.Win.CreateWindowSurface(gp.Instance, nil)
	if err != nil {
		return err
	}
	w.Surface = vk.SurfaceFromPointer(surfPtr)
	return nil
}

func (w *Window) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	kc := vhot.KeyUnknown
	switch key {
	case glfw.KeyEscape:
		kc = vhot.KeyEscape
	case glfw.KeyF5:
		kc = vhot.KeyF5
	}
	w.queue = append(w.queue, vhot.Event{Kind: vhot.KeyEvent, Key: kc})
}

func (w *Window) onResize(_ *glfw.Window, width, height int) {
	w.queue = append(w.queue, vhot.Event{
		Kind: vhot.ResizeEvent,
		Size: vhot.Extent{Width: uint32(width), Height: uint32(height)},
	})
}

// Poll pumps glfw and returns the events accumulated since the last
// call.  A close request is reported once, as the final event.
func (w *Window) Poll() []vhot.Event {
	glfw.PollEvents()
	evs := w.queue
	w.queue = nil
	if !w.closed && w.Win.ShouldClose() {
		w.closed = true
		evs = append(evs, vhot.Event{Kind: vhot.CloseEvent})
	}
	return evs
}

// Destroy destroys the glfw window.  The vulkan surface is owned by
// the Backend and destroyed with it.
func (w *Window) Destroy() {
	w.Win.Destroy()
}
