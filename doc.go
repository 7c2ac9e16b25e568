// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package vhot is a render harness that keeps a window presenting frames
while its SPIR-V shaders are recompiled and swapped in at runtime,
without stopping the render loop.

The core of the package is device-independent: every GPU interaction
goes through the Device interface, so the hot-reload protocol, the
swapchain lifecycle, and the per-frame synchronization can all be
exercised without a Vulkan driver.  The vkb subpackage provides the
Vulkan implementation of Device, using the same stack as vgpu
(github.com/goki/vulkan + glfw).

The moving parts:

  - Compiler runs the external shader toolchain as a subprocess and
    loads the .spv artifacts it produces.
  - Registry maps logical shader names to live ShaderModule handles,
    replacing and destroying old handles on reload.
  - PipelineSet builds the graphics pipelines from (vertex, fragment)
    entry points and rebuilds them wholesale when modules change.
  - Surface owns the swapchain, image views, render pass, and
    framebuffers, and recreates them all on window resize.
  - FrameSync owns the semaphores, fences, and command buffers that
    pace double-buffered frames.
  - Reloader is the cross-thread handoff between the background
    compile and the render loop.
  - Loop ties it together, driving one frame per iteration.

The render loop runs on one thread and is the sole owner of all GPU
handles.  The only state shared with the compile goroutine is the
Reloader, and the only data that crosses back is compiled SPIR-V words.
*/
package vhot
