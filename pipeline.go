// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import "go.uber.org/zap"

// ShaderTypes are the pipeline stages a shader module can serve.
type ShaderTypes int32

const (
	VertexShader ShaderTypes = iota
	FragmentShader
	ShaderTypesN
)

func (st ShaderTypes) String() string {
	switch st {
	case VertexShader:
		return "VertexShader"
	case FragmentShader:
		return "FragmentShader"
	}
	return "ShaderTypesInvalid"
}

// Topologies are the vertex assembly topologies.
type Topologies int32

const (
	PointList Topologies = iota
	LineList
	LineStrip
	TriangleList
	TriangleStrip
	TopologiesN
)

// PolygonModes are the triangle fill modes.
type PolygonModes int32

const (
	Fill PolygonModes = iota
	Line
	Point
	PolygonModesN
)

// CullModes are the face culling modes.
type CullModes int32

const (
	CullNone CullModes = iota
	CullBack
	CullFront
	CullModesN
)

// FrontFaces are the winding orders that count as front-facing.
type FrontFaces int32

const (
	CCW FrontFaces = iota
	CW
	FrontFacesN
)

// DynamicStates are the pipeline states set per command buffer
// instead of baked into the pipeline.
type DynamicStates int32

const (
	DynViewport DynamicStates = iota
	DynScissor
	DynamicStatesN
)

// ShaderEntryPoint names one shader stage: the logical module name in
// the Registry and the entry symbol within it.  Declarative only -- it
// owns no GPU resources.
type ShaderEntryPoint struct {

	// logical module name, resolved through the Registry
	Module string

	// entry function symbol, e.g. "main_vs"
	Entry string
}

// EntryPointPair is the (vertex, fragment) stage pair describing one
// graphics pipeline.
type EntryPointPair struct {
	Vertex   ShaderEntryPoint
	Fragment ShaderEntryPoint
}

// StageConfig is one resolved shader stage for pipeline creation.
type StageConfig struct {
	Stage  ShaderTypes
	Module ShaderModule
	Entry  string
}

// PipelineConfig is the full configuration for creating one graphics
// pipeline: resolved shader stages plus the fixed-function state.
// Fields have named defaults via Defaults and Set methods, so the
// numeric fixed-function choices stay readable and testable without
// any device calls.
type PipelineConfig struct {

	// resolved shader stages, in execution order
	Stages []StageConfig

	// shared pipeline layout
	Layout PipelineLayout

	// render-target description the pipeline renders into
	RenderPass RenderPass

	// vertex assembly topology
	Topology Topologies

	// triangle fill mode
	Polygons PolygonModes

	// face culling
	CullFace CullModes

	// front-face winding order
	FrontFace FrontFaces

	// line rendering width -- 1 is the default
	LineWidth float32

	// 1-source alpha blending if true, else new color overwrites old
	AlphaBlend bool

	// states set per command buffer rather than baked in
	Dynamic []DynamicStates
}

// Defaults configures the standard settings for this harness: solid
// triangle-list fill, no culling, CCW front faces, no blending, and
// viewport + scissor as dynamic state so swapchain recreation does not
// invalidate pipelines.
func (pc *PipelineConfig) Defaults() {
	pc.SetTopology(TriangleList)
	pc.SetRasterization(Fill, CullNone, CCW, 1)
	pc.SetColorBlend(false)
	pc.SetDynamicState(DynViewport, DynScissor)
}

// SetTopology sets the topology of vertex position data.
// TriangleList is the default.
func (pc *PipelineConfig) SetTopology(topo Topologies) {
	pc.Topology = topo
}

// SetRasterization sets the polygon fill, culling, winding order, and
// line width in one call, mirroring how they are chosen together.
func (pc *PipelineConfig) SetRasterization(poly PolygonModes, cull CullModes, front FrontFaces, lineWidth float32) {
	pc.Polygons = poly
	pc.CullFace = cull
	pc.FrontFace = front
	pc.LineWidth = lineWidth
}

// SetColorBlend determines the color blending function: either
// 1-source alpha (alphaBlend) or no blending.
func (pc *PipelineConfig) SetColorBlend(alphaBlend bool) {
	pc.AlphaBlend = alphaBlend
}

// SetDynamicState sets which pipeline states are dynamic.
func (pc *PipelineConfig) SetDynamicState(states ...DynamicStates) {
	pc.Dynamic = states
}

// GraphicsPipeline is one live pipeline: the handle plus the entry
// points and config it was built from.
type GraphicsPipeline struct {

	// the created pipeline handle
	Pipeline PipelineHandle

	// the entry points this pipeline was built from
	Pair EntryPointPair

	// resolved module handles at build time, vertex then fragment
	Modules [2]ShaderModule
}

// PipelineSet owns all graphics pipelines, built from the declared
// entry-point pairs plus a shared layout and shared fixed-function
// config.  Rebuild replaces the whole set at once: there is no
// incremental rebuild, because the pipelines share a layout and are
// always rebuilt together after a shader reload.
type PipelineSet struct {

	// the device pipelines are created on
	Dev Device

	// registry resolving module names to handles
	Registry *Registry

	// declared entry-point pairs, one pipeline each
	Pairs []EntryPointPair

	// shared fixed-function configuration template
	Config PipelineConfig

	// push-constant block size for the shared layout, in bytes
	PushBytes int

	// the live pipelines, same order as Pairs
	Pipelines []*GraphicsPipeline

	// the shared layout -- created on first build, reused after
	Layout PipelineLayout

	// optional structured logger -- nil is quiet
	Log *zap.Logger
}

// NewPipelineSet returns a PipelineSet with default fixed-function
// config and a push-constant block sized for RenderParams.
func NewPipelineSet(dev Device, reg *Registry) *PipelineSet {
	ps := &PipelineSet{Dev: dev, Registry: reg, PushBytes: RenderParamsBytes}
	ps.Config.Defaults()
	return ps
}

// SetShaders declares the entry-point pairs to build pipelines for.
// Call Rebuild to (re)create the actual pipelines.
func (ps *PipelineSet) SetShaders(pairs ...EntryPointPair) {
	ps.Pairs = pairs
}

// resolve maps the declared pairs to per-pipeline configs using the
// current Registry contents.  Fails without side effects if any
// referenced module name is missing.
func (ps *PipelineSet) resolve(rp RenderPass) ([]*PipelineConfig, [][2]ShaderModule, error) {
	cfgs := make([]*PipelineConfig, len(ps.Pairs))
	mods := make([][2]ShaderModule, len(ps.Pairs))
	for i, pr := range ps.Pairs {
		vert, ok := ps.Registry.ModuleByName(pr.Vertex.Module)
		if !ok {
			return nil, nil, &UnresolvedShaderModule{Name: pr.Vertex.Module}
		}
		frag, ok := ps.Registry.ModuleByName(pr.Fragment.Module)
		if !ok {
			return nil, nil, &UnresolvedShaderModule{Name: pr.Fragment.Module}
		}
		cfg := ps.Config // copy of the shared template
		cfg.Layout = ps.Layout
		cfg.RenderPass = rp
		cfg.Stages = []StageConfig{
			{Stage: VertexShader, Module: vert, Entry: pr.Vertex.Entry},
			{Stage: FragmentShader, Module: frag, Entry: pr.Fragment.Entry},
		}
		cfgs[i] = &cfg
		mods[i] = [2]ShaderModule{vert, frag}
	}
	return cfgs, mods, nil
}

// Rebuild replaces the entire pipeline set, resolving module handles
// by name and creating all pipelines in one batch against the given
// render pass.  The old set is destroyed only after the new set exists:
// any failure -- an unresolved name or a device error -- leaves the
// previous pipelines fully intact and rendering undisturbed.
func (ps *PipelineSet) Rebuild(rp RenderPass) error {
	if ps.Layout == 0 {
		lay, err := ps.Dev.CreatePipelineLayout(ps.PushBytes)
		if err != nil {
			return err
		}
		ps.Layout = lay
	}
	cfgs, mods, err := ps.resolve(rp)
	if err != nil {
		return err
	}
	handles, err := ps.Dev.CreateGraphicsPipelines(cfgs)
	if err != nil {
		return err
	}
	old := ps.Pipelines
	ps.Pipelines = make([]*GraphicsPipeline, len(handles))
	for i, h := range handles {
		ps.Pipelines[i] = &GraphicsPipeline{Pipeline: h, Pair: ps.Pairs[i], Modules: mods[i]}
	}
	for _, pl := range old {
		ps.Dev.DestroyPipeline(pl.Pipeline)
	}
	if ps.Log != nil {
		ps.Log.Info("pipelines rebuilt", zap.Int("count", len(ps.Pipelines)))
	}
	return nil
}

// Destroy destroys all pipelines and the shared layout.
func (ps *PipelineSet) Destroy() {
	for _, pl := range ps.Pipelines {
		ps.Dev.DestroyPipeline(pl.Pipeline)
	}
	ps.Pipelines = nil
	if ps.Layout != 0 {
		ps.Dev.DestroyPipelineLayout(ps.Layout)
		ps.Layout = 0
	}
}
