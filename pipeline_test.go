// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skyPair() EntryPointPair {
	return EntryPointPair{
		Vertex:   ShaderEntryPoint{Module: "sky_shader", Entry: "main_vs"},
		Fragment: ShaderEntryPoint{Module: "sky_shader", Entry: "main_fs"},
	}
}

func TestPipelineConfigDefaults(t *testing.T) {
	var pc PipelineConfig
	pc.Defaults()
	assert.Equal(t, TriangleList, pc.Topology)
	assert.Equal(t, Fill, pc.Polygons)
	assert.Equal(t, CullNone, pc.CullFace)
	assert.Equal(t, CCW, pc.FrontFace)
	assert.Equal(t, float32(1), pc.LineWidth)
	assert.False(t, pc.AlphaBlend)
	assert.Equal(t, []DynamicStates{DynViewport, DynScissor}, pc.Dynamic)
}

func TestPipelineSetRebuild(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic}}))

	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair())
	rp := RenderPass(dev.mint("renderpass"))

	require.NoError(t, ps.Rebuild(rp))
	require.Len(t, ps.Pipelines, 1)
	assert.NotZero(t, ps.Layout)
	assert.Equal(t, skyPair(), ps.Pipelines[0].Pair)

	// resolved stages carry the entry symbols and the shared layout
	require.Len(t, dev.LastPipelineCfgs, 1)
	cfg := dev.LastPipelineCfgs[0]
	assert.Equal(t, "main_vs", cfg.Stages[0].Entry)
	assert.Equal(t, "main_fs", cfg.Stages[1].Entry)
	assert.Equal(t, ps.Layout, cfg.Layout)
	assert.Equal(t, rp, cfg.RenderPass)
}

func TestPipelineSetTwoPairs(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic}}))
	require.NoError(t, reg.Insert(SpirvShader{Name: "post", Code: []uint32{SpirvMagic}}))

	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair(), EntryPointPair{
		Vertex:   ShaderEntryPoint{Module: "post", Entry: "main_vs"},
		Fragment: ShaderEntryPoint{Module: "post", Entry: "main_fs"},
	})
	require.NoError(t, ps.Rebuild(RenderPass(dev.mint("renderpass"))))

	assert.Len(t, ps.Pipelines, 2)
	// one batch create, one shared layout
	assert.Equal(t, 1, dev.opCount("CreateGraphicsPipelines"))
	assert.Equal(t, 1, dev.opCount("CreatePipelineLayout"))
	assert.Equal(t, dev.LastPipelineCfgs[0].Layout, dev.LastPipelineCfgs[1].Layout)
}

func TestPipelineSetUnresolvedModule(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair())

	err := ps.Rebuild(RenderPass(dev.mint("renderpass")))
	var unres *UnresolvedShaderModule
	require.ErrorAs(t, err, &unres)
	assert.Equal(t, "sky_shader", unres.Name)
	assert.Empty(t, ps.Pipelines)
	// nothing was created, nothing leaked
	assert.Equal(t, 0, dev.opCount("CreateGraphicsPipelines"))
}

func TestPipelineSetRebuildKeepsOldOnFailure(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic}}))
	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair())
	rp := RenderPass(dev.mint("renderpass"))
	require.NoError(t, ps.Rebuild(rp))
	old := ps.Pipelines[0].Pipeline

	dev.PipelineErr = errors.New("device lost")
	require.Error(t, ps.Rebuild(rp))

	// previous set intact and never destroyed
	require.Len(t, ps.Pipelines, 1)
	assert.Equal(t, old, ps.Pipelines[0].Pipeline)
	assert.Equal(t, 0, dev.opCount("DestroyPipeline"))
}

func TestPipelineSetRebuildUsesNewestModules(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic}}))
	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair())
	rp := RenderPass(dev.mint("renderpass"))
	require.NoError(t, ps.Rebuild(rp))
	oldPipe := ps.Pipelines[0].Pipeline
	oldMod := ps.Pipelines[0].Modules[0]

	// a reload lands: the registry entry is replaced
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic, 9}}))
	newMod, _ := reg.ModuleByName("sky_shader")
	require.NotEqual(t, oldMod, newMod)

	require.NoError(t, ps.Rebuild(rp))
	assert.NotEqual(t, oldPipe, ps.Pipelines[0].Pipeline)
	assert.Equal(t, [2]ShaderModule{newMod, newMod}, ps.Pipelines[0].Modules)

	// the old pipeline was destroyed only after the new one existed
	create := dev.opIndex("CreateGraphicsPipelines", 0)
	second := dev.opIndex("CreateGraphicsPipelines", create+1)
	destroy := dev.opIndex("DestroyPipeline", 0)
	require.NotEqual(t, -1, second)
	assert.Less(t, second, destroy)
}

func TestPipelineSetDestroy(t *testing.T) {
	dev := newFakeDevice()
	reg := NewRegistry(dev)
	require.NoError(t, reg.Insert(SpirvShader{Name: "sky_shader", Code: []uint32{SpirvMagic}}))
	ps := NewPipelineSet(dev, reg)
	ps.SetShaders(skyPair())
	require.NoError(t, ps.Rebuild(RenderPass(dev.mint("renderpass"))))

	ps.Destroy()
	assert.Empty(t, ps.Pipelines)
	assert.Zero(t, ps.Layout)
	assert.Equal(t, 0, dev.liveCount("pipeline"))
	assert.Equal(t, 0, dev.liveCount("layout"))
}
