// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

// SpirvShader is one compiled shader module as produced by the
// Compiler: the logical name (artifact file stem) and the raw
// instruction words.  Immutable once created; consumed exactly once by
// Registry.Insert, after which the words are no longer needed.
type SpirvShader struct {

	// logical shader name, e.g. "sky_shader"
	Name string

	// SPIR-V instruction words
	Code []uint32
}

// Registry owns the mapping from logical shader name to the
// GPU-resident shader module handle.  At most one live handle exists
// per name: Insert replaces and destroys any prior handle.  Names are
// kept in insertion order for deterministic iteration.
type Registry struct {

	// the device that owns the module handles
	Dev Device

	// shader names in insertion order
	Names []string

	// name to live module handle
	Modules map[string]ShaderModule
}

// NewRegistry returns a new Registry for the given device.
func NewRegistry(dev Device) *Registry {
	return &Registry{Dev: dev, Modules: make(map[string]ShaderModule)}
}

// Insert creates a GPU shader module from the given code and registers
// it under name, destroying any prior module with that name.  The old
// module is destroyed only after the new one exists, and callers must
// ensure no in-flight pipeline still references it -- in this harness
// that holds because Insert is always followed by a full pipeline
// rebuild before any further rendering.
func (rg *Registry) Insert(sh SpirvShader) error {
	sm, err := rg.Dev.CreateShaderModule(sh.Code)
	if err != nil {
		return err
	}
	if old, has := rg.Modules[sh.Name]; has {
		rg.Dev.DestroyShaderModule(old)
	} else {
		rg.Names = append(rg.Names, sh.Name)
	}
	rg.Modules[sh.Name] = sm
	return nil
}

// ModuleByName returns the live module handle for name.
func (rg *Registry) ModuleByName(name string) (ShaderModule, bool) {
	sm, ok := rg.Modules[name]
	return sm, ok
}

// Len returns the number of registered modules.
func (rg *Registry) Len() int {
	return len(rg.Names)
}

// Destroy destroys all module handles and empties the registry.
func (rg *Registry) Destroy() {
	for _, nm := range rg.Names {
		rg.Dev.DestroyShaderModule(rg.Modules[nm])
	}
	rg.Names = nil
	rg.Modules = make(map[string]ShaderModule)
}
