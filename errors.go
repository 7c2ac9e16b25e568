// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import "fmt"

// CompileError reports a failed shader compile: the toolchain exited
// abnormally, its build output could not be parsed, or it produced no
// binary artifacts.  Compile errors are recoverable -- the harness
// keeps rendering with the last-good shaders.
type CompileError struct {

	// which phase failed: "run", "parse", "artifacts", "load"
	Phase string

	// underlying cause, if any
	Err error

	// trailing toolchain output, for the log
	Output string
}

func (ce *CompileError) Error() string {
	if ce.Err != nil {
		return fmt.Sprintf("vhot.Compiler: %s: %v", ce.Phase, ce.Err)
	}
	return fmt.Sprintf("vhot.Compiler: %s failed", ce.Phase)
}

func (ce *CompileError) Unwrap() error { return ce.Err }

// UnresolvedShaderModule reports a pipeline rebuild that referenced a
// shader name not present in the Registry.  The rebuild is aborted and
// the previous pipeline set is retained.
type UnresolvedShaderModule struct {
	Name string
}

func (ue *UnresolvedShaderModule) Error() string {
	return fmt.Sprintf("vhot: no shader module named %q in registry", ue.Name)
}
