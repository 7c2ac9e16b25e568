// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SpirvMagic is the first word of every valid SPIR-V binary.
const SpirvMagic = 0x07230203

// Compiler invokes the external shader build toolchain as a
// subprocess and loads the SPIR-V artifacts it produces.  The default
// configuration drives cargo with the rust-gpu SPIR-V codegen backend,
// but any toolchain emitting cargo-style line-delimited JSON build
// events works.  Compile is synchronous and potentially slow: when
// triggered interactively it must run off the render thread, which is
// what Reloader.Request does.
type Compiler struct {

	// toolchain executable -- default "cargo"
	Command string

	// path to the shader crate manifest
	ManifestPath string

	// build output directory
	TargetDir string

	// codegen target triple -- default "spirv-unknown-unknown"
	Target string

	// extra environment, appended to the process environment
	Env []string

	// optional structured logger -- nil is quiet
	Log *zap.Logger
}

// Defaults sets the standard cargo + rust-gpu invocation for a shader
// crate living in the "shaders" directory.
func (cc *Compiler) Defaults() {
	cc.Command = "cargo"
	cc.ManifestPath = filepath.Join("shaders", "Cargo.toml")
	cc.TargetDir = filepath.Join("shaders", "target")
	cc.Target = "spirv-unknown-unknown"
	cc.Env = []string{
		"RUSTFLAGS=-Z codegen_backend=rustc_codegen_spirv -Z symbol-mangling-version=v0",
	}
}

func (cc *Compiler) logger() *zap.Logger {
	if cc.Log == nil {
		return zap.NewNop()
	}
	return cc.Log
}

// Compile runs the toolchain and returns one SpirvShader per binary
// artifact produced.  On any failure it returns a *CompileError and no
// shaders; existing GPU state is never touched here.
func (cc *Compiler) Compile() ([]SpirvShader, error) {
	cmd := exec.Command(cc.Command,
		"build", "--release",
		"--target-dir", cc.TargetDir,
		"--manifest-path", cc.ManifestPath,
		"--target", cc.Target,
		"--message-format", "json-render-diagnostics",
		"-Z", "build-std=core")
	cmd.Env = append(os.Environ(), cc.Env...)
	cmd.Stderr = os.Stderr

	cc.logger().Info("compiling shaders",
		zap.String("command", cc.Command),
		zap.String("manifest", cc.ManifestPath))

	out, err := cmd.Output()
	if err != nil {
		return nil, &CompileError{Phase: "run", Err: err, Output: tail(out)}
	}
	paths, err := ParseArtifacts(out)
	if err != nil {
		return nil, err
	}
	shaders, err := LoadArtifacts(paths)
	if err != nil {
		return nil, err
	}
	for _, sh := range shaders {
		cc.logger().Info("loaded shader artifact",
			zap.String("name", sh.Name), zap.Int("words", len(sh.Code)))
	}
	return shaders, nil
}

// buildEvent is the subset of a cargo build-event line we care about.
type buildEvent struct {
	Reason    string   `json:"reason"`
	Filenames []string `json:"filenames"`
}

// ParseArtifacts parses line-delimited JSON build events and returns
// the .spv file paths of the last "compiler-artifact" event.  Earlier
// artifact events describe intermediate dependency crates, so only the
// final one is the shader crate itself.
func ParseArtifacts(out []byte) ([]string, error) {
	var last *buildEvent
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev buildEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // non-JSON diagnostics lines are expected
		}
		if ev.Reason == "compiler-artifact" {
			ev := ev
			last = &ev
		}
	}
	if last == nil {
		return nil, &CompileError{Phase: "parse",
			Err: fmt.Errorf("no compiler-artifact events in build output"), Output: tail(out)}
	}
	var paths []string
	for _, fn := range last.Filenames {
		if strings.HasSuffix(fn, ".spv") {
			paths = append(paths, fn)
		}
	}
	if len(paths) == 0 {
		return nil, &CompileError{Phase: "artifacts",
			Err: fmt.Errorf("final artifact produced no .spv files"), Output: tail(out)}
	}
	return paths, nil
}

// LoadArtifacts reads each .spv file fully into memory as SPIR-V
// words, deriving the logical shader name from the file stem.
func LoadArtifacts(paths []string) ([]SpirvShader, error) {
	shaders := make([]SpirvShader, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, &CompileError{Phase: "load", Err: err}
		}
		code, err := SpirvWords(b)
		if err != nil {
			return nil, &CompileError{Phase: "load",
				Err: fmt.Errorf("%s: %w", path, err)}
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		shaders = append(shaders, SpirvShader{Name: name, Code: code})
	}
	return shaders, nil
}

// SpirvWords decodes a SPIR-V binary into 32-bit words, checking the
// length and the leading magic number.
func SpirvWords(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("spirv binary length %d is not a multiple of 4", len(b))
	}
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	if code[0] != SpirvMagic {
		return nil, fmt.Errorf("bad spirv magic 0x%08x", code[0])
	}
	return code, nil
}

// tail returns the last few lines of toolchain output for error logs.
func tail(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if n := len(lines); n > 10 {
		lines = lines[n-10:]
	}
	return strings.Join(lines, "\n")
}
