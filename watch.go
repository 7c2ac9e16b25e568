// Copyright (c) 2023, The Goki Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a shader crate's source tree and requests a reload
// whenever a source file changes, so edits take effect without waiting
// for the reload key.  Events are debounced: a burst of writes from a
// save produces one compile.  Requests go through Reloader.Request, so
// a change landing while a compile is in flight is dropped the same
// way a second keypress is.
type Watcher struct {

	// source directory watched recursively
	Path string

	// file extensions that trigger a reload -- default .rs, .toml
	Exts []string

	// quiet period after the last event before requesting -- default 500ms
	Debounce time.Duration

	// the reload handoff to drive
	Reloader *Reloader

	// optional structured logger -- nil is quiet
	Log *zap.Logger

	watcher *fsnotify.Watcher
}

// NewWatcher returns a Watcher over path with default settings,
// feeding rl.  Start must be called to begin watching.
func NewWatcher(path string, rl *Reloader) *Watcher {
	return &Watcher{
		Path:     path,
		Exts:     []string{".rs", ".toml"},
		Debounce: 500 * time.Millisecond,
		Reloader: rl,
	}
}

func (w *Watcher) logger() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}

// Start adds every directory under Path to the watch set and runs the
// event loop in a goroutine until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("vhot.Watcher: %w", err)
	}
	w.watcher = watcher
	err = filepath.Walk(w.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("vhot.Watcher: %w", err)
	}
	w.logger().Info("watching shader sources", zap.String("path", w.Path))

	debounce := time.NewTimer(0)
	<-debounce.C
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if w.relevant(ev) {
					w.logger().Debug("shader source changed",
						zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
					debounce.Reset(w.Debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger().Error("watch error", zap.Error(err))
			case <-debounce.C:
				if w.Reloader.Request() {
					w.logger().Info("shader reload requested")
				} else {
					w.logger().Debug("compile in flight, change dropped")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// relevant reports whether a filesystem event should count toward the
// debounce window: create, write, or remove of a watched extension.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
		return false
	}
	for _, ext := range w.Exts {
		if strings.HasSuffix(ev.Name, ext) {
			return true
		}
	}
	return false
}

// Stop closes the underlying watcher, ending the event loop.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
