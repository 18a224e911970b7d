/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"certstudio/internal/geometry"
	"certstudio/internal/layout"
	applog "certstudio/internal/log"
	"certstudio/internal/registry"
)

// BackgroundProbe reports the natural pixel size of the background image.
// ok is false while the image is still loading or failed to decode.
type BackgroundProbe interface {
	NaturalSize() (w, h float64, ok bool)
}

// DocumentStore loads and persists serialized layout documents.
// imageIDs lists the ids of blocks that reference uploaded image URLs so
// the host can pin those uploads to the saved layout.
type DocumentStore interface {
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, doc []byte, imageIDs []string) error
}

// ShellConfig tunes the background-size gate. Zero values pick defaults.
type ShellConfig struct {
	// SizeThresholdPx rejects placeholder dimensions the image element
	// reports before the real bitmap arrives. Anything at or below the
	// threshold does not count as loaded.
	SizeThresholdPx float64
	ProbeInterval   time.Duration
	ProbeAttempts   int
}

func (c *ShellConfig) withDefaults() {
	if c.SizeThresholdPx <= 0 {
		c.SizeThresholdPx = 1
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 150 * time.Millisecond
	}
	if c.ProbeAttempts <= 0 {
		c.ProbeAttempts = 40
	}
}

// Shell sequences editor startup: wait for the background's natural
// size, decode the persisted document into the registry, derive the fit
// zoom, and wire a Controller. It also owns the save path.
//
// Nothing mutates the registry between probe attempts, so a slow image
// never races the document load.
type Shell struct {
	cfg   ShellConfig
	reg   *registry.Registry
	probe BackgroundProbe
	store DocumentStore
	ctrl  *Controller

	naturalW float64
	naturalH float64
	fitZoom  float64
	ready    bool
}

// NewShell assembles an uninitialized shell. Call Init before anything
// else.
func NewShell(reg *registry.Registry, probe BackgroundProbe, store DocumentStore, cfg ShellConfig) *Shell {
	cfg.withDefaults()
	return &Shell{cfg: cfg, reg: reg, probe: probe, store: store, fitZoom: 1}
}

// Init gates on the background's natural size, loads the persisted
// document, and sizes the canvas to fit the given viewport. Percentages
// are meaningless without real dimensions, so no layout work happens
// before the gate opens.
func (s *Shell) Init(ctx context.Context, viewportW, viewportH float64) error {
	log := applog.WithComponent("editor")

	w, h, err := s.awaitNaturalSize(ctx)
	if err != nil {
		return err
	}
	s.naturalW, s.naturalH = w, h

	raw, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load layout: %w", err)
	}
	blocks, err := layout.Decode(raw, w, h)
	if err != nil {
		return fmt.Errorf("decode layout: %w", err)
	}
	s.reg.Reset(blocks)

	s.ctrl = NewController(s.reg, w, h)
	s.SetViewport(viewportW, viewportH)
	s.ready = true
	log.Info("editor ready", "blocks", len(blocks), "natural_w", w, "natural_h", h, "fit_zoom", s.fitZoom)
	return nil
}

// awaitNaturalSize polls the probe until the background reports a real
// size, the configured attempts run out, or the context ends.
func (s *Shell) awaitNaturalSize(ctx context.Context) (float64, float64, error) {
	for attempt := 0; attempt < s.cfg.ProbeAttempts; attempt++ {
		if w, h, ok := s.probe.NaturalSize(); ok && w > s.cfg.SizeThresholdPx && h > s.cfg.SizeThresholdPx {
			return w, h, nil
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(s.cfg.ProbeInterval):
		}
	}
	return 0, 0, fmt.Errorf("background image never reported a usable size after %d attempts", s.cfg.ProbeAttempts)
}

// SetViewport recomputes the fit zoom for a new viewport size. The fit
// zoom shrinks to fit but never enlarges past 1:1.
func (s *Shell) SetViewport(viewportW, viewportH float64) {
	if s.naturalW <= 0 || s.naturalH <= 0 {
		return
	}
	s.fitZoom = geometry.FitScale(s.naturalW, s.naturalH, viewportW, viewportH)
	if s.ctrl != nil {
		s.ctrl.SetZoom(s.fitZoom)
	}
}

// Controller exposes the gesture controller. Nil before Init succeeds.
func (s *Shell) Controller() *Controller { return s.ctrl }

// Ready reports whether Init completed.
func (s *Shell) Ready() bool { return s.ready }

// FitZoom returns the current fit-to-viewport scale factor.
func (s *Shell) FitZoom() float64 { return s.fitZoom }

// NaturalSize returns the resolved background dimensions.
func (s *Shell) NaturalSize() (float64, float64) { return s.naturalW, s.naturalH }

// Save serializes the registry to the pixel-record document, validates
// it against the layout schema, and hands it to the store along with the
// ids of blocks that reference uploaded images.
func (s *Shell) Save(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("editor not initialized")
	}
	blocks := s.reg.List()
	doc := layout.Encode(blocks, s.naturalW, s.naturalH)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	if err := layout.Validate(raw); err != nil {
		return err
	}
	var imageIDs []string
	for _, b := range blocks {
		if b.Src != "" {
			imageIDs = append(imageIDs, b.ID)
		}
	}
	if err := s.store.Store(ctx, raw, imageIDs); err != nil {
		return fmt.Errorf("store layout: %w", err)
	}
	applog.WithComponent("editor").Info("layout saved", "blocks", len(blocks), "images", len(imageIDs))
	return nil
}
