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
	"strings"
	"testing"
	"time"

	"certstudio/internal/domain"
	"certstudio/internal/registry"
)

type fakeProbe struct {
	calls   int
	readyAt int // report a real size from this call on
	w, h    float64
}

func (p *fakeProbe) NaturalSize() (float64, float64, bool) {
	p.calls++
	if p.calls < p.readyAt {
		// Placeholder size while the bitmap is still loading.
		return 1, 1, true
	}
	return p.w, p.h, true
}

type fakeStore struct {
	doc      []byte
	loadErr  error
	stored   []byte
	imageIDs []string
}

func (s *fakeStore) Load(context.Context) ([]byte, error) { return s.doc, s.loadErr }

func (s *fakeStore) Store(_ context.Context, doc []byte, imageIDs []string) error {
	s.stored = doc
	s.imageIDs = imageIDs
	return nil
}

func testCfg() ShellConfig {
	return ShellConfig{ProbeInterval: time.Millisecond, ProbeAttempts: 20}
}

const storedDoc = `{
	"blk-1":{"type":"title","text_override":"CERTIFICADO","x_px":320,"y_px":90,"width_px":960,"image_w":1600,"image_h":900,"font_size":52,"color":"#1a1a1a","bold":true,"font_family":"Georgia","text_align":"center","opacity":1},
	"blk-2":{"type":"image","text_override":"","src":"/media/uploads/sello.png","x_px":1120,"y_px":675,"width_px":240,"height_px":108,"image_w":1600,"image_h":900,"font_size":24,"color":"transparent","opacity":1}
}`

func TestInitGatesOnRealNaturalSize(t *testing.T) {
	reg := registry.New()
	probe := &fakeProbe{readyAt: 5, w: 1600, h: 900}
	store := &fakeStore{doc: []byte(storedDoc)}
	sh := NewShell(reg, probe, store, testCfg())

	if err := sh.Init(context.Background(), 800, 900); err != nil {
		t.Fatal(err)
	}
	if probe.calls < 5 {
		t.Fatalf("gate opened after %d probes, placeholder size accepted", probe.calls)
	}
	if reg.Len() != 2 {
		t.Fatalf("document not loaded: %d blocks", reg.Len())
	}
	w, h := sh.NaturalSize()
	if w != 1600 || h != 900 {
		t.Fatalf("natural size %vx%v", w, h)
	}
	// 800/1600 = 0.5 horizontal, 900/900 = 1 vertical → fit 0.5.
	if sh.FitZoom() != 0.5 {
		t.Fatalf("fit zoom = %v, want 0.5", sh.FitZoom())
	}
	if sh.Controller() == nil || sh.Controller().Zoom() != 0.5 {
		t.Fatalf("controller not wired to fit zoom")
	}
}

func TestInitFailsWhenSizeNeverResolves(t *testing.T) {
	reg := registry.New()
	probe := &fakeProbe{readyAt: 1000, w: 1600, h: 900}
	store := &fakeStore{doc: []byte(`{}`)}
	cfg := testCfg()
	cfg.ProbeAttempts = 3
	sh := NewShell(reg, probe, store, cfg)

	err := sh.Init(context.Background(), 800, 600)
	if err == nil || !strings.Contains(err.Error(), "usable size") {
		t.Fatalf("expected gate failure, got %v", err)
	}
	if sh.Ready() {
		t.Fatalf("shell must not be ready after failed init")
	}
}

func TestInitHonorsContextCancel(t *testing.T) {
	reg := registry.New()
	probe := &fakeProbe{readyAt: 1000, w: 1600, h: 900}
	sh := NewShell(reg, probe, &fakeStore{doc: []byte(`{}`)}, testCfg())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sh.Init(ctx, 800, 600); err == nil {
		t.Fatalf("cancelled context must abort init")
	}
}

func TestFitZoomNeverEnlarges(t *testing.T) {
	reg := registry.New()
	probe := &fakeProbe{readyAt: 1, w: 400, h: 300}
	sh := NewShell(reg, probe, &fakeStore{doc: []byte(`{}`)}, testCfg())
	if err := sh.Init(context.Background(), 2000, 2000); err != nil {
		t.Fatal(err)
	}
	if sh.FitZoom() != 1 {
		t.Fatalf("small background must display 1:1, got %v", sh.FitZoom())
	}
}

func TestSaveValidatesAndReportsImageBlocks(t *testing.T) {
	reg := registry.New()
	probe := &fakeProbe{readyAt: 1, w: 1600, h: 900}
	store := &fakeStore{doc: []byte(storedDoc)}
	sh := NewShell(reg, probe, store, testCfg())
	if err := sh.Init(context.Background(), 800, 600); err != nil {
		t.Fatal(err)
	}

	if err := sh.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.stored == nil {
		t.Fatalf("nothing stored")
	}
	var doc domain.Document
	if err := json.Unmarshal(store.stored, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc) != 2 {
		t.Fatalf("stored %d records", len(doc))
	}
	if len(store.imageIDs) != 1 || store.imageIDs[0] != "blk-2" {
		t.Fatalf("image ids = %v, want [blk-2]", store.imageIDs)
	}
}

func TestSaveBeforeInitFails(t *testing.T) {
	sh := NewShell(registry.New(), &fakeProbe{readyAt: 1, w: 1, h: 1}, &fakeStore{}, testCfg())
	if err := sh.Save(context.Background()); err == nil {
		t.Fatalf("save before init must fail")
	}
}
