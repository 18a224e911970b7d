//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests validate the Fyne-based UI components. They are gated
// behind the "fyne" build tag so headless CI does not need a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"certstudio/internal/domain"
	"certstudio/internal/editor"
	"certstudio/internal/registry"
)

func almostEqual(a, b, eps float32) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

func testCanvas() (*CertCanvas, *registry.Registry) {
	reg := registry.New()
	ctrl := editor.NewController(reg, 1600, 900)
	return NewCertCanvas(reg, ctrl, ""), reg
}

func TestCertCanvasMinSizeTracksZoom(t *testing.T) {
	cc, _ := testCanvas()
	sz := cc.MinSize()
	if sz.Width != 1600 || sz.Height != 900 {
		t.Fatalf("size at zoom 1: %v", sz)
	}
	cc.SetZoom(0.5)
	sz = cc.MinSize()
	if !almostEqual(sz.Width, 800, 0.1) || !almostEqual(sz.Height, 450, 0.1) {
		t.Fatalf("size at zoom 0.5: %v", sz)
	}
	if cc.ctrl.Zoom() != 0.5 {
		t.Fatalf("controller zoom not synced: %v", cc.ctrl.Zoom())
	}
	cc.SetZoom(0) // ignored
	if cc.Zoom() != 0.5 {
		t.Fatalf("zero zoom accepted")
	}
}

func TestBlockScreenRect(t *testing.T) {
	b := &domain.Block{
		XPct: 10, YPct: 20, WidthPct: 30, HeightPct: 40,
	}
	x, y, w, h := blockScreenRect(b, 1000, 500, 0.5)
	if x != 50 || y != 50 || w != 150 || h != 100 {
		t.Fatalf("rect %v,%v %vx%v", x, y, w, h)
	}

	// Auto-height from font size at a 1.4 line height.
	auto := &domain.Block{
		XPct: 0, YPct: 0, WidthPct: 10,
		Style: domain.Style{FontSize: 20},
	}
	_, _, _, ah := blockScreenRect(auto, 1000, 500, 1)
	if !almostEqual(ah, 28, 0.01) {
		t.Fatalf("auto height %v", ah)
	}
}

func TestParseHex(t *testing.T) {
	if r, g, b, ok := parseHex("#1a2b3c"); !ok || r != 26 || g != 43 || b != 60 {
		t.Fatalf("got %d,%d,%d ok=%v", r, g, b, ok)
	}
	if _, _, _, ok := parseHex("#abc"); !ok {
		t.Fatal("short form rejected")
	}
	if _, _, _, ok := parseHex("red"); ok {
		t.Fatal("named color accepted")
	}
}

func TestCanvasGestureSelectsBlock(t *testing.T) {
	cc, reg := testCanvas()
	b := reg.Create(domain.BlockTitle)
	reg.ClearSelection()

	// Title defaults: 20% x, 10% y on a 1600x900 canvas.
	cc.ctrl.PointerDown(400, 120)
	if sel, ok := reg.Selected(); !ok || sel.ID != b.ID {
		t.Fatalf("block not selected by pointer down")
	}
	cc.ctrl.PointerUp()
}

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) UploadImage(context.Context, int64, string, io.Reader) (string, error) {
	return f.url, f.err
}

func TestSetBlockImageOnlyOnUploadSuccess(t *testing.T) {
	reg := registry.New()
	b := reg.Create(domain.BlockImage)

	err := setBlockImage(context.Background(), &fakeUploader{err: errors.New("connection refused")},
		1, reg, b.ID, "sello.png", strings.NewReader("png"))
	if err == nil {
		t.Fatal("upload failure not surfaced")
	}
	if got, _ := reg.Get(b.ID); got.Src != "" {
		t.Fatalf("failed upload changed src to %q", got.Src)
	}

	if err := setBlockImage(context.Background(), &fakeUploader{url: "/api/images/abc"},
		1, reg, b.ID, "sello.png", strings.NewReader("png")); err != nil {
		t.Fatal(err)
	}
	if got, _ := reg.Get(b.ID); got.Src != "/api/images/abc" {
		t.Fatalf("src %q after successful upload", got.Src)
	}
}

func TestCanvasResolvesWorkspaceRelativeSources(t *testing.T) {
	cc, _ := testCanvas()
	cc.Root = "/ws"
	if got := cc.resolveSrc("uploads/sello.png"); got != "/ws/uploads/sello.png" {
		t.Fatalf("relative src resolved to %q", got)
	}
	if got := cc.resolveSrc("/abs/sello.png"); got != "/abs/sello.png" {
		t.Fatalf("absolute src rewritten to %q", got)
	}
	if got := cc.resolveSrc("https://host/media/sello.png"); got != "https://host/media/sello.png" {
		t.Fatalf("url src rewritten to %q", got)
	}
}
