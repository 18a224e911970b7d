//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image/color"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"certstudio/internal/domain"
	"certstudio/internal/editor"
	"certstudio/internal/geometry"
	"certstudio/internal/registry"
)

const handleDrawPx = 8 // on-screen edge length of a resize handle square

// CertCanvas renders the certificate layout at the current zoom and
// forwards pointer gestures to the editor controller. It draws the
// background image, every block, and the selection chrome (bounding box
// plus eight resize handles).
type CertCanvas struct {
	widget.BaseWidget

	reg    *registry.Registry
	ctrl   *editor.Controller
	bgPath string
	zoom   float64

	// Root resolves workspace-relative block sources like "uploads/x.png".
	// Absolute paths and URLs render as-is.
	Root string

	// OnChange fires after any gesture mutates the layout.
	OnChange func()
}

// NewCertCanvas builds a canvas over the given registry and controller.
// bgPath may be empty (blank white canvas).
func NewCertCanvas(reg *registry.Registry, ctrl *editor.Controller, bgPath string) *CertCanvas {
	cc := &CertCanvas{reg: reg, ctrl: ctrl, bgPath: bgPath, zoom: 1}
	if ctrl != nil {
		cc.zoom = ctrl.Zoom()
	}
	cc.ExtendBaseWidget(cc)
	return cc
}

// SetZoom updates the display scale on both canvas and controller.
func (cc *CertCanvas) SetZoom(z float64) {
	if z <= 0 {
		return
	}
	cc.zoom = z
	if cc.ctrl != nil {
		cc.ctrl.SetZoom(z)
	}
	cc.Refresh()
}

// Zoom returns the current display scale.
func (cc *CertCanvas) Zoom() float64 { return cc.zoom }

// resolveSrc maps a workspace-relative source to a path under Root.
func (cc *CertCanvas) resolveSrc(src string) string {
	if cc.Root == "" || filepath.IsAbs(src) || strings.Contains(src, "://") {
		return src
	}
	return filepath.Join(cc.Root, filepath.FromSlash(src))
}

func (cc *CertCanvas) changed() {
	cc.Refresh()
	if cc.OnChange != nil {
		cc.OnChange()
	}
}

// MouseDown begins a gesture (select, drag or resize).
func (cc *CertCanvas) MouseDown(e *desktop.MouseEvent) {
	if cc.ctrl == nil {
		return
	}
	cc.ctrl.PointerDown(float64(e.Position.X), float64(e.Position.Y))
	cc.changed()
}

// MouseUp ends the active gesture.
func (cc *CertCanvas) MouseUp(_ *desktop.MouseEvent) {
	if cc.ctrl == nil {
		return
	}
	cc.ctrl.PointerUp()
	cc.changed()
}

// Dragged continues the active gesture.
func (cc *CertCanvas) Dragged(e *fyne.DragEvent) {
	if cc.ctrl == nil {
		return
	}
	cc.ctrl.PointerMove(float64(e.Position.X), float64(e.Position.Y))
	cc.changed()
}

// DragEnd ends the active gesture.
func (cc *CertCanvas) DragEnd() {
	if cc.ctrl == nil {
		return
	}
	cc.ctrl.PointerUp()
	cc.changed()
}

func (cc *CertCanvas) naturalSize() (float64, float64) {
	if cc.ctrl == nil {
		return 800, 600
	}
	w, h := cc.ctrl.NaturalSize()
	if w <= 0 || h <= 0 {
		return 800, 600
	}
	return w, h
}

// MinSize is the zoomed canvas extent.
func (cc *CertCanvas) MinSize() fyne.Size {
	w, h := cc.naturalSize()
	return fyne.NewSize(float32(w*cc.zoom), float32(h*cc.zoom))
}

func (cc *CertCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &certCanvasRenderer{cc: cc}
}

type certCanvasRenderer struct {
	cc      *CertCanvas
	objects []fyne.CanvasObject
}

func (r *certCanvasRenderer) Destroy() {}

func (r *certCanvasRenderer) MinSize() fyne.Size { return r.cc.MinSize() }

func (r *certCanvasRenderer) Objects() []fyne.CanvasObject {
	if r.objects == nil {
		r.rebuild()
	}
	return r.objects
}

func (r *certCanvasRenderer) Layout(_ fyne.Size) {
	// Objects are positioned absolutely during rebuild.
}

func (r *certCanvasRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.cc)
}

// rebuild regenerates the full object list: background, blocks in paint
// order, then the selection chrome on top.
func (r *certCanvasRenderer) rebuild() {
	cc := r.cc
	z := cc.zoom
	natW, natH := cc.naturalSize()

	objs := make([]fyne.CanvasObject, 0, 2+cc.reg.Len()*2+9)

	if cc.bgPath != "" {
		bg := canvas.NewImageFromFile(cc.bgPath)
		bg.FillMode = canvas.ImageFillStretch
		bg.Move(fyne.NewPos(0, 0))
		bg.Resize(fyne.NewSize(float32(natW*z), float32(natH*z)))
		objs = append(objs, bg)
	} else {
		blank := canvas.NewRectangle(color.White)
		blank.Resize(fyne.NewSize(float32(natW*z), float32(natH*z)))
		objs = append(objs, blank)
	}

	for _, b := range cc.reg.List() {
		objs = append(objs, r.blockObjects(b, natW, natH, z)...)
	}

	if sel, ok := cc.reg.Selected(); ok {
		objs = append(objs, r.selectionChrome(sel, natW, natH, z)...)
	}
	r.objects = objs
}

func blockScreenRect(b *domain.Block, natW, natH, z float64) (x, y, w, h float32) {
	hPct := b.HeightPct
	if hPct <= 0 {
		hPct = geometry.ToPercent(b.Style.FontSize*1.4, natH)
	}
	x = float32(geometry.ToPixels(b.XPct, natW) * z)
	y = float32(geometry.ToPixels(b.YPct, natH) * z)
	w = float32(geometry.ToPixels(b.WidthPct, natW) * z)
	h = float32(geometry.ToPixels(hPct, natH) * z)
	return x, y, w, h
}

func (r *certCanvasRenderer) blockObjects(b *domain.Block, natW, natH, z float64) []fyne.CanvasObject {
	x, y, w, h := blockScreenRect(b, natW, natH, z)

	if b.Type == domain.BlockImage {
		if b.Src != "" {
			img := canvas.NewImageFromFile(r.cc.resolveSrc(b.Src))
			img.FillMode = canvas.ImageFillContain
			img.Move(fyne.NewPos(x, y))
			img.Resize(fyne.NewSize(w, h))
			return []fyne.CanvasObject{img}
		}
		ph := canvas.NewRectangle(color.NRGBA{R: 220, G: 220, B: 230, A: 160})
		ph.StrokeColor = color.NRGBA{R: 120, G: 120, B: 140, A: 255}
		ph.StrokeWidth = 1
		ph.Move(fyne.NewPos(x, y))
		ph.Resize(fyne.NewSize(w, h))
		return []fyne.CanvasObject{ph}
	}

	txt := canvas.NewText(b.DisplayText(), textColor(b.Style.Color))
	txt.TextSize = float32(b.Style.FontSize * z)
	txt.TextStyle = fyne.TextStyle{Bold: b.Style.Bold, Italic: b.Style.Italic, Underline: b.Style.Underline}
	switch b.Style.TextAlign {
	case domain.AlignCenter:
		txt.Alignment = fyne.TextAlignCenter
	case domain.AlignRight:
		txt.Alignment = fyne.TextAlignTrailing
	default:
		txt.Alignment = fyne.TextAlignLeading
	}
	txt.Move(fyne.NewPos(x, y))
	txt.Resize(fyne.NewSize(w, h))
	return []fyne.CanvasObject{txt}
}

func (r *certCanvasRenderer) selectionChrome(b *domain.Block, natW, natH, z float64) []fyne.CanvasObject {
	x, y, w, h := blockScreenRect(b, natW, natH, z)

	box := canvas.NewRectangle(color.Transparent)
	box.StrokeColor = color.NRGBA{R: 20, G: 110, B: 220, A: 255}
	box.StrokeWidth = 1.5
	box.Move(fyne.NewPos(x, y))
	box.Resize(fyne.NewSize(w, h))

	out := []fyne.CanvasObject{box}
	// Eight handles, corners and edge midpoints, matching the
	// controller's hit zones.
	centers := [8][2]float32{
		{x, y}, {x + w/2, y}, {x + w, y},
		{x + w, y + h/2}, {x + w, y + h},
		{x + w/2, y + h}, {x, y + h}, {x, y + h/2},
	}
	for _, c := range centers {
		hd := canvas.NewRectangle(color.White)
		hd.StrokeColor = color.NRGBA{R: 20, G: 110, B: 220, A: 255}
		hd.StrokeWidth = 1
		hd.Move(fyne.NewPos(c[0]-handleDrawPx/2, c[1]-handleDrawPx/2))
		hd.Resize(fyne.NewSize(handleDrawPx, handleDrawPx))
		out = append(out, hd)
	}
	return out
}

// textColor parses the block hex color; unparseable values render black,
// "transparent" renders fully transparent.
func textColor(s string) color.Color {
	if strings.EqualFold(strings.TrimSpace(s), "transparent") {
		return color.Transparent
	}
	r, g, b, ok := parseHex(s)
	if !ok {
		return color.Black
	}
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

func parseHex(s string) (r, g, b int, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return 0, 0, 0, false
	}
	hex := strings.ToLower(s[1:])
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v := [3]int{}
	for i := range v {
		for j := 0; j < 2; j++ {
			c := hex[i*2+j]
			var d int
			switch {
			case c >= '0' && c <= '9':
				d = int(c - '0')
			case c >= 'a' && c <= 'f':
				d = int(c-'a') + 10
			default:
				return 0, 0, 0, false
			}
			v[i] = v[i]*16 + d
		}
	}
	return v[0], v[1], v[2], true
}
