/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the pointer gesture state machine and the shell
// that ties background sizing, document load/save and the registry
// together. Everything here is toolkit-free; the UI layer only forwards
// pointer events and projects state back onto widgets.
package editor

import (
	"certstudio/internal/domain"
	"certstudio/internal/geometry"
	"certstudio/internal/registry"
)

// Handle identifies one of the eight resize handles around a selection.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
)

type gestureMode int

const (
	gestureNone gestureMode = iota
	gestureDrag
	gestureResize
)

// Sizes in screen pixels / canvas percent.
const (
	handleHitPx = 10.0 // screen-space half-extent of a handle hit target
	// minSizePct is the strictly positive floor for block dimensions.
	// Resizing can never collapse a block to zero or negative size.
	minSizePct = 0.5
)

// Controller binds pointer gestures to registry mutations. Screen
// coordinates arrive pre-multiplied by the display zoom; deltas are
// divided back by the zoom factor before conversion to percentages so a
// scaled-down canvas still drags 1:1 under the pointer.
//
// One gesture is active at a time; the controller is single-threaded by
// contract (all events arrive on the UI goroutine).
type Controller struct {
	reg      *registry.Registry
	naturalW float64
	naturalH float64
	zoom     float64

	mode     gestureMode
	activeID string
	handle   Handle
	lastX    float64
	lastY    float64
}

// NewController creates a controller for a canvas whose natural pixel
// dimensions are already resolved (see Shell for the gate).
func NewController(reg *registry.Registry, naturalW, naturalH float64) *Controller {
	return &Controller{reg: reg, naturalW: naturalW, naturalH: naturalH, zoom: 1}
}

// SetZoom updates the display scale factor. Zoom never touches stored
// percentages; it only rescales pointer deltas.
func (c *Controller) SetZoom(z float64) {
	if z > 0 {
		c.zoom = z
	}
}

// Zoom returns the active display scale factor.
func (c *Controller) Zoom() float64 { return c.zoom }

// NaturalSize returns the canvas natural pixel dimensions.
func (c *Controller) NaturalSize() (w, h float64) { return c.naturalW, c.naturalH }

// blockRect returns the block's rectangle in canvas (natural pixel)
// coordinates. Auto-height text blocks get a nominal line-height box so
// hit testing and handles have something to grab.
func (c *Controller) blockRect(b *domain.Block) geometry.Rect {
	h := b.HeightPct
	if h <= 0 {
		h = c.autoHeightPct(b)
	}
	return geometry.R(
		geometry.ToPixels(b.XPct, c.naturalW),
		geometry.ToPixels(b.YPct, c.naturalH),
		geometry.ToPixels(b.WidthPct, c.naturalW),
		geometry.ToPixels(h, c.naturalH),
	)
}

// autoHeightPct derives a provisional height for auto-height text blocks
// from the font size at a 1.4 line height.
func (c *Controller) autoHeightPct(b *domain.Block) float64 {
	return geometry.ToPercent(b.Style.FontSize*1.4, c.naturalH)
}

// toCanvas converts screen coordinates to canvas pixels.
func (c *Controller) toCanvas(x, y float64) geometry.Pt {
	return geometry.Pt{X: x / c.zoom, Y: y / c.zoom}
}

// handleAt reports which resize handle of the selected block (if any)
// lies under the given screen point.
func (c *Controller) handleAt(screenX, screenY float64) Handle {
	sel, ok := c.reg.Selected()
	if !ok {
		return HandleNone
	}
	r := c.blockRect(sel)
	// Handle centers in screen space.
	cx := func(px float64) float64 { return px * c.zoom }
	pts := map[Handle]geometry.Pt{
		HandleNW: {X: cx(r.X), Y: cx(r.Y)},
		HandleN:  {X: cx(r.X + r.W/2), Y: cx(r.Y)},
		HandleNE: {X: cx(r.X + r.W), Y: cx(r.Y)},
		HandleE:  {X: cx(r.X + r.W), Y: cx(r.Y + r.H/2)},
		HandleSE: {X: cx(r.X + r.W), Y: cx(r.Y + r.H)},
		HandleS:  {X: cx(r.X + r.W/2), Y: cx(r.Y + r.H)},
		HandleSW: {X: cx(r.X), Y: cx(r.Y + r.H)},
		HandleW:  {X: cx(r.X), Y: cx(r.Y + r.H/2)},
	}
	for h, p := range pts {
		if screenX >= p.X-handleHitPx && screenX <= p.X+handleHitPx &&
			screenY >= p.Y-handleHitPx && screenY <= p.Y+handleHitPx {
			return h
		}
	}
	return HandleNone
}

// hitTest returns the topmost block under a canvas point. Paint order
// matches list order, so iterate back to front.
func (c *Controller) hitTest(p geometry.Pt) *domain.Block {
	blocks := c.reg.List()
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if c.blockRect(b).ContainsRotated(p, b.Style.Rotation) {
			return b
		}
	}
	return nil
}

// PointerDown starts a gesture: a handle hit begins a resize, a block
// body hit selects and begins a drag, empty canvas clears the selection.
func (c *Controller) PointerDown(screenX, screenY float64) {
	c.lastX, c.lastY = screenX, screenY

	if h := c.handleAt(screenX, screenY); h != HandleNone {
		sel, _ := c.reg.Selected()
		c.mode = gestureResize
		c.handle = h
		c.activeID = sel.ID
		return
	}

	if b := c.hitTest(c.toCanvas(screenX, screenY)); b != nil {
		c.reg.Select(b.ID)
		c.mode = gestureDrag
		c.activeID = b.ID
		return
	}

	c.reg.ClearSelection()
	c.mode = gestureNone
	c.activeID = ""
}

// PointerMove advances the active gesture by the pointer delta.
func (c *Controller) PointerMove(screenX, screenY float64) {
	dx := (screenX - c.lastX) / c.zoom
	dy := (screenY - c.lastY) / c.zoom
	c.lastX, c.lastY = screenX, screenY

	switch c.mode {
	case gestureDrag:
		c.dragBy(dx, dy)
	case gestureResize:
		c.resizeBy(dx, dy)
	}
}

// PointerUp ends the active gesture.
func (c *Controller) PointerUp() {
	c.mode = gestureNone
	c.handle = HandleNone
	c.activeID = ""
}

// Dragging reports whether a gesture is in flight.
func (c *Controller) Dragging() bool { return c.mode != gestureNone }

// dragBy translates the active block. No bounds clamping: blocks may
// leave the visible canvas.
func (c *Controller) dragBy(dxPx, dyPx float64) {
	c.reg.Update(c.activeID, func(b *domain.Block) {
		b.XPct += geometry.ToPercent(dxPx, c.naturalW)
		b.YPct += geometry.ToPercent(dyPx, c.naturalH)
	})
}

// resizeBy adjusts width/height per the active handle. North and west
// handles move the position too so the opposite edge stays fixed, and
// the minimum-size clamp re-anchors against that fixed edge.
func (c *Controller) resizeBy(dxPx, dyPx float64) {
	dxPct := geometry.ToPercent(dxPx, c.naturalW)
	dyPct := geometry.ToPercent(dyPx, c.naturalH)

	c.reg.Update(c.activeID, func(b *domain.Block) {
		h := b.HeightPct
		if h <= 0 && c.resizesHeight() {
			// First vertical resize of an auto-height block pins an
			// explicit height to start from.
			h = c.autoHeightPct(b)
		}

		switch c.handle {
		case HandleE, HandleNE, HandleSE:
			b.WidthPct += dxPct
		case HandleW, HandleNW, HandleSW:
			right := b.XPct + b.WidthPct
			b.WidthPct -= dxPct
			if b.WidthPct < minSizePct {
				b.WidthPct = minSizePct
			}
			b.XPct = right - b.WidthPct
		}
		if b.WidthPct < minSizePct {
			b.WidthPct = minSizePct
		}

		switch c.handle {
		case HandleS, HandleSE, HandleSW:
			h += dyPct
		case HandleN, HandleNE, HandleNW:
			bottom := b.YPct + h
			h -= dyPct
			if h < minSizePct {
				h = minSizePct
			}
			b.YPct = bottom - h
		}
		if c.resizesHeight() {
			if h < minSizePct {
				h = minSizePct
			}
			b.HeightPct = h
		}
	})
}

func (c *Controller) resizesHeight() bool {
	switch c.handle {
	case HandleE, HandleW:
		return false
	}
	return true
}

// DeleteSelected removes the selected block, if any, and reports whether
// anything was removed. Without a selection it is a no-op.
func (c *Controller) DeleteSelected() bool {
	sel, ok := c.reg.Selected()
	if !ok {
		return false
	}
	c.reg.Remove(sel.ID)
	return true
}

// ToggleBold flips bold on the selected block.
func (c *Controller) ToggleBold() { c.toggle(func(b *domain.Block) { b.Style.Bold = !b.Style.Bold }) }

// ToggleItalic flips italic on the selected block.
func (c *Controller) ToggleItalic() {
	c.toggle(func(b *domain.Block) { b.Style.Italic = !b.Style.Italic })
}

// ToggleUnderline flips underline on the selected block.
func (c *Controller) ToggleUnderline() {
	c.toggle(func(b *domain.Block) { b.Style.Underline = !b.Style.Underline })
}

// SetAlign sets text alignment on the selected block.
func (c *Controller) SetAlign(a domain.TextAlign) {
	c.toggle(func(b *domain.Block) { b.Style.TextAlign = a })
}

func (c *Controller) toggle(mutate func(*domain.Block)) {
	sel, ok := c.reg.Selected()
	if !ok {
		return
	}
	c.reg.Update(sel.ID, mutate)
}
