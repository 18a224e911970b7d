/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry holds the pure coordinate math of the layout editor:
// conversion between absolute pixels and percentage-of-canvas values, and
// the point/rect helpers the canvas uses for hit testing.
//
// Callers must resolve the canvas natural dimensions before converting;
// a zero or negative dimension is a programming error here, not a
// recoverable condition.
package geometry

import "math"

// ToPercent converts an absolute pixel value to a percentage of the given
// natural dimension.
func ToPercent(px, naturalDim float64) float64 {
	return px / naturalDim * 100
}

// ToPixels converts a percentage back to absolute pixels against the same
// natural dimension. ToPixels(ToPercent(x, d), d) == x within float64
// tolerance for any d > 0.
func ToPixels(pct, naturalDim float64) float64 {
	return pct / 100 * naturalDim
}

// Pt is a 2D point in canvas (natural pixel) coordinates.
type Pt struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

// R is shorthand for constructing a Rect.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// Contains reports whether p lies inside the rectangle (edges inclusive).
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() Pt { return Pt{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// ContainsRotated reports whether p lies inside the rectangle after the
// rectangle is rotated by deg degrees around its center. The point is
// inverse-rotated into the rectangle's local frame.
func (r Rect) ContainsRotated(p Pt, deg float64) bool {
	if deg == 0 {
		return r.Contains(p)
	}
	c := r.Center()
	rad := -deg * math.Pi / 180
	dx, dy := p.X-c.X, p.Y-c.Y
	local := Pt{
		X: c.X + dx*math.Cos(rad) - dy*math.Sin(rad),
		Y: c.Y + dx*math.Sin(rad) + dy*math.Cos(rad),
	}
	return r.Contains(local)
}

// FitScale returns the uniform zoom factor that fits content of size
// (w, h) into a viewport of size (availW, availH) without ever upscaling
// past 1:1.
func FitScale(w, h, availW, availH float64) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	s := math.Min(availW/w, availH/h)
	return math.Min(s, 1)
}
