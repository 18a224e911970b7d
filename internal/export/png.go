/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // background decode
	"image/png"
	"math"
	"os"
	"path/filepath"

	"certstudio/internal/domain"
	"certstudio/internal/geometry"
	"certstudio/internal/storage"
)

// PNGOptions controls raster preview behavior.
// - Scale: output pixels per layout pixel; <= 0 means 1.
// - The preview draws the background (when decodable) and the block
//   boxes; it is a placement wireframe, not a text rasterizer.
type PNGOptions struct {
	Scale          float64
	SkipBackground bool
	BoxColor       color.RGBA
}

// ExportPreviewPNG writes a wireframe preview of the layout at outPath.
// A relative outPath lands under the project's exports folder.
func ExportPreviewPNG(ph *storage.ProjectHandle, blocks []*domain.Block, natW, natH float64, outPath string, opt PNGOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	if natW <= 0 || natH <= 0 {
		return fmt.Errorf("background size %gx%g not usable", natW, natH)
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	boxCol := opt.BoxColor
	if boxCol.A == 0 {
		boxCol = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	}

	pixW := int(math.Round(natW * scale))
	pixH := int(math.Round(natH * scale))
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	if !opt.SkipBackground && ph.Manifest.Background != "" {
		drawBackground(img, filepath.Join(ph.Root, filepath.FromSlash(ph.Manifest.Background)))
	}

	for _, b := range blocks {
		x := int(math.Round(geometry.ToPixels(b.XPct, natW) * scale))
		y := int(math.Round(geometry.ToPixels(b.YPct, natH) * scale))
		w := int(math.Round(geometry.ToPixels(b.WidthPct, natW) * scale))
		hPct := b.HeightPct
		var h int
		if hPct > 0 {
			h = int(math.Round(geometry.ToPixels(hPct, natH) * scale))
		} else {
			h = int(math.Round(b.Style.FontSize * 1.4 * scale))
		}
		if w <= 0 || h <= 0 {
			continue
		}
		if b.Type == domain.BlockImage {
			fillRect(img, x, y, x+w-1, y+h-1, color.RGBA{R: 220, G: 220, B: 230, A: 255})
		}
		strokeRect(img, x, y, x+w-1, y+h-1, boxCol)
	}

	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, "exports", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// drawBackground scales the background file onto the canvas with
// nearest-neighbor sampling. Decode failures leave the white canvas.
func drawBackground(dst *image.RGBA, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	src, _, err := image.Decode(f)
	if err != nil {
		return
	}
	db := dst.Bounds()
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	for y := 0; y < db.Dy(); y++ {
		sy := sb.Min.Y + y*sb.Dy()/db.Dy()
		for x := 0; x < db.Dx(); x++ {
			sx := sb.Min.X + x*sb.Dx()/db.Dx()
			dst.Set(x, y, src.At(sx, sy))
		}
	}
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
