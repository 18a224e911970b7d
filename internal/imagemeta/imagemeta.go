/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imagemeta reads image dimensions without decoding pixel data.
// It backs the editor's background probe: block geometry is anchored to
// the background's natural pixel size, so nothing may be placed before
// that size is known.
package imagemeta

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// NaturalSize returns the pixel dimensions of the image at path.
// Only the header is read; registered formats are png, jpeg, gif, bmp,
// tiff and webp.
func NaturalSize(path string) (w, h float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s image %s has no usable size", format, path)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// FileProbe adapts a background file on disk to the editor's probe
// contract. The size is read once and cached; a missing or undecodable
// file keeps reporting not-ready so the editor's retry gate can wait for
// the file to appear.
type FileProbe struct {
	Path string

	mu sync.Mutex
	w  float64
	h  float64
	ok bool
}

// NaturalSize reports the cached dimensions, probing the file on each
// call until it succeeds once.
func (p *FileProbe) NaturalSize() (float64, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ok {
		return p.w, p.h, true
	}
	w, h, err := NaturalSize(p.Path)
	if err != nil {
		return 0, 0, false
	}
	p.w, p.h, p.ok = w, h, true
	return w, h, true
}
