/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imagemeta

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestNaturalSize(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bg.png")
	writePNG(t, p, 1600, 900)
	w, h, err := NaturalSize(p)
	if err != nil {
		t.Fatal(err)
	}
	if w != 1600 || h != 900 {
		t.Fatalf("size %gx%g", w, h)
	}
}

func TestNaturalSizeErrors(t *testing.T) {
	if _, _, err := NaturalSize(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("missing file accepted")
	}
	p := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(p, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NaturalSize(p); err == nil {
		t.Fatal("garbage decoded")
	}
}

func TestFileProbeWaitsForFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "late.png")
	probe := &FileProbe{Path: p}

	if _, _, ok := probe.NaturalSize(); ok {
		t.Fatal("probe ready before file exists")
	}
	writePNG(t, p, 800, 600)
	w, h, ok := probe.NaturalSize()
	if !ok || w != 800 || h != 600 {
		t.Fatalf("probe %gx%g ok=%v", w, h, ok)
	}

	// Cached after first success even if the file goes away.
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := probe.NaturalSize(); !ok {
		t.Fatal("cached size lost")
	}
}
