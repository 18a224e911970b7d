/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"certstudio/internal/domain"
)

func TestInitProjectScaffoldsWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	ph, err := InitProject(root, Manifest{Name: "Soldadura 2026", CourseID: 7})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"backgrounds", "uploads", "exports", "backups"} {
		if st, err := os.Stat(filepath.Join(root, d)); err != nil || !st.IsDir() {
			t.Errorf("missing subdir %s", d)
		}
	}
	if _, err := os.Stat(ph.ManifestPath); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if ph.Manifest.CreatedAt.IsZero() {
		t.Errorf("created_at not stamped")
	}
}

func TestOpenRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if _, err := InitProject(root, Manifest{Name: "Curso A", CourseID: 3, Background: "backgrounds/plantilla.png"}); err != nil {
		t.Fatal(err)
	}
	ph, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if ph.Manifest.Name != "Curso A" || ph.Manifest.CourseID != 3 {
		t.Fatalf("manifest %+v", ph.Manifest)
	}
	if ph.Manifest.Background != "backgrounds/plantilla.png" {
		t.Errorf("background %q", ph.Manifest.Background)
	}
}

func TestOpenRecoversFromBackupOnCorruptManifest(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	ph, err := InitProject(root, Manifest{Name: "Original", CourseID: 1})
	if err != nil {
		t.Fatal(err)
	}
	// Save again so a backup of the good manifest exists.
	ph.Manifest.Name = "Actualizado"
	if err := Save(ph); err != nil {
		t.Fatal(err)
	}
	// Corrupt the live manifest.
	if err := os.WriteFile(ph.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if got.Manifest.Name == "" {
		t.Fatalf("recovered empty manifest")
	}
}

func TestSaveAsScaffoldsNewRoot(t *testing.T) {
	ph, err := InitProject(filepath.Join(t.TempDir(), "a"), Manifest{Name: "X", CourseID: 9})
	if err != nil {
		t.Fatal(err)
	}
	newRoot := filepath.Join(t.TempDir(), "b")
	if err := SaveAs(ph, newRoot); err != nil {
		t.Fatal(err)
	}
	if ph.Root != newRoot {
		t.Fatalf("handle root not updated")
	}
	if _, err := os.Stat(filepath.Join(newRoot, ManifestFileName)); err != nil {
		t.Fatalf("manifest missing in new root: %v", err)
	}
}

func sampleDoc() domain.Document {
	return domain.Document{
		"blk-1": {Type: "title", TextOverride: "CERTIFICADO", FontSize: 52, Color: "#111", Opacity: 1},
		"blk-2": {Type: "course", TextOverride: "Gestión de Proyectos", FontSize: 30, Color: "#000", Opacity: 1},
		"blk-3": {Type: "student", TextOverride: "[NOMBRE DEL ESTUDIANTE]", FontSize: 36, Color: "#000", Opacity: 1},
	}
}

func TestIndexUpdateAndSearch(t *testing.T) {
	root := t.TempDir()
	if err := UpdateIndex(context.Background(), root, 7, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	hits, err := SearchBlocks(context.Background(), db, "proyectos", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].BlockID != "blk-2" || hits[0].CourseID != 7 {
		t.Fatalf("hits %+v", hits)
	}

	// Wholesale replace: blk-2 text changes, blk-3 disappears.
	doc := sampleDoc()
	rec := doc["blk-2"]
	rec.TextOverride = "Curso de Soldadura"
	doc["blk-2"] = rec
	delete(doc, "blk-3")
	if err := UpdateIndex(context.Background(), root, 7, doc); err != nil {
		t.Fatal(err)
	}
	if hits, _ := SearchBlocks(context.Background(), db, "proyectos", 10); len(hits) != 0 {
		t.Fatalf("stale text still indexed: %+v", hits)
	}
	if hits, _ := SearchBlocks(context.Background(), db, "soldadura", 10); len(hits) != 1 {
		t.Fatalf("updated text not found: %+v", hits)
	}
}

func TestRebuildIndexSurvivesDrop(t *testing.T) {
	root := t.TempDir()
	if err := RebuildIndex(context.Background(), root, 2, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	hits, err := SearchBlocks(context.Background(), db, "certificado", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits %+v", hits)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	ph, err := InitProject(filepath.Join(t.TempDir(), "ws"), Manifest{Name: "S", CourseID: 4})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	base := time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		doc := []byte(`{"v":` + string(rune('0'+i)) + `}`)
		if err := SaveSnapshot(ctx, ph, 4, doc, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	blob, ts, err := GetLatestSnapshot(ctx, ph, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != `{"v":4}` {
		t.Fatalf("latest blob %q", blob)
	}
	if !ts.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("latest ts %v", ts)
	}

	list, err := ListSnapshots(ctx, ph, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || string(list[0].Blob) != `{"v":4}` {
		t.Fatalf("list %+v", list)
	}

	n, err := PruneOldSnapshots(ctx, ph, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("pruned %d, want 3", n)
	}
	list, _ = ListSnapshots(ctx, ph, 4, 10)
	if len(list) != 2 {
		t.Fatalf("%d snapshots remain", len(list))
	}

	// Other courses untouched.
	if blob, _, _ := GetLatestSnapshot(ctx, ph, 99); blob != nil {
		t.Fatalf("phantom snapshot for unknown course")
	}
}

func TestSaveUploadLandsUnderUploads(t *testing.T) {
	ph, err := InitProject(filepath.Join(t.TempDir(), "ws"), Manifest{Name: "Curso", CourseID: 3})
	if err != nil {
		t.Fatal(err)
	}
	rel, err := SaveUpload(ph, "/tmp/somewhere/sello firma.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if rel != "uploads/sello firma.png" {
		t.Fatalf("relative path %q", rel)
	}
	b, err := os.ReadFile(filepath.Join(ph.Root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "png-bytes" {
		t.Fatalf("upload content %q", b)
	}

	if _, err := SaveUpload(nil, "x.png", strings.NewReader("")); err == nil {
		t.Fatal("nil handle accepted")
	}
}
