/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"certstudio/internal/storage"
)

func TestWriteReportWithoutWorkspaceUsesTempDir(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "CertStudio Crash Report") {
		t.Fatal("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing:\n%s", s)
	}
}

func TestWriteReportLandsInWorkspaceBackups(t *testing.T) {
	root := t.TempDir()
	ph := &storage.ProjectHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, storage.ManifestFileName),
		Manifest:     storage.Manifest{Name: "Curso", CourseID: 7},
	}
	path, err := writeReport(ph, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(root, storage.BackupsDirName)) {
		t.Fatalf("report outside backups dir: %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "CourseID: 7") {
		t.Fatalf("course id missing:\n%s", b)
	}
}

func TestRecoverWritesReportAndAutosave(t *testing.T) {
	// Silence the stderr notice during the test.
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	exitCode := -1
	oldExit := exitFn
	exitFn = func(code int) { exitCode = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	ph := &storage.ProjectHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, storage.ManifestFileName),
		Manifest:     storage.Manifest{Name: "Curso", CourseID: 4},
	}

	func() {
		defer Recover(ph)
		panic("boom")
	}()

	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var haveReport, haveAutosave bool
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			haveReport = true
		case strings.HasPrefix(f.Name(), "autosave-crash-") && strings.HasSuffix(f.Name(), ".json"):
			haveAutosave = true
		}
	}
	if !haveReport {
		t.Error("crash report missing from backups dir")
	}
	if !haveAutosave {
		t.Error("manifest autosave missing from backups dir")
	}
	if exitCode != 2 {
		t.Errorf("exit code %d, want 2", exitCode)
	}
}

func TestRecoverNoopWithoutPanic(t *testing.T) {
	exitCalled := false
	oldExit := exitFn
	exitFn = func(int) { exitCalled = true }
	defer func() { exitFn = oldExit }()

	func() {
		defer Recover(nil)
	}()
	if exitCalled {
		t.Fatal("Recover exited without a panic")
	}
}
