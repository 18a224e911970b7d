/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certstudio/internal/backend"
	"certstudio/internal/crash"
	"certstudio/internal/export"
	"certstudio/internal/imagemeta"
	"certstudio/internal/layout"
	applog "certstudio/internal/log"
	"certstudio/internal/roster"
	"certstudio/internal/storage"
	"certstudio/internal/ui"
	"certstudio/internal/version"
)

func usage() {
	fmt.Println("CertStudio — certificate layout editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  certstudio version|-v|--version          Show version")
	fmt.Println("  certstudio init <dir> <name> <courseID>  Create a new workspace")
	fmt.Println("  certstudio open <dir>                     Open a workspace and print a summary")
	fmt.Println("  certstudio roster <file.csv>              Validate a student roster")
	fmt.Println("  certstudio generate <dir> <file.csv> [out.zip]")
	fmt.Println("                                            Render certificates locally and bundle them")
	fmt.Println("  certstudio history <dir>                  List layout save snapshots")
	fmt.Println("  certstudio restore <dir>                  Restore the newest layout snapshot")
	fmt.Println("  certstudio search <dir> <query>           Full-text search over block text")
	fmt.Println("  certstudio serve                          Run the coordinator server")
	fmt.Println("  certstudio edit [<dir>]                   Launch the editor (build with -tags fyne)")
}

// defaultCanvasW/H size workspaces that have no background image yet,
// matching the editor's blank canvas.
const (
	defaultCanvasW = 1600.0
	defaultCanvasH = 900.0
)

// cmdGenerate renders one certificate PDF per roster row against the
// saved layout and bundles them into a ZIP under exports/.
func cmdGenerate(out io.Writer, dir, rosterPath, zipName string) error {
	abs, _ := filepath.Abs(dir)
	ph, err := storage.Open(abs)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(filepath.Join(ph.Root, "layout.json"))
	if os.IsNotExist(err) {
		raw = []byte("{}")
	} else if err != nil {
		return err
	}
	natW, natH := defaultCanvasW, defaultCanvasH
	if ph.Manifest.Background != "" {
		if w, h, err := imagemeta.NaturalSize(filepath.Join(ph.Root, filepath.FromSlash(ph.Manifest.Background))); err == nil {
			natW, natH = w, h
		}
	}
	blocks, err := layout.Decode(raw, natW, natH)
	if err != nil {
		return fmt.Errorf("decode layout: %w", err)
	}

	f, err := os.Open(rosterPath)
	if err != nil {
		return err
	}
	students, rosterErrs := roster.Parse(f)
	_ = f.Close()
	for _, e := range rosterErrs {
		fmt.Fprintf(out, "line %d: %s\n", e.Line, e.Message)
	}
	if len(students) == 0 {
		return fmt.Errorf("roster has no usable students")
	}

	res, err := export.GenerateBatchPDFs(ph, blocks, natW, natH, students, export.PDFOptions{})
	if err != nil {
		return err
	}
	for ced, ferr := range res.Failures {
		fmt.Fprintf(out, "fallo %s: %v\n", ced, ferr)
	}
	if zipName == "" {
		zipName = "certificados.zip"
	}
	if err := export.BundleCertificates(ph, res.Entries, zipName); err != nil {
		return err
	}
	fmt.Fprintf(out, "Generados %d certificados (%d fallidos) -> exports/%s\n", len(res.Entries), len(res.Failures), zipName)
	return nil
}

// cmdHistory lists the layout save snapshots recorded in the workspace
// index, newest first.
func cmdHistory(out io.Writer, dir string, limit int) error {
	abs, _ := filepath.Abs(dir)
	ph, err := storage.Open(abs)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snaps, err := storage.ListSnapshots(ctx, ph, ph.Manifest.CourseID, limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(out, "No snapshots recorded")
		return nil
	}
	for _, s := range snaps {
		fmt.Fprintf(out, "%s  %d bytes\n", s.TS.Format(time.RFC3339), len(s.Blob))
	}
	return nil
}

// cmdRestore writes the newest snapshot back as the working layout.
func cmdRestore(out io.Writer, dir string) error {
	abs, _ := filepath.Abs(dir)
	ph, err := storage.Open(abs)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	blob, ts, err := storage.GetLatestSnapshot(ctx, ph, ph.Manifest.CourseID)
	if err != nil {
		return err
	}
	if blob == nil {
		return fmt.Errorf("no snapshots to restore")
	}
	if err := os.WriteFile(filepath.Join(ph.Root, "layout.json"), blob, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored layout from %s\n", ts.Format(time.RFC3339))
	return nil
}

// cmdSearch runs a full-text query over the indexed block text.
func cmdSearch(out io.Writer, dir, query string) error {
	abs, _ := filepath.Abs(dir)
	ph, err := storage.Open(abs)
	if err != nil {
		return err
	}
	db, err := storage.InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hits, err := storage.SearchBlocks(ctx, db, query, 20)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(out, "%s  [%s]  %s\n", h.BlockID, h.Type, h.Text)
	}
	return nil
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	args := os.Args
	if len(args) <= 1 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())

	case "init":
		if len(args) < 5 {
			fmt.Println("init requires <dir> <name> <courseID>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		var courseID int64
		if _, err := fmt.Sscanf(args[4], "%d", &courseID); err != nil || courseID <= 0 {
			fmt.Println("courseID must be a positive integer")
			os.Exit(2)
		}
		l.Info("init workspace", slog.String("root", abs), slog.String("name", args[3]), slog.Int64("course_id", courseID))
		h, err := storage.InitProject(abs, storage.Manifest{Name: args[3], CourseID: courseID})
		if err != nil {
			l.Error("init failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		ph = h
		fmt.Println("Created workspace at", abs)

	case "open":
		if len(args) < 3 {
			fmt.Println("open requires <dir>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		h, err := storage.Open(abs)
		if err != nil {
			l.Error("open failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		ph = h
		fmt.Printf("Workspace: %s\n", h.Manifest.Name)
		fmt.Printf("Course ID: %d\n", h.Manifest.CourseID)
		fmt.Printf("Background: %s\n", h.Manifest.Background)
		fmt.Println("Root:", h.Root)

	case "roster":
		if len(args) < 3 {
			fmt.Println("roster requires <file.csv>")
			usage()
			os.Exit(2)
		}
		f, err := os.Open(args[2])
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		students, errs := roster.Parse(f)
		_ = f.Close()
		fmt.Printf("Students: %d\n", len(students))
		for _, e := range errs {
			fmt.Printf("  line %d: %s\n", e.Line, e.Message)
		}
		if len(errs) > 0 {
			os.Exit(1)
		}

	case "generate":
		if len(args) < 4 {
			fmt.Println("generate requires <dir> <file.csv> [out.zip]")
			usage()
			os.Exit(2)
		}
		zipName := ""
		if len(args) >= 5 {
			zipName = args[4]
		}
		if err := cmdGenerate(os.Stdout, args[2], args[3], zipName); err != nil {
			l.Error("generate failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	case "history":
		if len(args) < 3 {
			fmt.Println("history requires <dir>")
			usage()
			os.Exit(2)
		}
		if err := cmdHistory(os.Stdout, args[2], 20); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	case "restore":
		if len(args) < 3 {
			fmt.Println("restore requires <dir>")
			usage()
			os.Exit(2)
		}
		if err := cmdRestore(os.Stdout, args[2]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	case "search":
		if len(args) < 4 {
			fmt.Println("search requires <dir> <query>")
			usage()
			os.Exit(2)
		}
		if err := cmdSearch(os.Stdout, args[2], strings.Join(args[3:], " ")); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	case "serve":
		if err := backend.Start(); err != nil {
			l.Error("server stopped", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	case "edit":
		var dir string
		if len(args) >= 3 {
			dir = args[2]
		}
		if err := ui.Run(dir); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	default:
		usage()
	}
}
