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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"certstudio/internal/backend"
	"certstudio/internal/config"
	"certstudio/internal/crash"
	"certstudio/internal/domain"
	"certstudio/internal/editor"
	"certstudio/internal/export"
	"certstudio/internal/imagemeta"
	doclayout "certstudio/internal/layout"
	applog "certstudio/internal/log"
	"certstudio/internal/progress"
	"certstudio/internal/registry"
	"certstudio/internal/storage"
	"certstudio/internal/telemetry"
	"certstudio/internal/undo"
)

// localLayoutStore keeps the layout document in the workspace when no
// coordinator token is configured. Saves also refresh the search index
// and append a history snapshot.
type localLayoutStore struct {
	ph *storage.ProjectHandle
}

func (s *localLayoutStore) path() string {
	return filepath.Join(s.ph.Root, "layout.json")
}

func (s *localLayoutStore) Load(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return []byte("{}"), nil
	}
	return b, err
}

func (s *localLayoutStore) Store(ctx context.Context, doc []byte, _ []string) error {
	if err := os.WriteFile(s.path(), doc, 0o644); err != nil {
		return err
	}
	var d domain.Document
	if err := json.Unmarshal(doc, &d); err == nil {
		if err := storage.UpdateIndex(ctx, s.ph.Root, s.ph.Manifest.CourseID, d); err != nil {
			applog.WithComponent("ui").Warn("index update failed", slog.Any("err", err))
		}
	}
	if err := storage.SaveSnapshot(ctx, s.ph, s.ph.Manifest.CourseID, doc, time.Now()); err != nil {
		applog.WithComponent("ui").Warn("snapshot save failed", slog.Any("err", err))
	}
	if _, err := storage.PruneOldSnapshots(ctx, s.ph, s.ph.Manifest.CourseID, snapshotKeep); err != nil {
		applog.WithComponent("ui").Warn("snapshot prune failed", slog.Any("err", err))
	}
	return nil
}

// snapshotKeep bounds the save-history kept in the workspace index.
const snapshotKeep = 50

// fixedProbe reports a constant canvas size for workspaces without a
// background image.
type fixedProbe struct{ w, h float64 }

func (p fixedProbe) NaturalSize() (float64, float64, bool) { return p.w, p.h, true }

type imageUploader interface {
	UploadImage(ctx context.Context, courseID int64, filename string, r io.Reader) (string, error)
}

// setBlockImage uploads the picked file and points the block at the URL
// the coordinator returns. Any failure, including a response without a
// URL, leaves the block's source untouched.
func setBlockImage(ctx context.Context, up imageUploader, courseID int64, reg *registry.Registry, blockID, filename string, r io.Reader) error {
	url, err := up.UploadImage(ctx, courseID, filename, r)
	if err != nil {
		return err
	}
	reg.Update(blockID, func(b *domain.Block) { b.Src = url })
	return nil
}

// Run starts the Fyne-based layout editor on the given workspace.
func Run(workspaceDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")

	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	if workspaceDir == "" {
		return fmt.Errorf("a workspace directory is required: certstudio edit <dir>")
	}
	abs, _ := filepath.Abs(workspaceDir)
	h, err := storage.Open(abs)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	ph = h
	l.Info("workspace open", slog.String("root", ph.Root), slog.Int64("course_id", ph.Manifest.CourseID))

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	telemetry.InitDefault()
	telemetry.Event("editor_open", map[string]any{"course_id": ph.Manifest.CourseID})

	// Coordinator client; layout lives server-side when a token exists,
	// in the workspace otherwise.
	client := backend.NewClient(cfg.Coordinator.BaseURL, token)
	client.SetTimeout(cfg.Coordinator.Timeout())
	var store editor.DocumentStore
	if token != "" && ph.Manifest.CourseID > 0 {
		store = &backend.LayoutStore{Client: client, CourseID: ph.Manifest.CourseID}
		l.Info("layout store: coordinator", slog.String("base_url", cfg.Coordinator.BaseURL))
	} else {
		store = &localLayoutStore{ph: ph}
		l.Info("layout store: workspace file")
	}

	var probe editor.BackgroundProbe
	if ph.Manifest.Background != "" {
		probe = &imagemeta.FileProbe{Path: filepath.Join(ph.Root, filepath.FromSlash(ph.Manifest.Background))}
	} else {
		probe = fixedProbe{w: 1600, h: 900}
	}

	fyneApp := app.NewWithID("certstudio")
	w := fyneApp.NewWindow("CertStudio — " + ph.Manifest.Name)
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 820)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	reg := registry.New()
	shell := editor.NewShell(reg, probe, store, editor.ShellConfig{})
	status := widget.NewLabel("Cargando plantilla...")

	undoMgr := undo.NewManager(undo.Config{
		MaxBytes:     16 * 1024 * 1024,
		MaxPerCourse: 50,
		MinInterval:  300 * time.Millisecond,
	})
	courseID := ph.Manifest.CourseID

	var cc *CertCanvas
	captureSnapshot := func() {
		natW, natH := shell.NaturalSize()
		doc := doclayout.Encode(reg.List(), natW, natH)
		blob, err := json.Marshal(doc)
		if err != nil {
			return
		}
		undoMgr.PushSnapshot(undo.Snapshot{CourseID: courseID, Blob: blob, TS: time.Now()})
	}
	applySnapshot := func(blob []byte) {
		natW, natH := shell.NaturalSize()
		blocks, err := doclayout.Decode(blob, natW, natH)
		if err != nil {
			l.Error("snapshot decode failed", slog.Any("err", err))
			return
		}
		reg.Reset(blocks)
		if cc != nil {
			cc.Refresh()
		}
	}

	// --- property panel -------------------------------------------------
	fontSize := widget.NewEntry()
	colorEntry := widget.NewEntry()
	alignSelect := widget.NewSelect([]string{"left", "center", "right", "justify"}, nil)
	nameFormat := widget.NewSelect([]string{"full", "first_last", "f_last", "first_l", "fl"}, nil)
	textEntry := widget.NewMultiLineEntry()
	propEnabled := false

	refreshProps := func() {
		b, ok := reg.Selected()
		propEnabled = false
		if !ok {
			fontSize.SetText("")
			colorEntry.SetText("")
			textEntry.SetText("")
			return
		}
		fontSize.SetText(strconv.FormatFloat(b.Style.FontSize, 'f', -1, 64))
		colorEntry.SetText(b.Style.Color)
		alignSelect.SetSelected(string(b.Style.TextAlign))
		if b.Type == domain.BlockStudent {
			f := string(b.NameFormat)
			if f == "" {
				f = "full"
			}
			nameFormat.SetSelected(f)
		}
		textEntry.SetText(b.Text)
		propEnabled = true
	}
	mutateSelected := func(mutate func(*domain.Block)) {
		b, ok := reg.Selected()
		if !ok || !propEnabled {
			return
		}
		reg.Update(b.ID, mutate)
		captureSnapshot()
		if cc != nil {
			cc.Refresh()
		}
	}
	fontSize.OnSubmitted = func(v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			mutateSelected(func(b *domain.Block) { b.Style.FontSize = f })
		}
	}
	colorEntry.OnSubmitted = func(v string) {
		mutateSelected(func(b *domain.Block) { b.Style.Color = v })
	}
	alignSelect.OnChanged = func(v string) {
		mutateSelected(func(b *domain.Block) { b.Style.TextAlign = domain.TextAlign(v) })
	}
	nameFormat.OnChanged = func(v string) {
		mutateSelected(func(b *domain.Block) {
			if b.Type == domain.BlockStudent {
				b.NameFormat = domain.NameFormat(v)
			}
		})
	}
	textEntry.OnSubmitted = func(v string) {
		mutateSelected(func(b *domain.Block) { b.Text = v })
	}

	reg.AddListener(registry.Listener{
		SelectionChanged: func(string) { refreshProps() },
		StructureChanged: func() { refreshProps() },
	})

	// --- palette --------------------------------------------------------
	palette := container.NewVBox(widget.NewLabel("Bloques"), widget.NewSeparator())
	for _, t := range domain.AllBlockTypes() {
		bt := t
		palette.Add(widget.NewButton(string(bt), func() {
			if !shell.Ready() {
				return
			}
			reg.Create(bt)
			captureSnapshot()
			cc.Refresh()
			status.SetText("Bloque agregado: " + string(bt))
		}))
	}

	// --- save / export --------------------------------------------------
	saveLayout := func() {
		if !shell.Ready() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordinator.Timeout())
		defer cancel()
		if err := shell.Save(ctx); err != nil {
			l.Error("layout save failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		telemetry.Event("layout_save", map[string]any{"blocks": reg.Len()})
		status.SetText("Plantilla guardada")
	}
	exportPDF := func() {
		if !shell.Ready() {
			return
		}
		natW, natH := shell.NaturalSize()
		if err := export.ExportProofPDF(ph, reg.List(), natW, natH, "plantilla.pdf", export.PDFOptions{}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		telemetry.Event("export_pdf", nil)
		status.SetText("PDF exportado a exports/plantilla.pdf")
	}
	exportPNG := func() {
		if !shell.Ready() {
			return
		}
		natW, natH := shell.NaturalSize()
		if err := export.ExportPreviewPNG(ph, reg.List(), natW, natH, "plantilla.png", export.PNGOptions{}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("PNG exportado a exports/plantilla.png")
	}

	// --- image upload ---------------------------------------------------
	assignImage := func() {
		if !shell.Ready() {
			return
		}
		sel, ok := reg.Selected()
		if !ok || sel.Type != domain.BlockImage {
			dialog.ShowInformation("Imagen", "Selecciona un bloque de imagen primero.", w)
			return
		}
		blockID := sel.ID
		dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			defer rc.Close()
			name := rc.URI().Name()
			if token != "" && ph.Manifest.CourseID > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordinator.Timeout())
				defer cancel()
				if err := setBlockImage(ctx, client, ph.Manifest.CourseID, reg, blockID, name, rc); err != nil {
					l.Error("image upload failed", slog.Any("err", err))
					dialog.ShowError(err, w)
					return
				}
			} else {
				rel, err := storage.SaveUpload(ph, name, rc)
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				reg.Update(blockID, func(b *domain.Block) { b.Src = rel })
			}
			captureSnapshot()
			cc.Refresh()
			status.SetText("Imagen asignada")
		}, w)
	}

	// --- batch generation ----------------------------------------------
	overlay := NewGenerationOverlay(w)
	reloadLayout := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordinator.Timeout())
		defer cancel()
		raw, err := store.Load(ctx)
		if err != nil {
			l.Error("layout reload failed", slog.Any("err", err))
			return
		}
		natW, natH := shell.NaturalSize()
		blocks, err := doclayout.Decode(raw, natW, natH)
		if err != nil {
			l.Error("layout reload decode failed", slog.Any("err", err))
			return
		}
		fyne.Do(func() {
			reg.Reset(blocks)
			cc.Refresh()
			status.SetText("Generación finalizada")
		})
	}
	downloadArchive := func(batchID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Coordinator.Timeout())
		defer cancel()
		rc, err := client.DownloadArchive(ctx, batchID)
		if err != nil {
			l.Warn("archive download failed", slog.Any("err", err))
			return
		}
		defer rc.Close()
		out := filepath.Join(ph.Root, "exports", "certificados-"+batchID+".zip")
		f, err := os.Create(out)
		if err != nil {
			l.Warn("archive save failed", slog.Any("err", err))
			return
		}
		_, err = io.Copy(f, rc)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			l.Warn("archive save failed", slog.Any("err", err))
			return
		}
		fyne.Do(func() { status.SetText("Certificados descargados: " + out) })
	}
	startBatch := func(resume bool, batchID string) {
		fetcher := &backend.ProgressSource{Client: client, BatchID: batchID}
		poller := progress.New(fetcher, overlay, func() {
			overlay.Hide()
			reloadLayout()
		}, progress.Config{
			Interval:    cfg.Generation.PollInterval(),
			ReloadDelay: cfg.Generation.RefreshDelay(),
		})
		if resume {
			poller.Resume()
		} else {
			poller.Start()
		}
		go func() {
			if err := poller.Run(context.Background()); err != nil {
				l.Error("batch polling stopped", slog.Any("err", err))
				overlay.Hide()
				return
			}
			downloadArchive(batchID)
		}()
	}
	generate := func() {
		if token == "" || ph.Manifest.CourseID <= 0 {
			dialog.ShowInformation("Generación", "Configura el coordinador y un token para generar certificados.", w)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordinator.Timeout())
		defer cancel()
		batchID, err := client.StartBatch(ctx, ph.Manifest.CourseID, backend.ActionGenerate, "")
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		telemetry.Event("batch_start", map[string]any{"course_id": ph.Manifest.CourseID})
		startBatch(false, batchID)
	}

	// --- toolbar --------------------------------------------------------
	toolbar := container.NewHBox(
		widget.NewButton("Guardar", saveLayout),
		widget.NewButton("PDF", exportPDF),
		widget.NewButton("PNG", exportPNG),
		widget.NewButton("Generar", generate),
		widget.NewSeparator(),
		widget.NewButton("Imagen...", assignImage),
		widget.NewButton("Negrita", func() {
			if shell.Ready() && shell.Controller() != nil {
				shell.Controller().ToggleBold()
				captureSnapshot()
				cc.Refresh()
			}
		}),
		widget.NewButton("Cursiva", func() {
			if shell.Ready() && shell.Controller() != nil {
				shell.Controller().ToggleItalic()
				captureSnapshot()
				cc.Refresh()
			}
		}),
		widget.NewButton("Subrayado", func() {
			if shell.Ready() && shell.Controller() != nil {
				shell.Controller().ToggleUnderline()
				captureSnapshot()
				cc.Refresh()
			}
		}),
		widget.NewButton("Eliminar", func() {
			if shell.Ready() && shell.Controller() != nil && shell.Controller().DeleteSelected() {
				captureSnapshot()
				cc.Refresh()
			}
		}),
		widget.NewSeparator(),
		widget.NewButton("Deshacer", func() {
			if s, ok := undoMgr.Undo(courseID); ok {
				applySnapshot(s.Blob)
			}
		}),
		widget.NewButton("Rehacer", func() {
			if s, ok := undoMgr.Redo(courseID); ok {
				applySnapshot(s.Blob)
			}
		}),
	)

	right := container.NewVBox(
		widget.NewLabel("Propiedades"),
		widget.NewSeparator(),
		widget.NewLabel("Texto"), textEntry,
		widget.NewLabel("Tamaño"), fontSize,
		widget.NewLabel("Color"), colorEntry,
		widget.NewLabel("Alineación"), alignSelect,
		widget.NewLabel("Formato de nombre"), nameFormat,
	)

	placeholder := container.NewCenter(widget.NewLabel("Cargando plantilla..."))
	content := container.NewBorder(toolbar, status, palette, right, placeholder)
	w.SetContent(content)

	// Gate the editor on the background's natural size, then swap the
	// canvas in on the UI thread.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := shell.Init(ctx, float64(winW-360), float64(winH-140)); err != nil {
			l.Error("editor init failed", slog.Any("err", err))
			fyne.Do(func() {
				status.SetText("Error: " + err.Error())
			})
			return
		}
		fyne.Do(func() {
			var bgPath string
			if ph.Manifest.Background != "" {
				bgPath = filepath.Join(ph.Root, filepath.FromSlash(ph.Manifest.Background))
			}
			cc = NewCertCanvas(reg, shell.Controller(), bgPath)
			cc.Root = ph.Root
			cc.SetZoom(shell.FitZoom())
			cc.OnChange = captureSnapshot
			content.Objects[0] = container.NewScroll(cc)
			content.Refresh()
			refreshProps()
			status.SetText(fmt.Sprintf("Listo — %d bloques, zoom %.0f%%", reg.Len(), cc.Zoom()*100))
			captureSnapshot()
		})
		// Pick up an interrupted batch. The coordinator, not local
		// preferences, knows whether one is still running, so a fresh
		// profile on another machine resumes the same overlay.
		if token != "" && ph.Manifest.CourseID > 0 {
			rctx, rcancel := context.WithTimeout(context.Background(), cfg.Coordinator.Timeout())
			active, err := client.ActiveBatch(rctx, ph.Manifest.CourseID)
			rcancel()
			switch {
			case err != nil:
				l.Warn("active batch lookup failed", slog.Any("err", err))
			case active != "":
				startBatch(true, active)
			}
		}
	}()

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	return nil
}
