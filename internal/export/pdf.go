/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders certificate layouts to files: a vector PDF per
// certificate, a raster preview, and ZIP bundles of a generated batch.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"certstudio/internal/domain"
	"certstudio/internal/geometry"
	"certstudio/internal/storage"
)

// PDFOptions controls PDF rendering behavior.
// Units are points (pt); the page is sized 1:1 to the background's natural
// pixel dimensions so percentage coordinates map without rescaling.
// Vector text uses the PDF built-in fonts for portability; font embedding
// can be added later with TTFs.
type PDFOptions struct {
	// IncludeGuides draws a hairline around every block box.
	IncludeGuides bool
	// SkipBackground omits the background image even when present.
	SkipBackground bool
	// Title overrides the PDF document title.
	Title string
}

// CertificateData carries the per-certificate substitution values for the
// bracketed placeholder tokens a layout may contain.
type CertificateData struct {
	StudentName string
	Cedula      string
	CourseName  string
	StartDate   string // ISO date, rendered in Spanish long form
	EndDate     string
	Responsible string
	IssueDate   time.Time
}

// DataFromManifest seeds the course-level fields from the project
// manifest; the caller fills the per-student fields afterwards.
func DataFromManifest(m storage.Manifest) CertificateData {
	return CertificateData{
		CourseName:  m.Name,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		Responsible: m.Responsible,
		IssueDate:   time.Now(),
	}
}

// ExportCertificatePDF renders the layout as one certificate page at
// outPath, substituting placeholder tokens from data. A relative outPath
// lands under the project's exports folder.
func ExportCertificatePDF(ph *storage.ProjectHandle, blocks []*domain.Block, natW, natH float64, data CertificateData, outPath string, opt PDFOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	if natW <= 0 || natH <= 0 {
		return fmt.Errorf("background size %gx%g not usable", natW, natH)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: natW, Ht: natH},
		// Orientation follows the page size.
		OrientationStr: "",
	})
	title := opt.Title
	if title == "" {
		title = fmt.Sprintf("%s — Certificado", ph.Manifest.Name)
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("CertStudio", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 12)

	pdf.AddPageFormat("", gofpdf.SizeType{Wd: natW, Ht: natH})

	if !opt.SkipBackground && ph.Manifest.Background != "" {
		bg := filepath.Join(ph.Root, filepath.FromSlash(ph.Manifest.Background))
		if _, err := os.Stat(bg); err == nil {
			pdf.ImageOptions(bg, 0, 0, natW, natH, false, gofpdf.ImageOptions{}, 0, "")
		}
	}

	for _, b := range blocks {
		if err := drawBlock(pdf, ph, b, natW, natH, data, opt); err != nil {
			return fmt.Errorf("block %s: %w", b.ID, err)
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, "exports", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportProofPDF renders the layout once with its design-time texts, the
// quick "how does the template look" export.
func ExportProofPDF(ph *storage.ProjectHandle, blocks []*domain.Block, natW, natH float64, outPath string, opt PDFOptions) error {
	data := DataFromManifest(ph.Manifest)
	return ExportCertificatePDF(ph, blocks, natW, natH, data, outPath, opt)
}

func drawBlock(pdf *gofpdf.Fpdf, ph *storage.ProjectHandle, b *domain.Block, natW, natH float64, data CertificateData, opt PDFOptions) error {
	x := geometry.ToPixels(b.XPct, natW)
	y := geometry.ToPixels(b.YPct, natH)
	w := geometry.ToPixels(b.WidthPct, natW)
	h := geometry.ToPixels(b.HeightPct, natH)
	if h <= 0 {
		h = b.Style.FontSize * 1.4
	}

	rotated := b.Style.Rotation != 0
	if rotated {
		pdf.TransformBegin()
		// gofpdf rotates counterclockwise; layout rotation is clockwise.
		pdf.TransformRotate(-b.Style.Rotation, x+w/2, y+h/2)
	}
	if b.Style.Opacity > 0 && b.Style.Opacity < 1 {
		pdf.SetAlpha(b.Style.Opacity, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}

	if opt.IncludeGuides {
		pdf.SetDrawColor(255, 0, 0)
		pdf.SetLineWidth(0.2)
		pdf.Rect(x, y, w, h, "D")
	}

	if b.Type == domain.BlockImage {
		drawImageBlock(pdf, ph, b, x, y, w, h)
	} else {
		drawTextBlock(pdf, b, x, y, w, data)
	}

	if rotated {
		pdf.TransformEnd()
	}
	return nil
}

func drawImageBlock(pdf *gofpdf.Fpdf, ph *storage.ProjectHandle, b *domain.Block, x, y, w, h float64) {
	if b.Src == "" {
		return
	}
	path := b.Src
	if !filepath.IsAbs(path) {
		path = filepath.Join(ph.Root, "uploads", filepath.FromSlash(b.Src))
	}
	if _, err := os.Stat(path); err != nil {
		// Missing asset: keep the slot visible instead of failing the export.
		pdf.SetDrawColor(160, 160, 160)
		pdf.SetLineWidth(0.5)
		pdf.Rect(x, y, w, h, "D")
		return
	}
	pdf.ImageOptions(path, x, y, w, h, false, gofpdf.ImageOptions{}, 0, "")
}

func drawTextBlock(pdf *gofpdf.Fpdf, b *domain.Block, x, y, w float64, data CertificateData) {
	text := resolveText(b, data)
	if text == "" {
		return
	}
	size := b.Style.FontSize
	if size <= 0 {
		size = 12
	}
	pdf.SetFont(pdfFamily(b.Style.FontFamily), pdfStyle(b.Style), size)
	r, g, bl, ok := parseHexColor(b.Style.Color)
	if !ok {
		return // "transparent" or unparseable: draw nothing
	}
	pdf.SetTextColor(r, g, bl)

	// Single baseline per block; certificate blocks are one-liners.
	sw := pdf.GetStringWidth(text)
	tx := x
	switch b.Style.TextAlign {
	case domain.AlignCenter:
		tx = x + (w-sw)/2
	case domain.AlignRight:
		tx = x + w - sw
	}
	ty := y + size // approximate ascent
	pdf.Text(tx, ty, text)
}

// resolveText applies the student name transform and the bracketed
// placeholder substitutions to a block's display text.
func resolveText(b *domain.Block, data CertificateData) string {
	text := b.DisplayText()
	if b.Type == domain.BlockStudent && data.StudentName != "" {
		text = domain.FormatName(data.StudentName, b.NameFormat)
	}
	repl := strings.NewReplacer(
		"[NOMBRE DEL ESTUDIANTE]", data.StudentName,
		"[NOMBRE DEL CURSO]", data.CourseName,
		"[CEDULA]", data.Cedula,
		"[FECHA_INICIO]", formatISODate(data.StartDate),
		"[FECHA_FIN]", formatISODate(data.EndDate),
		"[RESPONSABLE]", data.Responsible,
		"[FECHA_EMISION]", domain.FormatDateES(data.IssueDate),
	)
	return repl.Replace(text)
}

func formatISODate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return domain.FormatDateES(t)
}

// pdfFamily maps the layout's web font families onto the PDF built-ins.
func pdfFamily(family string) string {
	switch f := strings.ToLower(family); {
	case strings.Contains(f, "georgia"), strings.Contains(f, "times"), strings.Contains(f, "serif"):
		return "Times"
	case strings.Contains(f, "courier"), strings.Contains(f, "mono"):
		return "Courier"
	default:
		return "Helvetica"
	}
}

func pdfStyle(s domain.Style) string {
	var sb strings.Builder
	if s.Bold {
		sb.WriteByte('B')
	}
	if s.Italic {
		sb.WriteByte('I')
	}
	if s.Underline {
		sb.WriteByte('U')
	}
	return sb.String()
}

// parseHexColor accepts #rgb and #rrggbb. It reports ok=false for
// "transparent", empty, or malformed values.
func parseHexColor(s string) (r, g, b int, ok bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "transparent" || !strings.HasPrefix(s, "#") {
		return 0, 0, 0, false
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	var v [3]int
	for i := 0; i < 3; i++ {
		n, err := parseHexByte(hex[i*2 : i*2+2])
		if err != nil {
			return 0, 0, 0, false
		}
		v[i] = n
	}
	return v[0], v[1], v[2], true
}

func parseHexByte(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			n = n*16 + int(c-'0')
		case c >= 'a' && c <= 'f':
			n = n*16 + int(c-'a'+10)
		default:
			return 0, fmt.Errorf("bad hex digit %q", c)
		}
	}
	return n, nil
}
