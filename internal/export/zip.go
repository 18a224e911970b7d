/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"certstudio/internal/domain"
	"certstudio/internal/roster"
	"certstudio/internal/storage"
)

// BatchResult summarizes a local batch run. Failed students are recorded
// with their error so the run can finish partial instead of aborting.
type BatchResult struct {
	Entries  []ArchiveEntry
	Failures map[string]error // cedula -> error
}

// ArchiveEntry is one generated certificate on disk.
type ArchiveEntry struct {
	Nombre string
	Cedula string
	Path   string
}

// GenerateBatchPDFs renders one certificate PDF per student under
// exports/lote and returns the produced entries. Individual render
// failures are collected, not fatal.
func GenerateBatchPDFs(ph *storage.ProjectHandle, blocks []*domain.Block, natW, natH float64, students []roster.Student, opt PDFOptions) (*BatchResult, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	res := &BatchResult{Failures: map[string]error{}}
	base := DataFromManifest(ph.Manifest)
	for _, st := range students {
		data := base
		data.StudentName = st.Nombre
		data.Cedula = st.Cedula
		name := CertificateFileName(st.Nombre, st.Cedula)
		rel := filepath.Join("lote", name)
		if err := ExportCertificatePDF(ph, blocks, natW, natH, data, rel, opt); err != nil {
			res.Failures[st.Cedula] = err
			continue
		}
		res.Entries = append(res.Entries, ArchiveEntry{
			Nombre: st.Nombre,
			Cedula: st.Cedula,
			Path:   filepath.Join(ph.Root, "exports", rel),
		})
	}
	return res, nil
}

// BundleCertificates packs generated certificate files into a ZIP archive
// at outPath, one NOMBRE_cedula.pdf per entry plus a lote.csv manifest.
// A relative outPath lands under the project's exports folder.
func BundleCertificates(ph *storage.ProjectHandle, entries []ArchiveEntry, outPath string) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, "exports", outPath)
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, e := range entries {
		src, err := os.Open(e.Path)
		if err != nil {
			return fmt.Errorf("open certificate %s: %w", e.Cedula, err)
		}
		w, err := zw.Create(CertificateFileName(e.Nombre, e.Cedula))
		if err == nil {
			_, err = io.Copy(w, src)
		}
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("zip add %s: %w", e.Cedula, err)
		}
	}

	if err := addZipFile(zw, "lote.csv", buildBatchManifest(ph, entries)); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// CertificateFileName builds the NOMBRE_APELLIDO_cedula.pdf archive name:
// name upper-cased with spaces collapsed to underscores, cedula padded to
// nine digits, filesystem-hostile runes dropped.
func CertificateFileName(nombre, cedula string) string {
	ced, err := roster.NormalizeCedula(cedula)
	if err != nil {
		ced = cedula
	}
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(nombre)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r) || r == '_' || r == '-':
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.TrimSuffix(sb.String(), "_")
	if name == "" {
		name = "CERTIFICADO"
	}
	return fmt.Sprintf("%s_%s.pdf", name, ced)
}

func buildBatchManifest(ph *storage.ProjectHandle, entries []ArchiveEntry) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "curso,%s\n", csvEsc(ph.Manifest.Name))
	fmt.Fprintf(buf, "total,%d\n", len(entries))
	buf.WriteString("nombre,cedula,archivo\n")
	for _, e := range entries {
		fmt.Fprintf(buf, "%s,%s,%s\n", csvEsc(e.Nombre), e.Cedula, CertificateFileName(e.Nombre, e.Cedula))
	}
	return buf.Bytes()
}

func csvEsc(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
