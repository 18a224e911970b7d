/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for certificate layouts.
// A layout is an ordered set of positioned blocks over a background image.
// Percentage coordinates (relative to the background's natural pixel size)
// are the canonical in-memory unit; pixel values exist only in the
// persisted document records.

import (
	"fmt"
	"strings"
	"time"
)

// BlockType enumerates the closed set of block kinds the editor knows.
// Each type carries its own geometry/style defaults and decides which
// property-panel controls apply.
type BlockType string

const (
	BlockTextbox     BlockType = "textbox"
	BlockImage       BlockType = "image"
	BlockTitle       BlockType = "title"
	BlockSubtitle    BlockType = "subtitle"
	BlockStudent     BlockType = "student"
	BlockCourseIntro BlockType = "course_intro"
	BlockCourse      BlockType = "course"
	BlockDates       BlockType = "dates"
	BlockResponsible BlockType = "responsible"
	BlockSignature   BlockType = "signature"
	BlockFooter      BlockType = "footer"
	BlockCedula      BlockType = "cedula"
	BlockIssueDate   BlockType = "issue_date"
)

// AllBlockTypes lists every valid block type in palette order.
func AllBlockTypes() []BlockType {
	return []BlockType{
		BlockTextbox, BlockImage, BlockTitle, BlockSubtitle, BlockStudent,
		BlockCourseIntro, BlockCourse, BlockDates, BlockResponsible,
		BlockSignature, BlockFooter, BlockCedula, BlockIssueDate,
	}
}

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	_, ok := defaults[t]
	return ok
}

// ParseBlockType converts a persisted string to a BlockType.
// Unknown values fall back to textbox so older or hand-edited documents
// still load; the error tells the caller a fallback happened.
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(strings.TrimSpace(s))
	if t.Valid() {
		return t, nil
	}
	return BlockTextbox, fmt.Errorf("unknown block type %q", s)
}

// TextAlign mirrors the CSS text-align values the editor offers.
type TextAlign string

const (
	AlignLeft    TextAlign = "left"
	AlignCenter  TextAlign = "center"
	AlignRight   TextAlign = "right"
	AlignJustify TextAlign = "justify"
)

// NameFormat selects how a student block renders the recipient's name.
// The untransformed name is kept in Block.OriginalText so switching
// formats never loses information.
type NameFormat string

const (
	NameFull      NameFormat = "full"       // Juan Carlos Perez Lopez
	NameFirstLast NameFormat = "first_last" // Juan Lopez
	NameFLast     NameFormat = "f_last"     // J. Lopez
	NameFirstL    NameFormat = "first_l"    // Juan L.
	NameInitials  NameFormat = "fl"         // J. L.
)

// FormatName applies a NameFormat to a full name. The first and last
// whitespace-separated words are treated as first and last name; middle
// names are dropped by every mode except full.
func FormatName(full string, mode NameFormat) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return ""
	}
	if mode == NameFull || mode == "" {
		return full
	}
	parts := strings.Fields(full)
	first := parts[0]
	last := ""
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	fi := string([]rune(first)[0])
	switch mode {
	case NameFirstLast:
		return strings.TrimSpace(first + " " + last)
	case NameFLast:
		return strings.TrimSpace(fi + ". " + last)
	case NameFirstL:
		if last == "" {
			return first
		}
		return first + " " + string([]rune(last)[0]) + "."
	case NameInitials:
		if last == "" {
			return fi + "."
		}
		return fi + ". " + string([]rune(last)[0]) + "."
	}
	return full
}

// Style groups the visual attributes shared by all block types.
type Style struct {
	FontSize      float64   `json:"fontSize"`
	Color         string    `json:"color"` // hex or "transparent"
	Bold          bool      `json:"bold"`
	Italic        bool      `json:"italic"`
	Underline     bool      `json:"underline"`
	FontFamily    string    `json:"fontFamily"`
	TextAlign     TextAlign `json:"textAlign"`
	LetterSpacing float64   `json:"letterSpacing"` // px
	Rotation      float64   `json:"rotation"`      // degrees
	Opacity       float64   `json:"opacity"`       // 0..1
}

// Block is one positioned visual element of a layout.
// Coordinates and sizes are percentages of the background's natural
// dimensions. HeightPct <= 0 means "auto height from content" for text
// blocks; image blocks always carry an explicit height.
type Block struct {
	ID        string    `json:"id"`
	Type      BlockType `json:"type"`
	XPct      float64   `json:"x_pct"`
	YPct      float64   `json:"y_pct"`
	WidthPct  float64   `json:"width_pct"`
	HeightPct float64   `json:"height_pct,omitempty"`

	Text string `json:"text"`
	Src  string `json:"src,omitempty"` // image blocks only

	Style Style `json:"style"`

	// Student blocks only: display transform over OriginalText.
	NameFormat   NameFormat `json:"nameFormat,omitempty"`
	OriginalText string     `json:"originalText,omitempty"`
}

// IsText reports whether the block renders text (everything but image).
func (b *Block) IsText() bool { return b.Type != BlockImage }

// DisplayText returns the text the canvas should draw for the block.
// Student blocks derive it from OriginalText and the active NameFormat.
func (b *Block) DisplayText() string {
	if b.Type == BlockStudent && b.OriginalText != "" {
		return FormatName(b.OriginalText, b.NameFormat)
	}
	return b.Text
}

// BlockDefaults is the per-type default record applied at creation.
type BlockDefaults struct {
	Text      string
	XPct      float64
	YPct      float64
	WidthPct  float64
	HeightPct float64 // 0 = auto
	Style     Style
}

// defaults is the exhaustive type-keyed default table. Keep an entry for
// every BlockType constant; Valid() derives the closed set from it.
var defaults = map[BlockType]BlockDefaults{
	BlockTextbox: {
		Text: "Texto de ejemplo", XPct: 35, YPct: 45, WidthPct: 30,
		Style: Style{FontSize: 24, Color: "#000000", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockImage: {
		XPct: 40, YPct: 40, WidthPct: 20, HeightPct: 20,
		Style: Style{FontSize: 24, Color: "transparent", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockTitle: {
		Text: "CERTIFICADO", XPct: 20, YPct: 10, WidthPct: 60,
		Style: Style{FontSize: 52, Bold: true, Color: "#1a1a1a", FontFamily: "Georgia", TextAlign: AlignCenter, LetterSpacing: 4, Opacity: 1},
	},
	BlockSubtitle: {
		Text: "DE PARTICIPACIÓN", XPct: 30, YPct: 22, WidthPct: 40,
		Style: Style{FontSize: 26, Color: "#333333", FontFamily: "Georgia", TextAlign: AlignCenter, LetterSpacing: 2, Opacity: 1},
	},
	BlockStudent: {
		Text: "Juan Carlos Pérez López", XPct: 20, YPct: 38, WidthPct: 60,
		Style: Style{FontSize: 36, Bold: true, Color: "#000000", FontFamily: "Georgia", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockCourseIntro: {
		Text: "Por haber completado satisfactoriamente el curso", XPct: 20, YPct: 50, WidthPct: 60,
		Style: Style{FontSize: 20, Color: "#333333", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockCourse: {
		Text: "Gestión de Proyectos", XPct: 20, YPct: 57, WidthPct: 60,
		Style: Style{FontSize: 30, Bold: true, Color: "#000000", FontFamily: "Georgia", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockDates: {
		Text: "Del [FECHA_INICIO] al [FECHA_FIN]", XPct: 30, YPct: 66, WidthPct: 40,
		Style: Style{FontSize: 16, Color: "#444444", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockResponsible: {
		Text: "[RESPONSABLE]", XPct: 35, YPct: 78, WidthPct: 30,
		Style: Style{FontSize: 18, Color: "#000000", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockSignature: {
		Text: "____________________", XPct: 37.5, YPct: 73, WidthPct: 25,
		Style: Style{FontSize: 18, Color: "#000000", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockFooter: {
		Text: "www.institucion.edu", XPct: 30, YPct: 92, WidthPct: 40,
		Style: Style{FontSize: 12, Color: "#666666", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockCedula: {
		Text: "C.I. [CEDULA]", XPct: 35, YPct: 46, WidthPct: 30,
		Style: Style{FontSize: 16, Color: "#333333", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
	BlockIssueDate: {
		Text: "Emitido el [FECHA_EMISION]", XPct: 30, YPct: 86, WidthPct: 40,
		Style: Style{FontSize: 14, Color: "#555555", FontFamily: "Arial", TextAlign: AlignCenter, Opacity: 1},
	},
}

// DefaultsFor returns the default record for a block type. Unknown types
// get the textbox defaults, mirroring ParseBlockType's fallback.
func DefaultsFor(t BlockType) BlockDefaults {
	if d, ok := defaults[t]; ok {
		return d
	}
	return defaults[BlockTextbox]
}

// Placeholders maps placeholder-eligible types to the canonical token
// stored in a saved document when the block text is still the untouched
// default. Saved layouts are reusable templates; the designer's example
// text never leaks into them.
var Placeholders = map[BlockType]string{
	BlockStudent:     "[NOMBRE DEL ESTUDIANTE]",
	BlockCourse:      "[NOMBRE DEL CURSO]",
	BlockCedula:      "C.I. [CEDULA]",
	BlockDates:       "Del [FECHA_INICIO] al [FECHA_FIN]",
	BlockResponsible: "[RESPONSABLE]",
	BlockIssueDate:   "Emitido el [FECHA_EMISION]",
}

// Record is the persisted, pixel-anchored form of one block.
// image_w/image_h record the background's natural size at save time so
// the record stays self-describing if the canvas is later displayed at a
// different size. Pixel fields are pointers so decode can distinguish
// modern records from legacy percentage-only ones.
type Record struct {
	XPx      *float64 `json:"x_px,omitempty"`
	YPx      *float64 `json:"y_px,omitempty"`
	WidthPx  *float64 `json:"width_px,omitempty"`
	HeightPx *float64 `json:"height_px,omitempty"`
	ImageW   float64  `json:"image_w,omitempty"`
	ImageH   float64  `json:"image_h,omitempty"`

	// Legacy percentage fields, read when pixel fields are absent.
	XPct      *float64 `json:"x_pct,omitempty"`
	YPct      *float64 `json:"y_pct,omitempty"`
	WidthPct  *float64 `json:"width_pct,omitempty"`
	HeightPct *float64 `json:"height_pct,omitempty"`

	FontSize      float64 `json:"font_size"`
	Color         string  `json:"color"`
	Bold          bool    `json:"bold"`
	Italic        bool    `json:"italic"`
	Underline     bool    `json:"underline"`
	Type          string  `json:"type"`
	TextOverride  string  `json:"text_override"`
	Src           string  `json:"src,omitempty"`
	FontFamily    string  `json:"font_family"`
	TextAlign     string  `json:"text_align"`
	LetterSpacing float64 `json:"letter_spacing"`
	Rotation      float64 `json:"rotation"`
	Opacity       float64 `json:"opacity"`
	NameFormat    string  `json:"name_format,omitempty"`
}

// Document is the persisted layout: block id -> pixel record.
// It is rebuilt wholesale on every save, never diffed.
type Document map[string]Record

// ProgressSnapshot is the polled batch status record. The client renders
// it verbatim; the server counters are authoritative.
type ProgressSnapshot struct {
	Success    bool   `json:"success"`
	Progress   int    `json:"progress"` // 0..100
	Exitosos   int    `json:"exitosos"`
	Fallidos   int    `json:"fallidos"`
	IsComplete bool   `json:"is_complete"`
	Error      string `json:"error,omitempty"`
}

// BatchState enumerates coordinator-side batch lifecycle states.
type BatchState string

const (
	BatchPending    BatchState = "pending"
	BatchProcessing BatchState = "processing"
	BatchCompleted  BatchState = "completed"
	BatchPartial    BatchState = "partial"
	BatchFailed     BatchState = "failed"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDateES renders a date the way certificates spell it out:
// "12 de mayo de 2026". Zero times render as "N/A".
func FormatDateES(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
