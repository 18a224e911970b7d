/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout converts between the in-memory block list and the
// persisted pixel-anchored document. Decode is deliberately forgiving:
// layouts written by older editor versions, double-encoded by the host,
// or containing junk entries still load with everything salvageable.
package layout

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"certstudio/internal/domain"
	"certstudio/internal/geometry"
	applog "certstudio/internal/log"
)

// Legacy defaults used when a record carries neither pixel nor percentage
// values for a field.
const (
	legacyXPct     = 50.0
	legacyYPct     = 50.0
	legacyWidthPct = 30.0
	defaultWidthPx = 300.0
)

// Decode turns a persisted document into an ordered block list.
//
// Percentage fields of modern records are derived from that record's own
// image_w/image_h — not the live canvas size — so a layout saved against
// one background resolution decodes correctly anywhere. naturalW/H are
// only the fallback anchor for records missing their own dimensions.
// Non-object entries are skipped, never fatal. Blocks come back sorted by
// id, which preserves creation order for timestamp-derived ids.
func Decode(raw []byte, naturalW, naturalH float64) ([]*domain.Block, error) {
	l := applog.WithComponent("layout")

	raw = unwrapOnce(raw)

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessBlockID(ids[i], ids[j]) })

	blocks := make([]*domain.Block, 0, len(entries))
	for _, id := range ids {
		var rec domain.Record
		if err := json.Unmarshal(entries[id], &rec); err != nil {
			l.Warn("skipping malformed layout entry", slog.String("id", id), slog.Any("err", err))
			continue
		}
		blocks = append(blocks, blockFromRecord(id, rec, naturalW, naturalH))
	}
	return blocks, nil
}

// lessBlockID orders ids segment-wise, comparing numeric segments as
// numbers, so blk-<ms>-9 stays before blk-<ms>-10. A plain string sort
// would flip blocks created within the same millisecond.
func lessBlockID(a, b string) bool {
	as, bs := strings.Split(a, "-"), strings.Split(b, "-")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.ParseUint(as[i], 10, 64)
		bn, berr := strconv.ParseUint(bs[i], 10, 64)
		if aerr == nil && berr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}

// unwrapOnce removes one layer of JSON string wrapping if present.
// Compatibility shim for hosts that stringify the document twice; exactly
// one attempt, arbitrary nesting is not tolerated.
func unwrapOnce(raw []byte) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}

func blockFromRecord(id string, rec domain.Record, naturalW, naturalH float64) *domain.Block {
	bt, _ := domain.ParseBlockType(rec.Type)
	def := domain.DefaultsFor(bt)

	b := &domain.Block{
		ID:   id,
		Type: bt,
		Text: rec.TextOverride,
		Src:  rec.Src,
		Style: domain.Style{
			FontSize:      rec.FontSize,
			Color:         rec.Color,
			Bold:          rec.Bold,
			Italic:        rec.Italic,
			Underline:     rec.Underline,
			FontFamily:    rec.FontFamily,
			TextAlign:     domain.TextAlign(rec.TextAlign),
			LetterSpacing: rec.LetterSpacing,
			Rotation:      rec.Rotation,
			Opacity:       rec.Opacity,
		},
	}
	if b.Style.FontSize <= 0 {
		b.Style.FontSize = def.Style.FontSize
	}
	if b.Style.Color == "" {
		b.Style.Color = def.Style.Color
	}
	if b.Style.FontFamily == "" {
		b.Style.FontFamily = def.Style.FontFamily
	}
	if b.Style.TextAlign == "" {
		b.Style.TextAlign = def.Style.TextAlign
	}
	if b.Style.Opacity <= 0 {
		b.Style.Opacity = 1
	}
	if bt == domain.BlockStudent {
		b.NameFormat = domain.NameFormat(rec.NameFormat)
		if b.NameFormat == "" {
			b.NameFormat = domain.NameFull
		}
		// The stored text is the substitution placeholder; keep the type's
		// sample name around so the canvas previews something readable.
		b.OriginalText = def.Text
	}

	if rec.XPx != nil && rec.YPx != nil {
		// Anchor to the dimensions recorded at save time.
		w, h := rec.ImageW, rec.ImageH
		if w <= 0 {
			w = naturalW
		}
		if h <= 0 {
			h = naturalH
		}
		b.XPct = geometry.ToPercent(*rec.XPx, w)
		b.YPct = geometry.ToPercent(*rec.YPx, h)
		wpx := defaultWidthPx
		if rec.WidthPx != nil {
			wpx = *rec.WidthPx
		}
		b.WidthPct = geometry.ToPercent(wpx, w)
		if rec.HeightPx != nil {
			b.HeightPct = geometry.ToPercent(*rec.HeightPx, h)
		}
		return b
	}

	// Legacy percentage-only record.
	b.XPct = legacyXPct
	if rec.XPct != nil {
		b.XPct = *rec.XPct
	}
	b.YPct = legacyYPct
	if rec.YPct != nil {
		b.YPct = *rec.YPct
	}
	b.WidthPct = legacyWidthPct
	if rec.WidthPct != nil {
		b.WidthPct = *rec.WidthPct
	}
	if rec.HeightPct != nil {
		b.HeightPct = *rec.HeightPct
	}
	return b
}

// Encode rebuilds the persisted document from the block list against the
// current canvas natural size. Placeholder-eligible blocks still holding
// their untouched default text serialize the canonical token instead, and
// student blocks always do: their visible text is a preview stand-in for
// the per-recipient substitution.
func Encode(blocks []*domain.Block, naturalW, naturalH float64) domain.Document {
	doc := make(domain.Document, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		x := geometry.ToPixels(b.XPct, naturalW)
		y := geometry.ToPixels(b.YPct, naturalH)
		w := geometry.ToPixels(b.WidthPct, naturalW)
		rec := domain.Record{
			XPx:           &x,
			YPx:           &y,
			WidthPx:       &w,
			ImageW:        naturalW,
			ImageH:        naturalH,
			FontSize:      b.Style.FontSize,
			Color:         b.Style.Color,
			Bold:          b.Style.Bold,
			Italic:        b.Style.Italic,
			Underline:     b.Style.Underline,
			Type:          string(b.Type),
			TextOverride:  serializedText(b),
			Src:           b.Src,
			FontFamily:    b.Style.FontFamily,
			TextAlign:     string(b.Style.TextAlign),
			LetterSpacing: b.Style.LetterSpacing,
			Rotation:      b.Style.Rotation,
			Opacity:       b.Style.Opacity,
		}
		if b.HeightPct > 0 {
			h := geometry.ToPixels(b.HeightPct, naturalH)
			rec.HeightPx = &h
		}
		if b.Type == domain.BlockStudent {
			rec.NameFormat = string(b.NameFormat)
		}
		doc[b.ID] = rec
	}
	return doc
}

func serializedText(b *domain.Block) string {
	if b.Type == domain.BlockStudent {
		return domain.Placeholders[domain.BlockStudent]
	}
	if ph, ok := domain.Placeholders[b.Type]; ok && b.Text == domain.DefaultsFor(b.Type).Text {
		return ph
	}
	return b.Text
}
