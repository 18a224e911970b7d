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
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// GenerationOverlay is the modal progress card shown while a batch runs.
// The poller drives it from a background goroutine, so every widget
// mutation is marshalled onto the UI thread with fyne.Do.
type GenerationOverlay struct {
	win    fyne.Window
	popup  *widget.PopUp
	msg    *widget.Label
	detail *widget.Label
	bar    *widget.ProgressBar
}

func NewGenerationOverlay(win fyne.Window) *GenerationOverlay {
	o := &GenerationOverlay{
		win:    win,
		msg:    widget.NewLabel(""),
		detail: widget.NewLabel(""),
		bar:    widget.NewProgressBar(),
	}
	o.bar.Min, o.bar.Max = 0, 100
	return o
}

// Show displays the overlay with the given headline message.
func (o *GenerationOverlay) Show(msg string) {
	fyne.Do(func() {
		o.msg.SetText(msg)
		o.detail.SetText("")
		o.bar.SetValue(0)
		if o.popup == nil {
			card := container.NewVBox(o.msg, o.bar, o.detail)
			o.popup = widget.NewModalPopUp(card, o.win.Canvas())
		}
		o.popup.Show()
	})
}

// Update refreshes the bar and the exitosos/fallidos counters.
func (o *GenerationOverlay) Update(progress, exitosos, fallidos int) {
	fyne.Do(func() {
		o.bar.SetValue(float64(progress))
		o.detail.SetText(fmt.Sprintf("Exitosos: %d   Fallidos: %d", exitosos, fallidos))
	})
}

// Complete swaps the headline for the completion message. The bar and
// the final counters stay visible until Hide.
func (o *GenerationOverlay) Complete() {
	fyne.Do(func() {
		o.msg.SetText("Generación completada")
	})
}

// Hide removes the overlay.
func (o *GenerationOverlay) Hide() {
	fyne.Do(func() {
		if o.popup != nil {
			o.popup.Hide()
		}
	})
}
