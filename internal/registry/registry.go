/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package registry owns the ordered block collection under edit.
// All mutation is funneled through Create/Update/Remove so observers can
// re-render exactly the element that changed; nothing outside this
// package holds ambient references into the list. The registry is meant
// for the single UI goroutine and does no locking of its own.
package registry

import (
	"fmt"
	"time"

	"certstudio/internal/domain"
)

// Listener receives change notifications scoped to what actually changed.
// BlockChanged fires for single-element mutations; StructureChanged for
// create/remove/bulk load, where a full redraw is legitimate.
type Listener struct {
	BlockChanged     func(id string)
	SelectionChanged func(id string) // empty id = selection cleared
	StructureChanged func()
}

// Registry is the in-memory layout document under edit: insertion-ordered
// blocks indexed by stable id, with at most one selected.
type Registry struct {
	order    []string
	blocks   map[string]*domain.Block
	selected string
	seq      int

	listeners []Listener

	// now is swappable in tests; ids derive from creation time.
	now func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{blocks: map[string]*domain.Block{}, now: time.Now}
}

// AddListener registers change callbacks. Nil funcs are allowed.
func (r *Registry) AddListener(l Listener) { r.listeners = append(r.listeners, l) }

func (r *Registry) emitBlock(id string) {
	for _, l := range r.listeners {
		if l.BlockChanged != nil {
			l.BlockChanged(id)
		}
	}
}

func (r *Registry) emitSelection(id string) {
	for _, l := range r.listeners {
		if l.SelectionChanged != nil {
			l.SelectionChanged(id)
		}
	}
}

func (r *Registry) emitStructure() {
	for _, l := range r.listeners {
		if l.StructureChanged != nil {
			l.StructureChanged()
		}
	}
}

// nextID derives a fresh block id from the creation timestamp plus a
// per-registry sequence so same-millisecond bursts stay unique. Ids are
// never reused for the lifetime of the registry.
func (r *Registry) nextID() string {
	r.seq++
	return fmt.Sprintf("blk-%d-%d", r.now().UnixMilli(), r.seq)
}

// Create appends a new block of the given type with its type defaults
// applied, marks it selected and returns it.
func (r *Registry) Create(t domain.BlockType) *domain.Block {
	d := domain.DefaultsFor(t)
	b := &domain.Block{
		ID:        r.nextID(),
		Type:      t,
		XPct:      d.XPct,
		YPct:      d.YPct,
		WidthPct:  d.WidthPct,
		HeightPct: d.HeightPct,
		Text:      d.Text,
		Style:     d.Style,
	}
	if t == domain.BlockStudent {
		b.NameFormat = domain.NameFull
		b.OriginalText = d.Text
	}
	r.blocks[b.ID] = b
	r.order = append(r.order, b.ID)
	r.selected = b.ID
	r.emitStructure()
	r.emitSelection(b.ID)
	return b
}

// Get returns the block with the given id, or nil, false.
func (r *Registry) Get(id string) (*domain.Block, bool) {
	b, ok := r.blocks[id]
	return b, ok
}

// Update applies a mutation to the block with the given id and notifies
// listeners for that single element. Ordering is untouched. Updating a
// missing id is a no-op.
func (r *Registry) Update(id string, mutate func(*domain.Block)) {
	b, ok := r.blocks[id]
	if !ok {
		return
	}
	mutate(b)
	r.emitBlock(id)
}

// Remove deletes a block if present and clears the selection when the
// removed block was selected. Removing a missing id is a no-op, never an
// error.
func (r *Registry) Remove(id string) {
	if _, ok := r.blocks[id]; !ok {
		return
	}
	delete(r.blocks, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.selected == id {
		r.selected = ""
		r.emitSelection("")
	}
	r.emitStructure()
}

// List returns the blocks in insertion order. The order drives the panel
// list and paint order, nothing else.
func (r *Registry) List() []*domain.Block {
	out := make([]*domain.Block, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.blocks[id])
	}
	return out
}

// Len returns the number of blocks.
func (r *Registry) Len() int { return len(r.order) }

// Select marks the block with the given id as the sole selection.
// Selecting a missing id clears the selection instead.
func (r *Registry) Select(id string) {
	if _, ok := r.blocks[id]; !ok {
		id = ""
	}
	if r.selected == id {
		return
	}
	r.selected = id
	r.emitSelection(id)
}

// ClearSelection removes any selection.
func (r *Registry) ClearSelection() { r.Select("") }

// Selected returns the currently selected block, or nil, false.
func (r *Registry) Selected() (*domain.Block, bool) {
	if r.selected == "" {
		return nil, false
	}
	b, ok := r.blocks[r.selected]
	return b, ok
}

// SelectedID returns the selected block id, or "".
func (r *Registry) SelectedID() string { return r.selected }

// Reset replaces the whole collection with the given blocks, preserving
// their order, and clears the selection. Used by document decode; this is
// a structural reset, not a merge.
func (r *Registry) Reset(blocks []*domain.Block) {
	r.order = r.order[:0]
	r.blocks = make(map[string]*domain.Block, len(blocks))
	for _, b := range blocks {
		if b == nil || b.ID == "" {
			continue
		}
		if _, dup := r.blocks[b.ID]; dup {
			continue
		}
		r.blocks[b.ID] = b
		r.order = append(r.order, b.ID)
	}
	if r.selected != "" {
		r.selected = ""
		r.emitSelection("")
	}
	r.emitStructure()
}

// SetClock overrides the id-generation clock. Tests only.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }
