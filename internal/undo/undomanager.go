/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps in-memory undo/redo stacks of serialized layout
// documents, one stack per course.
package undo

import (
	"sync"
	"time"
)

// Snapshot is a reversible layout state. Blob content is opaque to the
// manager (the editor stores the serialized document); size is estimated
// as len(Blob). TS is when the snapshot was captured.
type Snapshot struct {
	CourseID int64
	Blob     []byte
	TS       time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerCourse limits snapshots per course (0 means unlimited).
	MaxPerCourse int
	// MinInterval coalesces snapshots captured within the interval for
	// the same course, replacing the previous one. Drag gestures emit a
	// snapshot per pointer-up; coalescing keeps rapid nudges as one step.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per course with
// performance safeguards. Safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo map[int64][]Snapshot
	redo map[int64][]Snapshot

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[int64][]Snapshot), redo: make(map[int64][]Snapshot)}
}

// PushSnapshot records a snapshot. Within MinInterval of the last
// snapshot for the same course it replaces that one instead of pushing.
// Any push clears the redo stack for the course.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.CourseID]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes -= len(last.Blob)
			m.totalBytes += len(s.Blob)
			stack[n-1] = s
			m.undo[s.CourseID] = stack
			m.redo[s.CourseID] = nil
			m.enforceCapsLocked(s.CourseID)
			return
		}
	}
	stack = append(stack, s)
	m.undo[s.CourseID] = stack
	m.totalBytes += len(s.Blob)
	m.redo[s.CourseID] = nil
	m.enforceCapsLocked(s.CourseID)
}

// Undo pops from the course undo stack onto the redo stack and returns
// the snapshot.
func (m *Manager) Undo(courseID int64) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[courseID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[courseID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[courseID] = append(m.redo[courseID], s)
	return s, true
}

// Redo pops from redo and pushes back to undo.
func (m *Manager) Redo(courseID int64) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[courseID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[courseID] = r[:len(r)-1]
	m.undo[courseID] = append(m.undo[courseID], s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(courseID)
	return s, true
}

// ClearCourse frees the undo/redo stacks for a course.
func (m *Manager) ClearCourse(courseID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[courseID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, courseID)
	delete(m.redo, courseID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, courses int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	courses = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, courses, totalSnapshots
}

func (m *Manager) enforceCapsLocked(courseID int64) {
	// Per-course depth cap
	if m.cfg.MaxPerCourse > 0 {
		stack := m.undo[courseID]
		if len(stack) > m.cfg.MaxPerCourse {
			toDrop := len(stack) - m.cfg.MaxPerCourse
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[courseID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all courses
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		var oldestCourse int64
		oldestIdx := -1
		var oldestTS time.Time
		for course, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldestIdx == -1 || stack[0].TS.Before(oldestTS) {
				oldestCourse = course
				oldestIdx = 0
				oldestTS = stack[0].TS
			}
		}
		if oldestIdx == -1 {
			break
		}
		stack := m.undo[oldestCourse]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestCourse] = stack[1:]
		if len(m.undo[oldestCourse]) == 0 {
			delete(m.undo, oldestCourse)
		}
	}
}
