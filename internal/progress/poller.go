/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package progress drives the batch-generation overlay: a fixed-cadence
// poll of the coordinator's status endpoint that updates a modal overlay
// until the batch reports completion, then triggers a view refresh.
package progress

import (
	"context"
	"time"

	"certstudio/internal/domain"
	applog "certstudio/internal/log"
)

// Fetcher retrieves the current batch status snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.ProgressSnapshot, error)
}

// Overlay is the modal progress surface. Show resets counters to zero
// and makes the overlay visible; Update pushes the latest counters;
// Complete swaps the headline for the completion message while the final
// counters stay on screen; Hide dismisses it. Implementations marshal
// onto the UI goroutine themselves.
type Overlay interface {
	Show(message string)
	Update(progress, exitosos, fallidos int)
	Complete()
	Hide()
}

// Overlay messages shown on the two entry paths.
const (
	msgStarting = "Generando certificados..."
	msgResuming = "Reanudando generación en curso..."
)

// Config tunes the polling cadence. Zero values pick the defaults the
// coordinator expects: a 3s poll and a 1.5s settle delay before refresh.
type Config struct {
	Interval    time.Duration
	ReloadDelay time.Duration
}

func (c *Config) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.ReloadDelay <= 0 {
		c.ReloadDelay = 1500 * time.Millisecond
	}
}

// Poller polls a Fetcher at a fixed cadence and projects snapshots onto
// an Overlay. Ticks are sequential: the next poll is scheduled only
// after the previous fetch returns, so a slow endpoint can never stack
// overlapping requests.
type Poller struct {
	cfg     Config
	fetch   Fetcher
	overlay Overlay
	reload  func()
}

// New creates a poller. reload runs once after the batch completes and
// the settle delay elapses; nil is allowed.
func New(fetch Fetcher, overlay Overlay, reload func(), cfg Config) *Poller {
	cfg.withDefaults()
	return &Poller{cfg: cfg, fetch: fetch, overlay: overlay, reload: reload}
}

// Start shows the overlay for a batch that was just started.
// Run must be called separately to begin polling.
func (p *Poller) Start() { p.overlay.Show(msgStarting) }

// Resume shows the overlay for a batch found already in flight, e.g.
// after the editor view reloads mid-generation. Counters start at zero
// and correct themselves on the first snapshot.
func (p *Poller) Resume() { p.overlay.Show(msgResuming) }

// Run polls until the batch reports completion or the context ends.
// Transport and decode failures are logged and retried forever at the
// same cadence; the coordinator's counters are the only stop signal.
// On completion the overlay flips to its completion message, the final
// counters stay on screen for the settle delay, then reload fires and
// Run returns nil.
func (p *Poller) Run(ctx context.Context) error {
	log := applog.WithComponent("progress")
	for {
		if err := sleep(ctx, p.cfg.Interval); err != nil {
			return err
		}

		snap, err := p.fetch.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("status poll failed, will retry", "err", err)
			continue
		}
		if !snap.Success {
			log.Warn("status poll rejected", "err", snap.Error)
			continue
		}

		p.overlay.Update(snap.Progress, snap.Exitosos, snap.Fallidos)
		if !snap.IsComplete {
			continue
		}

		log.Info("batch complete", "exitosos", snap.Exitosos, "fallidos", snap.Fallidos)
		p.overlay.Complete()
		if err := sleep(ctx, p.cfg.ReloadDelay); err != nil {
			return err
		}
		if p.reload != nil {
			p.reload()
		}
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
