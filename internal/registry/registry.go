// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package registry holds the last-known decoded state of every pump
// address a bus session has contacted.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/forecourt/dartline/pkg/mkr5"
)

// PumpRecord is the last-known state of one pump address. Records are
// created on first contact attempt and never deleted; a pump that stops
// responding past the retry budget stays in the registry marked offline.
type PumpRecord struct {
	Address  uint8              `json:"address"`
	Status   *mkr5.NozzleStatus `json:"status,omitempty"`
	Filling  *mkr5.FillingInfo  `json:"filling,omitempty"`
	Online   bool               `json:"online"`
	LastSeen time.Time          `json:"lastSeen,omitempty"`
	Failures int                `json:"failures"`
}

// Registry is the in-memory pump table. The orchestrator writes, external
// read-side queries read; per-record updates are atomic under the lock so
// a reader never observes a half-updated record.
type Registry struct {
	mu    sync.RWMutex
	pumps map[uint8]PumpRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{pumps: make(map[uint8]PumpRecord)}
}

// MarkOnline records a successful contact, storing the decoded result and
// resetting the failure counter.
func (r *Registry) MarkOnline(addr uint8, res *mkr5.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.pumps[addr]
	rec.Address = addr
	rec.Online = true
	rec.LastSeen = time.Now()
	rec.Failures = 0

	switch res.Kind {
	case mkr5.ResultStatus:
		status := res.Status
		rec.Status = &status
	case mkr5.ResultFilling:
		filling := res.Filling
		rec.Filling = &filling
	}

	r.pumps[addr] = rec
}

// MarkOffline records an exhausted retry budget. The last decoded status
// is kept for diagnostics; only the online flag and counters change.
func (r *Registry) MarkOffline(addr uint8, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.pumps[addr]
	rec.Address = addr
	rec.Online = false
	rec.Failures = failures
	r.pumps[addr] = rec
}

// Get returns the record for addr and whether one exists.
func (r *Registry) Get(addr uint8) (PumpRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.pumps[addr]
	return rec, ok
}

// Snapshot returns all records sorted by address.
func (r *Registry) Snapshot() []PumpRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PumpRecord, 0, len(r.pumps))
	for _, rec := range r.pumps {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// OnlineCount returns how many records are currently online.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.pumps {
		if rec.Online {
			n++
		}
	}
	return n
}
