// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import (
	"fmt"
	"sync"
	"time"
)

// StatisticsSnapshot is a point-in-time copy of the bus health counters.
type StatisticsSnapshot struct {
	StartTime      time.Time `json:"startTime"`
	FramesSent     uint64    `json:"framesSent"`
	FramesReceived uint64    `json:"framesReceived"`
	ValidFrames    uint64    `json:"validFrames"`
	CRCErrors      uint64    `json:"crcErrors"`
	DecodeErrors   uint64    `json:"decodeErrors"`
	Timeouts       uint64    `json:"timeouts"`
	StaleResponses uint64    `json:"staleResponses"`
	EchoSuppressed uint64    `json:"echoSuppressed"`
}

// Statistics tracks bus health counters across poll cycles. One instance
// belongs to one bus session; the HTTP facade and the watch TUI read it,
// so access is mutex-guarded.
type Statistics struct {
	mu   sync.Mutex
	snap StatisticsSnapshot
}

// NewStatistics creates a statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{snap: StatisticsSnapshot{StartTime: time.Now()}}
}

// RecordSend counts one transmitted frame.
func (s *Statistics) RecordSend() {
	s.mu.Lock()
	s.snap.FramesSent++
	s.mu.Unlock()
}

// RecordReceive counts one receive attempt and classifies its outcome.
func (s *Statistics) RecordReceive(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == ErrNoResponse {
		s.snap.Timeouts++
		return
	}
	s.snap.FramesReceived++
	if err == nil {
		s.snap.ValidFrames++
		return
	}
	if IsDecodeError(err, CRCMismatch) {
		s.snap.CRCErrors++
	} else {
		s.snap.DecodeErrors++
	}
}

// RecordStale counts a response discarded for a transaction-number
// mismatch. Stale responses are expected under echo conditions and are
// not errors.
func (s *Statistics) RecordStale() {
	s.mu.Lock()
	s.snap.StaleResponses++
	s.mu.Unlock()
}

// RecordEchoSuppressed counts a buffer the framer truncated as echo noise.
func (s *Statistics) RecordEchoSuppressed() {
	s.mu.Lock()
	s.snap.EchoSuppressed++
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// String renders a one-line summary for log output.
func (s *Statistics) String() string {
	snap := s.Snapshot()
	elapsed := time.Since(snap.StartTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(snap.FramesSent) / elapsed
	}
	return fmt.Sprintf("sent=%d recv=%d valid=%d crc-err=%d decode-err=%d timeouts=%d stale=%d echo=%d (%.1f req/s)",
		snap.FramesSent, snap.FramesReceived, snap.ValidFrames, snap.CRCErrors,
		snap.DecodeErrors, snap.Timeouts, snap.StaleResponses, snap.EchoSuppressed, rate)
}
