// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package capture records bus traffic to a CBOR trace file and plays
// traces back as a transport, so protocol behavior seen on a forecourt
// can be reproduced on a desk without the hardware.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// Direction marks which side of the bus produced the bytes.
type Direction uint8

const (
	DirTx Direction = 1 // master to bus
	DirRx Direction = 2 // bus to master
)

// Record is one burst of bytes in one direction. Traces are a flat CBOR
// stream of records; integer keys keep them compact enough to leave
// capture running for a full shift.
type Record struct {
	Dir  Direction     `cbor:"1,keyasint"`
	At   time.Duration `cbor:"2,keyasint"` // offset from trace start
	Data []byte        `cbor:"3,keyasint"`
}

// Recorder wraps a live transport and appends every exchanged byte to a
// trace. Writes are recorded as one burst each; reads accumulate until a
// direction change, a timeout or Close, matching how frames appear on
// the wire.
type Recorder struct {
	mu      sync.Mutex
	tr      bus.Transport
	enc     *cbor.Encoder
	sink    io.WriteCloser
	start   time.Time
	rxBurst []byte
	rxAt    time.Duration
}

// NewRecorder starts a trace on sink around an open transport.
func NewRecorder(tr bus.Transport, sink io.WriteCloser) *Recorder {
	return &Recorder{
		tr:    tr,
		enc:   cbor.NewEncoder(sink),
		sink:  sink,
		start: time.Now(),
	}
}

// CreateRecorder starts a trace in a new file at path.
func CreateRecorder(tr bus.Transport, path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace %s: %w", path, err)
	}
	return NewRecorder(tr, f), nil
}

func (r *Recorder) Write(p []byte) error {
	r.mu.Lock()
	r.flushRxLocked()
	rec := Record{Dir: DirTx, At: time.Since(r.start), Data: append([]byte(nil), p...)}
	encErr := r.enc.Encode(rec)
	r.mu.Unlock()

	if err := r.tr.Write(p); err != nil {
		return err
	}
	return encErr
}

func (r *Recorder) ReadByte(timeout time.Duration) (byte, error) {
	b, err := r.tr.ReadByte(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		// A timeout closes the burst; that gap is what replay recreates.
		r.flushRxLocked()
		return b, err
	}
	if len(r.rxBurst) == 0 {
		r.rxAt = time.Since(r.start)
	}
	r.rxBurst = append(r.rxBurst, b)
	return b, nil
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	r.flushRxLocked()
	r.mu.Unlock()
	return r.tr.Flush()
}

// Close flushes the trailing burst and closes both the trace and the
// wrapped transport.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.flushRxLocked()
	sinkErr := r.sink.Close()
	r.mu.Unlock()

	if err := r.tr.Close(); err != nil {
		return err
	}
	return sinkErr
}

func (r *Recorder) flushRxLocked() {
	if len(r.rxBurst) == 0 {
		return
	}
	rec := Record{Dir: DirRx, At: r.rxAt, Data: r.rxBurst}
	r.rxBurst = nil
	// An encode failure here would mean the sink is gone; the live bus
	// keeps working either way, so the error surfaces on Close.
	_ = r.enc.Encode(rec)
}

// ReplayTransport serves a recorded trace through the Transport
// interface. Transmit records are skipped (the session under replay
// produces its own transmissions); receive records are served byte by
// byte, with one read timeout between bursts standing in for the
// inter-frame silence the framer keys on.
type ReplayTransport struct {
	mu         sync.Mutex
	records    []Record
	idx        int
	offset     int
	gapPending bool
}

// NewReplay decodes a full trace from r.
func NewReplay(r io.Reader) (*ReplayTransport, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode trace record %d: %w", len(records), err)
		}
		if rec.Dir != DirTx && rec.Dir != DirRx {
			return nil, fmt.Errorf("trace record %d: unknown direction %d", len(records), rec.Dir)
		}
		records = append(records, rec)
	}
	return &ReplayTransport{records: records}, nil
}

// OpenReplay decodes a trace file at path.
func OpenReplay(path string) (*ReplayTransport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()
	return NewReplay(f)
}

// Len returns the number of records in the trace.
func (t *ReplayTransport) Len() int {
	return len(t.records)
}

func (t *ReplayTransport) Write(p []byte) error {
	// Replay is read-only; the trace already fixes what the bus answered.
	return nil
}

func (t *ReplayTransport) ReadByte(time.Duration) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gapPending {
		t.gapPending = false
		return 0, mkr5.ErrReadTimeout
	}

	for t.idx < len(t.records) {
		rec := t.records[t.idx]
		if rec.Dir != DirRx || len(rec.Data) == 0 {
			t.idx++
			continue
		}
		b := rec.Data[t.offset]
		t.offset++
		if t.offset >= len(rec.Data) {
			t.idx++
			t.offset = 0
			t.gapPending = true
		}
		return b, nil
	}
	return 0, mkr5.ErrReadTimeout
}

func (t *ReplayTransport) Flush() error { return nil }
func (t *ReplayTransport) Close() error { return nil }
