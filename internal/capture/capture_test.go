// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package capture

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// nopCloser adapts a bytes.Buffer to the recorder's sink.
type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

// loopTransport answers every written frame with a canned RETURN_STATUS
// response, one read timeout after the burst.
type loopTransport struct {
	rx         []byte
	gapPending bool
}

func (t *loopTransport) Write(p []byte) error {
	tx := (p[1] >> 4) & 0x07
	frame := []byte{p[0], tx<<4 | mkr5.CtrlData, 0x02, 0x00, 0x12}
	crc := mkr5.Checksum(mkr5.CRCXModem, frame)
	t.rx = append(frame, byte(crc&0xFF), byte(crc>>8), mkr5.ETX, mkr5.StopFlag)
	return nil
}

func (t *loopTransport) ReadByte(time.Duration) (byte, error) {
	if t.gapPending {
		t.gapPending = false
		return 0, mkr5.ErrReadTimeout
	}
	if len(t.rx) == 0 {
		return 0, mkr5.ErrReadTimeout
	}
	b := t.rx[0]
	t.rx = t.rx[1:]
	if len(t.rx) == 0 {
		t.gapPending = true
	}
	return b, nil
}

func (t *loopTransport) Flush() error {
	t.rx = nil
	t.gapPending = false
	return nil
}

func (t *loopTransport) Close() error { return nil }

func sessionConfig() bus.Config {
	cfg := bus.DefaultConfig()
	cfg.Framer.ResponseTimeout = 50 * time.Millisecond
	cfg.Framer.SilenceWindow = time.Millisecond
	cfg.PollSpacing = 0
	return cfg
}

// ============================================================
// Record then replay
// ============================================================

func TestRecordThenReplay(t *testing.T) {
	trace := nopCloser{&bytes.Buffer{}}
	rec := NewRecorder(&loopTransport{}, trace)

	live := bus.NewSession(rec, sessionConfig())
	res, err := live.Status(context.Background(), 0x52)
	if err != nil {
		t.Fatalf("live Status: %v", err)
	}
	if err := live.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	replay, err := NewReplay(bytes.NewReader(trace.Bytes()))
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	if replay.Len() < 2 {
		t.Fatalf("trace has %d records, want at least a tx and an rx burst", replay.Len())
	}

	replayed := bus.NewSession(replay, sessionConfig())
	res2, err := replayed.Status(context.Background(), 0x52)
	if err != nil {
		t.Fatalf("replayed Status: %v", err)
	}

	if res2.Status != res.Status {
		t.Errorf("replay decoded %+v, live decoded %+v", res2.Status, res.Status)
	}
}

func TestRecorder_BurstBoundaries(t *testing.T) {
	trace := nopCloser{&bytes.Buffer{}}
	rec := NewRecorder(&loopTransport{}, trace)

	// One write, drain the response, then close.
	if err := rec.Write([]byte{0x50, 0x91, mkr5.StopFlag}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for {
		if _, err := rec.ReadByte(time.Millisecond); err != nil {
			break
		}
	}
	rec.Close()

	replay, err := NewReplay(bytes.NewReader(trace.Bytes()))
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	if replay.Len() != 2 {
		t.Fatalf("%d records, want exactly one tx burst and one rx burst", replay.Len())
	}
}

func TestReplay_ExhaustedTraceTimesOut(t *testing.T) {
	replay, err := NewReplay(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("NewReplay on empty trace: %v", err)
	}
	if _, err := replay.ReadByte(time.Millisecond); err != mkr5.ErrReadTimeout {
		t.Errorf("error %v, want ErrReadTimeout", err)
	}
}

func TestReplay_RejectsGarbage(t *testing.T) {
	if _, err := NewReplay(bytes.NewReader([]byte("not a cbor trace"))); err == nil {
		t.Fatal("garbage trace should not decode")
	}
}
