// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import (
	"bytes"
	"context"
	"errors"
	"time"
)

// ErrReadTimeout is returned by a ByteSource when no byte arrived within
// the requested window.
var ErrReadTimeout = errors.New("read timeout")

// ErrNoResponse is returned by the Framer when the whole accumulation
// attempt elapsed without a single byte arriving.
var ErrNoResponse = errors.New("no response")

// ByteSource is the receive side of the transport boundary the Framer
// consumes: one byte at a time, bounded by a timeout.
type ByteSource interface {
	ReadByte(timeout time.Duration) (byte, error)
}

// FramerConfig names the tunable policies of the byte-stream framer. The
// defaults were tuned against hardware traces; deployments should validate
// them against their own devices.
type FramerConfig struct {
	// MaxFrameSize bounds accumulation; a full buffer is emitted as-is.
	MaxFrameSize int

	// SilenceWindow is the quiet interval required after a stop flag
	// before the buffer is emitted, absorbing immediately trailing echo.
	SilenceWindow time.Duration

	// ResponseTimeout bounds the whole accumulation attempt.
	ResponseTimeout time.Duration

	// EchoPatternLength is the size of the repeating micro-pattern that
	// bus echo produces (3 on the observed hardware: SF ADR CTRL).
	EchoPatternLength int

	// EchoPatternRepeats is how many consecutive occurrences of the
	// pattern count as noise rather than coincidence.
	EchoPatternRepeats int
}

// DefaultFramerConfig returns the documented defaults.
func DefaultFramerConfig() FramerConfig {
	return FramerConfig{
		MaxFrameSize:       128,
		SilenceWindow:      30 * time.Millisecond,
		ResponseTimeout:    500 * time.Millisecond,
		EchoPatternLength:  3,
		EchoPatternRepeats: 3,
	}
}

func (c *FramerConfig) normalize() {
	d := DefaultFramerConfig()
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = d.SilenceWindow
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.EchoPatternLength <= 0 {
		c.EchoPatternLength = d.EchoPatternLength
	}
	if c.EchoPatternRepeats <= 0 {
		c.EchoPatternRepeats = d.EchoPatternRepeats
	}
}

// Framer is the receive-side state machine that recovers frame-sized
// candidate byte sequences from a noisy, echo-prone half-duplex stream.
// It knows nothing about frame semantics beyond the in-band stop flag;
// structural parsing belongs to Decode.
//
// States: Idle (no bytes accumulated) → Accumulating → CandidateReady →
// Idle. Accumulation ends when either the buffer hits MaxFrameSize or a
// stop flag is followed by a SilenceWindow of quiet, whichever fires
// first. A buffer that stalls mid-frame is emitted as-is and left for the
// codec to reject.
type Framer struct {
	cfg        FramerConfig
	state      int
	buf        []byte
	suppressed bool
}

// NewFramer creates a framer with the given policies. Zero-value fields
// fall back to the documented defaults.
func NewFramer(cfg FramerConfig) *Framer {
	cfg.normalize()
	return &Framer{
		cfg: cfg,
		buf: make([]byte, 0, cfg.MaxFrameSize),
	}
}

// Reset discards any partially accumulated bytes.
func (f *Framer) Reset() {
	f.state = framerIdle
	f.buf = f.buf[:0]
	f.suppressed = false
}

// ReadFrame accumulates one candidate frame from src. It returns
// ErrNoResponse when nothing arrived within ResponseTimeout, the
// context's error when cancelled, or any transport error verbatim. A
// cancelled read never yields a candidate.
func (f *Framer) ReadFrame(ctx context.Context, src ByteSource) ([]byte, error) {
	f.Reset()

	deadline := time.Now().Add(f.cfg.ResponseTimeout)
	quiet := false // last byte was a stop flag on a plausible frame

	for {
		if err := ctx.Err(); err != nil {
			f.Reset()
			return nil, err
		}

		var window time.Duration
		switch {
		case f.state == framerIdle:
			window = time.Until(deadline)
			if window <= 0 {
				return nil, ErrNoResponse
			}
		case quiet:
			window = f.cfg.SilenceWindow
		default:
			window = f.cfg.ResponseTimeout
		}

		b, err := src.ReadByte(window)
		if err == ErrReadTimeout {
			if f.state == framerIdle {
				return nil, ErrNoResponse
			}
			return f.emit(), nil
		}
		if err != nil {
			f.Reset()
			return nil, err
		}

		f.state = framerAccumulating
		f.buf = append(f.buf, b)
		quiet = b == StopFlag && len(f.buf) >= ShortFrameSize

		if len(f.buf) >= f.cfg.MaxFrameSize {
			return f.emit(), nil
		}
	}
}

// emit runs noise suppression and hands the buffer over as a candidate.
func (f *Framer) emit() []byte {
	candidate := suppressEcho(f.buf, f.cfg.EchoPatternLength, f.cfg.EchoPatternRepeats)
	out := append([]byte(nil), candidate...)
	f.state = framerCandidateReady
	suppressed := len(candidate) != len(f.buf)
	f.Reset()
	f.suppressed = suppressed
	return out
}

// LastCandidateSuppressed reports whether noise suppression truncated the
// most recently emitted candidate.
func (f *Framer) LastCandidateSuppressed() bool {
	return f.suppressed
}

// suppressEcho scans buf for an N-byte micro-pattern repeating at least
// minRepeats consecutive times, the signature of POLL echo on a shared
// bus, and removes it. A buffer that is a pure echo storm collapses to a
// single occurrence; a storm preceding or following a genuine payload is
// stripped so the payload survives. Buffers without a storm are returned
// unchanged.
func suppressEcho(buf []byte, patLen, minRepeats int) []byte {
	if patLen <= 0 || minRepeats <= 1 || len(buf) < patLen*minRepeats {
		return buf
	}

	for start := 0; start+patLen*minRepeats <= len(buf); start++ {
		pat := buf[start : start+patLen]

		count := 1
		for j := start + patLen; j+patLen <= len(buf) && bytes.Equal(buf[j:j+patLen], pat); j += patLen {
			count++
		}
		if count < minRepeats {
			continue
		}

		if start > 0 {
			// Genuine payload precedes the storm.
			return buf[:start]
		}

		rest := buf[count*patLen:]
		if len(rest) == 0 {
			// The whole buffer is the storm.
			return buf[:patLen]
		}
		// The storm precedes a genuine payload.
		return rest
	}

	return buf
}
