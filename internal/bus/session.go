// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// ErrPumpOffline is returned when a pump exhausted the retry budget. It is
// distinct from TransportError: the channel works, the pump is silent.
var ErrPumpOffline = errors.New("pump not responding")

// ErrAddressRange is returned for addresses outside 0x50-0x6F.
var ErrAddressRange = errors.New("address outside pump range 0x50-0x6F")

// Config carries the session policies loaded from configuration.
type Config struct {
	CRCVariant  mkr5.CRCVariant
	Framer      mkr5.FramerConfig
	RetryLimit  int           // retries after the initial attempt
	PollSpacing time.Duration // bus settling time between addresses
	StatusTable mkr5.StatusTable
	FieldWidths mkr5.FieldWidths
	Verbose     bool // log every frame exchange
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CRCVariant:  mkr5.CRCXModem,
		Framer:      mkr5.DefaultFramerConfig(),
		RetryLimit:  2,
		PollSpacing: 20 * time.Millisecond,
	}
}

// Session owns one bus: one Transport, one Sequencer, one Framer and one
// Registry partition, passed explicitly rather than held as globals. The
// bus is half-duplex and single-master, so a session allows exactly one
// outstanding request at a time; independent buses run independent
// sessions with no shared state.
type Session struct {
	mu     sync.Mutex // serializes requests on the half-duplex bus
	tr     Transport
	cfg    Config
	seq    *mkr5.Sequencer
	framer *mkr5.Framer
	dec    *mkr5.ResponseDecoder
	reg    *registry.Registry
	stats  *mkr5.Statistics
}

// NewSession assembles a session around an open transport.
func NewSession(tr Transport, cfg Config) *Session {
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}
	return &Session{
		tr:     tr,
		cfg:    cfg,
		seq:    mkr5.NewSequencer(),
		framer: mkr5.NewFramer(cfg.Framer),
		dec:    mkr5.NewResponseDecoder(cfg.StatusTable, cfg.FieldWidths),
		reg:    registry.New(),
		stats:  mkr5.NewStatistics(),
	}
}

// Registry exposes the read side of the session's pump table.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// Statistics exposes the session's bus health counters.
func (s *Session) Statistics() *mkr5.Statistics {
	return s.stats
}

// Close releases the transport.
func (s *Session) Close() error {
	return s.tr.Close()
}

// Poll sends POLL frames to addr until a response arrives or the retry
// budget is exhausted. Exhaustion marks the address offline. A successful
// poll proves presence only; it does not decode status.
func (s *Session) Poll(ctx context.Context, addr uint8) (*mkr5.Frame, error) {
	if !mkr5.ValidAddress(addr) {
		return nil, fmt.Errorf("0x%02X: %w", addr, ErrAddressRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.transact(ctx, addr, func(tx uint8) []byte {
		return mkr5.EncodePoll(addr, tx)
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// Request sends one DATA command to addr and decodes the response,
// applying the retry policy. Success updates the registry; an exhausted
// retry budget marks the address offline and returns ErrPumpOffline.
func (s *Session) Request(ctx context.Context, addr, command, nozzle uint8, payload []byte) (*mkr5.Result, error) {
	if !mkr5.ValidAddress(addr) {
		return nil, fmt.Errorf("0x%02X: %w", addr, ErrAddressRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.transact(ctx, addr, func(tx uint8) []byte {
		return mkr5.EncodeData(s.cfg.CRCVariant, addr, tx, command, nozzle, payload)
	})
	if err != nil {
		return nil, err
	}

	res, err := s.dec.Decode(frame)
	if err != nil {
		// Structurally valid frame, semantically useless. Same budget
		// as noise would have consumed; the registry stays untouched.
		return nil, fmt.Errorf("0x%02X: %w", addr, err)
	}

	s.reg.MarkOnline(addr, res)
	return res, nil
}

// transact runs the per-address retry loop: flush stale input, send the
// frame built for a fresh transaction number, await a matching response.
// CRC failures, decode failures and timeouts each consume one attempt;
// stale or echoed frames consume nothing. Transport failures abort
// immediately, as does cancellation; a cancelled wait is never treated
// as a received response and mutates nothing.
func (s *Session) transact(ctx context.Context, addr uint8, build func(tx uint8) []byte) (*mkr5.Frame, error) {
	attempts := 1 + s.cfg.RetryLimit
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tx := s.seq.Next()
		wire := build(tx)

		if err := s.tr.Flush(); err != nil {
			return nil, err
		}
		s.stats.RecordSend()
		if err := s.tr.Write(wire); err != nil {
			return nil, err
		}
		if s.cfg.Verbose {
			log.Printf("[bus] -> 0x%02X tx=%d % X", addr, tx, wire)
		}

		frame, err := s.await(ctx, addr, tx)
		if err == nil {
			return frame, nil
		}
		var te *TransportError
		if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		if s.cfg.Verbose {
			log.Printf("[bus] 0x%02X attempt %d/%d failed: %v", addr, attempt+1, attempts, err)
		}
	}

	s.reg.MarkOffline(addr, attempts)
	return nil, fmt.Errorf("0x%02X after %d attempts: %w (last: %v)", addr, attempts, ErrPumpOffline, lastErr)
}

// await reads candidate frames until one correlates with the outstanding
// request: slave origin, matching address, matching transaction number.
// Anything else (our own POLL echo, frames for other addresses, stale
// transaction numbers) is discarded silently and keeps the wait alive
// until the response window closes.
func (s *Session) await(ctx context.Context, addr, tx uint8) (*mkr5.Frame, error) {
	deadline := time.Now().Add(s.cfg.Framer.ResponseTimeout)

	for {
		if time.Now().After(deadline) {
			return nil, mkr5.ErrNoResponse
		}

		candidate, err := s.framer.ReadFrame(ctx, s.tr)
		if err != nil {
			if err == mkr5.ErrNoResponse {
				s.stats.RecordReceive(err)
			}
			return nil, err
		}
		if s.framer.LastCandidateSuppressed() {
			s.stats.RecordEchoSuppressed()
		}

		frame, err := mkr5.Decode(s.cfg.CRCVariant, candidate)
		s.stats.RecordReceive(err)
		if err != nil {
			if s.cfg.Verbose {
				log.Printf("[bus] <- 0x%02X discarded: %v (% X)", addr, err, candidate)
			}
			return nil, err
		}

		if frame.Master || frame.Address != addr || !s.seq.Matches(tx, frame.TxNumber) {
			// Echo or stale response; expected under bus contention.
			// Not an error and not a consumed attempt.
			s.stats.RecordStale()
			if s.cfg.Verbose {
				log.Printf("[bus] <- stale frame ignored: %s", mkr5.FormatFrame(frame))
			}
			continue
		}

		if s.cfg.Verbose {
			log.Printf("[bus] <- %s", mkr5.FormatFrame(frame))
		}
		return frame, nil
	}
}
