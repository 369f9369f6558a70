// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

// Sequencer issues the 4-bit rolling transaction numbers that correlate a
// request to its response. Numbers run 1..15 and wrap back to 1; zero is
// reserved by convention and never issued.
//
// A Sequencer belongs to exactly one bus session and is not safe for
// concurrent use; the bus is half-duplex and single-master, so there is
// never more than one issuer.
type Sequencer struct {
	next uint8
}

// NewSequencer returns a sequencer whose first issued number is 1.
func NewSequencer() *Sequencer {
	return &Sequencer{next: TxMin}
}

// Next returns the current transaction number and advances the counter.
func (s *Sequencer) Next() uint8 {
	n := s.next
	if s.next == TxMax {
		s.next = TxMin
	} else {
		s.next++
	}
	return n
}

// Matches reports whether an observed response transaction number pairs
// with the outstanding request. Anything else is a stale response or an
// echo and must be discarded without touching the registry.
//
// The master flag claims the top bit of the transaction nibble on the
// wire, so pumps only ever see and echo the low three bits; matching
// compares exactly the bits that were transmitted.
func (s *Sequencer) Matches(expected, observed uint8) bool {
	return expected&TxWireMask == observed&TxWireMask
}
