// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package bus owns one half-duplex MKR5 bus: the byte transport, the
// transaction sequencer, the framer and a registry partition, driven by a
// single sequential session per physical channel.
package bus

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/forecourt/dartline/pkg/mkr5"
)

// Transport is the byte-oriented duplex channel the session drives. The
// read side is one byte at a time with a timeout; Flush discards buffered
// but unread bytes so a new request never consumes stale echo.
type Transport interface {
	Write(data []byte) error
	ReadByte(timeout time.Duration) (byte, error)
	Flush() error
	Close() error
}

// TransportError wraps a channel-level failure: the serial device could
// not be opened or a write failed. Fatal for the affected bus; the session
// never retries it.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// SerialConfig describes the physical serial channel. The MKR5 bus runs
// 8 data bits, odd parity, 1 stop bit at 9600 or 19200 baud.
type SerialConfig struct {
	Port     string
	BaudRate int
	Parity   string // "odd" (protocol default), "even", "none"
}

// serialTransport adapts a go.bug.st serial port to the Transport contract.
type serialTransport struct {
	port serial.Port
}

// OpenSerial opens the serial channel for one bus.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	parity := serial.OddParity
	switch cfg.Parity {
	case "", "odd":
	case "even":
		parity = serial.EvenParity
	case "none":
		parity = serial.NoParity
	default:
		return nil, fmt.Errorf("unknown parity %q", cfg.Parity)
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, &TransportError{Op: "open " + cfg.Port, Err: err}
	}

	return &serialTransport{port: port}, nil
}

func (t *serialTransport) Write(data []byte) error {
	for len(data) > 0 {
		n, err := t.port.Write(data)
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		data = data[n:]
	}
	return nil
}

func (t *serialTransport) ReadByte(timeout time.Duration) (byte, error) {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return 0, &TransportError{Op: "set read timeout", Err: err}
	}

	var buf [1]byte
	n, err := t.port.Read(buf[:])
	if err != nil {
		return 0, &TransportError{Op: "read", Err: err}
	}
	if n == 0 {
		return 0, mkr5.ErrReadTimeout
	}
	return buf[0], nil
}

func (t *serialTransport) Flush() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return &TransportError{Op: "flush", Err: err}
	}
	return nil
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
