// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package mkr5 provides a Go implementation of the MKR5 (DART pump
// interface) serial protocol.
//
// MKR5 is a half-duplex master/slave protocol for communication between a
// forecourt controller and up to 32 fuel-dispensing pumps sharing one
// RS-485 or 20 mA current-loop bus. This package provides frame
// encoding/decoding, CRC validation, BCD field conversion, the receive-side
// byte-stream framer, and response decoding.
package mkr5

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol framing bytes
const (
	ETX      = 0x03 // end-of-text marker preceding the stop flag
	StopFlag = 0xFA // in-band frame terminator
)

// Pump address space. Every slave on the bus occupies one address in
// [AddressMin, AddressMax].
const (
	AddressMin = 0x50
	AddressMax = 0x6F
	MaxPumps   = AddressMax - AddressMin + 1
)

// Control byte layout: M TTT CCCC. Master flag (bit 7), transaction
// number (bits 6-4), control code (low nibble). The master flag and the
// top bit of the 4-bit transaction counter share bit 7, so only the low
// three transaction bits survive the wire; TxWireMask selects them.
const (
	MasterBit  = 0x80
	TxWireMask = 0x07
	TxShift    = 4
	CtrlMask   = 0x0F
)

// Control codes (low nibble of the control byte)
const (
	CtrlPoll    = 0x01
	CtrlAck     = 0x02
	CtrlNack    = 0x03
	CtrlData    = 0x04
	CtrlAckPoll = 0x05
)

// Master commands (high nibble of the operation-code byte). The low nibble
// carries the nozzle index 0-15.
//
// Command numbering follows the DART interface revision used by the
// deployed pump firmware; older documentation numbers RESET as 0x04.
const (
	CmdReturnStatus      = 0x00
	CmdReset             = 0x01
	CmdAuthorize         = 0x02
	CmdPauseDelivery     = 0x03
	CmdResumeDelivery    = 0x04
	CmdReturnFillingInfo = 0x05
	CmdReturnTotalizer   = 0x06
	CmdPriceUpdate       = 0x07
	CmdPresetAmount      = 0x08
	CmdPresetVolume      = 0x09
	CmdDisableNozzle     = 0x0A
	CmdStopNozzle        = 0x0B
	CmdSwitchOff         = 0x0C
)

// Status byte flag bits (bits above the 4-bit status code)
const (
	flagNozzleOn    = 0x10
	flagRFTagSensed = 0x20
	flagError       = 0x40
)

// Frame size bounds
const (
	// ShortFrameSize is the exact size of a Poll/Ack/Nack frame:
	// address + control + stop flag.
	ShortFrameSize = 3

	// MinDataFrameSize is the smallest possible Data frame: address +
	// control + length + one operation-code byte + CRC(2) + ETX + stop.
	MinDataFrameSize = 8

	// dataFrameOverhead is everything in a Data frame that is not counted
	// by the declared length byte.
	dataFrameOverhead = 7
)

// Transaction number bounds. Zero is reserved and never issued.
const (
	TxMin = 1
	TxMax = 15
)

// Framer states (internal)
const (
	framerIdle = iota
	framerAccumulating
	framerCandidateReady
)

// CommandName returns the mnemonic for a master command nibble.
func CommandName(cmd uint8) string {
	switch cmd {
	case CmdReturnStatus:
		return "RETURN_STATUS"
	case CmdReset:
		return "RESET"
	case CmdAuthorize:
		return "AUTHORIZE"
	case CmdPauseDelivery:
		return "PAUSE_DELIVERY"
	case CmdResumeDelivery:
		return "RESUME_DELIVERY"
	case CmdReturnFillingInfo:
		return "RETURN_FILLING_INFO"
	case CmdReturnTotalizer:
		return "RETURN_TOTALIZER"
	case CmdPriceUpdate:
		return "PRICE_UPDATE"
	case CmdPresetAmount:
		return "PRESET_AMOUNT"
	case CmdPresetVolume:
		return "PRESET_VOLUME"
	case CmdDisableNozzle:
		return "DISABLE_NOZZLE"
	case CmdStopNozzle:
		return "STOP_NOZZLE"
	case CmdSwitchOff:
		return "SWITCH_OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseCommand resolves a command given as a mnemonic ("authorize",
// "PRESET_AMOUNT", dashes accepted) or as a numeric nibble ("0x02", "2").
func ParseCommand(text string) (uint8, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), "-", "_"))
	for cmd := uint8(CmdReturnStatus); cmd <= CmdSwitchOff; cmd++ {
		if CommandName(cmd) == name {
			return cmd, nil
		}
	}
	if v, err := strconv.ParseUint(strings.ToLower(strings.TrimSpace(text)), 0, 8); err == nil && v <= 0x0F {
		return uint8(v), nil
	}
	return 0, fmt.Errorf("unknown command %q", text)
}

// ValidAddress reports whether addr falls inside the pump address space.
func ValidAddress(addr uint8) bool {
	return addr >= AddressMin && addr <= AddressMax
}
