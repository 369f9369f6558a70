// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "fmt"

// CRCVariant selects which of the two CRC-16 definitions observed in MKR5
// documentation is in use. The two are not numerically interchangeable;
// which one a given pump generation expects must be validated against real
// hardware captures.
type CRCVariant int

const (
	// CRCXModem processes bits MSB-first with polynomial 0x1021, seed
	// 0x0000. This is the variant the reference controller shipped with.
	CRCXModem CRCVariant = iota

	// CRCReflected processes bits LSB-first with the reflected polynomial
	// 0x8408, seed 0x0000 (CRC-16/KERMIT).
	CRCReflected
)

// String implements fmt.Stringer.
func (v CRCVariant) String() string {
	switch v {
	case CRCXModem:
		return "xmodem"
	case CRCReflected:
		return "reflected"
	default:
		return fmt.Sprintf("CRCVariant(%d)", int(v))
	}
}

// ParseCRCVariant maps a configuration string to a CRCVariant.
func ParseCRCVariant(s string) (CRCVariant, error) {
	switch s {
	case "", "xmodem":
		return CRCXModem, nil
	case "reflected", "kermit":
		return CRCReflected, nil
	default:
		return 0, fmt.Errorf("unknown CRC variant %q (want xmodem or reflected)", s)
	}
}

// Checksum computes the CRC-16 of data under the given variant.
func Checksum(variant CRCVariant, data []byte) uint16 {
	if variant == CRCReflected {
		return checksumReflected(data)
	}
	return checksumXModem(data)
}

func checksumXModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func checksumReflected(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// Check validates a frame span running from the address byte through the
// two CRC trailer bytes inclusive. The wire order of the trailer is low
// byte then high byte.
//
// For the reflected variant the check is the residue property: running the
// algorithm over data+crc yields exactly 0x0000. The XModem variant has a
// zero residue only for a big-endian trailer, so with the protocol's
// little-endian trailer it recomputes over the pre-CRC span and compares.
func Check(variant CRCVariant, span []byte) bool {
	if len(span) < 2 {
		return false
	}
	if variant == CRCReflected {
		return checksumReflected(span) == 0x0000
	}
	want := uint16(span[len(span)-2]) | uint16(span[len(span)-1])<<8
	return checksumXModem(span[:len(span)-2]) == want
}
