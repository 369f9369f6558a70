// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "fmt"

// Packed BCD: two decimal digits per byte, high nibble first,
// most-significant byte pair first.

// MaxBCDWidth is the widest packed-BCD field the protocol carries. Eight
// digits is the most a uint32 can hold without overflow anyway.
const MaxBCDWidth = 4

// BCDToUint converts packed BCD bytes to an integer. Nibbles above 9 are
// rejected rather than silently wrapped; pumps in the field do emit garbage
// under bus contention.
func BCDToUint(data []byte) (uint32, error) {
	if len(data) > MaxBCDWidth {
		return 0, fmt.Errorf("BCD field of %d bytes exceeds %d", len(data), MaxBCDWidth)
	}
	var result uint32
	for _, b := range data {
		hi, lo := uint32(b>>4), uint32(b&0x0F)
		if hi > 9 || lo > 9 {
			return 0, fmt.Errorf("invalid BCD byte 0x%02X", b)
		}
		result = result*100 + hi*10 + lo
	}
	return result, nil
}

// UintToBCD converts value to packed BCD across width bytes, zero-padding
// high-order digits. It is the exact inverse of BCDToUint for any value
// representable in width digit-pairs.
func UintToBCD(value uint32, width int) ([]byte, error) {
	if width < 1 || width > MaxBCDWidth {
		return nil, fmt.Errorf("BCD width %d outside 1..%d", width, MaxBCDWidth)
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		lo := value % 10
		value /= 10
		hi := value % 10
		value /= 10
		out[i] = byte(hi<<4 | lo)
	}
	if value != 0 {
		return nil, fmt.Errorf("value does not fit in %d BCD bytes", width)
	}
	return out, nil
}
