// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "testing"

// ============================================================
// Checksum tests
// ============================================================

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		variant  CRCVariant
		data     []byte
		expected uint16
	}{
		{
			name:     "xmodem check string",
			variant:  CRCXModem,
			data:     []byte("123456789"),
			expected: 0x31C3, // CRC-16/XMODEM check value
		},
		{
			name:     "reflected check string",
			variant:  CRCReflected,
			data:     []byte("123456789"),
			expected: 0x2189, // CRC-16/KERMIT check value
		},
		{
			name:     "xmodem empty",
			variant:  CRCXModem,
			data:     []byte{},
			expected: 0x0000,
		},
		{
			name:     "reflected empty",
			variant:  CRCReflected,
			data:     []byte{},
			expected: 0x0000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := Checksum(tt.variant, tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestChecksum_VariantsDiffer(t *testing.T) {
	data := []byte{0x50, 0x81, 0x02, 0x01, 0x12}
	if Checksum(CRCXModem, data) == Checksum(CRCReflected, data) {
		t.Error("xmodem and reflected variants should not agree on arbitrary data")
	}
}

// ============================================================
// Check (frame validation) tests
// ============================================================

func TestCheck_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0x50, 0x81, 0x02, 0x01},
		{0x6F, 0xB4, 0x05, 0x51, 0x00, 0x12, 0x34, 0x56},
	}

	for _, variant := range []CRCVariant{CRCXModem, CRCReflected} {
		for _, data := range payloads {
			crc := Checksum(variant, data)
			span := append(append([]byte(nil), data...), byte(crc&0xFF), byte(crc>>8))
			if !Check(variant, span) {
				t.Errorf("%s: Check failed for valid span %v", variant, span)
			}
		}
	}
}

func TestCheck_SingleBitFlip(t *testing.T) {
	data := []byte{0x55, 0x84, 0x02, 0x01, 0x12}

	for _, variant := range []CRCVariant{CRCXModem, CRCReflected} {
		crc := Checksum(variant, data)
		span := append(append([]byte(nil), data...), byte(crc&0xFF), byte(crc>>8))

		for i := 0; i < len(span); i++ {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte(nil), span...)
				flipped[i] ^= 1 << bit
				if Check(variant, flipped) {
					t.Errorf("%s: Check accepted span with bit %d of byte %d flipped", variant, bit, i)
				}
			}
		}
	}
}

func TestCheck_TooShort(t *testing.T) {
	if Check(CRCXModem, []byte{0x01}) {
		t.Error("Check should reject a span shorter than the CRC trailer")
	}
	if Check(CRCReflected, nil) {
		t.Error("Check should reject an empty span")
	}
}

func TestParseCRCVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    CRCVariant
		wantErr bool
	}{
		{"", CRCXModem, false},
		{"xmodem", CRCXModem, false},
		{"reflected", CRCReflected, false},
		{"kermit", CRCReflected, false},
		{"ccitt-maybe", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCRCVariant(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCRCVariant(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCRCVariant(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCRCVariant(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
