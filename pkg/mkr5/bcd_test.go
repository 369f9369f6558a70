// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "testing"

func TestBCDToUint(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    uint32
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"single byte", []byte{0x42}, 42, false},
		{"three bytes", []byte{0x01, 0x23, 0x45}, 12345, false},
		{"leading zeros", []byte{0x00, 0x00, 0x07}, 7, false},
		{"max per byte", []byte{0x99, 0x99}, 9999, false},
		{"invalid high nibble", []byte{0xA1}, 0, true},
		{"invalid low nibble", []byte{0x1F}, 0, true},
		{"widest field", []byte{0x99, 0x99, 0x99, 0x99}, 99999999, false},
		{"field too wide for uint32", []byte{0x01, 0x00, 0x00, 0x00, 0x00}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BCDToUint(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tt.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BCDToUint(%v) = %d, want %d", tt.data, got, tt.want)
			}
		})
	}
}

func TestUintToBCD_RoundTrip(t *testing.T) {
	cases := []struct {
		value uint32
		width int
	}{
		{0, 1},
		{9, 1},
		{99, 1},
		{100, 2},
		{12345, 3},
		{99999999, 4},
		{1250, 3}, // a typical unit price
	}

	for _, c := range cases {
		bcd, err := UintToBCD(c.value, c.width)
		if err != nil {
			t.Fatalf("UintToBCD(%d, %d) error: %v", c.value, c.width, err)
		}
		if len(bcd) != c.width {
			t.Fatalf("UintToBCD(%d, %d) returned %d bytes", c.value, c.width, len(bcd))
		}
		back, err := BCDToUint(bcd)
		if err != nil {
			t.Fatalf("BCDToUint(%v) error: %v", bcd, err)
		}
		if back != c.value {
			t.Errorf("round trip %d -> %v -> %d", c.value, bcd, back)
		}
	}
}

func TestUintToBCD_Overflow(t *testing.T) {
	if _, err := UintToBCD(100, 1); err == nil {
		t.Error("100 should not fit in one BCD byte")
	}
	if _, err := UintToBCD(1000000, 2); err == nil {
		t.Error("1000000 should not fit in two BCD bytes")
	}
	if _, err := UintToBCD(1, 0); err == nil {
		t.Error("zero width must be rejected")
	}
	if _, err := UintToBCD(1, MaxBCDWidth+1); err == nil {
		t.Error("widths past MaxBCDWidth must be rejected")
	}
}
