// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint8
		wantErr bool
	}{
		{"mnemonic lower", "authorize", CmdAuthorize, false},
		{"mnemonic upper", "RETURN_STATUS", CmdReturnStatus, false},
		{"dashes accepted", "price-update", CmdPriceUpdate, false},
		{"padded", "  switch_off ", CmdSwitchOff, false},
		{"hex nibble", "0x05", CmdReturnFillingInfo, false},
		{"decimal nibble", "12", CmdSwitchOff, false},
		{"out of nibble range", "0x10", 0, true},
		{"unknown name", "explode", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = 0x%02X, want 0x%02X", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommandName_CoversAllCommands(t *testing.T) {
	for cmd := uint8(CmdReturnStatus); cmd <= CmdSwitchOff; cmd++ {
		if CommandName(cmd) == "UNKNOWN" {
			t.Errorf("command 0x%02X has no name", cmd)
		}
	}
	if CommandName(0x0F) != "UNKNOWN" {
		t.Error("unassigned nibble should map to UNKNOWN")
	}
}
