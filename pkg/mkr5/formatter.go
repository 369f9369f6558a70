// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

import (
	"fmt"
	"strings"
)

// FormatFrame renders one frame for log output, e.g.
//
//	POLL addr=0x52 tx=3
//	DATA addr=0x52 tx=3 RETURN_STATUS nozzle=1 payload=[12]
func FormatFrame(f *Frame) string {
	role := "slave"
	if f.Master {
		role = "master"
	}

	if f.Kind != FrameData {
		return fmt.Sprintf("%s addr=0x%02X tx=%d %s", f.Kind, f.Address, f.TxNumber, role)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DATA addr=0x%02X tx=%d %s %s nozzle=%d",
		f.Address, f.TxNumber, role, CommandName(f.Command), f.Nozzle)
	if len(f.Payload) > 0 {
		fmt.Fprintf(&b, " payload=[%s]", HexBytes(f.Payload))
	}
	return b.String()
}

// FormatResult renders a decoded domain result.
func FormatResult(r *Result) string {
	switch r.Kind {
	case ResultStatus:
		s := r.Status
		flags := make([]string, 0, 3)
		if s.NozzleOn {
			flags = append(flags, "nozzle-on")
		}
		if s.RFTagSensed {
			flags = append(flags, "rf-tag")
		}
		if s.ErrorPresent {
			flags = append(flags, "error")
		}
		out := fmt.Sprintf("status %s (code=%d) nozzle=%d", s.Label, s.Code, r.Nozzle)
		if len(flags) > 0 {
			out += " [" + strings.Join(flags, " ") + "]"
		}
		return out
	case ResultFilling:
		return fmt.Sprintf("filling amount=%d volume=%d unit-price=%d",
			r.Filling.Amount, r.Filling.Volume, r.Filling.UnitPrice)
	case ResultAck:
		return fmt.Sprintf("%s acknowledged nozzle=%d", CommandName(r.Command), r.Nozzle)
	default:
		return "unknown result"
	}
}

// HexBytes renders bytes as space-separated uppercase hex pairs.
func HexBytes(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// FormatRaw renders an undecodable candidate buffer for diagnostics,
// wrapping long buffers at 16 bytes per line.
func FormatRaw(data []byte) string {
	if len(data) <= 16 {
		return HexBytes(data)
	}
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		if i > 0 {
			b.WriteString("\n           ")
		}
		b.WriteString(HexBytes(data[i:end]))
	}
	return b.String()
}
