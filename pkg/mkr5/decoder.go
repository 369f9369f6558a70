// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

// Decode performs structural parsing of a candidate byte sequence, as
// recovered by the Framer, into a typed Frame. It never panics on
// malformed input; every failure is a *DecodeError the caller can log and
// discard.
//
// Classification rules, in order:
//  1. Shorter than 3 bytes: Unrecognized.
//  2. Exactly 3 bytes: Poll/Ack/Nack by control-code nibble (no CRC).
//  3. At least 7 bytes with a DATA control nibble: structural checks
//     (declared length, ETX position, stop flag), then CRC validation.
//  4. Anything else: Unrecognized.
func Decode(variant CRCVariant, candidate []byte) (*Frame, error) {
	if len(candidate) < ShortFrameSize {
		return nil, decodeErrorf(Unrecognized, "%d bytes is shorter than any frame", len(candidate))
	}

	if len(candidate) == ShortFrameSize {
		return decodeShort(candidate)
	}

	_, _, code := splitControl(candidate[1])
	if len(candidate) >= MinDataFrameSize-1 && code == CtrlData {
		return decodeData(variant, candidate)
	}

	return nil, decodeErrorf(Unrecognized, "%d bytes with control code 0x%X match no frame shape", len(candidate), code)
}

func decodeShort(candidate []byte) (*Frame, error) {
	master, tx, code := splitControl(candidate[1])

	var kind FrameKind
	switch code {
	case CtrlPoll:
		kind = FramePoll
	case CtrlAck:
		kind = FrameAck
	case CtrlNack:
		kind = FrameNack
	default:
		return nil, decodeErrorf(Unrecognized, "short frame with unknown control code 0x%X", code)
	}

	if candidate[2] != StopFlag {
		return nil, decodeErrorf(Malformed, "%s frame missing stop flag (got 0x%02X)", kind, candidate[2])
	}

	return &Frame{Kind: kind, Address: candidate[0], TxNumber: tx, Master: master}, nil
}

func decodeData(variant CRCVariant, candidate []byte) (*Frame, error) {
	master, tx, _ := splitControl(candidate[1])
	lng := int(candidate[2])

	// ADR(1) CTRL(1) LNG(1) + declared data + CRC(2) ETX(1) SF(1).
	// The stop flag must be the candidate's final byte; trailing bytes
	// after it mean line noise slipped inside the silence window.
	want := lng + dataFrameOverhead
	if len(candidate) != want {
		return nil, decodeErrorf(Malformed, "declared length %d needs %d bytes, have %d", lng, want, len(candidate))
	}
	if lng < 1 {
		return nil, decodeErrorf(Malformed, "data frame with zero-length data field")
	}

	etxAt := 3 + lng + 2
	if candidate[etxAt] != ETX {
		return nil, decodeErrorf(Malformed, "ETX expected at offset %d, got 0x%02X", etxAt, candidate[etxAt])
	}
	if candidate[want-1] != StopFlag {
		return nil, decodeErrorf(Malformed, "stop flag expected at offset %d, got 0x%02X", want-1, candidate[want-1])
	}

	// CRC spans address through the trailer bytes inclusive.
	if !Check(variant, candidate[:3+lng+2]) {
		return nil, decodeErrorf(CRCMismatch, "frame from 0x%02X failed %s CRC check", candidate[0], variant)
	}

	opc := candidate[3]
	f := &Frame{
		Kind:     FrameData,
		Address:  candidate[0],
		TxNumber: tx,
		Master:   master,
		Command:  opc >> 4,
		Nozzle:   opc & 0x0F,
	}
	if lng > 1 {
		f.Payload = append([]byte(nil), candidate[4:3+lng]...)
	}
	return f, nil
}
