// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

// Encoding is pure: every function returns the complete wire frame and
// performs no I/O. The CRC variant is a parameter because the two observed
// definitions are not interchangeable (see CRCVariant).

// EncodePoll builds a 3-byte master POLL frame.
func EncodePoll(address, tx uint8) []byte {
	return []byte{address, controlByte(true, tx, CtrlPoll), StopFlag}
}

// EncodeAck builds a 3-byte master ACK frame.
func EncodeAck(address, tx uint8) []byte {
	return []byte{address, controlByte(true, tx, CtrlAck), StopFlag}
}

// EncodeData builds a master DATA frame carrying one operation code and an
// optional payload:
//
//	ADR CTRL LNG OPC [payload...] CRC-L CRC-H ETX SF
//
// LNG counts the operation-code byte plus payload. The CRC spans address
// through the last payload byte and is appended low byte first.
func EncodeData(variant CRCVariant, address, tx, command, nozzle uint8, payload []byte) []byte {
	lng := uint8(1 + len(payload))

	frame := make([]byte, 0, int(lng)+dataFrameOverhead)
	frame = append(frame, address, controlByte(true, tx, CtrlData), lng, command<<4|nozzle&0x0F)
	frame = append(frame, payload...)

	crc := Checksum(variant, frame)
	frame = append(frame, byte(crc&0xFF), byte(crc>>8), ETX, StopFlag)

	return frame
}
