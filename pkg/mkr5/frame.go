// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

// FrameKind discriminates the frame tagged union.
type FrameKind int

const (
	FramePoll FrameKind = iota
	FrameAck
	FrameNack
	FrameData
)

// String implements fmt.Stringer.
func (k FrameKind) String() string {
	switch k {
	case FramePoll:
		return "POLL"
	case FrameAck:
		return "ACK"
	case FrameNack:
		return "NACK"
	case FrameData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded MKR5 protocol message. Poll/Ack/Nack frames carry
// only the address and control fields; Data frames additionally carry the
// operation code (command nibble + nozzle nibble) and payload.
type Frame struct {
	Kind     FrameKind
	Address  uint8
	TxNumber uint8
	Master   bool

	// Data frames only
	Command uint8
	Nozzle  uint8
	Payload []byte
}

// controlByte packs the master flag, transaction number and control code.
// Only the three low transaction bits fit next to the master flag.
func controlByte(master bool, tx, code uint8) uint8 {
	b := (tx&TxWireMask)<<TxShift | code&CtrlMask
	if master {
		b |= MasterBit
	}
	return b
}

// splitControl unpacks a control byte. The master flag occupies the top
// bit of the transaction nibble, so only the three low transaction bits
// are recoverable; Matches compares transaction numbers the same way.
func splitControl(b uint8) (master bool, tx, code uint8) {
	return b&MasterBit != 0, (b >> TxShift) & TxWireMask, b & CtrlMask
}

// OperationCode returns the packed operation-code byte of a Data frame.
func (f *Frame) OperationCode() uint8 {
	return f.Command<<4 | f.Nozzle&0x0F
}
