// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package mkr5

// StatusTable maps the opaque 4-bit status code to a human label. The
// code↔label mapping differs across pump firmware revisions, so the table
// is configuration, not a hardwired enum; deployments supply the table
// matching their hardware.
type StatusTable map[uint8]string

// PumpStatusTable is the mapping used by the numeric DART documentation
// revision.
func PumpStatusTable() StatusTable {
	return StatusTable{
		0: "NOT_PROGRAMMED",
		1: "RESET",
		2: "AUTHORIZED",
		4: "FILLING",
		5: "FILLING_COMPLETED",
		6: "MAX_AMOUNT_REACHED",
		7: "SWITCHED_OFF",
	}
}

// NozzleStatusTable is the mapping used by the 0-8 documentation revision.
func NozzleStatusTable() StatusTable {
	return StatusTable{
		0: "IDLE",
		1: "READY_FOR_DELIVERY",
		2: "RESETED",
		3: "AUTHORIZED",
		4: "DELIVERY_FILLING",
		5: "PAUSED",
		6: "NOZZLE_DISABLED",
		7: "NOZZLE_STOPPED",
		8: "NOT_PROGRAMMED",
	}
}

// Label resolves a status code, falling back to UNKNOWN for codes the
// table does not list.
func (t StatusTable) Label(code uint8) string {
	if label, ok := t[code]; ok {
		return label
	}
	return "UNKNOWN"
}

// NozzleStatus is the decoded RETURN_STATUS response byte: a 4-bit status
// code plus three independent condition flags.
type NozzleStatus struct {
	Code         uint8  `json:"code"`
	Label        string `json:"label"`
	NozzleOn     bool   `json:"nozzleOn"`
	RFTagSensed  bool   `json:"rfTagSensed"`
	ErrorPresent bool   `json:"errorPresent"`
}

// FillingInfo is the decoded RETURN_FILLING_INFO response: amount, volume
// and unit price as raw BCD-decoded integers. Scaling to currency/litre
// units is a deployment concern and stays out of the protocol layer.
type FillingInfo struct {
	Amount    uint32 `json:"amount"`
	Volume    uint32 `json:"volume"`
	UnitPrice uint32 `json:"unitPrice"`
}

// FieldWidths configures the per-deployment byte width of each BCD field
// in a filling-information response. Protocol variants differ in digit
// counts.
type FieldWidths struct {
	Amount    int `yaml:"amount" json:"amount"`
	Volume    int `yaml:"volume" json:"volume"`
	UnitPrice int `yaml:"unit_price" json:"unitPrice"`
}

// DefaultFieldWidths matches the reference hardware: 4+4+3 bytes.
func DefaultFieldWidths() FieldWidths {
	return FieldWidths{Amount: 4, Volume: 4, UnitPrice: 3}
}

// Total returns the combined payload width of all fields.
func (w FieldWidths) Total() int {
	return w.Amount + w.Volume + w.UnitPrice
}

// ResultKind discriminates the domain-level result of a Data response.
type ResultKind int

const (
	// ResultStatus carries a decoded NozzleStatus.
	ResultStatus ResultKind = iota

	// ResultFilling carries decoded FillingInfo.
	ResultFilling

	// ResultAck is a recognized command acknowledgement with no
	// structured payload (RESET, AUTHORIZE, STOP, SWITCH_OFF, ...).
	ResultAck
)

// String implements fmt.Stringer.
func (k ResultKind) String() string {
	switch k {
	case ResultStatus:
		return "status"
	case ResultFilling:
		return "filling"
	case ResultAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Result is the domain-level outcome of decoding one Data frame.
type Result struct {
	Kind    ResultKind   `json:"kind"`
	Command uint8        `json:"command"`
	Nozzle  uint8        `json:"nozzle"`
	Status  NozzleStatus `json:"status"`
	Filling FillingInfo  `json:"filling"`
}

// ResponseDecoder maps parsed Data frames into domain results. Its table
// and field widths come from configuration because both vary across pump
// firmware revisions.
type ResponseDecoder struct {
	Table  StatusTable
	Widths FieldWidths
}

// NewResponseDecoder builds a decoder; a nil table falls back to
// PumpStatusTable and zero widths to the defaults.
func NewResponseDecoder(table StatusTable, widths FieldWidths) *ResponseDecoder {
	if table == nil {
		table = PumpStatusTable()
	}
	if widths.Total() == 0 {
		widths = DefaultFieldWidths()
	}
	return &ResponseDecoder{Table: table, Widths: widths}
}

// Decode dispatches on the command nibble of a Data frame.
func (d *ResponseDecoder) Decode(f *Frame) (*Result, error) {
	if f.Kind != FrameData {
		return nil, decodeErrorf(Unrecognized, "%s frame carries no response data", f.Kind)
	}

	res := &Result{Command: f.Command, Nozzle: f.Nozzle}

	switch f.Command {
	case CmdReturnStatus:
		if len(f.Payload) < 1 {
			return nil, decodeErrorf(Malformed, "status response without status byte")
		}
		res.Kind = ResultStatus
		res.Status = d.decodeStatusByte(f.Payload[0])
		return res, nil

	case CmdReturnFillingInfo:
		filling, err := d.decodeFilling(f.Payload)
		if err != nil {
			return nil, err
		}
		res.Kind = ResultFilling
		res.Filling = *filling
		return res, nil

	case CmdReset, CmdAuthorize, CmdPauseDelivery, CmdResumeDelivery,
		CmdReturnTotalizer, CmdPriceUpdate, CmdPresetAmount,
		CmdPresetVolume, CmdDisableNozzle, CmdStopNozzle, CmdSwitchOff:
		res.Kind = ResultAck
		return res, nil

	default:
		return nil, decodeErrorf(UnknownCommand, "command nibble 0x%X", f.Command)
	}
}

func (d *ResponseDecoder) decodeStatusByte(b uint8) NozzleStatus {
	code := b & 0x0F
	return NozzleStatus{
		Code:         code,
		Label:        d.Table.Label(code),
		NozzleOn:     b&flagNozzleOn != 0,
		RFTagSensed:  b&flagRFTagSensed != 0,
		ErrorPresent: b&flagError != 0,
	}
}

func (d *ResponseDecoder) decodeFilling(payload []byte) (*FillingInfo, error) {
	if len(payload) < d.Widths.Total() {
		return nil, decodeErrorf(Malformed, "filling response needs %d payload bytes, have %d",
			d.Widths.Total(), len(payload))
	}

	var info FillingInfo
	offset := 0
	for _, field := range []struct {
		width int
		dst   *uint32
	}{
		{d.Widths.Amount, &info.Amount},
		{d.Widths.Volume, &info.Volume},
		{d.Widths.UnitPrice, &info.UnitPrice},
	} {
		v, err := BCDToUint(payload[offset : offset+field.width])
		if err != nil {
			return nil, decodeErrorf(Malformed, "filling field at offset %d: %v", offset, err)
		}
		*field.dst = v
		offset += field.width
	}
	return &info, nil
}

// EncodeUnitPrice packs a unit price for a PRICE_UPDATE payload using the
// configured width.
func (d *ResponseDecoder) EncodeUnitPrice(price uint32) ([]byte, error) {
	return UintToBCD(price, d.Widths.UnitPrice)
}
