/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package diag

import "encoding/binary"

// Known log_type values. The four NAS opcodes double as the direction
// discriminant for Nas4GMessage: there is no separate direction field on
// the wire.
const (
	LogTypeWcdmaSignallingMessage             uint16 = 0x412f
	LogTypeGsmRrSignallingMessage              uint16 = 0x512f
	LogTypeGprsMacSignallingMessage            uint16 = 0x5226
	LogTypeLteRrcOtaMessage                    uint16 = 0xb0c0
	LogTypeNas4GEsmIncoming                     uint16 = 0xb0e2
	LogTypeNas4GEsmOutgoing                     uint16 = 0xb0e3
	LogTypeNas4GEmmIncoming                     uint16 = 0xb0ec
	LogTypeNas4GEmmOutgoing                     uint16 = 0xb0ed
	LogTypeIpTraffic                            uint16 = 0x11eb
	LogTypeUmtsNasOtaMessage                    uint16 = 0x713a
	LogTypeNrRrcOtaMessage                      uint16 = 0xb821
	LogTypeLteMl1ServingCellMeasurement          uint16 = 0xb17f
	LogTypeLteMl1NeighborCellsMeasurements       uint16 = 0xb180
)

// LogBody is the payload of a Log message, tagged by log_type.
type LogBody interface {
	isLogBody()
}

func saturatingSub(a, b uint16) uint16 {
	if a < b {
		return 0
	}
	return a - b
}

// WcdmaSignallingMessage is LogBody id 0x412f.
type WcdmaSignallingMessage struct {
	ChannelType uint8
	RadioBearer uint8
	Msg         []byte
}

func (WcdmaSignallingMessage) isLogBody() {}

// GsmRrSignallingMessage is LogBody id 0x512f.
type GsmRrSignallingMessage struct {
	ChannelType uint8
	MessageType uint8
	Msg         []byte
}

func (GsmRrSignallingMessage) isLogBody() {}

// GprsMacSignallingMessage is LogBody id 0x5226.
type GprsMacSignallingMessage struct {
	ChannelType uint8
	MessageType uint8
	Msg         []byte
}

func (GprsMacSignallingMessage) isLogBody() {}

// LteRrcOtaMessage is LogBody id 0xb0c0.
type LteRrcOtaMessage struct {
	ExtHeaderVersion uint8
	Packet           LteRrcOtaPacket
}

func (LteRrcOtaMessage) isLogBody() {}

// Nas4GMessageDirection is derived from the log_type itself: 0xb0e2/0xb0ec
// are Downlink, 0xb0e3/0xb0ed are Uplink.
type Nas4GMessageDirection int

const (
	Nas4GDownlink Nas4GMessageDirection = iota
	Nas4GUplink
)

func (d Nas4GMessageDirection) String() string {
	if d == Nas4GUplink {
		return "uplink"
	}
	return "downlink"
}

func nas4GDirectionForLogType(logType uint16) Nas4GMessageDirection {
	switch logType {
	case LogTypeNas4GEsmOutgoing, LogTypeNas4GEmmOutgoing:
		return Nas4GUplink
	default:
		return Nas4GDownlink
	}
}

// Nas4GMessage covers the four plain NAS log types (0xb0e2/0xb0e3/0xb0ec/0xb0ed).
type Nas4GMessage struct {
	LogType          uint16
	Direction        Nas4GMessageDirection
	ExtHeaderVersion uint8
	RrcRel           uint8
	RrcVersionMinor  uint8
	RrcVersionMajor  uint8
	Msg              []byte
}

func (Nas4GMessage) isLogBody() {}

// IpTraffic is LogBody id 0x11eb.
type IpTraffic struct {
	Msg []byte
}

func (IpTraffic) isLogBody() {}

// UmtsNasOtaMessage is LogBody id 0x713a.
type UmtsNasOtaMessage struct {
	IsUplink uint8
	Msg      []byte
}

func (UmtsNasOtaMessage) isLogBody() {}

// NrRrcOtaMessage is LogBody id 0xb821.
type NrRrcOtaMessage struct {
	Msg []byte
}

func (NrRrcOtaMessage) isLogBody() {}

// LteMl1ServingCellMeasurementAndEvaluation is LogBody id 0xb17f: the
// modem's periodic measurement-and-evaluation report for the cell it is
// camped on. The header version byte (4 or 5) picks a 16-bit or 32-bit
// EARFCN width, exactly like the RRC OTA layouts; the measurement fields
// past the header are bit-packed identically in both versions. RSRP,
// RSRQ, and RSSI are stored as their raw fixed-point encodings (see RSRP,
// RSRQ, RSSI) because the conversion is lossy and callers may want the
// raw value for logging.
type LteMl1ServingCellMeasurementAndEvaluation struct {
	Version uint8
	RrcRel  uint8
	PCI     uint16
	EARFCN  uint32
	RSRPRaw uint16 // 12-bit fixed point, see RSRP
	RSRQRaw uint16 // 10-bit fixed point, see RSRQ
	RSSIRaw uint16 // 11-bit fixed point, see RSSI
}

func (LteMl1ServingCellMeasurementAndEvaluation) isLogBody() {}

// RSRP converts m's raw fixed-point RSRP reading to dBm.
func (m LteMl1ServingCellMeasurementAndEvaluation) RSRP() float32 {
	return float32(m.RSRPRaw)/16.0 - 180.0
}

// RSRQ converts m's raw fixed-point RSRQ reading to dB.
func (m LteMl1ServingCellMeasurementAndEvaluation) RSRQ() float32 {
	return float32(m.RSRQRaw)/16.0 - 30.0
}

// RSSI converts m's raw fixed-point RSSI reading to dBm.
func (m LteMl1ServingCellMeasurementAndEvaluation) RSSI() float32 {
	return float32(m.RSSIRaw)/16.0 - 110.0
}

// LteMl1NeighborCell is one cell's measurement within a
// LteMl1NeighborCellsMeasurements report.
type LteMl1NeighborCell struct {
	PCI     uint16
	RSRPRaw uint16
	RSRQRaw uint16
	RSSIRaw uint16
}

// RSRP converts c's raw fixed-point RSRP reading to dBm.
func (c LteMl1NeighborCell) RSRP() float32 { return float32(c.RSRPRaw)/16.0 - 180.0 }

// RSRQ converts c's raw fixed-point RSRQ reading to dB.
func (c LteMl1NeighborCell) RSRQ() float32 { return float32(c.RSRQRaw)/16.0 - 30.0 }

// RSSI converts c's raw fixed-point RSSI reading to dBm.
func (c LteMl1NeighborCell) RSSI() float32 { return float32(c.RSSIRaw)/16.0 - 110.0 }

// LteMl1NeighborCellsMeasurements is LogBody id 0xb180: the modem's
// measurement report for cells neighboring the one it is camped on.
type LteMl1NeighborCellsMeasurements struct {
	Version uint8
	EARFCN  uint32
	Cells   []LteMl1NeighborCell
}

func (LteMl1NeighborCellsMeasurements) isLogBody() {}

// ml1MeasurementCellSize is the byte size of one MeasurementsCell entry in
// an LteMl1NeighborCellsMeasurements report: 9-bit PCI + 11-bit RSSI +
// 12-bit RSRP (one 32-bit word), a 12-bit avg_rsrp word, a 10-bit RSRQ
// word, a 10-bit avg_rsrq + 6-bit s_rxlev word, and three trailing u16/u32
// fields the diagnostic analyzers never consume.
const ml1MeasurementCellSize = 32

// decodeLteMl1ServingCellMeasurement parses a serving-cell
// measurement-and-evaluation report. See
// original_source/lib/src/diag/diaglog/measurement.rs's
// serving_cell::MeasurementAndEvaluation for the bit layout this mirrors.
func decodeLteMl1ServingCellMeasurement(data []byte) (LteMl1ServingCellMeasurementAndEvaluation, []byte, error) {
	if len(data) < 1 {
		return LteMl1ServingCellMeasurementAndEvaluation{}, data, ErrTruncated
	}
	version := data[0]
	var headerLen int
	var earfcn uint32
	var pciWord uint16
	switch version {
	case 4:
		headerLen = 8
		if len(data) < headerLen {
			return LteMl1ServingCellMeasurementAndEvaluation{}, data, ErrTruncated
		}
		earfcn = uint32(binary.LittleEndian.Uint16(data[4:6]))
		pciWord = binary.LittleEndian.Uint16(data[6:8])
	case 5:
		headerLen = 12
		if len(data) < headerLen {
			return LteMl1ServingCellMeasurementAndEvaluation{}, data, ErrTruncated
		}
		earfcn = binary.LittleEndian.Uint32(data[4:8])
		pciWord = binary.LittleEndian.Uint16(data[8:10])
	default:
		return LteMl1ServingCellMeasurementAndEvaluation{}, data, &UnknownMeasurementVersionError{Version: version}
	}
	rrcRel := data[1]
	rest := data[headerLen:]
	// meas_rsrp+pad (4), avg_rsrp (4, unused), meas_rsrq+pad (4),
	// pad+meas_rssi+pad (4), rxlev (4, unused), s_search (4, unused).
	if len(rest) < 24 {
		return LteMl1ServingCellMeasurementAndEvaluation{}, data, ErrTruncated
	}
	rsrpWord := binary.LittleEndian.Uint32(rest[0:4])
	rsrqWord := binary.LittleEndian.Uint32(rest[8:12])
	rssiWord := binary.LittleEndian.Uint32(rest[12:16])
	consumed := 24
	// r9_data is present only when rrc_rel == 1, per measurement.rs's
	// `#[deku(cond = "header.get_rrc_rel() == 0x01")]`.
	if rrcRel == 1 && len(rest) >= 28 {
		consumed = 28
	}
	result := LteMl1ServingCellMeasurementAndEvaluation{
		Version: version,
		RrcRel:  rrcRel,
		PCI:     pciWord & 0x1ff,
		EARFCN:  earfcn,
		RSRPRaw: uint16(rsrpWord & 0xfff),
		RSRQRaw: uint16(rsrqWord & 0x3ff),
		RSSIRaw: uint16((rssiWord >> 10) & 0x7ff),
	}
	return result, rest[consumed:], nil
}

// decodeLteMl1NeighborCellsMeasurements parses a neighbor-cell measurement
// report. See
// original_source/lib/src/diag/diaglog/measurement.rs's
// neighbor_cells::Measurements for the bit layout this mirrors.
func decodeLteMl1NeighborCellsMeasurements(data []byte) (LteMl1NeighborCellsMeasurements, []byte, error) {
	if len(data) < 1 {
		return LteMl1NeighborCellsMeasurements{}, data, ErrTruncated
	}
	version := data[0]
	var headerLen int
	var earfcn uint32
	var nCells uint32
	switch version {
	case 4:
		headerLen = 8
		if len(data) < headerLen {
			return LteMl1NeighborCellsMeasurements{}, data, ErrTruncated
		}
		earfcn = uint32(binary.LittleEndian.Uint16(data[4:6]))
		w := binary.LittleEndian.Uint16(data[6:8])
		nCells = uint32(w>>6) & 0x3ff
	case 5:
		headerLen = 12
		if len(data) < headerLen {
			return LteMl1NeighborCellsMeasurements{}, data, ErrTruncated
		}
		earfcn = binary.LittleEndian.Uint32(data[4:8])
		w := binary.LittleEndian.Uint32(data[8:12])
		nCells = (w >> 6) & 0x3ffffff
	default:
		return LteMl1NeighborCellsMeasurements{}, data, &UnknownMeasurementVersionError{Version: version}
	}
	rest := data[headerLen:]
	cells := make([]LteMl1NeighborCell, 0, nCells)
	for i := uint32(0); i < nCells; i++ {
		if len(rest) < ml1MeasurementCellSize {
			return LteMl1NeighborCellsMeasurements{}, data, ErrTruncated
		}
		w1 := binary.LittleEndian.Uint32(rest[0:4])
		w3 := binary.LittleEndian.Uint32(rest[8:12])
		cells = append(cells, LteMl1NeighborCell{
			PCI:     uint16(w1 & 0x1ff),
			RSSIRaw: uint16((w1 >> 9) & 0x7ff),
			RSRPRaw: uint16((w1 >> 20) & 0xfff),
			RSRQRaw: uint16((w3 >> 12) & 0x3ff),
		})
		rest = rest[ml1MeasurementCellSize:]
	}
	return LteMl1NeighborCellsMeasurements{Version: version, EARFCN: earfcn, Cells: cells}, rest, nil
}

// marshalLteMl1ServingCellMeasurement is the inverse of
// decodeLteMl1ServingCellMeasurement. The fields the decoder discards
// (avg_rsrp, rxlev, s_search, r9_data) round-trip as zero.
func marshalLteMl1ServingCellMeasurement(m LteMl1ServingCellMeasurementAndEvaluation) []byte {
	out := []byte{m.Version, m.RrcRel, 0, 0}
	switch m.Version {
	case 5:
		out = binary.LittleEndian.AppendUint32(out, m.EARFCN)
		out = binary.LittleEndian.AppendUint16(out, m.PCI&0x1ff)
		out = append(out, 0, 0)
	default:
		out = binary.LittleEndian.AppendUint16(out, uint16(m.EARFCN))
		out = binary.LittleEndian.AppendUint16(out, m.PCI&0x1ff)
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(m.RSRPRaw&0xfff))
	out = binary.LittleEndian.AppendUint32(out, 0) // avg_rsrp
	out = binary.LittleEndian.AppendUint32(out, uint32(m.RSRQRaw&0x3ff))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.RSSIRaw&0x7ff)<<10)
	out = binary.LittleEndian.AppendUint32(out, 0) // rxlev
	out = binary.LittleEndian.AppendUint32(out, 0) // s_search
	if m.RrcRel == 1 {
		out = binary.LittleEndian.AppendUint32(out, 0) // r9_data
	}
	return out
}

// marshalLteMl1NeighborCellsMeasurements is the inverse of
// decodeLteMl1NeighborCellsMeasurements. Per-cell fields the decoder
// discards (avg_rsrp, avg_rsrq, s_rxlev, n_freq_offset, val5, the antenna
// offsets, unk1) round-trip as zero.
func marshalLteMl1NeighborCellsMeasurements(m LteMl1NeighborCellsMeasurements) []byte {
	out := []byte{m.Version, 0, 0, 0}
	switch m.Version {
	case 5:
		out = binary.LittleEndian.AppendUint32(out, m.EARFCN)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.Cells))<<6)
	default:
		out = binary.LittleEndian.AppendUint16(out, uint16(m.EARFCN))
		out = binary.LittleEndian.AppendUint16(out, uint16(len(m.Cells))<<6)
	}
	for _, c := range m.Cells {
		w1 := uint32(c.PCI&0x1ff) | uint32(c.RSSIRaw&0x7ff)<<9 | uint32(c.RSRPRaw&0xfff)<<20
		w3 := uint32(c.RSRQRaw&0x3ff) << 12
		out = binary.LittleEndian.AppendUint32(out, w1)
		out = binary.LittleEndian.AppendUint32(out, 0) // avg_rsrp
		out = binary.LittleEndian.AppendUint32(out, w3)
		out = append(out, make([]byte, ml1MeasurementCellSize-12)...)
	}
	return out
}

// LogCodesForRawPacketLogging is the set of log codes the daemon requests
// from the device to capture everything the analyzers need: layer 2/3
// signalling, NAS, and user IP traffic.
var LogCodesForRawPacketLogging = []uint32{
	uint32(LogTypeGprsMacSignallingMessage),
	uint32(LogTypeGsmRrSignallingMessage),
	uint32(LogTypeWcdmaSignallingMessage),
	uint32(LogTypeLteRrcOtaMessage),
	uint32(LogTypeNrRrcOtaMessage),
	uint32(LogTypeUmtsNasOtaMessage),
	uint32(LogTypeNas4GEsmIncoming),
	uint32(LogTypeNas4GEsmOutgoing),
	uint32(LogTypeNas4GEmmIncoming),
	uint32(LogTypeNas4GEmmOutgoing),
	uint32(LogTypeIpTraffic),
}

func isNas4GLogType(logType uint16) bool {
	switch logType {
	case LogTypeNas4GEsmIncoming, LogTypeNas4GEsmOutgoing, LogTypeNas4GEmmIncoming, LogTypeNas4GEmmOutgoing:
		return true
	default:
		return false
	}
}

// decodeLogBody dispatches on logType the same way the source's
// LogBody::read does, with hdrLen (inner_length saturating-subtracted by
// 12, computed by the caller) threaded through as ctx for the three
// variants whose message length isn't self-described.
func decodeLogBody(logType uint16, hdrLen uint16, data []byte) (LogBody, []byte, error) {
	switch {
	case logType == LogTypeWcdmaSignallingMessage:
		if len(data) < 4 {
			return nil, data, ErrTruncated
		}
		length := binary.LittleEndian.Uint16(data[2:])
		if uint16(len(data[4:])) < length {
			return nil, data, ErrTruncated
		}
		return WcdmaSignallingMessage{
			ChannelType: data[0],
			RadioBearer: data[1],
			Msg:         data[4 : 4+length],
		}, data[4+length:], nil

	case logType == LogTypeGsmRrSignallingMessage:
		if len(data) < 3 {
			return nil, data, ErrTruncated
		}
		length := uint16(data[2])
		if uint16(len(data[3:])) < length {
			return nil, data, ErrTruncated
		}
		return GsmRrSignallingMessage{
			ChannelType: data[0],
			MessageType: data[1],
			Msg:         data[3 : 3+length],
		}, data[3+length:], nil

	case logType == LogTypeGprsMacSignallingMessage:
		if len(data) < 3 {
			return nil, data, ErrTruncated
		}
		length := uint16(data[2])
		if uint16(len(data[3:])) < length {
			return nil, data, ErrTruncated
		}
		return GprsMacSignallingMessage{
			ChannelType: data[0],
			MessageType: data[1],
			Msg:         data[3 : 3+length],
		}, data[3+length:], nil

	case logType == LogTypeLteRrcOtaMessage:
		if len(data) < 1 {
			return nil, data, ErrTruncated
		}
		extHeaderVersion := data[0]
		packet, rest, err := DecodeLteRrcOtaPacket(extHeaderVersion, data[1:])
		if err != nil {
			return nil, data, err
		}
		return LteRrcOtaMessage{ExtHeaderVersion: extHeaderVersion, Packet: packet}, rest, nil

	case isNas4GLogType(logType):
		if len(data) < 4 {
			return nil, data, ErrTruncated
		}
		msgLen := saturatingSub(hdrLen, 4)
		rest := data[4:]
		if uint16(len(rest)) < msgLen {
			return nil, data, ErrTruncated
		}
		return Nas4GMessage{
			LogType:          logType,
			Direction:        nas4GDirectionForLogType(logType),
			ExtHeaderVersion: data[0],
			RrcRel:           data[1],
			RrcVersionMinor:  data[2],
			RrcVersionMajor:  data[3],
			Msg:              rest[:msgLen],
		}, rest[msgLen:], nil

	case logType == LogTypeIpTraffic:
		msgLen := saturatingSub(hdrLen, 8)
		if uint16(len(data)) < msgLen {
			return nil, data, ErrTruncated
		}
		return IpTraffic{Msg: data[:msgLen]}, data[msgLen:], nil

	case logType == LogTypeUmtsNasOtaMessage:
		if len(data) < 5 {
			return nil, data, ErrTruncated
		}
		length := binary.LittleEndian.Uint32(data[1:])
		rest := data[5:]
		if uint64(len(rest)) < uint64(length) {
			return nil, data, ErrTruncated
		}
		return UmtsNasOtaMessage{
			IsUplink: data[0],
			Msg:      rest[:length],
		}, rest[length:], nil

	case logType == LogTypeNrRrcOtaMessage:
		if uint16(len(data)) < hdrLen {
			return nil, data, ErrTruncated
		}
		return NrRrcOtaMessage{Msg: data[:hdrLen]}, data[hdrLen:], nil

	case logType == LogTypeLteMl1ServingCellMeasurement:
		return decodeLteMl1ServingCellMeasurement(data)

	case logType == LogTypeLteMl1NeighborCellsMeasurements:
		return decodeLteMl1NeighborCellsMeasurements(data)

	default:
		return nil, data, &UnknownLogTypeError{LogType: logType}
	}
}
