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

// messageLogTag is the id byte that selects the Log variant of Message.
// Every other value falls through to Response; critically, that fallback
// byte is NOT consumed separately, it becomes the first byte of the
// Response's opcode field. See DecodeMessage.
const messageLogTag = 16

// Message is the tagged union carried by a HdlcEncapsulatedMessage: either
// an asynchronous Log record or a Response to a Request previously sent to
// the device.
type Message interface {
	isMessage()
	MarshalBinary() []byte
}

// LogMessage is the Message variant emitted by the device's own logging
// subsystem, the bulk of what a capture records.
type LogMessage struct {
	PendingMsgs  uint8
	OuterLength  uint16
	InnerLength  uint16
	LogType      uint16
	Timestamp    Timestamp
	Body         LogBody
}

func (LogMessage) isMessage() {}

func (m LogMessage) MarshalBinary() []byte {
	bodyBytes := marshalLogBody(m.Body)
	out := make([]byte, 0, 1+9+len(bodyBytes))
	out = append(out, messageLogTag, m.PendingMsgs)
	out = binary.LittleEndian.AppendUint16(out, m.OuterLength)
	out = binary.LittleEndian.AppendUint16(out, m.InnerLength)
	out = binary.LittleEndian.AppendUint16(out, m.LogType)
	tsBytes := make([]byte, timestampSize)
	ts := m.Timestamp
	ts.marshalBinaryTo(tsBytes)
	out = append(out, tsBytes...)
	out = append(out, bodyBytes...)
	return out
}

// ResponseMessage is the Message variant sent back by the device in reply
// to a Request. opcode, subopcode and status are always present; payload
// is further dispatched on (opcode, subopcode).
type ResponseMessage struct {
	Opcode    uint32
	Subopcode uint32
	Status    uint32
	Payload   ResponsePayload
}

func (ResponseMessage) isMessage() {}

func (m ResponseMessage) MarshalBinary() []byte {
	out := make([]byte, 0, 12)
	out = binary.LittleEndian.AppendUint32(out, m.Opcode)
	out = binary.LittleEndian.AppendUint32(out, m.Subopcode)
	out = binary.LittleEndian.AppendUint32(out, m.Status)
	out = append(out, marshalResponsePayload(m.Payload)...)
	return out
}

// DecodeMessage parses a single Message from data, returning any unused
// trailing bytes. The first byte is the id: 16 selects Log, any other
// value selects Response *without being separately consumed* — that byte
// is the low byte of the response's little-endian opcode. Getting this
// wrong reintroduces a one-byte misalignment regression that once shipped.
func DecodeMessage(data []byte) (Message, []byte, error) {
	if len(data) < 1 {
		return nil, data, ErrTruncated
	}
	if data[0] == messageLogTag {
		return decodeLogMessage(data[1:])
	}
	return decodeResponseMessage(data)
}

func decodeLogMessage(data []byte) (Message, []byte, error) {
	if len(data) < 15 {
		return nil, data, ErrTruncated
	}
	pendingMsgs := data[0]
	outerLength := binary.LittleEndian.Uint16(data[1:])
	innerLength := binary.LittleEndian.Uint16(data[3:])
	logType := binary.LittleEndian.Uint16(data[5:])
	var ts Timestamp
	ts.unmarshalBinary(data[7:15])
	hdrLen := saturatingSub(innerLength, 12)
	body, rest, err := decodeLogBody(logType, hdrLen, data[15:])
	if err != nil {
		return nil, data, err
	}
	return LogMessage{
		PendingMsgs: pendingMsgs,
		OuterLength: outerLength,
		InnerLength: innerLength,
		LogType:     logType,
		Timestamp:   ts,
		Body:        body,
	}, rest, nil
}

func decodeResponseMessage(data []byte) (Message, []byte, error) {
	if len(data) < 12 {
		return nil, data, ErrTruncated
	}
	opcode := binary.LittleEndian.Uint32(data[0:4])
	subopcode := binary.LittleEndian.Uint32(data[4:8])
	status := binary.LittleEndian.Uint32(data[8:12])
	payload, rest, err := decodeResponsePayload(opcode, subopcode, data[12:])
	if err != nil {
		return nil, data, err
	}
	return ResponseMessage{
		Opcode:    opcode,
		Subopcode: subopcode,
		Status:    status,
		Payload:   payload,
	}, rest, nil
}

func marshalLogBody(body LogBody) []byte {
	switch b := body.(type) {
	case WcdmaSignallingMessage:
		out := []byte{b.ChannelType, b.RadioBearer}
		out = binary.LittleEndian.AppendUint16(out, uint16(len(b.Msg)))
		return append(out, b.Msg...)
	case GsmRrSignallingMessage:
		return append([]byte{b.ChannelType, b.MessageType, uint8(len(b.Msg))}, b.Msg...)
	case GprsMacSignallingMessage:
		return append([]byte{b.ChannelType, b.MessageType, uint8(len(b.Msg))}, b.Msg...)
	case LteRrcOtaMessage:
		return append([]byte{b.ExtHeaderVersion}, b.Packet.marshalBinary()...)
	case Nas4GMessage:
		out := []byte{b.ExtHeaderVersion, b.RrcRel, b.RrcVersionMinor, b.RrcVersionMajor}
		return append(out, b.Msg...)
	case IpTraffic:
		return append([]byte{}, b.Msg...)
	case UmtsNasOtaMessage:
		out := []byte{b.IsUplink}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(b.Msg)))
		return append(out, b.Msg...)
	case NrRrcOtaMessage:
		return append([]byte{}, b.Msg...)
	case LteMl1ServingCellMeasurementAndEvaluation:
		return marshalLteMl1ServingCellMeasurement(b)
	case LteMl1NeighborCellsMeasurements:
		return marshalLteMl1NeighborCellsMeasurements(b)
	default:
		return nil
	}
}
