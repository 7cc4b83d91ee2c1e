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

// LogConfig is the only opcode this package sends requests for: configuring
// which log codes the device should emit.
const opcodeLogConfig uint32 = 115

const (
	logConfigRetrieveIDRanges uint32 = 1
	logConfigSetMask          uint32 = 3
)

// Request is a command sent to the diag device, HDLC-encapsulated and
// wrapped in a RequestContainer before being written.
type Request interface {
	MarshalBinary() []byte
}

// LogConfigRetrieveIDRangesRequest asks the device for the bitmask size of
// each of its 16 log-code equipment classes.
type LogConfigRetrieveIDRangesRequest struct{}

func (LogConfigRetrieveIDRangesRequest) MarshalBinary() []byte {
	out := make([]byte, 0, 8)
	out = binary.LittleEndian.AppendUint32(out, opcodeLogConfig)
	out = binary.LittleEndian.AppendUint32(out, logConfigRetrieveIDRanges)
	return out
}

// LogConfigSetMaskRequest enables the given bitmask of log codes within a
// single equipment class (log_type).
type LogConfigSetMaskRequest struct {
	LogType        uint32
	LogMaskBitsize uint32
	LogMask        []byte
}

func (r LogConfigSetMaskRequest) MarshalBinary() []byte {
	out := make([]byte, 0, 12+len(r.LogMask))
	out = binary.LittleEndian.AppendUint32(out, opcodeLogConfig)
	out = binary.LittleEndian.AppendUint32(out, logConfigSetMask)
	out = binary.LittleEndian.AppendUint32(out, r.LogType)
	out = binary.LittleEndian.AppendUint32(out, r.LogMaskBitsize)
	out = append(out, r.LogMask...)
	return out
}

// BuildMask packs acceptedLogCodes into the bitmask a SetMask request
// carries for one equipment class: each log code is (logType<<12)|bitIndex,
// bits are packed LSB-first into bytes, with a final short byte when
// logMaskBitsize isn't a multiple of 8. BuildLogMaskRequest uses it for
// the request's mask bytes.
func BuildMask(logType uint32, logMaskBitsize uint32, acceptedLogCodes []uint32) []byte {
	accepted := make(map[uint32]bool, len(acceptedLogCodes))
	for _, c := range acceptedLogCodes {
		accepted[c] = true
	}

	var logMask []byte
	var currentByte uint8
	var numBitsWritten uint8
	for i := uint32(0); i < logMaskBitsize; i++ {
		logCode := (logType << 12) | i
		if accepted[logCode] {
			currentByte |= 1 << numBitsWritten
		}
		numBitsWritten++
		if numBitsWritten == 8 || i == logMaskBitsize-1 {
			logMask = append(logMask, currentByte)
			currentByte = 0
			numBitsWritten = 0
		}
	}
	return logMask
}

// BuildLogMaskRequest builds a SetMask request that enables exactly the log
// codes in acceptedLogCodes within equipment class logType, out of a total
// of logMaskBitsize possible codes in that class.
func BuildLogMaskRequest(logType uint32, logMaskBitsize uint32, acceptedLogCodes []uint32) LogConfigSetMaskRequest {
	return LogConfigSetMaskRequest{
		LogType:        logType,
		LogMaskBitsize: logMaskBitsize,
		LogMask:        BuildMask(logType, logMaskBitsize, acceptedLogCodes),
	}
}

// ResponsePayload is the tail of a ResponseMessage, dispatched on
// (opcode, subopcode).
type ResponsePayload interface {
	isResponsePayload()
}

// LogConfigRetrieveIDRangesResponse reports the bitmask size, in bits, of
// each of the device's 16 log-code equipment classes.
type LogConfigRetrieveIDRangesResponse struct {
	LogMaskSizes [16]uint32
}

func (LogConfigRetrieveIDRangesResponse) isResponsePayload() {}

// LogConfigSetMaskResponse acknowledges a SetMask request; it carries no
// fields of its own.
type LogConfigSetMaskResponse struct{}

func (LogConfigSetMaskResponse) isResponsePayload() {}

func decodeResponsePayload(opcode, subopcode uint32, data []byte) (ResponsePayload, []byte, error) {
	if opcode != opcodeLogConfig {
		return nil, data, &UnknownResponseOpcodeError{Opcode: opcode}
	}
	switch subopcode {
	case logConfigRetrieveIDRanges:
		if len(data) < 64 {
			return nil, data, ErrTruncated
		}
		var sizes [16]uint32
		for i := 0; i < 16; i++ {
			sizes[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		return LogConfigRetrieveIDRangesResponse{LogMaskSizes: sizes}, data[64:], nil
	case logConfigSetMask:
		return LogConfigSetMaskResponse{}, data, nil
	default:
		return nil, data, &UnknownSubopcodeError{Subopcode: subopcode}
	}
}

func marshalResponsePayload(p ResponsePayload) []byte {
	switch v := p.(type) {
	case LogConfigRetrieveIDRangesResponse:
		out := make([]byte, 0, 64)
		for _, sz := range v.LogMaskSizes {
			out = binary.LittleEndian.AppendUint32(out, sz)
		}
		return out
	case LogConfigSetMaskResponse:
		return nil
	default:
		return nil
	}
}
