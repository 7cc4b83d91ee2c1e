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

// Package diag implements the Qualcomm diag envelope codec: request/response
// containers, the tagged Message union, and the per-log-type body variants
// carried inside Message_Log records.
package diag

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned when a buffer ends before a fixed-size field can
// be read from it.
var ErrTruncated = errors.New("diag: truncated message")

// UnknownResponseOpcodeError is returned when a Response message's opcode
// doesn't correspond to a modelled ResponsePayload variant.
type UnknownResponseOpcodeError struct {
	Opcode uint32
}

func (e *UnknownResponseOpcodeError) Error() string {
	return fmt.Sprintf("diag: unknown response opcode %d", e.Opcode)
}

// UnknownLogTypeError is returned when a Log message's log_type doesn't
// correspond to a modelled LogBody variant.
type UnknownLogTypeError struct {
	LogType uint16
}

func (e *UnknownLogTypeError) Error() string {
	return fmt.Sprintf("diag: unknown log type %#x", e.LogType)
}

// UnknownSubopcodeError is returned when a LogConfig response's subopcode
// doesn't correspond to a modelled LogConfigResponse variant.
type UnknownSubopcodeError struct {
	Subopcode uint32
}

func (e *UnknownSubopcodeError) Error() string {
	return fmt.Sprintf("diag: unknown log config subopcode %d", e.Subopcode)
}

// UnknownMeasurementVersionError is returned when an LTE ML1 serving-cell
// or neighbor-cell measurement log's header version byte is neither 4 nor
// 5, the only two layouts the device emits.
type UnknownMeasurementVersionError struct {
	Version uint8
}

func (e *UnknownMeasurementVersionError) Error() string {
	return fmt.Sprintf("diag: unknown ML1 measurement header version %d", e.Version)
}

// MessageParsingError wraps a decode failure alongside the bytes that
// failed to decode, mirroring DiagParsingError::MessageParsingError so
// callers can log or replay the offending frame.
type MessageParsingError struct {
	Err  error
	Data []byte
}

func (e *MessageParsingError) Error() string {
	return fmt.Sprintf("diag: failed to parse message: %s (%d bytes)", e.Err, len(e.Data))
}

func (e *MessageParsingError) Unwrap() error { return e.Err }

// HdlcDecapsulationError wraps an HDLC framing failure alongside the bytes
// that failed to decapsulate.
type HdlcDecapsulationError struct {
	Err  error
	Data []byte
}

func (e *HdlcDecapsulationError) Error() string {
	return fmt.Sprintf("diag: hdlc decapsulation failed: %s (%d bytes)", e.Err, len(e.Data))
}

func (e *HdlcDecapsulationError) Unwrap() error { return e.Err }
