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

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"github.com/EFForg/rayhunter-sub000/hdlc"
)

// MessageTerminator and MessageEscapeChar are the HDLC framing bytes used to
// split a single read buffer into individual encapsulated messages.
const (
	MessageTerminator byte = 0x7E
	MessageEscapeChar byte = 0x7D
)

// DataType is a container-level tag. UserSpace (32) is the only tag this
// driver ever sends or expects on reads from a real device; any other value
// round-trips as Other so callers can still inspect it.
type DataType struct {
	Tag   uint32
	Other bool
}

// DataTypeUserSpace is the only DataType this codec ever constructs for
// outgoing requests.
var DataTypeUserSpace = DataType{Tag: 32}

const dataTypeSize = 4

func unmarshalDataType(b []byte) DataType {
	tag := binary.LittleEndian.Uint32(b)
	return DataType{Tag: tag, Other: tag != 32}
}

func (d DataType) marshalBinaryTo(b []byte) {
	binary.LittleEndian.PutUint32(b, d.Tag)
}

// RequestContainer wraps an HDLC-encapsulated request with the container's
// DataType tag and an optional MDM field required by some devices.
type RequestContainer struct {
	DataType             DataType
	UseMDM               bool
	HdlcEncapsulatedData []byte
}

// MarshalBinary serializes the container: DataType, then (if UseMDM) a
// literal -1 MDM field, then the raw encapsulated request bytes.
func (r *RequestContainer) MarshalBinary() []byte {
	size := dataTypeSize + len(r.HdlcEncapsulatedData)
	if r.UseMDM {
		size += 4
	}
	out := make([]byte, size)
	r.DataType.marshalBinaryTo(out)
	off := dataTypeSize
	if r.UseMDM {
		binary.LittleEndian.PutUint32(out[off:], uint32(int32(-1)))
		off += 4
	}
	copy(out[off:], r.HdlcEncapsulatedData)
	return out
}

// HdlcEncapsulatedMessage is a length-prefixed, HDLC-encapsulated Message on
// the wire; a single read from the device may contain several concatenated
// HDLC frames in one Data blob (see MessagesContainer.IntoMessages).
type HdlcEncapsulatedMessage struct {
	Len  uint32
	Data []byte
}

// MessagesContainer is what a read from the diag device actually yields:
// a DataType tag followed by a count-prefixed list of
// HdlcEncapsulatedMessages.
type MessagesContainer struct {
	DataType DataType
	Messages []HdlcEncapsulatedMessage
}

// UnmarshalMessagesContainer parses a MessagesContainer from a device read
// buffer. It also returns the trailing bytes of b that were not consumed;
// the device read loop logs their count as a warning.
func UnmarshalMessagesContainer(b []byte) (*MessagesContainer, []byte, error) {
	if len(b) < dataTypeSize+4 {
		return nil, b, ErrTruncated
	}
	c := &MessagesContainer{DataType: unmarshalDataType(b[:dataTypeSize])}
	b = b[dataTypeSize:]
	numMessages := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	c.Messages = make([]HdlcEncapsulatedMessage, 0, numMessages)
	for i := uint32(0); i < numMessages; i++ {
		if len(b) < 4 {
			return nil, b, ErrTruncated
		}
		msgLen := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < msgLen {
			return nil, b, ErrTruncated
		}
		c.Messages = append(c.Messages, HdlcEncapsulatedMessage{Len: msgLen, Data: b[:msgLen]})
		b = b[msgLen:]
	}
	return c, b, nil
}

// ParsedMessage pairs a decoded Message with the error that prevented
// decoding it, mirroring Result<Message, DiagParsingError> for a whole
// container: exactly one of Message/Err is set.
type ParsedMessage struct {
	Message Message
	Err     error
}

// IntoMessages splits every HdlcEncapsulatedMessage's Data on message
// terminators (a single read can contain several concatenated HDLC frames),
// HDLC-decapsulates each chunk, and decodes the resulting Message. A
// decoding failure for one chunk does not prevent the rest of the container
// from being processed.
func (c *MessagesContainer) IntoMessages() []ParsedMessage {
	var result []ParsedMessage
	for _, msg := range c.Messages {
		for _, subMsg := range splitInclusive(msg.Data, MessageTerminator) {
			data, err := hdlc.Decapsulate(subMsg)
			if err != nil {
				result = append(result, ParsedMessage{Err: &HdlcDecapsulationError{Err: err, Data: subMsg}})
				continue
			}
			m, leftover, err := DecodeMessage(data)
			if err != nil {
				result = append(result, ParsedMessage{Err: &MessageParsingError{Err: err, Data: data}})
				continue
			}
			if len(leftover) > 0 {
				log.Warnf("diag: %d leftover bytes when parsing Message", len(leftover))
			}
			result = append(result, ParsedMessage{Message: m})
		}
	}
	return result
}

// splitInclusive splits data on every occurrence of sep, keeping sep as the
// last byte of each resulting chunk (mirroring Rust's split_inclusive).
func splitInclusive(data []byte, sep byte) [][]byte {
	var chunks [][]byte
	start := 0
	for i, b := range data {
		if b == sep {
			chunks = append(chunks, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		chunks = append(chunks, data[start:])
	}
	return chunks
}

// EncapsulateMessage is a convenience for tests and the write path: it
// serializes msg and wraps it in an HdlcEncapsulatedMessage ready to push
// into a MessagesContainer.
func EncapsulateMessage(msg Message) HdlcEncapsulatedMessage {
	serialized := msg.MarshalBinary()
	data := hdlc.Encapsulate(serialized)
	return HdlcEncapsulatedMessage{Len: uint32(len(data)), Data: data}
}
