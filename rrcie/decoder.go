package rrcie

import "errors"

// ErrNotImplemented is returned by NoopDecoder, the zero-value stand-in for
// a real ASN.1 PER decoder. The actual bit-level decode of a 3GPP RRC PDU
// from its ASN.1 PER encoding is generated from the 3GPP specifications and
// is explicitly out of scope for this module (spec.md section 1); this
// package only defines the boundary a generated decoder would satisfy.
var ErrNotImplemented = errors.New("rrcie: ASN.1 PER decoding not implemented")

// Decoder turns a DL-DCCH-Message PDU's ASN.1 PER-encoded bytes into a typed
// DLDCCHMessage. analyzerharness.Harness is built with a Decoder and calls
// it once per decoded LteRrcOtaMessage log body carried on DL-DCCH; tests
// substitute a fake
// that returns canned values instead of running a real PER decoder.
type Decoder interface {
	DecodeDLDCCH(payload []byte) (DLDCCHMessage, error)
}

// NoopDecoder always fails with ErrNotImplemented. It is the Harness's
// default Decoder so that a build with no ASN.1 decoder wired in still
// completes every other module's wiring: null-cipher detection over RRC
// simply never fires, which is the graceful-degradation behavior spec.md
// section 7 already requires for any undecodable log body.
type NoopDecoder struct{}

func (NoopDecoder) DecodeDLDCCH([]byte) (DLDCCHMessage, error) {
	return nil, ErrNotImplemented
}
