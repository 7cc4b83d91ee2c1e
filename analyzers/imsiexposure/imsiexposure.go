// Package imsiexposure implements the reference analyzer that surfaces EMM
// NAS messages through which a network could expose or coerce exposure of
// a subscriber's permanent identity.
package imsiexposure

import (
	"fmt"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/nasie"
)

// Analyzer flags EMM messages that request, or follow a rejection
// consistent with, exposing a subscriber's permanent identity in the
// clear. AttachRequest is deliberately never flagged: see the design note
// in spec.md section 9, resolved in favor of not flagging it.
type Analyzer struct{}

func (Analyzer) Name() string { return "IMSI Exposure Diagnostic" }
func (Analyzer) Description() string {
	return "Flags EMM NAS messages that request or follow IMSI exposure"
}
func (Analyzer) Version() uint32 { return 1 }

// Analyze implements analyzerharness.Analyzer.
func (Analyzer) Analyze(ie analyzerharness.InformationElement, _ uint64) *analyzerharness.Event {
	if ie.Nas4GIE == nil {
		return nil
	}
	switch m := ie.Nas4GIE.(type) {
	case nasie.IdentityRequest:
		return event(fmt.Sprintf("EMM Identity Request (%s)", m.IdentityType))
	case nasie.TrackingAreaUpdateReject:
		if m.Cause.IsForbiddenForTrackingAreaUpdateReject() {
			return event(fmt.Sprintf("EMM Tracking Area Update Reject (%s)", m.Cause))
		}
	case nasie.AttachReject:
		if m.Cause.IsForbiddenForAttachReject() {
			return event(fmt.Sprintf("EMM Attach Reject (%s)", m.Cause))
		}
	case nasie.ServiceReject:
		if m.Cause.IsForbiddenForServiceReject() {
			return event(fmt.Sprintf("EMM Service Reject (%s)", m.Cause))
		}
	case nasie.DetachRequest:
		if ie.Nas4GDirection == diag.Nas4GDownlink && m.DetachType != nasie.DetachTypeIMSIDetach {
			return event("EMM Detach Request (not IMSI detach)")
		}
	case nasie.AttachRequest:
		return nil
	}
	return nil
}

func event(message string) *analyzerharness.Event {
	return &analyzerharness.Event{Severity: analyzerharness.Informational, Message: message}
}
