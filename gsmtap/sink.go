package gsmtap

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/EFForg/rayhunter-sub000/diag"
)

// cachedSignalMu guards cachedSignalDBM the same way recordingstore guards
// its manifest: readers (every non-measurement FromLogMessage call) and
// the single writer (a serving-cell measurement) can run on different
// goroutines within the capture pipeline and the analysis replay path.
var cachedSignalMu sync.RWMutex

// cachedSignalDBM holds the most recently observed RSRP-derived signal
// strength, updated from LTE ML1 serving-cell measurement subpackets and
// read by every subsequent RRC OTA header built until the next
// measurement arrives. Zero until the first measurement is seen.
var cachedSignalDBM int8

// clampToInt8DBM mirrors the original source's
// `rsrp.clamp(-128.0, 127.0) as i8`.
func clampToInt8DBM(dbm float32) int8 {
	switch {
	case dbm < -128:
		return -128
	case dbm > 127:
		return 127
	default:
		return int8(dbm)
	}
}

// updateCachedSignalDBM records meas's RSRP as the signal strength future
// GSMTAP headers report, mirroring update_cell_info_cache in the original
// source.
func updateCachedSignalDBM(meas diag.LteMl1ServingCellMeasurementAndEvaluation) {
	cachedSignalMu.Lock()
	defer cachedSignalMu.Unlock()
	cachedSignalDBM = clampToInt8DBM(meas.RSRP())
}

func readCachedSignalDBM() int8 {
	cachedSignalMu.RLock()
	defer cachedSignalMu.RUnlock()
	return cachedSignalDBM
}

// FromLogMessage maps a decoded diag log message onto its neutral GSMTAP
// form, mirroring log_to_gsmtap in the original source. It returns
// ok=false for log bodies that don't have a GSMTAP representation
// (neighbor-cell measurements, raw/opaque bodies, and anything else not
// explicitly handled below). Serving-cell measurements never produce a
// message of their own either, but do update the signal-strength cache
// future RRC OTA headers report.
func FromLogMessage(msg *diag.LogMessage) (*Message, bool, error) {
	switch body := msg.Body.(type) {
	case diag.LteRrcOtaMessage:
		subtype, err := ChannelForLteRrcOta(body.ExtHeaderVersion, body.Packet.PDUNum())
		if err != nil {
			return nil, false, err
		}
		header := NewHeader(PacketTypeLteRRC, uint8(subtype))
		header.ARFCN = uint16(body.Packet.EARFCN() & 0x3fff)
		sfn, subfn := diag.RrcSFN(body.Packet), diag.RrcSubframe(body.Packet)
		header.FrameNumber = uint32(sfn)
		header.Subslot = uint8(subfn)
		header.SignalDBM = readCachedSignalDBM()
		return &Message{Header: header, Payload: body.Packet.Payload()}, true, nil

	case diag.Nas4GMessage:
		header := NewHeader(PacketTypeLteNAS, uint8(LteNasPlain))
		header.Uplink = body.Direction == diag.Nas4GUplink
		return &Message{Header: header, Payload: body.Msg}, true, nil

	case diag.LteMl1ServingCellMeasurementAndEvaluation:
		updateCachedSignalDBM(body)
		return nil, false, nil

	case diag.LteMl1NeighborCellsMeasurements:
		return nil, false, nil

	default:
		log.Debugf("gsmtap: ignoring unhandled log body %T", body)
		return nil, false, nil
	}
}
