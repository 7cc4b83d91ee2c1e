// Package analyzerharness dispatches decoded diag log bodies to a
// registered set of analyzers and aggregates their per-packet verdicts
// into a report.
package analyzerharness

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/gsmtap"
	"github.com/EFForg/rayhunter-sub000/nasie"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

// Severity orders an Event's importance. Ordering matters:
// AnalysisRow.MaxEventType returns the highest value present.
type Severity int

const (
	Informational Severity = iota
	Low
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Informational:
		return "Informational"
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Informational"
	}
}

// Event is what an analyzer reports about a single packet.
type Event struct {
	Severity Severity
	Message  string
}

// InformationElement is the decoded form an analyzer inspects. Exactly one
// of LteRrcOtaIE/Nas4GIE is populated, mirroring which log type a
// container element carried.
type InformationElement struct {
	LteRrcOtaIE rrcie.DLDCCHMessage
	Nas4GIE     nasie.Message
	// Nas4GDirection is only meaningful when Nas4GIE is set: whether the
	// NAS message travelled downlink (network to UE) or uplink.
	Nas4GDirection diag.Nas4GMessageDirection
}

// Analyzer is the capability set every reference and third-party analyzer
// satisfies.
type Analyzer interface {
	Name() string
	Description() string
	Version() uint32
	Analyze(ie InformationElement, packetNum uint64) *Event
}

// Metadata is the analyzers/runtime header published as the first line of
// every report.
type Metadata struct {
	Analyzers []AnalyzerInfo `json:"analyzers"`
	Runtime   RuntimeInfo    `json:"runtime"`
}

type AnalyzerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     uint32 `json:"version"`
}

type RuntimeInfo struct {
	ToolVersion string `json:"tool_version"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
}

// AnalysisRow is one processed packet. Events is positional by analyzer
// index; a nil slot means that analyzer had nothing to say.
type AnalysisRow struct {
	PacketTimestamp *time.Time `json:"packet_timestamp,omitempty"`
	SkippedReason   *string    `json:"skipped_reason,omitempty"`
	Events          []*Event   `json:"events"`
}

// MaxEventType returns the highest severity among row's events, defaulting
// to Informational.
func (row AnalysisRow) MaxEventType() Severity {
	max := Informational
	for _, e := range row.Events {
		if e != nil && e.Severity > max {
			max = e.Severity
		}
	}
	return max
}

// Harness owns an ordered analyzer registry and an RRC IE decoder, and
// publishes per-severity event counts and row counts to Prometheus the way
// ptp/sptp/stats.PrometheusExporter publishes PTP client gauges.
type Harness struct {
	decoder     rrcie.Decoder
	analyzers   []Analyzer
	toolVersion string

	eventsTotal *prometheus.CounterVec
	rowsTotal   prometheus.Counter
}

// New builds a Harness with decoder used to turn LTE RRC OTA payloads into
// rrcie.DLDCCHMessage values, and the given analyzers registered in order.
// Metric names are registered against reg; reg may be a fresh
// prometheus.NewRegistry() for tests.
func New(reg *prometheus.Registry, decoder rrcie.Decoder, toolVersion string, analyzers ...Analyzer) *Harness {
	if decoder == nil {
		decoder = rrcie.NoopDecoder{}
	}
	h := &Harness{
		decoder:     decoder,
		analyzers:   analyzers,
		toolVersion: toolVersion,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rayhunter_events_total",
			Help: "Number of analyzer events emitted, by severity.",
		}, []string{"severity"}),
		rowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayhunter_rows_total",
			Help: "Number of non-empty analysis rows produced.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.eventsTotal, h.rowsTotal)
	}
	return h
}

// Metadata returns the harness's published analyzer/runtime header.
func (h *Harness) Metadata() Metadata {
	infos := make([]AnalyzerInfo, len(h.analyzers))
	for i, a := range h.analyzers {
		infos[i] = AnalyzerInfo{Name: a.Name(), Description: a.Description(), Version: a.Version()}
	}
	return Metadata{
		Analyzers: infos,
		Runtime: RuntimeInfo{
			ToolVersion: h.toolVersion,
			OS:          runtime.GOOS,
			Arch:        runtime.GOARCH,
		},
	}
}

// decodeInformationElement turns a single diag.LogBody into an
// InformationElement, a skip reason, or nothing (the body isn't one the
// harness inspects at all).
func (h *Harness) decodeInformationElement(body diag.LogBody) (*InformationElement, string) {
	switch b := body.(type) {
	case diag.LteRrcOtaMessage:
		if !gsmtap.IsDLDCCH(b.ExtHeaderVersion, b.Packet.PDUNum()) {
			return nil, ""
		}
		msg, err := h.decoder.DecodeDLDCCH(b.Packet.Payload())
		if err != nil {
			return nil, fmt.Sprintf("undecodable RRC DL-DCCH payload: %v", err)
		}
		return &InformationElement{LteRrcOtaIE: msg}, ""
	case diag.Nas4GMessage:
		msg, err := nasie.Decode(b.Msg)
		if err != nil {
			return nil, fmt.Sprintf("undecodable NAS EMM message: %v", err)
		}
		return &InformationElement{Nas4GIE: msg, Nas4GDirection: b.Direction}, ""
	default:
		return nil, ""
	}
}

// ProcessContainer decodes messages from an already-parsed
// diag.MessagesContainer and dispatches each decoded element through every
// registered analyzer, returning one AnalysisRow per element that produced
// a row (a decoded element or a skip reason). Non-log messages, and parse
// failures for individual sub-messages, are silently dropped, matching
// diag.MessagesContainer.IntoMessages's per-submessage error handling.
// packetNum is the running count of rows produced before this container;
// it advances once per returned row (the caller adds len(rows) across
// container boundaries) and is passed to
// every Analyze call so analyzers can report positionally within a whole
// recording rather than just within one container.
func (h *Harness) ProcessContainer(c *diag.MessagesContainer, packetNum uint64) []AnalysisRow {
	var rows []AnalysisRow
	for _, pm := range c.IntoMessages() {
		if pm.Err != nil {
			continue
		}
		logMsg, ok := pm.Message.(diag.LogMessage)
		if !ok {
			continue
		}
		ie, skip := h.decodeInformationElement(logMsg.Body)
		if ie == nil && skip == "" {
			continue
		}
		packetNum++
		ts := logMsg.Timestamp.Time()
		row := AnalysisRow{PacketTimestamp: &ts}
		if skip != "" {
			row.SkippedReason = &skip
			rows = append(rows, row)
			h.rowsTotal.Inc()
			continue
		}
		row.Events = make([]*Event, len(h.analyzers))
		for i, a := range h.analyzers {
			row.Events[i] = a.Analyze(*ie, packetNum)
			if row.Events[i] != nil {
				h.eventsTotal.WithLabelValues(row.Events[i].Severity.String()).Inc()
			}
		}
		rows = append(rows, row)
		h.rowsTotal.Inc()
	}
	return rows
}
