package analyzerharness

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/EFForg/rayhunter-sub000/analyzers/nullcipher"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

func dlDcchLogMessage(t *testing.T) diag.LogMessage {
	t.Helper()
	return diag.LogMessage{
		LogType: diag.LogTypeLteRrcOtaMessage,
		Body: diag.LteRrcOtaMessage{
			ExtHeaderVersion: 6,
			Packet: &diag.RrcV5Packet{
				PduNum: 6,
				Len:    2,
				Packet: []byte{0xaa, 0xbb},
			},
		},
	}
}

func containerWith(t *testing.T, msg diag.Message) *diag.MessagesContainer {
	t.Helper()
	return &diag.MessagesContainer{
		DataType: diag.DataTypeUserSpace,
		Messages: []diag.HdlcEncapsulatedMessage{diag.EncapsulateMessage(msg)},
	}
}

func TestProcessContainerNullCipherTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	decoder := rrcie.NewMockDecoder(ctrl)
	decoder.EXPECT().DecodeDLDCCH(gomock.Any()).Return(rrcie.SecurityModeCommand{
		SecurityConfigSMC: rrcie.SecurityConfigSMC{
			SecurityAlgorithmConfig: rrcie.SecurityAlgorithmConfig{CipheringAlgorithm: rrcie.EEA0},
		},
	}, nil)

	h := New(prometheus.NewRegistry(), decoder, "test", nullcipher.Analyzer{})
	container := containerWith(t, dlDcchLogMessage(t))

	rows := h.ProcessContainer(container, 0)

	require.Len(t, rows, 1)
	require.Len(t, rows[0].Events, 1)
	require.NotNil(t, rows[0].Events[0])
	assert.Equal(t, High, rows[0].Events[0].Severity)
	assert.Equal(t, "Cell suggested use of null cipher", rows[0].Events[0].Message)
	assert.Equal(t, High, rows[0].MaxEventType())
}

func TestProcessContainerNonDLDCCHSkipsDecode(t *testing.T) {
	ctrl := gomock.NewController(t)
	decoder := rrcie.NewMockDecoder(ctrl) // no DecodeDLDCCH expectation: must not be called

	h := New(prometheus.NewRegistry(), decoder, "test", nullcipher.Analyzer{})
	msg := diag.LogMessage{
		LogType: diag.LogTypeLteRrcOtaMessage,
		Body: diag.LteRrcOtaMessage{
			ExtHeaderVersion: 6,
			Packet:           &diag.RrcV5Packet{PduNum: 1, Len: 1, Packet: []byte{0x01}}, // BCCH-BCH, not DL-DCCH
		},
	}

	rows := h.ProcessContainer(containerWith(t, msg), 0)
	assert.Empty(t, rows)
}

func TestMetadataPublishesAnalyzerInfo(t *testing.T) {
	h := New(prometheus.NewRegistry(), rrcie.NoopDecoder{}, "v1.2.3", nullcipher.Analyzer{})
	md := h.Metadata()
	require.Len(t, md.Analyzers, 1)
	assert.Equal(t, "Null Cipher Detector", md.Analyzers[0].Name)
	assert.Equal(t, "v1.2.3", md.Runtime.ToolVersion)
}

func TestMaxEventTypeDefaultsToInformational(t *testing.T) {
	row := AnalysisRow{Events: []*Event{nil, nil}}
	assert.Equal(t, Informational, row.MaxEventType())
}
