package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeValidate(t *testing.T) {
	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{"valid benchmarker", Envelope{SessionID: "abc", ReportType: TypeBenchmarker}, false},
		{"valid container-stats", Envelope{SessionID: "abc", ReportType: TypeContainerStats}, false},
		{"valid scraper", Envelope{SessionID: "abc", ReportType: TypeScraper}, false},
		{"missing session id", Envelope{ReportType: TypeBenchmarker}, true},
		{"bad report type", Envelope{SessionID: "abc", ReportType: "bogus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvelopeMarshalRoundTrip(t *testing.T) {
	env := Envelope{
		SessionID:  "deadbeef",
		ReportType: TypeBenchmarker,
		Metadata:   map[string]any{"k": "v"},
		Result:     map[string]any{"sample_ms": []int64{0, 100}},
	}
	body, err := env.Marshal()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, env.SessionID, parsed.SessionID)
	assert.Equal(t, env.ReportType, parsed.ReportType)
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"report_type":"benchmarker"}`))
	assert.Error(t, err, "missing session_id should be rejected")
}
