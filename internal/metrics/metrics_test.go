package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"sportlink/internal/sport"
	"sportlink/internal/telemetry"
)

type staticSource telemetry.Snapshot

func (s staticSource) Snapshot() telemetry.Snapshot { return telemetry.Snapshot(s) }

func TestCollector_ReportsSnapshot(t *testing.T) {
	src := staticSource{
		Valid:     true,
		HasFix:    true,
		LatDeg:    52.520817,
		AltMeters: 34,
		BytesRead: 120,
		Assembler: sport.AssemblerStats{Frames: 10, Resyncs: 2},
		Decoder:   sport.DecoderStats{Decoded: 9, ChecksumErrors: 1},
	}
	c := NewCollector(src)

	want := `
# HELP sportlink_checksum_errors_total Frames dropped for a bad checksum.
# TYPE sportlink_checksum_errors_total counter
sportlink_checksum_errors_total 1
# HELP sportlink_resyncs_total Partial frames discarded on a new start byte.
# TYPE sportlink_resyncs_total counter
sportlink_resyncs_total 2
# HELP sportlink_target_altitude_meters Decoded target altitude.
# TYPE sportlink_target_altitude_meters gauge
sportlink_target_altitude_meters 34
`
	err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"sportlink_checksum_errors_total", "sportlink_resyncs_total", "sportlink_target_altitude_meters")
	require.NoError(t, err)
}

func TestCollector_FrameAgeOnlyAfterFirstFrame(t *testing.T) {
	require.Equal(t, 12, testutil.CollectAndCount(NewCollector(staticSource{})))
	require.Equal(t, 13, testutil.CollectAndCount(NewCollector(staticSource{LastFrameUTC: "2026-01-01T00:00:00Z"})))
}

func TestNewRegistry_Gathers(t *testing.T) {
	reg := NewRegistry(staticSource{})
	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["sportlink_frames_total"])
	require.True(t, names["go_goroutines"])

	var _ prometheus.Collector = NewCollector(staticSource{})
}
