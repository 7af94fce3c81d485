// Package metrics exposes decoder health and the decoded target as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sportlink/internal/telemetry"
)

// SnapshotSource is the read side of the telemetry service.
type SnapshotSource interface {
	Snapshot() telemetry.Snapshot
}

// Collector reads one snapshot per scrape so every sample in a scrape comes
// from the same instant.
type Collector struct {
	src SnapshotSource

	bytesRead      *prometheus.Desc
	frames         *prometheus.Desc
	resyncs        *prometheus.Desc
	stale          *prometheus.Desc
	decoded        *prometheus.Desc
	checksumErrors *prometheus.Desc
	ignored        *prometheus.Desc
	fix            *prometheus.Desc
	valid          *prometheus.Desc
	latitude       *prometheus.Desc
	longitude      *prometheus.Desc
	altitude       *prometheus.Desc
	frameAge       *prometheus.Desc
}

func NewCollector(src SnapshotSource) *Collector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("sportlink_"+name, help, nil, nil)
	}
	return &Collector{
		src:            src,
		bytesRead:      d("bytes_read_total", "Raw bytes read from the telemetry source."),
		frames:         d("frames_total", "Frames assembled from the byte stream."),
		resyncs:        d("resyncs_total", "Partial frames discarded on a new start byte."),
		stale:          d("stale_frames_total", "Partial frames abandoned for exceeding the maximum frame age."),
		decoded:        d("decoded_frames_total", "Frames that passed the checksum."),
		checksumErrors: d("checksum_errors_total", "Frames dropped for a bad checksum."),
		ignored:        d("ignored_frames_total", "Valid frames with an unused prim or ID."),
		fix:            d("gps_fix", "1 when the last coordinate update implied a satellite fix."),
		valid:          d("position_valid", "1 when fix and both hemispheres are known."),
		latitude:       d("target_latitude_degrees", "Decoded target latitude."),
		longitude:      d("target_longitude_degrees", "Decoded target longitude."),
		altitude:       d("target_altitude_meters", "Decoded target altitude."),
		frameAge:       d("last_frame_age_seconds", "Seconds since the last valid frame."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.bytesRead, s.BytesRead)
	counter(c.frames, s.Assembler.Frames)
	counter(c.resyncs, s.Assembler.Resyncs)
	counter(c.stale, s.Assembler.Stale)
	counter(c.decoded, s.Decoder.Decoded)
	counter(c.checksumErrors, s.Decoder.ChecksumErrors)
	counter(c.ignored, s.Decoder.Ignored)
	gauge(c.fix, boolToFloat(s.HasFix))
	gauge(c.valid, boolToFloat(s.Valid))
	gauge(c.latitude, s.LatDeg)
	gauge(c.longitude, s.LonDeg)
	gauge(c.altitude, float64(s.AltMeters))
	if s.LastFrameUTC != "" {
		gauge(c.frameAge, s.FrameAgeSec)
	}
}

func (c *Collector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.bytesRead, c.frames, c.resyncs, c.stale, c.decoded, c.checksumErrors,
		c.ignored, c.fix, c.valid, c.latitude, c.longitude, c.altitude, c.frameAge,
	}
}

// NewRegistry returns a registry with the collector plus the standard Go and
// process collectors.
func NewRegistry(src SnapshotSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
