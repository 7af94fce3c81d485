// Package sim synthesizes the downlink of a model flying near a point, for
// bench testing a tracker without a receiver.
package sim

import (
	"math"
	"time"

	"sportlink/internal/sport"
)

// Physical sensor ID used for the simulated GPS/vario.
const sensorID = 0x83

const metersPerDegLat = 111_320.0

type Target struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltMeters    int
	RadiusM      float64
	Period       time.Duration
}

// Position returns a deterministic figure-eight around the center.
//
// Altitude is a sinusoid around AltMeters with a separate period so the two
// motions do not line up.
func (s Target) Position(now time.Time) (latDeg, lonDeg float64, altM int) {
	period := s.Period
	if period <= 0 {
		period = 120 * time.Second
	}
	radiusM := s.RadiusM
	if radiusM <= 0 {
		radiusM = 500
	}
	radiusDeg := radiusM / metersPerDegLat

	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = s.CenterLatDeg + radiusDeg*y
	lonDeg = s.CenterLonDeg + (radiusDeg*x)/math.Cos(s.CenterLatDeg*math.Pi/180.0)

	vp := period / 3
	if vp < 20*time.Second {
		vp = 20 * time.Second
	}
	vphase := float64(now.UnixNano()%vp.Nanoseconds()) / float64(vp.Nanoseconds())
	altM = s.AltMeters + int(math.Round(20*math.Sin(2*math.Pi*vphase)))
	return latDeg, lonDeg, altM
}

// Frames encodes the position at now as one burst of sensor frames: both
// hemisphere markers, BP/AP pairs, and every altitude flavor so either
// altitude source has something to pick up.
func (s Target) Frames(now time.Time) []sport.RawFrame {
	lat, lon, alt := s.Position(now)
	latBP, latAP := splitDegrees(lat)
	lonBP, lonAP := splitDegrees(lon)

	ns := uint16('N')
	if lat < 0 {
		ns = 'S'
	}
	ew := uint16('E')
	if lon < 0 {
		ew = 'W'
	}

	hub := func(id byte, v uint32) sport.RawFrame {
		return sport.NewFrame(sport.Header{DataID: sensorID, Prim: sport.DataFrame, AppID: uint16(id)}, v)
	}
	alt32 := int32(alt)
	return []sport.RawFrame{
		hub(sport.GPSLatNSID, uint32(ns)),
		hub(sport.GPSLatBPID, uint32(latBP)),
		hub(sport.GPSLatAPID, latAP),
		hub(sport.GPSLongEWID, uint32(ew)),
		hub(sport.GPSLongBPID, uint32(lonBP)),
		hub(sport.GPSLongAPID, lonAP),
		hub(sport.GPSAltAPID, uint32(uint16(alt))),
		hub(sport.BaroAltAPID, uint32(uint16(alt/100))),
		sport.NewFrame(sport.Header{DataID: sensorID, Prim: sport.DataFrame, AppID: sport.AltFirstID}, uint32(alt32)),
	}
}

// splitDegrees splits |deg| into whole degrees and millionths.
func splitDegrees(deg float64) (bp uint16, ap uint32) {
	e6 := int64(math.Round(math.Abs(deg) * 1e6))
	return uint16(e6 / 1_000_000), uint32(e6 % 1_000_000)
}
