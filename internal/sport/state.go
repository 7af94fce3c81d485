package sport

import "math"

// State is the latest telemetry recovered from the downlink.
//
// Fields are updated independently as frames arrive; a coordinate is only
// meaningful once its BP, AP and hemisphere have all been seen. The zero value
// is the startup state.
type State struct {
	Altitude int16

	LatSign int8
	LonSign int8

	LatBP uint16
	LonBP uint16
	// AP components are millionths of a degree.
	LatAP uint32
	LonAP uint32

	HasFix bool
	HasLat bool
	HasLon bool
}

// TargetLatitude returns the latitude in millionths of a degree. Values
// outside the int32 range, which only malformed frames produce, saturate.
func (s *State) TargetLatitude() int32 {
	return fixedPoint(s.LatSign, s.LatBP, s.LatAP)
}

// TargetLongitude returns the longitude in millionths of a degree.
func (s *State) TargetLongitude() int32 {
	return fixedPoint(s.LonSign, s.LonBP, s.LonAP)
}

// TargetAltitude returns the altitude in meters.
func (s *State) TargetAltitude() int16 {
	return s.Altitude
}

func fixedPoint(sign int8, bp uint16, ap uint32) int32 {
	v := int64(sign) * (int64(bp)*1_000_000 + int64(ap))
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
