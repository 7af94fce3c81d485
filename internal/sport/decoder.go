package sport

import (
	"fmt"
	"strings"
)

// AltitudeSource selects which telemetry value feeds State.Altitude.
type AltitudeSource uint8

const (
	AltitudeVario AltitudeSource = iota
	AltitudeGPS
)

func (s AltitudeSource) String() string {
	switch s {
	case AltitudeVario:
		return "vario"
	case AltitudeGPS:
		return "gps"
	default:
		return fmt.Sprintf("AltitudeSource(%d)", uint8(s))
	}
}

// ParseAltitudeSource accepts "vario" (alias "baro") and "gps".
func ParseAltitudeSource(s string) (AltitudeSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vario", "baro":
		return AltitudeVario, nil
	case "gps":
		return AltitudeGPS, nil
	default:
		return 0, fmt.Errorf("unknown altitude source %q", s)
	}
}

// Barometric altitude arrives in a unit 100 times coarser than the stored value.
const baroAltScale = 100

// DecoderStats counts decode outcomes.
type DecoderStats struct {
	Decoded        uint64 `json:"decoded"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	Ignored        uint64 `json:"ignored"`
	Hub            uint64 `json:"hub"`
	Altitude       uint64 `json:"altitude"`
}

// Decoder validates frames and applies them to a State.
//
// It is not safe for concurrent use; the caller owns the serialization of
// Decode and of State reads.
type Decoder struct {
	state     *State
	altSource AltitudeSource
	stats     DecoderStats
}

type DecoderOption func(*Decoder)

func WithAltitudeSource(src AltitudeSource) DecoderOption {
	return func(d *Decoder) { d.altSource = src }
}

func NewDecoder(state *State, opts ...DecoderOption) *Decoder {
	d := &Decoder{state: state}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) AltitudeSource() AltitudeSource { return d.altSource }

func (d *Decoder) Stats() DecoderStats { return d.stats }

// Checksum folds bytes 1..8 of f into the S.PORT additive checksum. A valid
// frame yields 0xFF.
func Checksum(f *RawFrame) byte {
	var crc uint16
	for i := 1; i < FrameSize; i++ {
		crc += uint16(f[i])
		crc += crc >> 8
		crc &= 0x00FF
		crc += crc >> 8
		crc &= 0x00FF
	}
	return byte(crc)
}

// Decode checks the frame and, if valid, updates the state. Frames that are
// valid but not understood are ignored without error.
func (d *Decoder) Decode(f *RawFrame) error {
	if f == nil {
		return ErrShortFrame
	}
	if Checksum(f) != 0xFF {
		d.stats.ChecksumErrors++
		return ErrInvalidChecksum
	}
	d.stats.Decoded++

	h := f.Header()
	if h.Prim != DataFrame {
		d.stats.Ignored++
		return nil
	}

	switch {
	case h.AppID == RSSIID || h.AppID == SWRID:
		// Link quality is recognized but not tracked yet.
	case h.AppID>>8 == 0:
		d.stats.Hub++
		d.decodeHub(byte(h.AppID), f.Value32())
	case h.AppID == AltFirstID:
		d.stats.Altitude++
		// Both altitude sources take the S.PORT altitude sensor.
		d.state.Altitude = int16(int32(f.Value32()))
	default:
		d.stats.Ignored++
	}
	return nil
}

// decodeHub applies one legacy Hub value. value holds payload bytes 4-7; the
// Hub protocol itself only uses the low 16 bits, which is all the non-AP
// fields look at.
func (d *Decoder) decodeHub(id byte, value uint32) {
	if id > HubLastID {
		d.stats.Ignored++
		return
	}
	v16 := uint16(value)
	st := d.state

	switch id {
	case BaroAltAPID:
		if d.altSource == AltitudeVario {
			st.Altitude = int16(int32(baroAltScale) * int32(v16))
		}
	case GPSAltAPID:
		if d.altSource == AltitudeGPS {
			st.Altitude = int16(v16)
		}
	case GPSLongBPID:
		// Nonzero degrees is taken as a satellite fix.
		st.HasFix = v16 != 0
		st.LonBP = v16
	case GPSLongAPID:
		st.LonAP = value
	case GPSLatBPID:
		st.HasFix = v16 != 0
		st.LatBP = v16
	case GPSLatAPID:
		st.LatAP = value
	case GPSLongEWID:
		if v16 == 'E' {
			st.LonSign = 1
		} else {
			st.LonSign = -1
		}
		st.HasLon = true
	case GPSLatNSID:
		if v16 == 'N' {
			st.LatSign = 1
		} else {
			st.LatSign = -1
		}
		st.HasLat = true
	}
}
