// Package sport decodes the FrSky S.PORT telemetry downlink.
//
// Bytes are fed one at a time into an Assembler, which recovers 9-byte
// frames from the byte-stuffed stream. Completed frames go to a Decoder,
// which checks the checksum and applies the frame to a State. Legacy FrSky
// Hub values travel inside S.PORT data frames whose application ID fits in
// one byte.
package sport

import (
	"encoding/binary"
	"errors"
)

const (
	// FrameSize is the length of a destuffed frame.
	FrameSize = 9

	startStop = 0x7E
	byteStuff = 0x7D
	stuffMask = 0x20

	// DataFrame is the only prim value that carries sensor data.
	DataFrame = 0x10
)

// Legacy Hub data IDs (1 byte).
const (
	GPSAltBPID  = 0x01
	GPSAltAPID  = 0x09
	BaroAltBPID = 0x10
	BaroAltAPID = 0x21
	GPSLongBPID = 0x12
	GPSLongAPID = 0x1A
	GPSLatBPID  = 0x13
	GPSLatAPID  = 0x1B
	GPSLongEWID = 0x22
	GPSLatNSID  = 0x23

	// HubLastID is the highest legacy ID the Hub sub-decoder looks at.
	HubLastID = 0x3F
)

// S.PORT application IDs (2 bytes).
const (
	RSSIID     = 0xF101
	ADC1ID     = 0xF102
	ADC2ID     = 0xF103
	BattID     = 0xF104
	SWRID      = 0xF105
	AltFirstID = 0x0100
	AltLastID  = 0x010F
)

var (
	ErrInvalidChecksum = errors.New("sport: invalid checksum")
	ErrShortFrame      = errors.New("sport: short frame")
)

// RawFrame is one destuffed frame as received.
type RawFrame [FrameSize]byte

// Header is the decoded view of the first four bytes of a frame.
type Header struct {
	DataID byte
	Prim   byte
	AppID  uint16
}

func (f *RawFrame) Header() Header {
	return Header{
		DataID: f[0],
		Prim:   f[1],
		AppID:  binary.LittleEndian.Uint16(f[2:4]),
	}
}

// Value16 returns payload bytes 4-5 as a little-endian uint16.
func (f *RawFrame) Value16() uint16 { return binary.LittleEndian.Uint16(f[4:6]) }

// Value32 returns payload bytes 4-7 as a little-endian uint32.
func (f *RawFrame) Value32() uint32 { return binary.LittleEndian.Uint32(f[4:8]) }

// FrameFromBytes copies b into a RawFrame. b must hold exactly FrameSize bytes.
func FrameFromBytes(b []byte) (RawFrame, error) {
	var f RawFrame
	if len(b) != FrameSize {
		return f, ErrShortFrame
	}
	copy(f[:], b)
	return f, nil
}
