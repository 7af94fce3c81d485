package sport

import "encoding/binary"

// NewFrame builds a checksummed frame. The trailer byte is chosen so that
// Checksum of the result is 0xFF.
func NewFrame(h Header, value uint32) RawFrame {
	var f RawFrame
	f[0] = h.DataID
	f[1] = h.Prim
	binary.LittleEndian.PutUint16(f[2:4], h.AppID)
	binary.LittleEndian.PutUint32(f[4:8], value)

	var crc uint16
	for i := 1; i < FrameSize-1; i++ {
		crc += uint16(f[i])
		crc += crc >> 8
		crc &= 0x00FF
		crc += crc >> 8
		crc &= 0x00FF
	}
	f[FrameSize-1] = 0xFF - byte(crc)
	return f
}

// HubFrame wraps a legacy Hub value in an S.PORT data frame.
func HubFrame(dataID byte, hubID byte, value uint16) RawFrame {
	return NewFrame(Header{DataID: dataID, Prim: DataFrame, AppID: uint16(hubID)}, uint32(value))
}

// Stuff encodes f for the wire: a leading delimiter followed by the frame
// with delimiter and escape bytes escaped.
func Stuff(f RawFrame) []byte {
	return AppendStuffed(make([]byte, 0, 2*FrameSize+1), f)
}

// AppendStuffed appends the wire encoding of f to dst.
func AppendStuffed(dst []byte, f RawFrame) []byte {
	dst = append(dst, startStop)
	for _, b := range f {
		if b == startStop || b == byteStuff {
			dst = append(dst, byteStuff, b^stuffMask)
			continue
		}
		dst = append(dst, b)
	}
	return dst
}
