// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |  Band Count   |       Band values       |
|      (uint32)     |   (int64, Unix ns)    |   (uint16)    |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed packet prefix in bytes.
const HeaderSize = 4 + 8 + 2

// MaxBands is the most values a packet can carry.
const MaxBands = math.MaxUint16

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("short band packet")

// Packet is a decoded band packet.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Bands     []float32
}

// PacketSize returns the encoded size of a packet carrying n bands.
func PacketSize(n int) int {
	return HeaderSize + 4*n
}

// AppendPacket appends the encoding of one packet to dst. Values are
// narrowed to float32.
func AppendPacket(dst []byte, seq uint32, ts time.Time, bands []float64) ([]byte, error) {
	if len(bands) > MaxBands {
		return dst, fmt.Errorf("packet cannot carry %d bands (max %d)", len(bands), MaxBands)
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(bands)))
	for _, v := range bands {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst, nil
}

// DecodePacket parses one packet. Trailing bytes are an error.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != PacketSize(n) {
		return Packet{}, fmt.Errorf("%w: header announces %d bands (%d bytes), got %d bytes", ErrShortPacket, n, PacketSize(n), len(b))
	}

	p.Bands = make([]float32, n)
	payload := b[HeaderSize:]
	for i := range p.Bands {
		p.Bands[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return p, nil
}
