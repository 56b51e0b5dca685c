// Package wire implements the on-wire framing this module exposes to its
// callers: the fixed RPC message header (§4.5) and the memory-region
// exchange record used once per Memory Region during construction (§6).
//
// Framing is grounded on markrussinovich-grpc-go-shmem's frame.go
// (encode/decode over a fixed-size byte array) and on
// original_source/derecho/rpc_utils.h, which names the exact header this
// package implements.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed header that precedes every RPC message body (§4.5):
// payload_size, opcode, from, in that order.
type Header struct {
	PayloadSize uint64
	Opcode      uint64
	From        uint32
}

// HeaderSize is the byte width of a populated header: 8 (payload_size) +
// 8 (opcode) + 4 (from) = 20 bytes.
const HeaderSize = 8 + 8 + 4

// PopulateHeader writes size, opcode, and from into the first HeaderSize
// bytes of buf in native byte order (intra-cluster compatibility is
// assumed, per §4.5) and returns buf. buf must be at least HeaderSize
// bytes long.
func PopulateHeader(buf []byte, size uint64, opcode uint64, from uint32) []byte {
	if len(buf) < HeaderSize {
		panic(fmt.Sprintf("wire: buffer too small for header: have %d, need %d", len(buf), HeaderSize))
	}
	binary.NativeEndian.PutUint64(buf[0:8], size)
	binary.NativeEndian.PutUint64(buf[8:16], opcode)
	binary.NativeEndian.PutUint32(buf[16:20], from)
	return buf
}

// RetrieveHeader reads a Header from the first HeaderSize bytes of buf,
// in the same native byte order PopulateHeader wrote it in.
func RetrieveHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: buffer too small for header: have %d, need %d", len(buf), HeaderSize)
	}
	return Header{
		PayloadSize: binary.NativeEndian.Uint64(buf[0:8]),
		Opcode:      binary.NativeEndian.Uint64(buf[8:16]),
		From:        binary.NativeEndian.Uint32(buf[16:20]),
	}, nil
}

// Allocate reserves HeaderSize+n bytes and returns the full frame
// alongside a body slice positioned right after the header, so callers
// write header fields with PopulateHeader and payload bytes into body
// without a second allocation or copy.
func Allocate(n int) (frame, body []byte) {
	frame = make([]byte, HeaderSize+n)
	return frame, frame[HeaderSize:]
}
