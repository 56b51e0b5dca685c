package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MRDescriptor is the 16-byte, big-endian record exchanged once per
// Memory Region over a TCP side-channel during construction (§6):
// the remote key and the remote virtual address of the peer's receive
// buffer.
type MRDescriptor struct {
	Key   uint64
	VAddr uint64
}

// MRDescriptorSize is the encoded size of an MRDescriptor: two uint64s.
const MRDescriptorSize = 16

func (d MRDescriptor) encode() [MRDescriptorSize]byte {
	var b [MRDescriptorSize]byte
	binary.BigEndian.PutUint64(b[0:8], d.Key)
	binary.BigEndian.PutUint64(b[8:16], d.VAddr)
	return b
}

func decodeMRDescriptor(b []byte) (MRDescriptor, error) {
	if len(b) < MRDescriptorSize {
		return MRDescriptor{}, fmt.Errorf("wire: short mr descriptor: have %d, need %d", len(b), MRDescriptorSize)
	}
	return MRDescriptor{
		Key:   binary.BigEndian.Uint64(b[0:8]),
		VAddr: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// ExchangeMemoryRegion performs one send and one receive of a 16-byte
// MRDescriptor over conn (§4.2 step 4: "the exchange is symmetric: one
// send and one receive of the same record"). It sends local while
// reading the peer's descriptor, so the exchange also completes over
// unbuffered connections such as net.Pipe; callers on both ends of conn
// must call this symmetrically, or the exchange deadlocks.
func ExchangeMemoryRegion(conn net.Conn, local MRDescriptor) (MRDescriptor, error) {
	out := local.encode()
	sent := make(chan error, 1)
	go func() {
		_, err := conn.Write(out[:])
		sent <- err
	}()

	var in [MRDescriptorSize]byte
	if _, err := readFull(conn, in[:]); err != nil {
		return MRDescriptor{}, fmt.Errorf("wire: receiving mr descriptor: %w", err)
	}
	if err := <-sent; err != nil {
		return MRDescriptor{}, fmt.Errorf("wire: sending mr descriptor: %w", err)
	}
	return decodeMRDescriptor(in[:])
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
