package bridge

import (
	"encoding/binary"
	"io"
)

// MaxPacketSize bounds the length prefix accepted by StreamReadWriter.
const MaxPacketSize = 64 * 1024

// StreamReadWriter implements PacketReadWriter over a byte stream.
// Each packet is prefixed by its length as 4 little-endian bytes.
type StreamReadWriter struct {
	io.ReadWriter
}

// NewStream creates a StreamReadWriter.
func NewStream(s io.ReadWriter) *StreamReadWriter {
	return &StreamReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *StreamReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, io.ErrShortBuffer
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *StreamReadWriter) WritePacket(pkt []byte) error {
	if err := binary.Write(p, binary.LittleEndian, uint32(len(pkt))); err != nil {
		return err
	}
	_, err := p.Write(pkt)
	return err
}

// Close closes the stream when it is closable.
func (p *StreamReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
