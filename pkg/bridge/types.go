// Package bridge carries command lines and fault events between a node
// and remote front ends.
package bridge

import (
	"context"

	"github.com/robotalks/marlinspike/pkg/interlock"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Processor runs a command line and returns the response lines.
type Processor interface {
	Do(ctx context.Context, line string) ([]string, error)
}

// FaultSource delivers interlock faults to registered sinks.
type FaultSource interface {
	AddSink(sink func(interlock.Fault)) (remove func())
}
