package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/msgs/pb"
)

// CommandErr is the generic message representing command error.
type CommandErr struct {
	pb.CommandErr
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return NewCommandErrFromMsg(err.Error())
}

// NewCommandErrFromMsg creates a CommandErr.
func NewCommandErrFromMsg(message string) *CommandErr {
	return &CommandErr{CommandErr: pb.CommandErr{Message: message}}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() fx.Message { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements SerializableMessage.
func (m *CommandErr) Serializable() proto.Message { return &m.CommandErr }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// CommandLine asks the node to run one command line.
type CommandLine struct {
	pb.CommandLine
}

// NewCommandLine creates a CommandLine.
func NewCommandLine(line string) *CommandLine {
	return &CommandLine{CommandLine: pb.CommandLine{Line: line}}
}

// NewMessage implements Message.
func (m *CommandLine) NewMessage() fx.Message { return &CommandLine{} }

// TypeID implements SerializableMessage.
func (m *CommandLine) TypeID() uint32 { return CommandLineTypeID }

// Serializable implements SerializableMessage.
func (m *CommandLine) Serializable() proto.Message { return &m.CommandLine }

// CommandReply holds the framed response lines.
type CommandReply struct {
	pb.CommandReply
}

// NewCommandReply creates a CommandReply.
func NewCommandReply(lines []string) *CommandReply {
	return &CommandReply{CommandReply: pb.CommandReply{Lines: lines}}
}

// NewMessage implements Message.
func (m *CommandReply) NewMessage() fx.Message { return &CommandReply{} }

// TypeID implements SerializableMessage.
func (m *CommandReply) TypeID() uint32 { return CommandReplyTypeID }

// Serializable implements SerializableMessage.
func (m *CommandReply) Serializable() proto.Message { return &m.CommandReply }

// FaultEvent announces a motor fault.
type FaultEvent struct {
	pb.FaultEvent
}

// NewFaultEvent creates a FaultEvent.
func NewFaultEvent(f interlock.Fault) *FaultEvent {
	return &FaultEvent{FaultEvent: pb.FaultEvent{
		Slot:   uint32(f.Slot),
		Status: uint32(f.Status),
		Causes: f.Causes,
	}}
}

// NewMessage implements Message.
func (m *FaultEvent) NewMessage() fx.Message { return &FaultEvent{} }

// TypeID implements SerializableMessage.
func (m *FaultEvent) TypeID() uint32 { return FaultEventTypeID }

// Serializable implements SerializableMessage.
func (m *FaultEvent) Serializable() proto.Message { return &m.FaultEvent }

// Fault converts back to the interlock form.
func (m *FaultEvent) Fault() interlock.Fault {
	return interlock.Fault{Slot: int(m.Slot), Status: uint8(m.Status), Causes: m.Causes}
}

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupGCode   uint32 = 0x00010000
)

// TypeIDs
const (
	CommandErrTypeID   uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	CommandLineTypeID  uint32 = GroupGCode | 0x0001
	CommandReplyTypeID uint32 = CommandLineTypeID | TypeIDMaskReply
	FaultEventTypeID   uint32 = TypeIDKindEvent | GroupGCode | 0x0002
)

func init() {
	Register((*CommandErr)(nil))
	Register((*CommandLine)(nil))
	Register((*CommandReply)(nil))
	Register((*FaultEvent)(nil))
}
