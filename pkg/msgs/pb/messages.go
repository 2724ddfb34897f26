// Package pb holds the protobuf wire forms of the node messages.
package pb

import "github.com/golang/protobuf/proto"

// Typed is the envelope of every packet.
type Typed struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Typed) Reset()         { *m = Typed{} }
func (m *Typed) String() string { return proto.CompactTextString(m) }
func (*Typed) ProtoMessage()    {}

// CommandLine carries one G/M command line.
type CommandLine struct {
	Line string `protobuf:"bytes,1,opt,name=line,proto3" json:"line,omitempty"`
}

func (m *CommandLine) Reset()         { *m = CommandLine{} }
func (m *CommandLine) String() string { return proto.CompactTextString(m) }
func (*CommandLine) ProtoMessage()    {}

// CommandReply carries the response lines of a command line.
type CommandReply struct {
	Lines []string `protobuf:"bytes,1,rep,name=lines,proto3" json:"lines,omitempty"`
}

func (m *CommandReply) Reset()         { *m = CommandReply{} }
func (m *CommandReply) String() string { return proto.CompactTextString(m) }
func (*CommandReply) ProtoMessage()    {}

// CommandErr reports a command that could not be run at all.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *CommandErr) Reset()         { *m = CommandErr{} }
func (m *CommandErr) String() string { return proto.CompactTextString(m) }
func (*CommandErr) ProtoMessage()    {}

// FaultEvent is published when the interlock observes a new motor fault.
type FaultEvent struct {
	Slot   uint32   `protobuf:"varint,1,opt,name=slot,proto3" json:"slot,omitempty"`
	Status uint32   `protobuf:"varint,2,opt,name=status,proto3" json:"status,omitempty"`
	Causes []string `protobuf:"bytes,3,rep,name=causes,proto3" json:"causes,omitempty"`
}

func (m *FaultEvent) Reset()         { *m = FaultEvent{} }
func (m *FaultEvent) String() string { return proto.CompactTextString(m) }
func (*FaultEvent) ProtoMessage()    {}
