// Package msgs defines the typed messages exchanged with a node over
// packet transports.
//
// Every packet is a Typed envelope: a 32-bit type ID, a sequence number
// and the protobuf encoded message. The type ID is laid out as
//
//	bit 31     kind, 0 for commands and 1 for events
//	bits 16-30 group
//	bit 15     reply, set on messages answering a command
//	bits 0-14  message within the group
//
// A reply carries the sequence of the command it answers.
package msgs

import (
	"context"
	"fmt"
	"reflect"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/msgs/pb"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

var (
	// ErrNotSerializable indicates the message is not serializable.
	ErrNotSerializable = errors.New("not serializable message")
	// ErrUnsupportedCommand indicates the command is unsupported.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrNotReply is returned when answering a command with a message
	// which is not a reply type.
	ErrNotReply = errors.New("not a reply message")
	// ErrNotCommand is returned when answering anything but a request.
	ErrNotCommand = errors.New("not a command request")
)

// UnknownTypeError reports a type ID missing from the registry.
type UnknownTypeError struct {
	TypeID uint32
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type 0x%08x", e.TypeID)
}

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

// TypedMsgHandler handles a decoded message together with its envelope.
type TypedMsgHandler interface {
	HandleTypedMsg(context.Context, fx.Message, *Typed) error
}

// HandleTypedMsgFunc is func form of TypedMsgHandler.
type HandleTypedMsgFunc func(context.Context, fx.Message, *Typed) error

// HandleTypedMsg implements TypedMsgHandler.
func (f HandleTypedMsgFunc) HandleTypedMsg(ctx context.Context, msg fx.Message, typed *Typed) error {
	return f(ctx, msg, typed)
}

var types = make(map[uint32]SerializableMessage)

// Register adds a message type, keyed by its TypeID. It panics on a
// duplicated ID so clashes show up at init.
func Register(prototype SerializableMessage) {
	id := prototype.TypeID()
	if existing, ok := types[id]; ok {
		panic(fmt.Sprintf("type 0x%08x registered by both %s and %s",
			id, typeName(existing), typeName(prototype)))
	}
	types[id] = prototype
}

// Lookup finds the registered message type.
func Lookup(typeID uint32) (SerializableMessage, bool) {
	m, ok := types[typeID]
	return m, ok
}

func typeName(m interface{}) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Typed wraps a message with type information.
type Typed struct {
	pb.Typed
}

// NewTyped encodes msg into an envelope with sequence seq.
func NewTyped(msg fx.Message, seq uint32) (*Typed, error) {
	s, ok := msg.(SerializableMessage)
	if !ok {
		return nil, ErrNotSerializable
	}
	if v := reflect.ValueOf(s); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, ErrNotSerializable
	}
	data, err := proto.Marshal(s.Serializable())
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s", typeName(s))
	}
	return &Typed{Typed: pb.Typed{TypeId: s.TypeID(), Sequence: seq, Message: data}}, nil
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed.Typed); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	return &typed, nil
}

// Encode encodes the Typed to bytes.
func (p *Typed) Encode() ([]byte, error) {
	return proto.Marshal(&p.Typed)
}

// Decode decodes the carried message.
func (p *Typed) Decode() (fx.Message, error) {
	prototype, ok := Lookup(p.TypeId)
	if !ok {
		return nil, &UnknownTypeError{TypeID: p.TypeId}
	}
	msg := prototype.NewMessage()
	if err := proto.Unmarshal(p.Message, msg.(SerializableMessage).Serializable()); err != nil {
		return nil, errors.Wrapf(err, "decode %s", typeName(prototype))
	}
	return msg, nil
}

// ReplyWith encodes msg as the answer to this command. msg must be of a
// reply type, and p a command which is not itself a reply.
func (p *Typed) ReplyWith(msg fx.Message) (*Typed, error) {
	if !p.IsRequest() {
		return nil, ErrNotCommand
	}
	reply, err := NewTyped(msg, p.Sequence)
	if err != nil {
		return nil, err
	}
	if !reply.IsReply() {
		return nil, ErrNotReply
	}
	return reply, nil
}

// Answers tells if p is the reply to cmd.
func (p *Typed) Answers(cmd *Typed) bool {
	return p.IsReply() && cmd.IsRequest() && p.Sequence == cmd.Sequence
}

// Kind gets message kind from type ID.
func (p *Typed) Kind() uint32 {
	return p.TypeId & TypeIDMaskKind
}

// Group gets the message group from type ID.
func (p *Typed) Group() uint32 {
	return p.TypeId & TypeIDMaskGroup
}

// ID gets the message number within its group, the reply bit excluded.
func (p *Typed) ID() uint32 {
	return p.TypeId & TypeIDMaskID &^ TypeIDMaskReply
}

// IsCommand determines if the message is a command or a reply to one.
func (p *Typed) IsCommand() bool {
	return p.Kind() == TypeIDKindCommand
}

// IsEvent determines if the message is an event.
func (p *Typed) IsEvent() bool {
	return p.Kind() == TypeIDKindEvent
}

// IsReply determines if the message answers a command.
func (p *Typed) IsReply() bool {
	return p.IsCommand() && p.TypeId&TypeIDMaskReply != 0
}

// IsRequest determines if the message is a command expecting a reply.
func (p *Typed) IsRequest() bool {
	return p.IsCommand() && p.TypeId&TypeIDMaskReply == 0
}

func (p *Typed) String() string {
	name := "?"
	if prototype, ok := Lookup(p.TypeId); ok {
		name = typeName(prototype)
	}
	kind := "command"
	switch {
	case p.IsEvent():
		kind = "event"
	case p.IsReply():
		kind = "reply"
	}
	return fmt.Sprintf("%s #%d %s(0x%08x)", kind, p.Sequence, name, p.TypeId)
}
