package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/msgs/pb"
)

func TestTypeKinds(t *testing.T) {
	cases := []struct {
		name    string
		typeID  uint32
		command bool
		reply   bool
		group   uint32
		id      uint32
	}{
		{"line", CommandLineTypeID, true, false, GroupGCode, 1},
		{"reply", CommandReplyTypeID, true, true, GroupGCode, 1},
		{"err", CommandErrTypeID, true, true, GroupCommand, 1},
		{"fault", FaultEventTypeID, false, false, GroupGCode, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			typed := Typed{Typed: pb.Typed{TypeId: c.typeID}}
			require.Equal(t, c.command, typed.IsCommand())
			require.Equal(t, !c.command, typed.IsEvent())
			require.Equal(t, c.reply, typed.IsReply())
			require.Equal(t, c.command && !c.reply, typed.IsRequest())
			require.Equal(t, c.group, typed.Group())
			require.Equal(t, c.id, typed.ID())
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	fault := interlock.Fault{Slot: 2, Status: 8, Causes: []string{"8 Ultrasonic proximity"}}
	typed, err := NewTyped(NewFaultEvent(fault), 7)
	require.NoError(t, err)
	data, err := typed.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTyped(data)
	require.NoError(t, err)
	require.Equal(t, FaultEventTypeID, decoded.TypeId)
	require.EqualValues(t, 7, decoded.Sequence)
	require.Equal(t, "event #7 FaultEvent(0x80010002)", decoded.String())
	msg, err := decoded.Decode()
	require.NoError(t, err)
	require.Equal(t, fault, msg.(*FaultEvent).Fault())
}

func TestReplyWith(t *testing.T) {
	cmd, err := NewTyped(NewCommandLine("M115"), 12)
	require.NoError(t, err)

	reply, err := cmd.ReplyWith(NewCommandReply([]string{"<M115/>"}))
	require.NoError(t, err)
	require.Equal(t, CommandReplyTypeID, reply.TypeId)
	require.EqualValues(t, 12, reply.Sequence)
	require.True(t, reply.Answers(cmd))
	require.False(t, cmd.Answers(reply))

	other, err := NewTyped(NewCommandLine("M115"), 13)
	require.NoError(t, err)
	require.False(t, reply.Answers(other))

	_, err = cmd.ReplyWith(NewCommandLine("M115"))
	require.Equal(t, ErrNotReply, err)
	_, err = reply.ReplyWith(NewCommandErrFromMsg("again"))
	require.Equal(t, ErrNotCommand, err)
	event, err := NewTyped(NewFaultEvent(interlock.Fault{Slot: 1}), 0)
	require.NoError(t, err)
	_, err = event.ReplyWith(NewCommandErrFromMsg("no"))
	require.Equal(t, ErrNotCommand, err)
}

func TestDecodeUnknownType(t *testing.T) {
	typed := Typed{Typed: pb.Typed{TypeId: 0x1234}}
	_, err := typed.Decode()
	require.Equal(t, &UnknownTypeError{TypeID: 0x1234}, err)
	require.Equal(t, "unknown message type 0x00001234", err.Error())
	require.Equal(t, "command #0 ?(0x00001234)", typed.String())
}

func TestNotSerializable(t *testing.T) {
	_, err := NewTyped(nil, 0)
	require.Equal(t, ErrNotSerializable, err)
	_, err = NewTyped((*CommandLine)(nil), 0)
	require.Equal(t, ErrNotSerializable, err)
}

func TestRegisterDuplicate(t *testing.T) {
	prototype, ok := Lookup(CommandLineTypeID)
	require.True(t, ok)
	require.Panics(t, func() { Register((*CommandLine)(nil)) })
	again, ok := Lookup(CommandLineTypeID)
	require.True(t, ok)
	require.Equal(t, prototype, again)
}
