package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/msgs"
)

// Pipe is a bi-directional pipe for messages.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    msgs.TypedMsgHandler

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw}
}

// NewServer creates a Pipe answering CommandLine messages with proc.
func NewServer(rw PacketReadWriter, proc Processor) *Pipe {
	p := NewPipe(rw)
	p.Handler = msgs.HandleTypedMsgFunc(func(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
		cmd, ok := msg.(*msgs.CommandLine)
		if !ok {
			if typed.IsRequest() {
				return p.Reply(typed, msgs.NewCommandErr(msgs.ErrUnsupportedCommand))
			}
			return nil
		}
		glog.V(2).Infof("pipe %s: %s", typed, cmd.Line)
		lines, err := proc.Do(ctx, cmd.Line)
		if err != nil {
			return p.Reply(typed, msgs.NewCommandErr(err))
		}
		return p.Reply(typed, msgs.NewCommandReply(lines))
	})
	return p
}

// SendCommandMsg sends a message which must be a command.
func (p *Pipe) SendCommandMsg(msg fx.Message, seq uint32) error {
	typed, err := msgs.NewTyped(msg, seq)
	if err != nil {
		panic(err)
	}
	if !typed.IsCommand() {
		panic("message is not a command")
	}
	return p.SendTyped(typed)
}

// SendEventMsg sends a message which must be an event.
func (p *Pipe) SendEventMsg(msg fx.Message) error {
	typed, err := msgs.NewTyped(msg, 0)
	if err != nil {
		panic(err)
	}
	if !typed.IsEvent() {
		panic("message is not an event")
	}
	return p.SendTyped(typed)
}

// Reply answers the command cmd with msg.
func (p *Pipe) Reply(cmd *msgs.Typed, msg fx.Message) error {
	reply, err := cmd.ReplyWith(msg)
	if err != nil {
		return err
	}
	return p.SendTyped(reply)
}

// SendTyped send a Typed message.
func (p *Pipe) SendTyped(typed *msgs.Typed) error {
	pkt, err := typed.Encode()
	if err != nil {
		return err
	}
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// SendFault publishes a FaultEvent. Errors are logged, the interlock
// has already acted on the fault.
func (p *Pipe) SendFault(f interlock.Fault) {
	if err := p.SendEventMsg(msgs.NewFaultEvent(f)); err != nil {
		glog.Warningf("send fault of slot %d: %v", f.Slot, err)
	}
}

// Run implements Runnable. The ReadWriter is closed when ctx is done.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		return p.receive(ctx)
	})
}

func (p *Pipe) receive(ctx context.Context) error {
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			return err
		}
		typed, err := msgs.DecodeTyped(pkt)
		if err != nil {
			return err
		}
		msg, err := typed.Decode()
		if err != nil {
			// a request gets a CommandErr, anything else is dropped.
			glog.V(2).Infof("pipe %s: %v", typed, err)
			if typed.IsRequest() {
				if err = p.Reply(typed, msgs.NewCommandErr(err)); err != nil {
					return err
				}
			}
			continue
		}
		if h := p.Handler; h != nil {
			err = h.HandleTypedMsg(ctx, msg, typed)
		}
		if err != nil {
			return err
		}
	}
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	if adder, ok := p.ReadWriter.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := p.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(p)
}
