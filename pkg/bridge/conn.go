package bridge

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/msgs"
)

// DefaultCommandExpiration is the default expiration expecting a result.
const DefaultCommandExpiration = 5 * time.Second

// Result is the outcome of a command line sent over a Conn.
type Result struct {
	Lines []string
	Err   error
}

// Future delivers a Result once.
type Future interface {
	ResultChan() <-chan Result
}

// Conn is the client side of a Pipe: it sends command lines and
// matches replies by sequence number.
type Conn struct {
	Expiration time.Duration
	// OnFault receives FaultEvents from the node.
	OnFault func(interlock.Fault)

	pipe     Pipe
	seq      uint32
	commands list.List
	seqMap   map[uint32]*commandFuture
	lock     sync.Mutex
}

// NewConn creates a Conn over rw.
func NewConn(rw PacketReadWriter) *Conn {
	c := &Conn{
		Expiration: DefaultCommandExpiration,
		seqMap:     make(map[uint32]*commandFuture),
	}
	c.pipe.ReadWriter = rw
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.handleTypedMsg)
	return c
}

// DoCommand sends a command line.
func (c *Conn) DoCommand(line string) Future {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	f := &commandFuture{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		result:   make(chan Result, 1),
	}
	if err := c.pipe.SendCommandMsg(msgs.NewCommandLine(line), f.seq); err != nil {
		f.result <- Result{Err: err}
		return f
	}
	f.elem = c.commands.PushBack(f)
	c.seqMap[f.seq] = f
	return f
}

// Do implements Processor.
func (c *Conn) Do(ctx context.Context, line string) ([]string, error) {
	select {
	case res := <-c.DoCommand(line).ResultChan():
		return res.Lines, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the underlying pipe.
func (c *Conn) Close() error {
	return c.pipe.Close()
}

// AddToLoop implements LoopAdder.
func (c *Conn) AddToLoop(l *fx.Loop) {
	l.Add(&c.pipe)
	l.AddController(fx.PrLvIdle, fx.ControlFunc(c.purgeExpired))
}

func (c *Conn) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		if ev, ok := msg.(*msgs.FaultEvent); ok && c.OnFault != nil {
			c.OnFault(ev.Fault())
		}
		return nil
	}
	if !typed.IsReply() {
		glog.V(2).Infof("conn: unexpected %s", typed)
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	f := c.seqMap[typed.Sequence]
	if f == nil {
		return nil
	}
	c.commands.Remove(f.elem)
	delete(c.seqMap, typed.Sequence)
	var result Result
	switch m := msg.(type) {
	case *msgs.CommandReply:
		result.Lines = m.Lines
	case *msgs.CommandErr:
		result.Err = m
	}
	f.result <- result
	close(f.result)
	return nil
}

func (c *Conn) purgeExpired(cc fx.ControlContext) error {
	now := cc.Time()
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.commands.Len() > 0 {
		elem := c.commands.Front()
		f := elem.Value.(*commandFuture)
		if f.expireAt.After(now) {
			break
		}
		c.commands.Remove(elem)
		delete(c.seqMap, f.seq)
		f.result <- Result{Err: context.DeadlineExceeded}
		close(f.result)
	}
	return nil
}

type commandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan Result
}

func (c *commandFuture) ResultChan() <-chan Result {
	return c.result
}
