// Package node runs the engine as the single owner of the slot registry
// inside a framework.Loop.
package node

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/engine"
	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/registry"
)

// FaultQueueSize bounds the faults waiting for the sinks.
const FaultQueueSize = 16

// ErrNotRunning indicates the node is not added to a loop.
var ErrNotRunning = errors.New("node not running")

// Node owns the Engine and everything it drives.
type Node struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	Monitor  *interlock.Monitor
	Latch    *interlock.Latch

	loop    fx.LoopControl
	sinks   map[int]func(interlock.Fault)
	sinkID  int
	faultCh chan interlock.Fault
	lock    sync.RWMutex
}

type commandMsg struct {
	line  string
	reply chan []string
}

func (m *commandMsg) NewMessage() fx.Message { return &commandMsg{} }

// New creates a Node on the platform. dial may be nil when no smart
// controller is attached.
func New(p hal.Platform, dial registry.SmartDialer) *Node {
	latch := &interlock.Latch{}
	reg := registry.New(p, latch, dial)
	mon := interlock.NewMonitor(reg, latch)
	n := &Node{
		Engine:   engine.New(reg, mon),
		Registry: reg,
		Monitor:  mon,
		Latch:    latch,
		faultCh:  make(chan interlock.Fault, FaultQueueSize),
	}
	mon.OnFault = n.queueFault
	return n
}

// AddSink registers a receiver of interlock faults and returns the func removing it.
func (n *Node) AddSink(sink func(interlock.Fault)) (remove func()) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.sinks == nil {
		n.sinks = make(map[int]func(interlock.Fault))
	}
	n.sinkID++
	id := n.sinkID
	n.sinks[id] = sink
	return func() {
		n.lock.Lock()
		delete(n.sinks, id)
		n.lock.Unlock()
	}
}

// Boot runs lines directly, before the node is added to a loop.
func (n *Node) Boot(lines []string) {
	for _, line := range lines {
		for _, resp := range n.Engine.Process(line) {
			glog.Infof("boot %q: %s", line, resp)
		}
	}
}

// AddToLoop implements framework.LoopAdder.
func (n *Node) AddToLoop(loop *fx.Loop) {
	n.lock.Lock()
	n.loop = loop
	n.lock.Unlock()
	loop.AddController(fx.PrLvControl, fx.ControlFunc(n.processCommands))
	loop.AddController(fx.PrLvSafety, fx.ControlFunc(n.sweep))
	loop.AddRunnable(fx.NamedRun("faults", fx.RunFunc(n.dispatchFaults)))
}

// Do runs a command line on the loop and waits for the response.
func (n *Node) Do(ctx context.Context, line string) ([]string, error) {
	n.lock.RLock()
	loop := n.loop
	n.lock.RUnlock()
	if loop == nil {
		return nil, ErrNotRunning
	}
	msg := &commandMsg{line: line, reply: make(chan []string, 1)}
	loop.PostMessage(msg)
	loop.TriggerNext()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-msg.reply:
		return resp, nil
	}
}

// Close releases every driver.
func (n *Node) Close() error {
	return n.Registry.Close()
}

func (n *Node) processCommands(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if msg, ok := mc.CurrentMessage().(*commandMsg); ok {
			mc.MessageTaken()
			msg.reply <- n.Engine.Process(msg.line)
		}
	}))
	return nil
}

func (n *Node) sweep(cc fx.ControlContext) error {
	n.Monitor.ManageInactivity()
	return nil
}

func (n *Node) queueFault(f interlock.Fault) {
	select {
	case n.faultCh <- f:
	default:
		glog.Warningf("fault queue full, slot %d fault %d dropped", f.Slot, f.Status)
	}
}

func (n *Node) dispatchFaults(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-n.faultCh:
			n.lock.RLock()
			sinks := make([]func(interlock.Fault), 0, len(n.sinks))
			for _, sink := range n.sinks {
				sinks = append(sinks, sink)
			}
			n.lock.RUnlock()
			for _, sink := range sinks {
				sink(f)
			}
		}
	}
}
