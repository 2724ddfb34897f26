package mqtt

import (
	"context"
	"io"
)

// Topic suffixes under a node id.
const (
	CommandTopic = "cmd"
	MessageTopic = "msg"
	StatusTopic  = "status"
)

// ReadWriter implements bridge.PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	done     chan struct{}
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, 16), done: make(chan struct{})}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForNode sets topics used by the node itself:
// SubTopic = id/cmd
// PubTopic = id/msg
func (p *ReadWriter) ForNode(id string) *ReadWriter {
	return p.WithTopics(id+"/"+CommandTopic, id+"/"+MessageTopic)
}

// ForClient sets topics used by a client talking to node id:
// SubTopic = id/msg
// PubTopic = id/cmd
func (p *ReadWriter) ForClient(id string) *ReadWriter {
	return p.WithTopics(id+"/"+MessageTopic, id+"/"+CommandTopic)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	defer sub.Close()
	defer close(p.done)
	<-ctx.Done()
	return ctx.Err()
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}
