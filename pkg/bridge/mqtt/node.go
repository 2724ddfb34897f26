package mqtt

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/bridge"
	fx "github.com/robotalks/marlinspike/pkg/framework"
)

// Status payloads published retained on id/status.
var (
	StatusOnline  = []byte("online")
	StatusOffline = []byte("offline")
)

// DefaultDiscoverTimeout is how long Discover collects status messages.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Server exposes a node on the broker.
type Server struct {
	ID    string
	Queue *Queue
	Pipe  *bridge.Pipe

	faults bridge.FaultSource
}

// NewServer creates a Server for node id. Faults from src are published
// as events when src is not nil.
func NewServer(brokerURL, id string, proc bridge.Processor, src bridge.FaultSource) (*Server, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+id+"/"+StatusTopic, StatusOffline, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("marlinspike:" + id)
	}
	s := &Server{ID: id, Queue: NewQueue(opts, topicPrefix), faults: src}
	s.Queue.OnConnect = func(q *Queue) {
		q.PubWith(id+"/"+StatusTopic, StatusOnline, 1, true)
	}
	s.Pipe = bridge.NewServer(NewPacketReadWriter(s.Queue).ForNode(id), proc)
	return s, nil
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.Add(s.Pipe)
	loop.AddRunnable(fx.NamedRun("mqtt", s))
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	glog.Infof("mqtt: serving node %s", s.ID)
	s.Queue.Connect()
	if s.faults != nil {
		remove := s.faults.AddSink(s.Pipe.SendFault)
		defer remove()
	}
	<-ctx.Done()
	s.Queue.PubWith(s.ID+"/"+StatusTopic, StatusOffline, 1, true).Wait()
	s.Queue.Close()
	return nil
}

// Dial connects to node id and returns a Conn. The Conn must be added
// to a loop to receive replies.
func Dial(brokerURL, id string) (*bridge.Conn, *Queue, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, nil, err
	}
	token := q.Connect()
	token.Wait()
	if err = token.Error(); err != nil {
		return nil, nil, err
	}
	return bridge.NewConn(NewPacketReadWriter(q).ForClient(id)), q, nil
}

// Discover lists the ids of online nodes.
func Discover(ctx context.Context, brokerURL string) ([]string, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	token := q.Connect()
	token.Wait()
	if err = token.Error(); err != nil {
		return nil, err
	}
	defer q.Close()

	idCh := make(chan string, 16)
	sub := q.Sub("+/"+StatusTopic, func(topic string, payload []byte) {
		if string(payload) == string(StatusOnline) {
			select {
			case idCh <- topic[:len(topic)-len(StatusTopic)-1]:
			case <-ctx.Done():
			}
		}
	})
	defer sub.Close()

	var ids []string
	timeout := time.After(DefaultDiscoverTimeout)
	for {
		select {
		case id := <-idCh:
			ids = append(ids, id)
		case <-timeout:
			return ids, nil
		case <-ctx.Done():
			return ids, ctx.Err()
		}
	}
}
