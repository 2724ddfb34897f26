// Package websocket serves node packets over websocket connections.
package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/marlinspike/pkg/bridge"
)

// Path is where the handler is mounted.
const Path = "/ws"

// ShutdownTimeout bounds the graceful shutdown of the listener.
const ShutdownTimeout = time.Second

// ReadWriter implements PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Handler serves every connection with a Pipe to proc. Faults from src
// are pushed to every connection when src is not nil.
func Handler(ctx context.Context, proc bridge.Processor, src bridge.FaultSource) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		glog.Infof("websocket: %s connected", conn.Request().RemoteAddr)
		pipe := bridge.NewServer(New(conn), proc)
		if src != nil {
			remove := src.AddSink(pipe.SendFault)
			defer remove()
		}
		err := pipe.Run(ctx)
		glog.Infof("websocket: %s disconnected: %v", conn.Request().RemoteAddr, err)
	})
}

// Server listens for websocket connections.
type Server struct {
	Listen    string
	Processor bridge.Processor
	Faults    bridge.FaultSource
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler(ctx, s.Processor, s.Faults))
	srv := &http.Server{Addr: s.Listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("websocket: listening on %s", s.Listen)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return ctx.Err()
}

// Dial connects to a node served at url, e.g. ws://host:port/ws.
func Dial(url string) (*bridge.Conn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return bridge.NewConn(New(conn)), nil
}
