// Package cli provides an interactive shell sending command lines to a
// node over serial, MQTT or websocket.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/marlinspike/pkg/bridge"
	"github.com/robotalks/marlinspike/pkg/bridge/mqtt"
	"github.com/robotalks/marlinspike/pkg/bridge/websocket"
	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/transport"
)

// CommandTimeout bounds a command line sent from the shell.
const CommandTimeout = 5 * time.Second

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var evalOnly bool

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// Target is a connected node.
type Target struct {
	Name      string
	Processor bridge.Processor
	Close     func()
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Target *Target
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	s.Shell.NotFound(func(c *ishell.Context) {
		Send(c, strings.Join(c.Args, " "))
	})
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Attach makes target the current node.
func (s *Shell) Attach(target *Target) {
	s.Detach()
	s.Target = target
	s.Shell.SetPrompt(target.Name + " > ")
}

// Detach closes the current node connection.
func (s *Shell) Detach() {
	if s.Target != nil {
		s.Target.Close()
		s.Target = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// printFault prints asynchronous fault events.
func (s *Shell) printFault(f interlock.Fault) {
	s.Shell.Println(strings.Join(f.Lines(), "\n"))
}

// OpenSerial attaches a node console on a serial port.
func (s *Shell) OpenSerial(path string, baud int) error {
	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()
	port, err := transport.OpenSerial(ctx, path, baud, true)
	if err != nil {
		return err
	}
	s.Attach(&Target{
		Name:      path,
		Processor: bridge.NewLineClient(port),
		Close:     func() { port.Close() },
	})
	return nil
}

// attachConn runs conn in its own loop and attaches it.
func (s *Shell) attachConn(name string, conn *bridge.Conn, closer func()) {
	conn.OnFault = s.printFault
	ctx, cancel := context.WithCancel(context.Background())
	go fx.NewLoop().Add(conn).Run(ctx)
	s.Attach(&Target{
		Name:      name,
		Processor: conn,
		Close: func() {
			cancel()
			if closer != nil {
				closer()
			}
		},
	})
}

// DialMQTT attaches node id through an MQTT broker.
func (s *Shell) DialMQTT(brokerURL, id string) error {
	conn, q, err := mqtt.Dial(brokerURL, id)
	if err != nil {
		return err
	}
	s.attachConn(id, conn, func() { q.Close() })
	return nil
}

// DialWebSocket attaches a node serving websocket at url.
func (s *Shell) DialWebSocket(url string) error {
	conn, err := websocket.Dial(url)
	if err != nil {
		return err
	}
	s.attachConn(url, conn, nil)
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Detach()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Send sends a command line to the current node and prints the response.
func Send(c *ishell.Context, line string) {
	s := ShellFrom(c)
	if s.Target == nil {
		c.Err(fmt.Errorf("not connected"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()
	lines, err := s.Target.Processor.Do(ctx, line)
	if err != nil {
		c.Err(err)
		return
	}
	for _, l := range lines {
		c.Println(l)
	}
}

var commands = []*ishell.Cmd{
	{
		Name: "open",
		Help: "PORT [BAUD] - open a node console on a serial port",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PORT required"))
				return
			}
			baud := transport.DefaultBaudRate
			if len(c.Args) > 1 {
				n, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid baud rate %q", c.Args[1]))
					return
				}
				baud = n
			}
			if err := ShellFrom(c).OpenSerial(c.Args[0], baud); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "mqtt",
		Help: "URL ID - connect node ID through an MQTT broker",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("URL and ID required"))
				return
			}
			if err := ShellFrom(c).DialMQTT(c.Args[0], c.Args[1]); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "ws",
		Help: "URL - connect a node at ws://host:port/ws",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			if err := ShellFrom(c).DialWebSocket(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "URL - list nodes online on an MQTT broker",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			ids, err := mqtt.Discover(context.Background(), c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if len(ids) == 0 {
				c.Println("No nodes found")
			}
			for _, id := range ids {
				c.Println(id)
			}
		},
	},
	{
		Name:    "close",
		Aliases: []string{"d"},
		Help:    "close the current node",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Detach()
		},
	},
	{
		Name: "send",
		Help: "LINE - send a command line, same as typing it directly",
		Func: func(c *ishell.Context) {
			Send(c, strings.Join(c.Args, " "))
		},
	},
}
