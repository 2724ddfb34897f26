package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/bridge"
	"github.com/robotalks/marlinspike/pkg/bridge/mqtt"
	"github.com/robotalks/marlinspike/pkg/bridge/websocket"
	"github.com/robotalks/marlinspike/pkg/config"
	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal/sim"
	"github.com/robotalks/marlinspike/pkg/node"
	"github.com/robotalks/marlinspike/pkg/transport"
)

func init() {
	config.SetupFlags()
}

func serialConsole(conf *config.Config, n *node.Node) fx.Runnable {
	return fx.RunFunc(func(ctx context.Context) error {
		port := transport.NewPort(conf.Console.Port, transport.Serial(conf.Console.Port, conf.Console.Baud))
		if err := port.Connect(ctx, true); err != nil {
			return err
		}
		console := bridge.NewConsole(port, port, n)
		remove := n.AddSink(console.SendFault)
		defer remove()
		return fx.RunWithContextCloser(ctx, port, func() error {
			return console.Run(ctx)
		})
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := config.FromFlags()
	if err != nil {
		log.Fatalln(err)
	}

	runner := fx.NewRunner().HandleSignals()
	platform := conf.Platform()
	n := node.New(platform, conf.SmartDialer(runner.Context))
	defer n.Close()
	n.Boot(conf.Startup)

	loop := fx.NewLoop()
	loop.Interval = conf.Node.Tick
	loop.Add(n, &sim.Simulator{Platform: platform})

	if conf.MQTT.URL != "" {
		srv, err := mqtt.NewServer(conf.MQTT.URL, conf.Node.ID, n, n)
		if err != nil {
			log.Fatalln(err)
		}
		loop.Add(srv)
	}
	if conf.WebSocket.Listen != "" {
		loop.AddRunnable(fx.NamedRun("websocket", &websocket.Server{
			Listen:    conf.WebSocket.Listen,
			Processor: n,
			Faults:    n,
		}))
	}
	switch conf.Console.Port {
	case "":
	case config.StdioConsole:
		console := bridge.NewConsole(os.Stdin, os.Stdout, n)
		n.AddSink(console.SendFault)
		loop.AddRunnable(fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, os.Stdin, func() error {
				return console.Run(ctx)
			})
		})))
	default:
		loop.AddRunnable(fx.NamedRun("console", serialConsole(conf, n)))
	}

	glog.Infof("node %s started", conf.Node.ID)
	if err := runner.Go(fx.NamedRun("loop", loop)).Wait(); err != nil {
		glog.Errorf("node %s stopped: %v", conf.Node.ID, err)
	}
}
