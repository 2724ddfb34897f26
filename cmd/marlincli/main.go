package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/marlinspike/pkg/cli"
)

var (
	mqttURL = os.Getenv("MARLIN_MQTT_URL")
	nodeID  = os.Getenv("MARLIN_ID")
	wsURL   string
	port    string
	baud    int
)

func init() {
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL")
	flag.StringVar(&nodeID, "id", nodeID, "Node ID to connect through MQTT")
	flag.StringVar(&wsURL, "ws", wsURL, "Node websocket URL, e.g. ws://host:8080/ws")
	flag.StringVar(&port, "port", port, "Serial port of a node console")
	flag.IntVar(&baud, "baud", 115200, "Serial baud rate")
}

func main() {
	flag.Parse()
	s := cli.New()
	var err error
	switch {
	case port != "":
		err = s.OpenSerial(port, baud)
	case wsURL != "":
		err = s.DialWebSocket(wsURL)
	case mqttURL != "" && nodeID != "":
		err = s.DialMQTT(mqttURL, nodeID)
	}
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
