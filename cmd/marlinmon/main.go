package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/marlinspike/pkg/bridge/mqtt"
	"github.com/robotalks/marlinspike/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/robo/"
	nodeID  = "+"
)

func init() {
	if val := os.Getenv("MARLIN_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&nodeID, "id", nodeID, "Node ID to watch, + for all.")
}

func printPacket(topic string, payload []byte) {
	if strings.HasSuffix(topic, "/"+mqtt.StatusTopic) {
		log.Printf("%s: %s", topic, string(payload))
		return
	}
	typed, err := msgs.DecodeTyped(payload)
	if err != nil {
		log.Printf("%s: bad packet: %v", topic, err)
		return
	}
	msg, err := typed.Decode()
	if err != nil {
		log.Printf("%s: %s decode error: %v", topic, typed, err)
		return
	}
	log.Printf("%s: %s %s", topic, typed, msg.(msgs.SerializableMessage).Serializable().String())
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(nodeID+"/#", mqtt.Handler(printPacket))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
