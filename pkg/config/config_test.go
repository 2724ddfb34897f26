package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
node:
  id: bot1
  tick: 20ms
console:
  port: /dev/ttyUSB0
  baud: 57600
smart:
  - slot: 0
    port: /dev/ttyACM0
    baud: 115200
mqtt:
  url: mqtt://localhost:1883/robo/
websocket:
  listen: ":8080"
sim:
  wheels:
    - drive: [5]
      encoder: 3
      pps: 120
  ranges:
    9: 25.5
startup:
  - M10 Z1 T1
  - M3 Z1 C1 P5 D6
`

func TestParse(t *testing.T) {
	conf := Default()
	require.NoError(t, conf.Parse([]byte(sampleConfig)))
	require.Equal(t, "bot1", conf.Node.ID)
	require.Equal(t, 20*time.Millisecond, conf.Node.Tick)
	require.Equal(t, ConsoleConfig{Port: "/dev/ttyUSB0", Baud: 57600}, conf.Console)
	require.Equal(t, []SmartConfig{{Slot: 0, Port: "/dev/ttyACM0", Baud: 115200}}, conf.Smart)
	require.Equal(t, "mqtt://localhost:1883/robo/", conf.MQTT.URL)
	require.Equal(t, ":8080", conf.WebSocket.Listen)
	require.Equal(t, []WheelConfig{{Drive: []int{5}, Encoder: 3, PulsesPerSecond: 120}}, conf.Sim.Wheels)
	require.Equal(t, map[int]float32{9: 25.5}, conf.Sim.Ranges)
	require.Equal(t, []string{"M10 Z1 T1", "M3 Z1 C1 P5 D6"}, conf.Startup)
	require.NoError(t, conf.Validate())

	r, err := simRange(t, conf, 9)
	require.NoError(t, err)
	require.Equal(t, float32(25.5), r)
}

func simRange(t *testing.T, conf *Config, pin int) (float32, error) {
	rf, err := conf.Platform().RangeFinder(pin)
	require.NoError(t, err)
	return rf.Range()
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	conf := Default()
	conf.Node.ID = "bot2"
	require.NoError(t, conf.Parse([]byte("mqtt:\n  url: mqtt://broker/\n")))
	require.Equal(t, "bot2", conf.Node.ID)
	require.Equal(t, DefaultTick, conf.Node.Tick)
	require.Equal(t, "mqtt://broker/", conf.MQTT.URL)
}

func TestParseError(t *testing.T) {
	require.Error(t, Default().Parse([]byte("node: [")))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marlin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))
	conf := Default()
	require.NoError(t, conf.Load(path))
	require.Equal(t, "bot1", conf.Node.ID)

	require.Error(t, Default().Load(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MARLIN_ID":        "envbot",
		"MARLIN_MQTT_URL":  "mqtt://env/",
		"MARLIN_CONSOLE":   "-",
		"MARLIN_WS_LISTEN": ":9090",
	}
	conf := Default()
	conf.ApplyEnv(func(key string) string { return env[key] })
	require.Equal(t, "envbot", conf.Node.ID)
	require.Equal(t, "mqtt://env/", conf.MQTT.URL)
	require.Equal(t, StdioConsole, conf.Console.Port)
	require.Equal(t, ":9090", conf.WebSocket.Listen)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"no id", func(c *Config) { c.Node.ID = "" }, false},
		{"no tick", func(c *Config) { c.Node.Tick = 0 }, false},
		{"smart slot out of range", func(c *Config) { c.Smart = []SmartConfig{{Slot: 10, Port: "p"}} }, false},
		{"smart slot twice", func(c *Config) {
			c.Smart = []SmartConfig{{Slot: 1, Port: "a"}, {Slot: 1, Port: "b"}}
		}, false},
		{"smart without port", func(c *Config) { c.Smart = []SmartConfig{{Slot: 1}} }, false},
		{"smart", func(c *Config) { c.Smart = []SmartConfig{{Slot: 9, Port: "a"}} }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			conf := Default()
			conf.Node.ID = "bot"
			c.modify(conf)
			if c.valid {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
}

func TestSmartDialerUnknownSlot(t *testing.T) {
	conf := Default()
	_, err := conf.SmartDialer(context.Background())(3)
	require.EqualError(t, err, "no smart controller port for slot 3")
}
