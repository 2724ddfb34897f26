// Package config loads the node configuration from a YAML file,
// environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/marlinspike/pkg/hal/sim"
	"github.com/robotalks/marlinspike/pkg/registry"
	"github.com/robotalks/marlinspike/pkg/smartctl"
	"github.com/robotalks/marlinspike/pkg/transport"
)

// Config is the node configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Console   ConsoleConfig   `yaml:"console"`
	Smart     []SmartConfig   `yaml:"smart"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Sim       SimConfig       `yaml:"sim"`
	// Startup lines run before any front end is served.
	Startup []string `yaml:"startup"`
}

// NodeConfig identifies the node.
type NodeConfig struct {
	ID string `yaml:"id"`
	// Tick is the period of the interlock sweep.
	Tick time.Duration `yaml:"tick"`
}

// ConsoleConfig selects the line console. Port "-" is stdio.
type ConsoleConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// SmartConfig attaches a smart controller serial port to a slot.
type SmartConfig struct {
	Slot int    `yaml:"slot"`
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MQTTConfig enables the MQTT bridge when URL is set,
// e.g. mqtt://host:1883/robo/.
type MQTTConfig struct {
	URL string `yaml:"url"`
}

// WebSocketConfig enables the websocket bridge when Listen is set.
type WebSocketConfig struct {
	Listen string `yaml:"listen"`
}

// SimConfig describes the simulated platform.
type SimConfig struct {
	Wheels []WheelConfig `yaml:"wheels"`
	// Ranges are fixed distances (cm) keyed by range finder pin.
	Ranges map[int]float32 `yaml:"ranges"`
}

// WheelConfig describes a simulated wheel.
type WheelConfig struct {
	Drive           []int   `yaml:"drive"`
	Encoder         int     `yaml:"encoder"`
	PulsesPerSecond float64 `yaml:"pps"`
}

// StdioConsole is the console port value selecting stdin/stdout.
const StdioConsole = "-"

// DefaultTick is the default interlock sweep period.
const DefaultTick = 50 * time.Millisecond

var (
	defaultConfig = Config{
		Node:    NodeConfig{Tick: DefaultTick},
		Console: ConsoleConfig{Baud: transport.DefaultBaudRate},
	}

	configFile string
	flagged    Config
)

func init() {
	defaultConfig.Node.ID = MachineID()
	defaultConfig.ApplyEnv(os.Getenv)
}

// MachineID identifies this host, falling back to the hostname.
func MachineID() string {
	if id, err := machineid.ProtectedID("marlinspike"); err == nil {
		return id[:12]
	}
	host, err := os.Hostname()
	if err != nil {
		return "marlinspike"
	}
	return host
}

// ApplyEnv overrides settings from MARLIN_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if val := getenv("MARLIN_ID"); val != "" {
		c.Node.ID = val
	}
	if val := getenv("MARLIN_MQTT_URL"); val != "" {
		c.MQTT.URL = val
	}
	if val := getenv("MARLIN_CONSOLE"); val != "" {
		c.Console.Port = val
	}
	if val := getenv("MARLIN_WS_LISTEN"); val != "" {
		c.WebSocket.Listen = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flagged = defaultConfig
	flag.StringVar(&configFile, "config", configFile, "Config file in YAML")
	flag.StringVar(&flagged.Node.ID, "id", flagged.Node.ID, "Node ID")
	flag.DurationVar(&flagged.Node.Tick, "tick", flagged.Node.Tick, "Interlock sweep period")
	flag.StringVar(&flagged.MQTT.URL, "mqtt", flagged.MQTT.URL, "MQTT broker URL")
	flag.StringVar(&flagged.Console.Port, "console", flagged.Console.Port, "Console serial port, - for stdio")
	flag.IntVar(&flagged.Console.Baud, "baud", flagged.Console.Baud, "Console baud rate")
	flag.StringVar(&flagged.WebSocket.Listen, "ws", flagged.WebSocket.Listen, "Websocket listen address")
}

// Default gets default config.
func Default() *Config {
	conf := defaultConfig
	return &conf
}

// Parse decodes YAML over the current settings.
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "parse config")
	}
	return nil
}

// Load reads a YAML file over the current settings.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	return errors.Wrap(c.Parse(data), path)
}

// FromFlags builds the config from defaults, the -config file and the
// flags explicitly set on the command line. Call after flag.Parse.
func FromFlags() (*Config, error) {
	conf := Default()
	if configFile != "" {
		if err := conf.Load(configFile); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			conf.Node.ID = flagged.Node.ID
		case "tick":
			conf.Node.Tick = flagged.Node.Tick
		case "mqtt":
			conf.MQTT.URL = flagged.MQTT.URL
		case "console":
			conf.Console.Port = flagged.Console.Port
		case "baud":
			conf.Console.Baud = flagged.Console.Baud
		case "ws":
			conf.WebSocket.Listen = flagged.WebSocket.Listen
		}
	})
	return conf, conf.Validate()
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return errors.New("node id required")
	}
	if c.Node.Tick <= 0 {
		return errors.Errorf("invalid tick %v", c.Node.Tick)
	}
	seen := make(map[int]bool)
	for _, sc := range c.Smart {
		if sc.Slot < 0 || sc.Slot >= registry.Slots {
			return errors.Errorf("smart controller slot %d out of range", sc.Slot)
		}
		if seen[sc.Slot] {
			return errors.Errorf("smart controller slot %d configured twice", sc.Slot)
		}
		if sc.Port == "" {
			return errors.Errorf("smart controller slot %d: port required", sc.Slot)
		}
		seen[sc.Slot] = true
	}
	return nil
}

// Platform builds the simulated platform.
func (c *Config) Platform() *sim.Platform {
	p := sim.NewPlatform()
	for _, wc := range c.Sim.Wheels {
		p.AddWheel(&sim.Wheel{
			DrivePins:       wc.Drive,
			EncoderPin:      wc.Encoder,
			PulsesPerSecond: wc.PulsesPerSecond,
		})
	}
	for pin, cm := range c.Sim.Ranges {
		p.SetRange(pin, cm)
	}
	return p
}

// SmartDialer opens the serial port configured for a slot when a smart
// controller is allocated there.
func (c *Config) SmartDialer(ctx context.Context) registry.SmartDialer {
	ports := make(map[int]SmartConfig)
	for _, sc := range c.Smart {
		ports[sc.Slot] = sc
	}
	return func(slot int) (*smartctl.Client, error) {
		sc, ok := ports[slot]
		if !ok {
			return nil, errors.Errorf("no smart controller port for slot %d", slot)
		}
		port, err := transport.OpenSerial(ctx, sc.Port, sc.Baud, true)
		if err != nil {
			return nil, err
		}
		return smartctl.NewClient(port), nil
	}
}
