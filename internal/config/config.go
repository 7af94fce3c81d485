package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sportlink/internal/sport"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Source  SourceConfig  `yaml:"source"`
	SPort   SPortConfig   `yaml:"sport"`
	Record  RecordConfig  `yaml:"record"`
	Publish PublishConfig `yaml:"publish"`
	Web     WebConfig     `yaml:"web"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Lines kept in memory for /api/logs.
	BufferLines int `yaml:"buffer_lines"`
}

// SourceConfig selects where downlink bytes come from.
//
// Kind is one of "serial", "tcp", "replay" or "sim".
type SourceConfig struct {
	Kind   string       `yaml:"kind"`
	Device string       `yaml:"device"`
	Baud   int          `yaml:"baud"`
	Addr   string       `yaml:"addr"`
	Replay ReplayConfig `yaml:"replay"`
	Sim    SimConfig    `yaml:"sim"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltMeters    int           `yaml:"alt_m"`
	RadiusM      float64       `yaml:"radius_m"`
	Period       time.Duration `yaml:"period"`
	Interval     time.Duration `yaml:"interval"`
}

type SPortConfig struct {
	AltitudeSource string        `yaml:"altitude_source"`
	MaxFrameAge    time.Duration `yaml:"max_frame_age"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type PublishConfig struct {
	Interval time.Duration `yaml:"interval"`
	UDP      UDPConfig     `yaml:"udp"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, describeYAMLError(err)
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func describeYAMLError(err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return err
	}
	msgs := make([]string, 0, len(te.Errors))
	unknownOnly := true
	for _, e := range te.Errors {
		// Drop the "line N: " prefix.
		if strings.HasPrefix(e, "line ") {
			if i := strings.Index(e, ": "); i >= 0 {
				e = e[i+2:]
			}
		}
		if !strings.Contains(e, "not found in type") {
			unknownOnly = false
		}
		msgs = append(msgs, e)
	}
	if unknownOnly {
		return fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// AltitudeSource returns the parsed sport.altitude_source.
func (c Config) AltitudeSource() sport.AltitudeSource {
	src, err := sport.ParseAltitudeSource(c.SPort.AltitudeSource)
	if err != nil {
		return sport.AltitudeVario
	}
	return src
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error")
	}
	if cfg.Log.BufferLines <= 0 {
		cfg.Log.BufferLines = 2000
	}

	cfg.Source.Kind = strings.ToLower(strings.TrimSpace(cfg.Source.Kind))
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "serial"
	}
	switch cfg.Source.Kind {
	case "serial":
		// Device may be empty to auto-detect.
		if cfg.Source.Baud == 0 {
			cfg.Source.Baud = 57600
		}
	case "tcp":
		if strings.TrimSpace(cfg.Source.Addr) == "" {
			return fmt.Errorf("source.addr is required when source.kind is tcp")
		}
	case "replay":
		if strings.TrimSpace(cfg.Source.Replay.Path) == "" {
			return fmt.Errorf("source.replay.path is required when source.kind is replay")
		}
		if cfg.Source.Replay.Speed == 0 {
			cfg.Source.Replay.Speed = 1
		}
		if cfg.Source.Replay.Speed < 0 {
			return fmt.Errorf("source.replay.speed must be > 0")
		}
	case "sim":
		if cfg.Source.Sim.RadiusM <= 0 {
			cfg.Source.Sim.RadiusM = 500
		}
		if cfg.Source.Sim.Period <= 0 {
			cfg.Source.Sim.Period = 120 * time.Second
		}
		if cfg.Source.Sim.Interval <= 0 {
			cfg.Source.Sim.Interval = 200 * time.Millisecond
		}
		if cfg.Source.Sim.AltMeters == 0 {
			cfg.Source.Sim.AltMeters = 100
		}
	default:
		return fmt.Errorf("source.kind must be one of serial, tcp, replay, sim")
	}

	cfg.SPort.AltitudeSource = strings.ToLower(strings.TrimSpace(cfg.SPort.AltitudeSource))
	if cfg.SPort.AltitudeSource == "" {
		cfg.SPort.AltitudeSource = "vario"
	}
	if _, err := sport.ParseAltitudeSource(cfg.SPort.AltitudeSource); err != nil {
		return fmt.Errorf("sport.altitude_source must be vario or gps")
	}
	if cfg.SPort.MaxFrameAge < 0 {
		return fmt.Errorf("sport.max_frame_age must be >= 0")
	}

	if cfg.Record.Enable {
		if cfg.Source.Kind == "replay" {
			return fmt.Errorf("record cannot be used with source.kind=replay")
		}
		if strings.TrimSpace(cfg.Record.Path) == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
	}

	if cfg.Publish.Interval <= 0 {
		cfg.Publish.Interval = 1 * time.Second
	}
	if cfg.Publish.UDP.Enable && strings.TrimSpace(cfg.Publish.UDP.Dest) == "" {
		return fmt.Errorf("publish.udp.dest is required when publish.udp.enable is true")
	}
	if cfg.Publish.MQTT.Enable {
		if strings.TrimSpace(cfg.Publish.MQTT.Broker) == "" {
			return fmt.Errorf("publish.mqtt.broker is required when publish.mqtt.enable is true")
		}
		if cfg.Publish.MQTT.ClientID == "" {
			cfg.Publish.MQTT.ClientID = "sportlink"
		}
		if cfg.Publish.MQTT.Topic == "" {
			cfg.Publish.MQTT.Topic = "sportlink/telemetry"
		}
		if cfg.Publish.MQTT.QoS > 2 {
			return fmt.Errorf("publish.mqtt.qos must be 0, 1 or 2")
		}
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	return nil
}
