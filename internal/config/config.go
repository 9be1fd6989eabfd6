// Package config loads a node's runtime configuration from defaults, an
// optional file, and environment variables, following the MIDAS
// configuration surface (nodename, channel layout, buffer sizing, ...).
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting a node needs to construct its ring buffers,
// broker, publisher and beacon.
type Config struct {
	NodeName string `mapstructure:"nodename"`
	NodeType string `mapstructure:"nodetype"`
	NodeID   string `mapstructure:"nodeid"`
	NodeDesc string `mapstructure:"nodedesc"`

	IP           string `mapstructure:"ip"`
	PrimaryNode  bool   `mapstructure:"primary_node"`
	PortFrontend int    `mapstructure:"port_frontend"`
	PortBackend  int    `mapstructure:"port_backend"`
	PortPublisher int   `mapstructure:"port_publisher"`
	RunPublisher bool   `mapstructure:"run_publisher"`
	NWorkers     int    `mapstructure:"n_workers"`

	LSLStreamName        string   `mapstructure:"lsl_stream_name"`
	NChannels            int      `mapstructure:"n_channels"`
	ChannelNames         []string `mapstructure:"-"`
	ChannelNamesRaw      string   `mapstructure:"channel_names"`
	ChannelDescriptions  []string `mapstructure:"-"`
	ChannelDescRaw       string   `mapstructure:"channel_descriptions"`
	SamplingRate         float64  `mapstructure:"sampling_rate"`
	BufferSizeS          float64  `mapstructure:"buffer_size_s"`

	SecondaryData               bool     `mapstructure:"secondary_data"`
	DefaultChannel               string   `mapstructure:"default_channel"`
	NChannelsSecondary            int      `mapstructure:"n_channels_secondary"`
	BufferSizeSecondary            int      `mapstructure:"buffer_size_secondary"`
	ChannelNamesSecondary         []string `mapstructure:"-"`
	ChannelNamesSecondaryRaw      string   `mapstructure:"channel_names_secondary"`
	ChannelDescSecondary          []string `mapstructure:"-"`
	ChannelDescSecondaryRaw       string   `mapstructure:"channel_descriptions_secondary"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// BufferSize is the number of samples the primary ring holds.
func (c Config) BufferSize() int {
	n := int(c.BufferSizeS * c.SamplingRate)
	if float64(n) < c.BufferSizeS*c.SamplingRate {
		n++
	}
	return n
}

// Load reads configuration from an optional file at path, defaults, and
// MIDAS_-prefixed environment variables.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("nodename", "basenode")
	v.SetDefault("nodetype", "")
	v.SetDefault("nodeid", "00")
	v.SetDefault("nodedesc", "base node")
	v.SetDefault("ip", "auto")
	v.SetDefault("primary_node", true)
	v.SetDefault("port_frontend", 5001)
	v.SetDefault("port_backend", 5002)
	v.SetDefault("port_publisher", 0)
	v.SetDefault("run_publisher", false)
	v.SetDefault("n_workers", 5)
	v.SetDefault("n_channels", 0)
	v.SetDefault("sampling_rate", 0.0)
	v.SetDefault("buffer_size_s", 30.0)
	v.SetDefault("secondary_data", false)
	v.SetDefault("default_channel", "")
	v.SetDefault("n_channels_secondary", 0)
	v.SetDefault("buffer_size_secondary", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetEnvPrefix("MIDAS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ChannelNames = listify(v.GetString("channel_names"))
	cfg.ChannelDescriptions = listify(v.GetString("channel_descriptions"))
	cfg.ChannelNamesSecondary = listify(v.GetString("channel_names_secondary"))
	cfg.ChannelDescSecondary = listify(v.GetString("channel_descriptions_secondary"))

	if len(cfg.ChannelDescriptions) == 0 {
		cfg.ChannelDescriptions = make([]string, cfg.NChannels)
	}
	if len(cfg.ChannelDescSecondary) == 0 {
		cfg.ChannelDescSecondary = make([]string, cfg.NChannelsSecondary)
	}

	resolveIP(&cfg)

	return cfg, nil
}

// listify splits a comma-delimited configuration value into its parts,
// trimming whitespace, mirroring the MIDAS config's delimited-list fields.
func listify(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func resolveIP(cfg *Config) {
	ip := strings.ToLower(strings.TrimSpace(cfg.IP))
	switch ip {
	case "", "auto":
		cfg.IP = detectIP()
	case "localhost":
		cfg.IP = "127.0.0.1"
	default:
		cfg.IP = cfg.IP
	}
}

func detectIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// URL builds a "tcp://ip:port" style endpoint string.
func URL(ip string, port int) string {
	return "tcp://" + net.JoinHostPort(ip, strconv.Itoa(port))
}

// PublisherURL returns the publisher's endpoint, or "" if disabled.
func (c Config) PublisherURL() string {
	if !c.RunPublisher {
		return ""
	}
	return URL(c.IP, c.PortPublisher)
}

// StartupGrace is how long Start waits for workers to bind before returning.
const StartupGrace = 5 * time.Second
