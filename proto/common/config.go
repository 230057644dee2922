package common

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultEndpoint        = "127.0.0.1:11212"
	DefaultMaxConnections  = 1024
	DefaultMaxBodyLength   = 20 * 1024 * 1024
	DefaultTCPKeepAliveSec = 1800
	DefaultTCPLingerSec    = -1
	DefaultLogLevel        = "info"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds settings shared by all stream sockets (0 = OS default)
type SocketConf struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// TCPConf holds settings only applied to tcp connections
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ServerTransportConfig bundles the socket level settings of the server
type ServerTransportConfig struct {
	SocketConf
	TCPConf
}

// DefaultServerTransportConfig returns the socket settings used when nothing is configured
func DefaultServerTransportConfig() ServerTransportConfig {
	return ServerTransportConfig{
		TCPConf: TCPConf{
			TCPNoDelay:      true,
			TCPKeepAliveSec: DefaultTCPKeepAliveSec,
			TCPLingerSec:    DefaultTCPLingerSec,
		},
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the memcached server.
type ServerConfig struct {
	// listen address (host:port for tcp, a path for unix sockets)
	Endpoint string

	// read/write deadline per I/O call, 0 disables deadlines
	TimeoutSecond int64

	// maximum number of concurrently served connections
	MaxConnections int

	// frames with a larger body are rejected and the connection is closed
	MaxBodyLength uint32

	// interval of the per-connection STATUS log line, 0 disables it
	StatsIntervalSecond int64

	// address of the /metrics http endpoint, empty disables it
	MetricsEndpoint string

	// version reported by VERSION and STAT
	Version string

	// Logging configuration
	LogLevel string

	Transport ServerTransportConfig
}

// DefaultServerConfig returns a config with all defaults applied
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:       DefaultEndpoint,
		MaxConnections: DefaultMaxConnections,
		MaxBodyLength:  DefaultMaxBodyLength,
		LogLevel:       DefaultLogLevel,
		Transport:      DefaultServerTransportConfig(),
	}
}

// Timeout returns the I/O deadline as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// StatsInterval returns the STATUS log interval as a duration
func (c *ServerConfig) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSecond) * time.Second
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint must not be empty"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max connections must be positive, got %d", c.MaxConnections))
	}
	if c.TimeoutSecond < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %d", c.TimeoutSecond))
	}
	if c.StatsIntervalSecond < 0 {
		errs = append(errs, fmt.Errorf("stats interval must not be negative, got %d", c.StatsIntervalSecond))
	}
	if c.Transport.ReadBufferSize < 0 || c.Transport.WriteBufferSize < 0 {
		errs = append(errs, errors.New("socket buffer sizes must not be negative"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Memcached Server")
	addField("Endpoint", c.Endpoint)
	addField("Version", c.Version)
	addField("Timeout", formatSeconds(c.TimeoutSecond))
	addField("Max Connections", fmt.Sprintf("%d", c.MaxConnections))
	addField("Max Body Length", fmt.Sprintf("%d bytes", c.MaxBodyLength))

	addSection("Socket")
	addField("Read Buffer", formatBuffer(c.Transport.ReadBufferSize))
	addField("Write Buffer", formatBuffer(c.Transport.WriteBufferSize))
	addField("TCP No Delay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", formatSeconds(int64(c.Transport.TCPKeepAliveSec)))
	if c.Transport.TCPLingerSec < 0 {
		addField("TCP Linger", "os default")
	} else {
		addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	}

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	addField("Stats Interval", formatSeconds(c.StatsIntervalSecond))
	if c.MetricsEndpoint == "" {
		addField("Metrics Endpoint", "disabled")
	} else {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int64
}

// Timeout returns the I/O deadline as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", formatSeconds(c.TimeoutSecond))

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatSeconds(sec int64) string {
	if sec <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%d sec", sec)
}

func formatBuffer(size int) string {
	if size <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d bytes", size)
}
