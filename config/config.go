package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Prefix namespaces every environment variable, LANT_ROOT_PATH and so on.
const Prefix = "LANT"

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// ServerConfig holds all configuration for the file server
type ServerConfig struct {
	ListenOn int    `envconfig:"LISTEN_ON"`
	RootPath string `envconfig:"ROOT_PATH"`

	// Both empty means a self-signed certificate is generated at startup.
	CertFile string `envconfig:"CERT_FILE"`
	KeyFile  string `envconfig:"KEY_FILE"`

	MaxInFlight int64  `envconfig:"MAX_IN_FLIGHT" default:"256"`
	ChunkCache  int    `envconfig:"CHUNK_CACHE" default:"8"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// ClientConfig holds all configuration for the client commands
type ClientConfig struct {
	ConnectTo   string `envconfig:"CONNECT_TO"`
	CAFile      string `envconfig:"CA_FILE"`
	DialRetries uint   `envconfig:"DIAL_RETRIES" default:"3"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadServer reads the server configuration from the environment. Flags may still override
// it, so validation is left to Validate.
func LoadServer() (*ServerConfig, error) {
	var config ServerConfig
	if err := envconfig.Process(Prefix, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	var config ClientConfig
	if err := envconfig.Process(Prefix, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Address is the UDP address the server binds, every interface on ListenOn.
func (config *ServerConfig) Address() string {
	return net.JoinHostPort("", strconv.Itoa(config.ListenOn))
}

func (config *ServerConfig) Validate() error {
	if config.ListenOn <= 0 || config.ListenOn > 65535 {
		return fmt.Errorf("LISTEN_ON must be a port between 1 and 65535, got %d", config.ListenOn)
	}
	if config.RootPath == "" {
		return fmt.Errorf("ROOT_PATH is required")
	}
	info, err := os.Stat(config.RootPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("root path is not a dir: %s", config.RootPath)
	}
	if (config.CertFile == "") != (config.KeyFile == "") {
		return fmt.Errorf("CERT_FILE and KEY_FILE must be set together")
	}
	if config.MaxInFlight < 0 {
		return fmt.Errorf("MAX_IN_FLIGHT must not be negative")
	}
	if config.ChunkCache < 0 {
		return fmt.Errorf("CHUNK_CACHE must not be negative")
	}
	return validateLogLevel(config.LogLevel)
}

func (config *ClientConfig) Validate() error {
	if config.ConnectTo == "" {
		return fmt.Errorf("CONNECT_TO is required")
	}
	if _, port, err := net.SplitHostPort(config.ConnectTo); err != nil || port == "" {
		return fmt.Errorf("CONNECT_TO must be host:port, got %q", config.ConnectTo)
	}
	if config.DialRetries == 0 {
		return fmt.Errorf("DIAL_RETRIES must be greater than 0")
	}
	return validateLogLevel(config.LogLevel)
}

func validateLogLevel(level string) error {
	if !logLevels[strings.ToLower(level)] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", level)
	}
	return nil
}
