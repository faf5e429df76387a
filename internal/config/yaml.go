// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	applog "barviz/internal/log"

	"gopkg.in/yaml.v3"
)

var logger = applog.For("Config")

// DefaultPath is searched when LoadConfig is given no path.
const DefaultPath = "config.yaml"

// LoadConfig loads configuration from the YAML file at path. An empty path
// falls back to DefaultPath when it exists and to the built-in defaults
// otherwise. Environment overrides are applied after the file, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	logger.Debugf("Loaded %s", path)
	cfg.fillSelectors()

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies the ENV_* variables. Values that do not parse
// are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			logger.Infof("Overriding debug from env: %v", b)
		} else {
			logger.Warnf("Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("Overriding log_level from env: %s", val)
	}
	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
			logger.Infof("Overriding audio.sample_rate from env: %g", f)
		} else {
			logger.Warnf("Ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			logger.Infof("Overriding transport.udp_enabled from env: %v", b)
		} else {
			logger.Warnf("Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
			logger.Infof("Overriding transport.udp_send_interval from env: %s", d)
		} else {
			logger.Warnf("Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.WSEnabled = b
			logger.Infof("Overriding transport.ws_enabled from env: %v", b)
		} else {
			logger.Warnf("Ignoring ENV_WS_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WSAddress = val
		logger.Infof("Overriding transport.ws_address from env: %s", val)
	}
}
