package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janschiefer/stm32f4xx-hal/host/serial"
)

// fileConfig is the layout of the --config file:
//
//	serial:
//	  device: /dev/ttyUSB0
//	  baud: 250000
//	  read_timeout: 100ms
//	timeout: 2s
//	verbose: false
type fileConfig struct {
	Serial  serial.Config `yaml:"serial"`
	Timeout time.Duration `yaml:"timeout"`
	Verbose bool          `yaml:"verbose"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfig starts from the defaults, applies the config file, then any
// flag given explicitly on the command line.
func resolveConfig(cmd *cobra.Command) (*fileConfig, error) {
	cfg := &fileConfig{
		Serial:  *serial.DefaultConfig(rootOpts.device),
		Timeout: rootOpts.timeout,
		Verbose: rootOpts.verbose,
	}
	if rootOpts.config != "" {
		file, err := loadConfig(rootOpts.config)
		if err != nil {
			return nil, err
		}
		if file.Serial.Device != "" {
			cfg.Serial.Device = file.Serial.Device
		}
		if file.Serial.Baud != 0 {
			cfg.Serial.Baud = file.Serial.Baud
		}
		if file.Serial.ReadTimeout != 0 {
			cfg.Serial.ReadTimeout = file.Serial.ReadTimeout
		}
		if file.Timeout != 0 {
			cfg.Timeout = file.Timeout
		}
		cfg.Verbose = cfg.Verbose || file.Verbose
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Serial.Device = rootOpts.device
	}
	if flags.Changed("baud") || rootOpts.config == "" {
		cfg.Serial.Baud = rootOpts.baud
	}
	if flags.Changed("timeout") {
		cfg.Timeout = rootOpts.timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = rootOpts.verbose
	}
	return cfg, nil
}
