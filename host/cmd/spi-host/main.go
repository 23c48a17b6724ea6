// Command spi-host drives the SPI buses of a bridge firmware over a serial
// link.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/janschiefer/stm32f4xx-hal/host/mcu"
	"github.com/janschiefer/stm32f4xx-hal/host/serial"
)

var (
	rootOpts = struct {
		config  string
		device  string
		baud    int
		timeout time.Duration
		verbose bool
	}{}

	rootCmd = &cobra.Command{
		Use:           "spi-host",
		Short:         "Talk to SPI devices through a bridge firmware",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootOpts.config, "config", "c", "", "YAML file with connection settings")
	f.StringVarP(&rootOpts.device, "device", "d", "/dev/ttyACM0", "serial device")
	f.IntVarP(&rootOpts.baud, "baud", "b", serial.DefaultBaud, "baud rate (ignored by USB CDC)")
	f.DurationVarP(&rootOpts.timeout, "timeout", "t", 2*time.Second, "wait for each ack or response")
	f.BoolVarP(&rootOpts.verbose, "verbose", "v", false, "log every exchange")

	rootCmd.AddCommand(dictCmd, listCmd, transferCmd, sendCmd, readCmd, shellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// session is an open client with its dictionary loaded. The shell reuses one
// session for all of its commands.
var session *mcu.Client

// connect opens the link described by the flags and the config file, unless
// a session is already open.
func connect(cmd *cobra.Command) (*mcu.Client, error) {
	if session != nil {
		return session, nil
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}

	opts := []mcu.Option{mcu.WithTimeout(cfg.Timeout)}
	if cfg.Verbose {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, mcu.WithLogger(slog.New(h)))
	}
	c := mcu.New(opts...)
	if err := c.Connect(&cfg.Serial); err != nil {
		return nil, err
	}
	if err := c.RetrieveDictionary(); err != nil {
		c.Close()
		return nil, err
	}
	session = c
	return c, nil
}

func disconnect() {
	if session != nil {
		session.Close()
		session = nil
	}
}
