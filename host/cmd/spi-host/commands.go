package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/janschiefer/stm32f4xx-hal/host/mcu"
)

var (
	dictRaw bool

	dictCmd = &cobra.Command{
		Use:   "dict",
		Short: "Print the firmware dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			if dictRaw {
				_, err := cmd.OutOrStdout().Write(append(c.RawDictionary(), '\n'))
				return err
			}
			printDictionary(cmd.OutOrStdout(), c.Dictionary())
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the SPI buses of the firmware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			buses, err := c.ListBuses()
			if err != nil {
				return err
			}
			for _, b := range buses {
				wiring := "half-duplex"
				if b.FullDuplex {
					wiring = "full-duplex"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", b.Index, b.Name, wiring)
			}
			return nil
		},
	}

	transferCmd = &cobra.Command{
		Use:   "transfer <bus> <hex>...",
		Short: "Exchange bytes on a full-duplex bus",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, bus, data, err := busAndData(cmd, args)
			if err != nil {
				return err
			}
			rx, err := c.Transfer(bus, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatHex(rx))
			return nil
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send <bus> <hex>...",
		Short: "Write bytes, discarding anything received",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, bus, data, err := busAndData(cmd, args)
			if err != nil {
				return err
			}
			return c.Send(bus, data)
		},
	}

	readCmd = &cobra.Command{
		Use:   "read <bus> <count>",
		Short: "Read bytes from a bus",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid count %q", args[1])
			}
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			bus, err := c.BusIndex(args[0])
			if err != nil {
				return err
			}
			rx, err := c.Read(bus, n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatHex(rx))
			return nil
		},
	}
)

func init() {
	dictCmd.Flags().BoolVar(&dictRaw, "raw", false, "print the JSON text")
}

func busAndData(cmd *cobra.Command, args []string) (*mcu.Client, uint8, []byte, error) {
	data, err := parseHex(args[1:])
	if err != nil {
		return nil, 0, nil, err
	}
	c, err := connect(cmd)
	if err != nil {
		return nil, 0, nil, err
	}
	bus, err := c.BusIndex(args[0])
	if err != nil {
		return nil, 0, nil, err
	}
	return c, bus, data, nil
}

// parseHex accepts bytes as separate arguments ("9f 00"), run together
// ("9f00") or with a 0x prefix ("0x9f").
func parseHex(args []string) ([]byte, error) {
	var out []byte
	for _, a := range args {
		s := strings.TrimPrefix(strings.ToLower(a), "0x")
		s = strings.ReplaceAll(s, ":", "")
		if len(s)%2 == 1 {
			s = "0" + s
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", a)
		}
		out = append(out, b...)
	}
	return out, nil
}

func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

func printDictionary(w io.Writer, d *mcu.Dictionary) {
	fmt.Fprintf(w, "version: %s (%s)\n", d.Version, d.BuildVersions)
	keys := maps.Keys(d.Config)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}
	printIDs(w, "commands", d.Commands)
	printIDs(w, "responses", d.Responses)
}

func printIDs(w io.Writer, title string, m map[string]int) {
	sigs := maps.Keys(m)
	slices.SortFunc(sigs, func(a, b string) int { return m[a] - m[b] })
	fmt.Fprintf(w, "%s:\n", title)
	for _, s := range sigs {
		fmt.Fprintf(w, "  [%d] %s\n", m[s], s)
	}
}
