package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run commands interactively over one connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := connect(cmd); err != nil {
			return err
		}
		defer disconnect()

		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(out, "> ")
		for in.Scan() {
			words, err := shlex.Split(in.Text())
			switch {
			case err != nil:
				fmt.Fprintln(out, "error:", err)
			case len(words) == 0:
			case words[0] == "quit" || words[0] == "exit":
				return nil
			case words[0] == "shell":
				fmt.Fprintln(out, "error: already in the shell")
			default:
				if err := runLine(words); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
			}
			fmt.Fprint(out, "> ")
		}
		return in.Err()
	},
}

// runLine executes one shell line as if it were a command line.
func runLine(words []string) error {
	sub, args, err := parseLine(words)
	if err != nil {
		return err
	}
	return sub.RunE(sub, args)
}

// parseLine finds the subcommand for words and parses its flags. Flags left
// over from an earlier line are reset to their defaults first.
func parseLine(words []string) (*cobra.Command, []string, error) {
	sub, rest, err := rootCmd.Find(words)
	if err != nil {
		return nil, nil, err
	}
	if sub == rootCmd {
		return nil, nil, fmt.Errorf("unknown command %q", strings.Join(words, " "))
	}
	var resetErr error
	sub.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil && resetErr == nil {
			resetErr = err
		}
		f.Changed = false
	})
	if resetErr != nil {
		return nil, nil, resetErr
	}
	if err := sub.ParseFlags(rest); err != nil {
		return nil, nil, err
	}
	args := sub.Flags().Args()
	if err := sub.ValidateArgs(args); err != nil {
		return nil, nil, err
	}
	return sub, args, nil
}
