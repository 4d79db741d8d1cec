// Package main is the entry point for mouldcli, a command-line client
// for the mould interaction protocol.
package main

import (
	"fmt"
	"log/slog"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/nugget/mould/internal/buildinfo"
	"github.com/nugget/mould/internal/config"
)

// globalOpts holds flags shared by every subcommand.
type globalOpts struct {
	ConfigPath string `long:"config" short:"c" description:"path to config file" value-name:"PATH"`
}

func main() {
	opts := &globalOpts{}
	parser := flags.NewParser(opts, flags.Default)
	parser.ShortDescription = "mouldcli drives one mould interaction against a server"

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if _, err := parser.AddCommand("call", "Run one interaction and print the collected items", "", &callCmd{global: opts, logger: logger}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("version", "Show version", "", &versionCmd{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// versionCmd implements the "version" subcommand.
type versionCmd struct{}

func (c *versionCmd) Execute(_ []string) error {
	fmt.Println(buildinfo.String())
	for k, v := range buildinfo.Info() {
		fmt.Printf("  %-12s %s\n", k+":", v)
	}
	return nil
}

// loadConfig resolves and loads configuration from the given path (or
// the default search order when path is empty), falling back to
// config.Default() when no config file exists anywhere.
func loadConfig(path string) (*config.Config, error) {
	cfgPath, err := config.FindConfig(path)
	if err != nil {
		if path != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}
