// apiaccess - pick and fail over between the ways of reaching the VPN API
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wadahiro/apiaccess/internal/config"
	"github.com/wadahiro/apiaccess/internal/log"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "apiaccess",
		Usage:   "Select and fail over between API access methods",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath(),
				Usage:   "Path to the settings file",
				EnvVars: []string{"APIACCESS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Profile from the settings file",
				EnvVars: []string{"APIACCESS_PROFILE"},
			},
			&cli.StringFlag{
				Name:  "api-address",
				Usage: "API host:port (default: api.mullvad.net:443)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-attempt timeout",
			},
			&cli.StringFlag{
				Name:  "bridge-source-url",
				Usage: "URL of the relay list that provides bridges",
			},
			&cli.StringFlag{
				Name:  "bridge-cache-file",
				Usage: "File to cache the selected bridge in",
			},
			&cli.StringSliceFlag{
				Name:  "bridge-uri",
				Usage: "ss:// URI of a bridge to use before the relay list (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			// Configure log level (DynamicLevel allows runtime changes)
			if c.Bool("verbose") {
				log.SetVerbose(true)
			} else if level := c.String("log-level"); level != "" {
				lvl, err := log.ParseLevel(level)
				if err != nil {
					return err
				}
				log.SetLevel(lvl)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "methods",
				Usage:  "List the configured access methods",
				Action: methodsAction,
			},
			{
				Name:  "pick",
				Usage: "Show the transport the next connection attempt would use",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "fail",
						Usage: "Record N failed attempts before picking",
					},
				},
				Action: pickAction,
			},
			{
				Name:  "test",
				Usage: "Probe the API through one access method",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Access method ID (interactive selection if omitted)",
					},
					&cli.BoolFlag{
						Name:  "tls",
						Value: true,
						Usage: "Complete a TLS handshake with the API",
					},
				},
				Action: testAction,
			},
			{
				Name:  "connect",
				Usage: "Try access methods in turn until the API is reachable",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Give up after N attempts (0 uses the settings file value)",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Reload the settings file when it changes",
					},
					&cli.BoolFlag{
						Name:  "tls",
						Value: true,
						Usage: "Complete a TLS handshake with the API",
					},
				},
				Action: connectAction,
			},
		},
	}
}
