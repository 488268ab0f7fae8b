// ====================================
// File: cmd/minter/main.go
// ====================================
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "candy-mint",
		Usage:   "Mint NFTs from a candy machine in confirmed batches",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Commands: []*cli.Command{
			mintCommand(),
			stateCommand(),
			accessCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML or JSON config file",
				EnvVars: []string{"CANDY_MINT_CONFIG"},
				Value:   "configs/config.yaml",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
