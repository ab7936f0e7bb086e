package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/urfave/cli/v2"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "marketplace-client",
		Usage:   "local wallet and marketplace gateway",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "approve every wallet prompt without asking",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			chainsCommand(),
			pinCommand(),
			initCommand(),
			walletCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal("marketplace-client failed", "error", err)
	}
}
