package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	clientconfig "github.com/quantumauth-io/marketplace-client/cmd/marketplace-client/config"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/constants"
	"github.com/quantumauth-io/marketplace-client/internal/helpers"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/securefile"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/urfave/cli/v2"
)

func chainsCommand() *cli.Command {
	return &cli.Command{
		Name:  "chains",
		Usage: "list the configured chains",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := chains.NewRegistry(cfg.Chains, cfg.Wallet.DefaultChainID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tNETWORK\tCURRENCY\tSELECTABLE\tRPC")
			for _, d := range registry.All() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", d.ChainID, d.Network, d.NativeCurrency.Symbol, d.IsDefaultSelectable, d.RPCURL)
			}
			return w.Flush()
		},
	}
}

func pinCommand() *cli.Command {
	return &cli.Command{
		Name:  "pin",
		Usage: "pin an image, an audio file and their metadata, print the token uri",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "description"},
			&cli.PathFlag{Name: "image", Required: true},
			&cli.PathFlag{Name: "audio", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			content := pinning.Content{
				Name:        c.String("name"),
				Description: c.String("description"),
			}
			for _, a := range []struct {
				kind pinning.AssetKind
				path string
			}{
				{pinning.AssetImage, c.Path("image")},
				{pinning.AssetAudio, c.Path("audio")},
			} {
				raw, err := os.ReadFile(a.path)
				if err != nil {
					return errors.Wrapf(err, "read %s", a.kind)
				}
				content.Assets = append(content.Assets, pinning.Asset{Kind: a.kind, FileName: filepath.Base(a.path), Bytes: raw})
			}

			pipeline := pinning.NewPipeline(newStore(cfg), cfg.IPFS.GatewayURL,
				pinning.WithObserver(func(t pinning.UploadTask) {
					log.Info("upload", "asset", t.Kind.String(), "state", string(t.State), "sent", t.Sent, "size", t.Size)
				}),
			)
			res, err := pipeline.Run(c.Context, content)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, res.TokenURI)
			return err
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write the default config to the user config directory",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing config"},
		},
		Action: func(c *cli.Context) error {
			paths, err := securefile.ConfigPathCandidates(constants.AppName, "config.yaml")
			if err != nil {
				return err
			}
			if err = securefile.WriteFile(paths[0], clientconfig.EmbeddedConfigYAML, c.Bool("force")); err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, paths[0])
			return err
		},
	}
}

func walletCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "manage the local keystore wallet",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "create an encrypted keystore file",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "out", Required: true, Usage: "keystore file to create"},
				},
				Action: func(c *cli.Context) error {
					prompter := helpers.NewTermPrompter()
					pw, err := prompter.Password("New keystore password: ")
					if err != nil {
						return err
					}
					defer helpers.ZeroBytes(pw)

					again, err := prompter.Password("Repeat password: ")
					if err != nil {
						return err
					}
					defer helpers.ZeroBytes(again)
					if string(pw) != string(again) {
						return errors.New("passwords do not match")
					}

					addr, err := wallet.CreateKeystore(c.Path("out"), pw, keystore.StandardScryptN, keystore.StandardScryptP)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, addr.Hex())
					return err
				},
			},
		},
	}
}
