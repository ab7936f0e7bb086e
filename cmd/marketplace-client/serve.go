package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	clientconfig "github.com/quantumauth-io/marketplace-client/cmd/marketplace-client/config"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/helpers"
	clienthttp "github.com/quantumauth-io/marketplace-client/internal/http"
	"github.com/quantumauth-io/marketplace-client/internal/market"
	"github.com/quantumauth-io/marketplace-client/internal/metrics"
	"github.com/quantumauth-io/marketplace-client/internal/notify"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/readcache"
	"github.com/quantumauth-io/marketplace-client/internal/switcher"
	"github.com/quantumauth-io/marketplace-client/internal/txflow"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the local HTTP gateway",
		Action: serve,
	}
}

func loadConfig() (*clientconfig.Config, error) {
	cfg, err := clientconfig.Load()
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err = cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err = cfg.Normalize(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return cfg, nil
}

func newStore(cfg *clientconfig.Config) pinning.Store {
	if cfg.IPFS.Mode == clientconfig.IPFSModeMemory {
		log.Warn("content store is in memory; pinned content is lost on exit")
		return pinning.NewMemoryStore()
	}
	return pinning.NewIPFSStore(cfg.IPFS.APIURL,
		pinning.WithBasicAuth(cfg.IPFS.ProjectID, cfg.IPFS.ProjectSecret),
		pinning.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.IPFS.TimeoutSeconds) * time.Second}),
	)
}

func serve(c *cli.Context) error {
	log.Info("marketplace-client",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	ctx := c.Context

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := chains.NewRegistry(cfg.Chains, cfg.Wallet.DefaultChainID)
	if err != nil {
		return errors.Wrap(err, "chain registry")
	}
	pool := chains.NewClientPool(registry)
	defer pool.Close()

	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	network := wallet.NewNetworkConnector(registry, pool, cfg.Wallet.DefaultChainID)

	// typed nil must not reach the coordinator
	var injected wallet.Connector
	var injectedConn *wallet.InjectedConnector
	if cfg.Wallet.Keystore != "" {
		prompter := helpers.NewTermPrompter()
		if c.Bool("yes") {
			prompter = prompter.AssumeYes()
		}
		provider, err := wallet.LoadKeystoreProvider(cfg.Wallet.Keystore, registry, pool, prompter)
		if err != nil {
			return errors.Wrap(err, "wallet")
		}
		injectedConn = wallet.NewInjectedConnector(provider, registry)
		defer injectedConn.Close()
		injected = injectedConn
	} else {
		log.Warn("no keystore configured; buying and minting are disabled")
	}

	var primary wallet.Connector = network
	if cfg.Wallet.Primary == wallet.KindInjected.String() {
		if injected == nil {
			return errors.New("Wallet.primary is injected but no keystore is configured")
		}
		primary = injected
	}

	book, err := cfg.ContractBook(registry)
	if err != nil {
		return err
	}
	mkt := market.New(book, pool)
	reader, err := market.NewReader(mkt, pool, cfg.Market.ReadCacheSize)
	if err != nil {
		return errors.Wrap(err, "token reader")
	}

	caches := readcache.NewGroup()
	caches.Register(reader.Cache())

	board := switcher.NewErrorBoard()
	coord := switcher.NewCoordinator(primary, injected, registry, caches, board,
		switcher.WithActivationTimeout(time.Duration(cfg.Wallet.ActivationTimeoutSeconds)*time.Second),
		switcher.WithRecorder(recorder),
	)

	pipeline := pinning.NewPipeline(newStore(cfg), cfg.IPFS.GatewayURL, pinning.WithRecorder(recorder))

	feed := notify.NewFeed(0)
	var signers txflow.SignerSource = noSigner{}
	if injectedConn != nil {
		signers = injectedConn
	}
	orch := txflow.New(signers, txflow.MarketContract(mkt), pipeline,
		txflow.WithNotifier(notify.Multi{notify.LogNotifier{}, feed}),
		txflow.WithRecorder(recorder),
	)

	handler := clienthttp.NewHandler(clienthttp.Deps{
		Registry:       registry,
		Primary:        primary,
		Network:        network,
		Injected:       injected,
		Switcher:       coord,
		Errors:         board,
		Tx:             orch,
		Tokens:         reader,
		Feed:           feed,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	router := clienthttp.NewRouter(handler, clienthttp.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		LocalOnly:    cfg.Server.LocalOnly,
		RateLimit:    cfg.Server.RateLimit,
		Burst:        cfg.Server.Burst,
		Gatherer:     prometheus.DefaultGatherer,
	})

	// initial activation of the primary connector on its default chain
	coord.SwitchChain(coord.Desired())

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		log.Info("HTTP server gracefully stopped")
		return nil
	})

	err = g.Wait()
	coord.Wait()
	orch.Wait()
	return err
}

type noSigner struct{}

func (noSigner) Signer() wallet.SigningHandle { return nil }
