// ====================================
// File: cmd/minter/app.go
// ====================================
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/access"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain/solbc"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/candy-mint/internal/candymachine"
	"github.com/rovshanmuradov/candy-mint/internal/config"
	"github.com/rovshanmuradov/candy-mint/internal/events"
	"github.com/rovshanmuradov/candy-mint/internal/logger"
	"github.com/rovshanmuradov/candy-mint/internal/minter"
	"github.com/rovshanmuradov/candy-mint/internal/transaction"
	"github.com/rovshanmuradov/candy-mint/internal/wallet"
)

// app holds everything a command needs; parts are created on demand.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	shutdown *minter.ShutdownHandler
	client   *solbc.Client
}

func newApp(c *cli.Context) (*app, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Level = cfg.ZapLevel()
	l, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, log: l, shutdown: minter.NewShutdownHandler(l.Logger, 10*time.Second)}
	a.shutdown.AddFunc("logger", l.Close)
	return a, nil
}

func (a *app) close() {
	// Shutdown errors are already logged by the handler.
	_ = a.shutdown.Shutdown(context.Background())
}

func (a *app) rpcClient() (*solbc.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	pool, err := rpc.NewClient(a.cfg.RPCList, a.log.Logger)
	if err != nil {
		return nil, err
	}
	a.shutdown.Add("rpc", pool)
	a.client = solbc.NewClient(pool, "", a.log.Logger)
	return a.client, nil
}

func (a *app) loadWallet() (*wallet.Wallet, error) {
	if a.cfg.KeypairFile == "" {
		return nil, errors.New("keypair_file is not set")
	}
	return wallet.LoadKeypairFile(a.cfg.KeypairFile)
}

func (a *app) loadPolicy() (*access.Policy, error) {
	if a.cfg.AccessFile == "" {
		return access.OpenPolicy(), nil
	}
	return access.LoadPolicy(a.cfg.AccessFile)
}

func (a *app) loadCatalog() (*candymachine.ErrorCatalog, error) {
	if a.cfg.ErrorCodesFile == "" {
		return candymachine.DefaultErrorCatalog(), nil
	}
	return candymachine.LoadErrorCatalog(a.cfg.ErrorCodesFile)
}

func (a *app) stateProvider() (*candymachine.Provider, error) {
	id, err := a.cfg.CandyMachine()
	if err != nil {
		return nil, err
	}
	client, err := a.rpcClient()
	if err != nil {
		return nil, err
	}
	return candymachine.NewProvider(client, id, a.log.Logger), nil
}

// mintService wires the full pipeline: RPC pool, websocket, blockhash cache,
// orchestrator, event bus with optional NATS sink and metrics.
func (a *app) mintService(payer *wallet.Wallet) (*minter.Service, error) {
	client, err := a.rpcClient()
	if err != nil {
		return nil, err
	}
	provider, err := a.stateProvider()
	if err != nil {
		return nil, err
	}
	policy, err := a.loadPolicy()
	if err != nil {
		return nil, err
	}
	catalog, err := a.loadCatalog()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := transaction.NewMetrics(registry)
	a.startMetricsServer(registry)

	ws := solbc.NewWSSubscriber(a.websocketURL(), a.log.Logger)
	a.shutdown.Add("websocket", ws)

	txCfg := a.cfg.TransactionConfig()
	blockhash := solbc.NewBlockhashCache(client, a.cfg.BlockhashCacheTTL(), a.log.Logger)
	orchestrator := transaction.NewOrchestrator(
		blockhash,
		transaction.NewBatchSigner(a.log.Logger),
		transaction.NewBroadcaster(client, txCfg, metrics, a.log.Logger),
		transaction.NewTracker(ws, client, txCfg, metrics, a.log.Logger),
		metrics,
		a.log.Logger,
	)

	bus := events.NewBus(a.log.Logger, 256)
	a.shutdown.AddFunc("event bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.Shutdown(ctx)
	})
	if a.cfg.NATSURL != "" {
		sink, err := events.ConnectNATS(a.cfg.NATSURL, a.cfg.NATSSubjectPrefix, a.log.Logger)
		if err != nil {
			return nil, err
		}
		sink.Attach(bus)
		a.shutdown.Add("nats", sink)
	}
	orchestrator.SetObserver(events.NewBatchObserver(bus, a.log.Logger))

	return minter.NewService(policy, provider, client, orchestrator, payer, minter.Options{
		Treasury:         a.cfg.TreasuryKey(),
		BuildConcurrency: a.cfg.BuildConcurrency,
		Catalog:          catalog,
	}, a.log.Logger), nil
}

// websocketURL falls back to the first RPC node with a ws scheme.
func (a *app) websocketURL() string {
	if a.cfg.WebSocketURL != "" {
		return a.cfg.WebSocketURL
	}
	return "ws" + strings.TrimPrefix(a.cfg.RPCList[0], "http")
}

func (a *app) startMetricsServer(registry *prometheus.Registry) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info("Starting metrics server", zap.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server error", zap.Error(err))
		}
	}()
	a.shutdown.AddFunc("metrics server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}
