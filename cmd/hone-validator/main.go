// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/handlers"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/hone-subnet/hone/api"
	"github.com/hone-subnet/hone/chain"
	"github.com/hone-subnet/hone/dispatch"
	"github.com/hone-subnet/hone/envelope"
	"github.com/hone-subnet/hone/health"
	"github.com/hone-subnet/hone/keys"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
	"github.com/hone-subnet/hone/problem/synth"
	"github.com/hone-subnet/hone/runner"
	"github.com/hone-subnet/hone/scoring"
	"github.com/hone-subnet/hone/store"
	"github.com/hone-subnet/hone/telemetry"
	"github.com/hone-subnet/hone/weights"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "hone-validator",
		Usage:     "Validator of the Hone work-dispatch subnet",
		Copyright: "2025 The Hone developers",
		Flags: []cli.Flag{
			configFlag,
			chainEndpointFlag,
			netuidFlag,
			walletPathFlag,
			walletNameFlag,
			hotkeyNameFlag,
			dbFlag,
			cycleDurationFlag,
			burnFlag,
			burnUIDFlag,
			minTrainFlag,
			maxTrainFlag,
			batchSizeFlag,
			minResponsesFlag,
			maxInFlightFlag,
			telemetryEndpointFlag,
			cleanupIntervalFlag,
			retentionDaysFlag,
			apiAddrFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			mockChainFlag,
			mockSubnetSizeFlag,
			workerPortFlag,
			generatorSeedFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	logLevel := initLogger(ctx)
	log.Info("starting hone validator", "version", fullVersion())

	cfg, err := loadConfig(ctx)
	if err != nil {
		fatal(err)
	}

	checkClockDrift()

	kp := loadKeypair(cfg)
	log.Info("validator identity loaded", "address", kp.Address())

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o700); err != nil {
		fatal("create data directory:", err)
	}
	db, err := store.New(cfg.DB)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	client := newChainClient(cfg, kp)
	if err := client.Connect(); err != nil {
		fatal("connect to chain:", err)
	}
	defer client.Close()
	if !cfg.MockChain {
		uid, err := client.MyUID()
		if err != nil {
			fatal(err)
		}
		log.Info("registered on subnet", "netuid", cfg.Netuid, "uid", uid)
	}

	sink := telemetry.NewSink(cfg.TelemetryEndpoint)
	defer sink.Shutdown()

	if cfg.EnableMetrics {
		metrics.InitializePrometheusMetrics()
	}

	h := health.New()
	apiHandler := api.New(h, logLevel)
	if cfg.EnableAPILogs {
		apiHandler = handlers.LoggingHandler(os.Stdout, apiHandler).ServeHTTP
	}
	apiURL, apiClose, err := api.StartServer(cfg.APIAddr, apiHandler)
	if err != nil {
		fatal(err)
	}
	defer apiClose()
	log.Info("operational API started", "url", apiURL)

	dispatcher := dispatch.New(envelope.NewSigner(kp), sink, dispatch.Options{
		MaxInFlight: cfg.MaxInFlight,
	})

	seed := cfg.GeneratorSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	r := runner.New(
		client,
		db,
		dispatcher,
		scoring.New(db, cfg.MinResponses),
		weights.NewCommitter(client, weights.Options{Burn: cfg.Burn, BurnUID: cfg.BurnUID}),
		synth.New(seed),
		sink,
		h,
		runner.Options{
			CycleDuration:   cfg.CycleDuration,
			BatchSize:       cfg.BatchSize,
			MinTrain:        cfg.MinTrain,
			MaxTrain:        cfg.MaxTrain,
			CleanupInterval: time.Duration(cfg.CleanupHours) * time.Hour,
			Retention:       time.Duration(cfg.RetentionDays) * 24 * time.Hour,
			Identity:        kp.Address(),
		},
	)

	r.Run(handleExitSignal())

	log.Info("shutting down")
	return nil
}

func loadKeypair(cfg *config) *keys.Keypair {
	kp, err := keys.Load(cfg.WalletPath, cfg.WalletName, cfg.HotkeyName)
	if err == nil {
		return kp
	}
	if cfg.MockChain {
		log.Warn("wallet unavailable, using an ephemeral key for mock mode", "err", err)
		kp, err = keys.Generate()
		if err != nil {
			fatal("generate ephemeral key:", err)
		}
		return kp
	}
	fatal("load wallet hotkey:", err)
	return nil
}

func newChainClient(cfg *config, kp *keys.Keypair) chain.Client {
	if cfg.MockChain {
		log.Info("using mock chain", "subnetSize", cfg.MockSubnetSize)
		return chain.NewMockClient(cfg.MockSubnetSize, uint16(cfg.WorkerPort))
	}
	return chain.NewGatewayClient(cfg.ChainEndpoint, cfg.Netuid, kp.Address())
}
