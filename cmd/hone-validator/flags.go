// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/hone-subnet/hone/hone"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		EnvVar: "HONE_CONFIG",
		Usage:  "path to a yaml config file; explicit flags still win",
	}
	chainEndpointFlag = cli.StringFlag{
		Name:   "chain-endpoint",
		EnvVar: "HONE_CHAIN_ENDPOINT",
		Usage:  "chain gateway base URL",
	}
	netuidFlag = cli.IntFlag{
		Name:   "netuid",
		EnvVar: "HONE_NETUID",
		Value:  hone.DefaultNetuid,
		Usage:  "subnet uid to validate on",
	}
	walletPathFlag = cli.StringFlag{
		Name:   "wallet-path",
		EnvVar: "HONE_WALLET_PATH",
		Value:  defaultWalletPath(),
		Usage:  "directory containing wallets",
	}
	walletNameFlag = cli.StringFlag{
		Name:   "wallet-name",
		EnvVar: "HONE_WALLET_NAME",
		Value:  "default",
		Usage:  "wallet name",
	}
	hotkeyNameFlag = cli.StringFlag{
		Name:   "hotkey-name",
		EnvVar: "HONE_HOTKEY_NAME",
		Value:  "default",
		Usage:  "hotkey name inside the wallet",
	}
	dbFlag = cli.StringFlag{
		Name:   "db",
		EnvVar: "HONE_DB",
		Value:  defaultDBPath(),
		Usage:  "path of the sqlite result store",
	}
	cycleDurationFlag = cli.Uint64Flag{
		Name:   "cycle-duration",
		EnvVar: "HONE_CYCLE_DURATION",
		Value:  30,
		Usage:  "query cycle length in blocks; all cadence derives from this",
	}
	burnFlag = cli.Float64Flag{
		Name:   "burn",
		EnvVar: "HONE_BURN",
		Value:  hone.DefaultBurnWeight,
		Usage:  "weight fraction diverted to the burn uid",
	}
	burnUIDFlag = cli.Uint64Flag{
		Name:   "burn-uid",
		EnvVar: "HONE_BURN_UID",
		Value:  hone.DefaultBurnUID,
		Usage:  "uid receiving the burn share",
	}
	minTrainFlag = cli.IntFlag{
		Name:   "min-train",
		EnvVar: "HONE_MIN_TRAIN",
		Value:  3,
		Usage:  "minimum train examples per problem",
	}
	maxTrainFlag = cli.IntFlag{
		Name:   "max-train",
		EnvVar: "HONE_MAX_TRAIN",
		Value:  4,
		Usage:  "maximum train examples per problem",
	}
	batchSizeFlag = cli.IntFlag{
		Name:   "batch-size",
		EnvVar: "HONE_BATCH_SIZE",
		Value:  5,
		Usage:  "problems per query round",
	}
	minResponsesFlag = cli.IntFlag{
		Name:   "min-responses",
		EnvVar: "HONE_MIN_RESPONSES",
		Value:  1,
		Usage:  "outcomes a worker needs in the window to be scored",
	}
	maxInFlightFlag = cli.Int64Flag{
		Name:   "max-in-flight",
		EnvVar: "HONE_MAX_IN_FLIGHT",
		Value:  16,
		Usage:  "concurrent HTTP requests towards workers",
	}
	telemetryEndpointFlag = cli.StringFlag{
		Name:   "telemetry-endpoint",
		EnvVar: "HONE_TELEMETRY_ENDPOINT",
		Usage:  "telemetry collector base URL; empty disables telemetry",
	}
	cleanupIntervalFlag = cli.IntFlag{
		Name:   "cleanup-interval-hours",
		EnvVar: "HONE_CLEANUP_INTERVAL_HOURS",
		Value:  24,
		Usage:  "hours between retention sweeps",
	}
	retentionDaysFlag = cli.IntFlag{
		Name:   "retention-days",
		EnvVar: "HONE_RETENTION_DAYS",
		Value:  30,
		Usage:  "days of outcomes and scores kept in the store",
	}
	apiAddrFlag = cli.StringFlag{
		Name:   "api-addr",
		EnvVar: "HONE_API_ADDR",
		Value:  "localhost:8092",
		Usage:  "operational API listening address",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:   "enable-api-logs",
		EnvVar: "HONE_ENABLE_API_LOGS",
		Usage:  "log every operational API request",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:   "enable-metrics",
		EnvVar: "HONE_ENABLE_METRICS",
		Usage:  "expose prometheus metrics on the operational API",
	}
	mockChainFlag = cli.BoolFlag{
		Name:   "mock-chain",
		EnvVar: "HONE_MOCK_CHAIN",
		Usage:  "run against an in-memory chain with deterministic workers",
	}
	mockSubnetSizeFlag = cli.IntFlag{
		Name:   "mock-subnet-size",
		EnvVar: "HONE_MOCK_SUBNET_SIZE",
		Value:  4,
		Usage:  "subnet size of the mock chain",
	}
	workerPortFlag = cli.IntFlag{
		Name:   "worker-port",
		EnvVar: "HONE_WORKER_PORT",
		Value:  hone.DefaultWorkerPort,
		Usage:  "port mock workers are assumed to listen on",
	}
	generatorSeedFlag = cli.Uint64Flag{
		Name:   "generator-seed",
		EnvVar: "HONE_GENERATOR_SEED",
		Usage:  "fixed seed for the built-in problem generator; 0 seeds from the clock",
	}
	verbosityFlag = cli.IntFlag{
		Name:   "verbosity",
		EnvVar: "HONE_VERBOSITY",
		Value:  3,
		Usage:  "log verbosity (0-5: crit, error, warn, info, debug, trace)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:   "json-logs",
		EnvVar: "HONE_JSON_LOGS",
		Usage:  "emit logs as JSON instead of the terminal format",
	}
)
