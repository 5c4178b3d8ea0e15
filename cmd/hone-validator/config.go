// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	yaml "gopkg.in/yaml.v3"
)

// config carries every runtime knob. Values come from flag defaults, then
// the yaml file, then explicitly set flags, in rising priority.
type config struct {
	ChainEndpoint     string  `yaml:"chainEndpoint"`
	Netuid            int     `yaml:"netuid"`
	WalletPath        string  `yaml:"walletPath"`
	WalletName        string  `yaml:"walletName"`
	HotkeyName        string  `yaml:"hotkeyName"`
	DB                string  `yaml:"db"`
	CycleDuration     uint64  `yaml:"cycleDuration"`
	Burn              float64 `yaml:"burn"`
	BurnUID           uint64  `yaml:"burnUid"`
	MinTrain          int     `yaml:"minTrain"`
	MaxTrain          int     `yaml:"maxTrain"`
	BatchSize         int     `yaml:"batchSize"`
	MinResponses      int     `yaml:"minResponses"`
	MaxInFlight       int64   `yaml:"maxInFlight"`
	TelemetryEndpoint string  `yaml:"telemetryEndpoint"`
	CleanupHours      int     `yaml:"cleanupIntervalHours"`
	RetentionDays     int     `yaml:"retentionDays"`
	APIAddr           string  `yaml:"apiAddr"`
	EnableAPILogs     bool    `yaml:"enableApiLogs"`
	EnableMetrics     bool    `yaml:"enableMetrics"`
	MockChain         bool    `yaml:"mockChain"`
	MockSubnetSize    int     `yaml:"mockSubnetSize"`
	WorkerPort        int     `yaml:"workerPort"`
	GeneratorSeed     uint64  `yaml:"generatorSeed"`
}

func loadConfig(ctx *cli.Context) (*config, error) {
	cfg := &config{
		ChainEndpoint:     ctx.String(chainEndpointFlag.Name),
		Netuid:            ctx.Int(netuidFlag.Name),
		WalletPath:        ctx.String(walletPathFlag.Name),
		WalletName:        ctx.String(walletNameFlag.Name),
		HotkeyName:        ctx.String(hotkeyNameFlag.Name),
		DB:                ctx.String(dbFlag.Name),
		CycleDuration:     ctx.Uint64(cycleDurationFlag.Name),
		Burn:              ctx.Float64(burnFlag.Name),
		BurnUID:           ctx.Uint64(burnUIDFlag.Name),
		MinTrain:          ctx.Int(minTrainFlag.Name),
		MaxTrain:          ctx.Int(maxTrainFlag.Name),
		BatchSize:         ctx.Int(batchSizeFlag.Name),
		MinResponses:      ctx.Int(minResponsesFlag.Name),
		MaxInFlight:       ctx.Int64(maxInFlightFlag.Name),
		TelemetryEndpoint: ctx.String(telemetryEndpointFlag.Name),
		CleanupHours:      ctx.Int(cleanupIntervalFlag.Name),
		RetentionDays:     ctx.Int(retentionDaysFlag.Name),
		APIAddr:           ctx.String(apiAddrFlag.Name),
		EnableAPILogs:     ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:     ctx.Bool(enableMetricsFlag.Name),
		MockChain:         ctx.Bool(mockChainFlag.Name),
		MockSubnetSize:    ctx.Int(mockSubnetSizeFlag.Name),
		WorkerPort:        ctx.Int(workerPortFlag.Name),
		GeneratorSeed:     ctx.Uint64(generatorSeedFlag.Name),
	}

	path := ctx.String(configFlag.Name)
	if path == "" {
		return cfg, cfg.validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	fileCfg := *cfg
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}

	// flags set on the command line override the file
	merged := fileCfg
	for _, name := range ctx.GlobalFlagNames() {
		if !ctx.IsSet(name) {
			continue
		}
		switch name {
		case chainEndpointFlag.Name:
			merged.ChainEndpoint = cfg.ChainEndpoint
		case netuidFlag.Name:
			merged.Netuid = cfg.Netuid
		case walletPathFlag.Name:
			merged.WalletPath = cfg.WalletPath
		case walletNameFlag.Name:
			merged.WalletName = cfg.WalletName
		case hotkeyNameFlag.Name:
			merged.HotkeyName = cfg.HotkeyName
		case dbFlag.Name:
			merged.DB = cfg.DB
		case cycleDurationFlag.Name:
			merged.CycleDuration = cfg.CycleDuration
		case burnFlag.Name:
			merged.Burn = cfg.Burn
		case burnUIDFlag.Name:
			merged.BurnUID = cfg.BurnUID
		case minTrainFlag.Name:
			merged.MinTrain = cfg.MinTrain
		case maxTrainFlag.Name:
			merged.MaxTrain = cfg.MaxTrain
		case batchSizeFlag.Name:
			merged.BatchSize = cfg.BatchSize
		case minResponsesFlag.Name:
			merged.MinResponses = cfg.MinResponses
		case maxInFlightFlag.Name:
			merged.MaxInFlight = cfg.MaxInFlight
		case telemetryEndpointFlag.Name:
			merged.TelemetryEndpoint = cfg.TelemetryEndpoint
		case cleanupIntervalFlag.Name:
			merged.CleanupHours = cfg.CleanupHours
		case retentionDaysFlag.Name:
			merged.RetentionDays = cfg.RetentionDays
		case apiAddrFlag.Name:
			merged.APIAddr = cfg.APIAddr
		case enableAPILogsFlag.Name:
			merged.EnableAPILogs = cfg.EnableAPILogs
		case enableMetricsFlag.Name:
			merged.EnableMetrics = cfg.EnableMetrics
		case mockChainFlag.Name:
			merged.MockChain = cfg.MockChain
		case mockSubnetSizeFlag.Name:
			merged.MockSubnetSize = cfg.MockSubnetSize
		case workerPortFlag.Name:
			merged.WorkerPort = cfg.WorkerPort
		case generatorSeedFlag.Name:
			merged.GeneratorSeed = cfg.GeneratorSeed
		}
	}
	return &merged, merged.validate()
}

func (c *config) validate() error {
	if !c.MockChain && c.ChainEndpoint == "" {
		return errors.New("--chain-endpoint is required unless --mock-chain is set")
	}
	if c.Burn < 0 || c.Burn > 1 {
		return errors.Errorf("burn fraction %v outside [0,1]", c.Burn)
	}
	if c.MinTrain < 1 || c.MaxTrain < c.MinTrain {
		return errors.Errorf("invalid train range [%d,%d]", c.MinTrain, c.MaxTrain)
	}
	if c.BatchSize < 1 {
		return errors.New("batch size must be positive")
	}
	if c.CycleDuration < 1 {
		return errors.New("cycle duration must be positive")
	}
	return nil
}
