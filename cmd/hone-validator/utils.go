// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/beevik/ntp"
	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/hone-subnet/hone/log"
)

func fatal(args ...any) {
	var w io.Writer
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		} else {
			w = io.MultiWriter(os.Stdout, os.Stderr)
		}
	}
	fmt.Fprint(w, "Fatal: ")
	fmt.Fprintln(w, args...)
	os.Exit(1)
}

func defaultWalletPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bittensor/wallets"
	}
	return filepath.Join(home, ".bittensor", "wallets")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hone-validator.db"
	}
	return filepath.Join(home, ".hone", "validator.db")
}

func initLogger(ctx *cli.Context) *slog.LevelVar {
	logLevel := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	level := new(slog.LevelVar)
	level.Set(logLevel)

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, level)
	} else {
		useColor := isatty.IsTerminal(os.Stderr.Fd())
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, level, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
	return level
}

// handleExitSignal returns a context cancelled on SIGINT or SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

const ntpServer = "pool.ntp.org"

// checkClockDrift compares the local clock against NTP. Signed envelopes
// carry a 5 second staleness budget; a skewed clock makes workers reject
// every query.
func checkClockDrift() {
	remote, err := ntp.Time(ntpServer)
	if err != nil {
		log.Debug("ntp drift check skipped", "err", err)
		return
	}
	drift := time.Since(remote)
	if drift < 0 {
		drift = -drift
	}
	if drift > time.Second {
		log.Warn("system clock drifts from NTP; workers may reject signed requests", "drift", drift)
	}
}
