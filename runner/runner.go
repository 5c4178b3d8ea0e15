// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runner drives the validator's cyclic schedule: query cycles that
// fan problems out to workers and persist outcomes, and commit cycles that
// fold the outcome window into scores and push weights on chain. The loop is
// supervised: any failure is logged, slept over, and retried forever.
package runner

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/hone-subnet/hone/chain"
	"github.com/hone-subnet/hone/dispatch"
	"github.com/hone-subnet/hone/health"
	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
	"github.com/hone-subnet/hone/problem"
	"github.com/hone-subnet/hone/scoring"
	"github.com/hone-subnet/hone/store"
	"github.com/hone-subnet/hone/telemetry"
	"github.com/hone-subnet/hone/weights"
)

var logger = log.WithContext("pkg", "runner")

var metricCycles = metrics.LazyLoadCounter("cycle_count")

// State is the runner's coarse position in its schedule.
type State int

const (
	Idle State = iota
	InQueryCycle
	InCommitCycle
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InQueryCycle:
		return "query"
	case InCommitCycle:
		return "commit"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// CycleEvent is published on every state change.
type CycleEvent struct {
	State      State
	CycleCount uint64
	Block      uint64
}

// Options tune the schedule. Zero values fall back to defaults; the sleep
// knobs exist so tests can run the loop at full speed.
type Options struct {
	CycleDuration uint64 // blocks; the one primary cadence knob

	BatchSize   int
	MinTrain    int
	MaxTrain    int
	MinChainLen int
	MaxChainLen int

	RoundSleep time.Duration
	LoopSleep  time.Duration
	ErrorSleep time.Duration

	CleanupInterval time.Duration
	Retention       time.Duration

	Identity string // validator hotkey, reported in heartbeats
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.CycleDuration == 0 {
		out.CycleDuration = 30
	}
	if out.BatchSize == 0 {
		out.BatchSize = 5
	}
	if out.MinTrain == 0 {
		out.MinTrain = 3
	}
	if out.MaxTrain == 0 {
		out.MaxTrain = 4
	}
	if out.MinChainLen == 0 {
		out.MinChainLen = 3
	}
	if out.MaxChainLen == 0 {
		out.MaxChainLen = 5
	}
	if out.RoundSleep == 0 {
		out.RoundSleep = 15 * time.Second
	}
	if out.LoopSleep == 0 {
		out.LoopSleep = 5 * time.Second
	}
	if out.ErrorSleep == 0 {
		out.ErrorSleep = 5 * time.Second
	}
	if out.CleanupInterval == 0 {
		out.CleanupInterval = 24 * time.Hour
	}
	if out.Retention == 0 {
		out.Retention = 30 * 24 * time.Hour
	}
	return out
}

// QueryIntervalBlocks is the minimum block gap between query cycles.
func (o *Options) QueryIntervalBlocks() uint64 { return o.CycleDuration + 5 }

// WeightsIntervalBlocks is the minimum block gap between commit cycles.
func (o *Options) WeightsIntervalBlocks() uint64 { return o.CycleDuration + 5 }

// ScoreWindowBlocks is the outcome window folded by the scorer.
func (o *Options) ScoreWindowBlocks() uint64 { return o.CycleDuration * 4 }

// Runner owns the validator control loop.
type Runner struct {
	client     chain.Client
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	scorer     *scoring.Scorer
	committer  *weights.Committer
	generator  problem.Generator
	sink       *telemetry.Sink
	health     *health.Health
	opts       Options

	feed event.Feed
	rng  *rand.Rand

	cycleCount       uint64
	lastQueryBlock   uint64
	haveQueried      bool
	lastWeightsBlock uint64
	haveCommitted    bool
	lastCleanup      time.Time
}

// New wires a runner. sink and health may be nil.
func New(
	client chain.Client,
	s *store.Store,
	dispatcher *dispatch.Dispatcher,
	scorer *scoring.Scorer,
	committer *weights.Committer,
	generator problem.Generator,
	sink *telemetry.Sink,
	h *health.Health,
	opts Options,
) *Runner {
	return &Runner{
		client:     client,
		store:      s,
		dispatcher: dispatcher,
		scorer:     scorer,
		committer:  committer,
		generator:  generator,
		sink:       sink,
		health:     h,
		opts:       opts.withDefaults(),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// SubscribeCycleEvents delivers state transitions to ch until the
// subscription is unsubscribed.
func (r *Runner) SubscribeCycleEvents(ch chan<- CycleEvent) event.Subscription {
	return r.feed.Subscribe(ch)
}

// CycleCount returns the number of completed query cycles.
func (r *Runner) CycleCount() uint64 {
	return r.cycleCount
}

// Run blocks until ctx is cancelled. Individual failures never abort the
// loop; the runner logs, sleeps and tries again.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("validator loop started",
		"cycleDuration", r.opts.CycleDuration,
		"queryInterval", r.opts.QueryIntervalBlocks(),
		"scoreWindow", r.opts.ScoreWindowBlocks())

	for {
		if ctx.Err() != nil {
			break
		}
		r.beat()

		if err := r.step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("loop pass failed", "err", err)
			if !r.sleep(ctx, r.opts.ErrorSleep) {
				break
			}
			continue
		}
		if !r.sleep(ctx, r.opts.LoopSleep) {
			break
		}
	}

	r.feed.Send(CycleEvent{State: Stopping, CycleCount: r.cycleCount})
	logger.Info("validator loop stopped", "cycles", r.cycleCount)
}

func (r *Runner) step(ctx context.Context) error {
	block, err := r.client.CurrentBlock()
	if err != nil {
		return err
	}

	if !r.haveQueried || block-r.lastQueryBlock >= r.opts.QueryIntervalBlocks() {
		if err := r.queryCycle(ctx, block); err != nil {
			return err
		}
	}

	block, err = r.client.CurrentBlock()
	if err != nil {
		return err
	}
	if !r.haveCommitted || block-r.lastWeightsBlock >= r.opts.WeightsIntervalBlocks() {
		if err := r.commitCycle(block); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) queryCycle(ctx context.Context, startBlock uint64) error {
	r.feed.Send(CycleEvent{State: InQueryCycle, CycleCount: r.cycleCount, Block: startBlock})
	logger.Info("query cycle started", "block", startBlock, "cycle", r.cycleCount)

	workers, err := r.client.ListWorkers()
	if err != nil {
		return err
	}
	for _, w := range workers {
		if err := r.store.UpsertWorker(w); err != nil {
			return err
		}
	}
	if len(workers) == 0 {
		logger.Warn("no workers on subnet, skipping query cycle")
		r.endQueryCycle(startBlock)
		return nil
	}

	block := startBlock
	for block-startBlock < r.opts.CycleDuration {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch := r.generateBatch(len(workers))
		for _, p := range batch {
			if _, err := r.dispatchAndRecord(ctx, block, workers, p); err != nil {
				return err
			}
		}
		r.maybeCleanup()
		if !r.sleep(ctx, r.opts.RoundSleep) {
			return ctx.Err()
		}
		if block, err = r.client.CurrentBlock(); err != nil {
			return err
		}
	}

	r.endQueryCycle(startBlock)
	return nil
}

func (r *Runner) endQueryCycle(startBlock uint64) {
	r.lastQueryBlock = startBlock
	r.haveQueried = true
	r.cycleCount++
	metricCycles().Add(1)
	if r.health != nil {
		r.health.QueryCycleDone()
	}
	r.feed.Send(CycleEvent{State: Idle, CycleCount: r.cycleCount, Block: startBlock})
	logger.Info("query cycle done", "cycle", r.cycleCount)
}

// generateBatch draws up to BatchSize problems, capped by the worker-set
// size but never below one. Ill-formed problems are skipped.
func (r *Runner) generateBatch(workerCount int) []*problem.Problem {
	count := min(r.opts.BatchSize, max(workerCount, 1))
	batch := make([]*problem.Problem, 0, count)
	for len(batch) < count {
		numTrain := r.opts.MinTrain + r.rng.IntN(r.opts.MaxTrain-r.opts.MinTrain+1)
		chainLen := r.opts.MinChainLen + r.rng.IntN(r.opts.MaxChainLen-r.opts.MinChainLen+1)
		p, err := r.generator.Generate(numTrain, chainLen)
		if err != nil {
			logger.Warn("problem generation failed", "err", err)
			break
		}
		if err := p.Validate(); err != nil {
			logger.Warn("generated problem rejected", "err", err)
			continue
		}
		batch = append(batch, p)
	}
	return batch
}

func (r *Runner) dispatchAndRecord(ctx context.Context, block uint64, workers []*hone.Worker, p *problem.Problem) ([]*hone.QueryOutcome, error) {
	outcomes, err := r.dispatcher.Dispatch(ctx, block, workers, p)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if err := r.store.RecordOutcome(o); err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

func (r *Runner) commitCycle(block uint64) error {
	r.feed.Send(CycleEvent{State: InCommitCycle, CycleCount: r.cycleCount, Block: block})
	logger.Info("commit cycle started", "block", block)

	scores, err := r.scorer.Calculate(r.opts.ScoreWindowBlocks(), block)
	if err != nil {
		return err
	}
	if err := r.store.SaveScores(scores); err != nil {
		return err
	}
	if err := r.committer.Commit(scores); err != nil {
		return err
	}

	r.lastWeightsBlock = block
	r.haveCommitted = true
	if r.health != nil {
		r.health.CommitDone()
	}
	r.feed.Send(CycleEvent{State: Idle, CycleCount: r.cycleCount, Block: block})
	logger.Info("commit cycle done", "block", block, "scored", len(scores))
	return nil
}

func (r *Runner) maybeCleanup() {
	if time.Since(r.lastCleanup) < r.opts.CleanupInterval {
		return
	}
	r.lastCleanup = time.Now()
	removed, err := r.store.Cleanup(r.opts.Retention)
	if err != nil {
		logger.Warn("retention sweep failed", "err", err)
		return
	}
	if removed > 0 {
		logger.Info("retention sweep", "rows", removed)
	}
}

func (r *Runner) beat() {
	if r.health != nil {
		r.health.Heartbeat()
	}
	if r.sink != nil {
		r.sink.Enqueue("/validator/heartbeat", map[string]any{
			"version":  hone.ProtocolVersion,
			"cycles":   r.cycleCount,
			"identity": r.opts.Identity,
		})
	}
}

// sleep waits d or until ctx is cancelled; reports whether the loop should
// keep going.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
