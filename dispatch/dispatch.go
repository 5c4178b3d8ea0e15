// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package dispatch fans one problem out to a set of workers and collects
// scored outcomes. Workers answer asynchronously: a query is submitted,
// acknowledged with a task id, then polled until it completes or the poll
// budget runs out. Every worker yields exactly one outcome per problem.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hone-subnet/hone/co"
	"github.com/hone-subnet/hone/envelope"
	"github.com/hone-subnet/hone/grid"
	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
	"github.com/hone-subnet/hone/problem"
	"github.com/hone-subnet/hone/telemetry"
)

var logger = log.WithContext("pkg", "dispatch")

var (
	metricQueries      = metrics.LazyLoadCounterVec("query_total", []string{"result"})
	metricPollDuration = metrics.LazyLoadHistogram("poll_duration_ms", metrics.Bucket10s)
)

// Options tune one dispatcher. Zero values fall back to defaults.
type Options struct {
	SubmitTimeout   time.Duration
	PollTimeout     time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxInFlight     int64
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.SubmitTimeout == 0 {
		out.SubmitTimeout = 5 * time.Second
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = 5 * time.Second
	}
	if out.PollInterval == 0 {
		out.PollInterval = 10 * time.Second
	}
	if out.MaxPollAttempts == 0 {
		out.MaxPollAttempts = 18
	}
	if out.MaxInFlight == 0 {
		out.MaxInFlight = 16
	}
	return out
}

// Dispatcher queries workers over HTTP with signed request envelopes.
type Dispatcher struct {
	signer *envelope.Signer
	sink   *telemetry.Sink
	opts   Options

	sem     *semaphore.Weighted
	submitC *http.Client
	pollC   *http.Client
}

// New creates a dispatcher. sink may be nil to disable telemetry.
func New(signer *envelope.Signer, sink *telemetry.Sink, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		signer:  signer,
		sink:    sink,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxInFlight),
		submitC: &http.Client{Timeout: opts.SubmitTimeout},
		pollC:   &http.Client{Timeout: opts.PollTimeout},
	}
}

// queryPayload is what a worker sees. The solution never appears here.
type queryPayload struct {
	ProblemID     string            `json:"problem_id"`
	TrainExamples []problem.Example `json:"train_examples"`
	TestInput     grid.Grid         `json:"test_input"`
	NumTrain      int               `json:"num_train"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type checkTaskResponse struct {
	Status string `json:"status"`
	Result struct {
		Output grid.Grid `json:"output"`
	} `json:"result"`
	Error string `json:"error"`
}

// buildPayload serializes the outbound query and verifies the key set so a
// refactor can never leak the held-back answer onto the wire.
func buildPayload(p *problem.Problem) (json.RawMessage, error) {
	raw, err := json.Marshal(&queryPayload{
		ProblemID:     p.ID,
		TrainExamples: p.TrainExamples,
		TestInput:     p.TestInput,
		NumTrain:      p.NumTrain,
	})
	if err != nil {
		return nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	for k := range keys {
		switch k {
		case "problem_id", "train_examples", "test_input", "num_train":
		default:
			return nil, errors.Errorf("unexpected key %q in query payload", k)
		}
	}

	var examples []map[string]json.RawMessage
	if err := json.Unmarshal(keys["train_examples"], &examples); err != nil {
		return nil, errors.Wrap(err, "reparse train examples")
	}
	if len(examples) != len(p.TrainExamples) {
		return nil, errors.Errorf("train examples lost in serialization: %d != %d", len(examples), len(p.TrainExamples))
	}
	for i, ex := range examples {
		if _, ok := ex["input"]; !ok {
			return nil, errors.Errorf("train example %d lost its input", i)
		}
		if _, ok := ex["output"]; !ok {
			return nil, errors.Errorf("train example %d lost its output", i)
		}
	}
	return raw, nil
}

// Dispatch queries all workers with the problem concurrently and returns one
// outcome per worker. Outcomes are returned in no particular order.
func (d *Dispatcher) Dispatch(ctx context.Context, block uint64, workers []*hone.Worker, p *problem.Problem) ([]*hone.QueryOutcome, error) {
	payload, err := buildPayload(p)
	if err != nil {
		return nil, errors.Wrap(err, "build query payload")
	}

	results := make([]*hone.QueryOutcome, len(workers))
	var goes co.Goes
	for i, w := range workers {
		goes.Go(func() {
			results[i] = d.queryOne(ctx, block, w, p, payload)
		})
	}
	goes.Wait()
	return results, nil
}

func (d *Dispatcher) queryOne(ctx context.Context, block uint64, w *hone.Worker, p *problem.Problem, payload json.RawMessage) *hone.QueryOutcome {
	outcome := &hone.QueryOutcome{
		Block:               block,
		UID:                 w.UID,
		ProblemID:           p.ID,
		BaseTask:            p.Meta.BaseTask,
		ChainLength:         p.Meta.ChainLength,
		TransformationChain: p.Meta.TransformationChain,
		NumTrainExamples:    p.NumTrain,
		Timestamp:           time.Now().UTC(),
	}
	traceID := uuid.New()

	taskID, err := d.submit(ctx, w, payload)
	if err != nil {
		outcome.ErrorReason = fmt.Sprintf("submit: %s", err)
		metricQueries().AddWithLabel(1, map[string]string{"result": "submit_error"})
		logger.Debug("query submit failed", "trace", traceID, "uid", w.UID, "err", err)
		return outcome
	}

	// response time measures solving, not submit latency
	start := mclock.Now()
	res, raw, err := d.poll(ctx, w, taskID)
	elapsed := time.Duration(mclock.Now() - start)
	outcome.ResponseTime = elapsed.Seconds()
	metricPollDuration().Observe(elapsed.Milliseconds())

	if err != nil {
		outcome.ErrorReason = err.Error()
		metricQueries().AddWithLabel(1, map[string]string{"result": "poll_error"})
		logger.Debug("query poll failed", "trace", traceID, "uid", w.UID, "task", taskID, "err", err)
		return outcome
	}
	outcome.RawResponse = raw

	if err := res.Result.Output.Validate(); err != nil {
		outcome.ErrorReason = fmt.Sprintf("invalid output grid: %s", err)
		metricQueries().AddWithLabel(1, map[string]string{"result": "invalid_output"})
		return outcome
	}

	outcome.Success = true
	outcome.Metrics = scoreResponse(res.Result.Output, p.TestOutput, outcome.ResponseTime)
	metricQueries().AddWithLabel(1, map[string]string{"result": "ok"})

	if d.sink != nil {
		d.sink.Enqueue("/validator/ingest_miner_metrics", map[string]any{
			"uid":           w.UID,
			"hotkey":        w.Hotkey,
			"problem_id":    p.ID,
			"response_time": outcome.ResponseTime,
			"metrics":       outcome.Metrics,
			"block":         block,
		})
	}
	return outcome
}

func scoreResponse(got, want grid.Grid, responseTime float64) hone.Metrics {
	m := hone.Metrics{
		GridSimilarity:     grid.Similarity(got, want),
		PartialCorrectness: grid.PartialCorrectness(got, want),
		EfficiencyScore:    grid.Efficiency(responseTime),
	}
	if got.Equal(want) {
		m.ExactMatch = 1
	}
	return m
}

func (d *Dispatcher) submit(ctx context.Context, w *hone.Worker, payload json.RawMessage) (string, error) {
	body, sig, err := d.signer.Build(w.Hotkey, payload)
	if err != nil {
		return "", errors.Wrap(err, "sign request")
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer d.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint()+hone.QueryPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hone.BodySignatureHeader, sig)

	resp, err := d.submitC.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("http status %d", resp.StatusCode)
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", errors.Wrap(err, "decode submit response")
	}
	if sr.TaskID == "" {
		return "", errors.New("empty task id")
	}
	return sr.TaskID, nil
}

// poll checks the task until it completes, fails, or the attempt budget is
// spent. A pending task after the last attempt is a timeout.
func (d *Dispatcher) poll(ctx context.Context, w *hone.Worker, taskID string) (*checkTaskResponse, json.RawMessage, error) {
	url := w.Endpoint() + hone.CheckTaskPath + "/" + taskID
	for attempt := range d.opts.MaxPollAttempts {
		res, raw, err := d.checkTask(ctx, w, url, taskID)
		if err != nil {
			// transient poll errors count against the budget but do not
			// abort: the worker may still finish
			logger.Trace("check-task failed", "uid", w.UID, "attempt", attempt+1, "err", err)
		} else {
			switch res.Status {
			case "completed":
				return res, raw, nil
			case "failed":
				if res.Error != "" {
					return nil, nil, errors.Errorf("worker failed task: %s", res.Error)
				}
				return nil, nil, errors.New("worker failed task")
			case "pending", "processing":
			default:
				return nil, nil, errors.Errorf("unknown task status %q", res.Status)
			}
		}

		if attempt == d.opts.MaxPollAttempts-1 {
			break
		}
		select {
		case <-time.After(d.opts.PollInterval):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	return nil, nil, errors.Errorf("task %s still pending after %d polls", taskID, d.opts.MaxPollAttempts)
}

// checkTask performs a single poll. Each poll is a freshly signed envelope;
// a worker rejects stale or unsigned checks the same way it rejects queries.
func (d *Dispatcher) checkTask(ctx context.Context, w *hone.Worker, url, taskID string) (*checkTaskResponse, json.RawMessage, error) {
	body, sig, err := d.signer.Build(w.Hotkey, map[string]string{"task_id": taskID})
	if err != nil {
		return nil, nil, errors.Wrap(err, "sign check-task request")
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer d.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hone.BodySignatureHeader, sig)
	resp, err := d.pollC.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.Errorf("http status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, err
	}
	var res checkTaskResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, nil, errors.Wrap(err, "decode check-task response")
	}
	return &res, raw, nil
}
