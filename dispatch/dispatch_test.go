// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/envelope"
	"github.com/hone-subnet/hone/grid"
	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/keys"
	"github.com/hone-subnet/hone/problem"
)

// fakeWorker implements the submit-then-poll surface of a worker.
type fakeWorker struct {
	t        *testing.T
	verifier *envelope.Verifier

	mu           sync.Mutex
	pendingPolls int    // polls answered "pending" before completing
	finalStatus  string // completed or failed
	output       grid.Grid
	lastPayload  map[string]json.RawMessage
	signedPolls  int
	lastPollData map[string]string
	submitDelay  time.Duration
}

func (f *fakeWorker) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == hone.QueryPath:
			if f.submitDelay > 0 {
				time.Sleep(f.submitDelay)
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				f.t.Errorf("read body: %v", err)
			}
			parsed, err := f.verifier.Verify(body, r.Header.Get(hone.BodySignatureHeader))
			if err != nil {
				f.t.Errorf("envelope rejected: %v", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.mu.Lock()
			json.Unmarshal(parsed.Data, &f.lastPayload)
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1"})

		case strings.HasPrefix(r.URL.Path, hone.CheckTaskPath+"/"):
			body, err := io.ReadAll(r.Body)
			if err != nil {
				f.t.Errorf("read poll body: %v", err)
			}
			parsed, err := f.verifier.Verify(body, r.Header.Get(hone.BodySignatureHeader))
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.signedPolls++
			json.Unmarshal(parsed.Data, &f.lastPollData)
			if f.pendingPolls > 0 {
				f.pendingPolls--
				json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
				return
			}
			if f.finalStatus == "failed" {
				json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "out of memory"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "completed",
				"result": map[string]any{"output": f.output},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeWorker) start(t *testing.T) *hone.Worker {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &hone.Worker{UID: 1, Hotkey: "worker-hotkey", Host: host, Port: uint16(port)}
}

func testProblem(t *testing.T) *problem.Problem {
	in := grid.Grid{{1, 2}, {3, 4}}
	out := grid.Grid{{4, 3}, {2, 1}}
	p := &problem.Problem{
		ID:            problem.ComputeID(in, []string{"rotate180"}),
		TrainExamples: []problem.Example{{Input: in, Output: out}},
		TestInput:     in,
		TestOutput:    out,
		NumTrain:      1,
		Meta:          problem.Meta{ChainLength: 1, TransformationChain: []string{"rotate180"}},
	}
	require.NoError(t, p.Validate())
	return p
}

func testDispatcher(t *testing.T, opts Options) (*Dispatcher, *envelope.Verifier) {
	kp := keys.FromSeedPhrase("dispatch test validator")
	return New(envelope.NewSigner(kp), nil, opts), envelope.NewVerifier()
}

func fastOptions(pendingTolerance int) Options {
	return Options{
		SubmitTimeout:   time.Second,
		PollTimeout:     time.Second,
		PollInterval:    10 * time.Millisecond,
		MaxPollAttempts: pendingTolerance,
	}
}

func TestDispatch_CompletesAfterPending(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(18))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, pendingPolls: 17, output: p.TestOutput}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	o := outcomes[0]
	assert.True(t, o.Success)
	assert.Empty(t, o.ErrorReason)
	assert.Equal(t, 1.0, o.Metrics.ExactMatch)
	assert.Equal(t, 1.0, o.Metrics.GridSimilarity)
	assert.Equal(t, uint64(100), o.Block)
	assert.Greater(t, o.ResponseTime, 0.0)
}

func TestDispatch_TimesOutStillPending(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(5))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, pendingPolls: 100, output: p.TestOutput}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Contains(t, o.ErrorReason, "still pending")
}

func TestDispatch_WorkerFailure(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, finalStatus: "failed"}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Contains(t, o.ErrorReason, "out of memory")
}

func TestDispatch_InvalidOutput(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	// ragged grid fails validation
	fw := &fakeWorker{t: t, verifier: v, output: grid.Grid{{1, 2}, {3}}}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Contains(t, o.ErrorReason, "invalid output grid")
}

func TestDispatch_WrongAnswerStillSucceeds(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, output: grid.Grid{{1, 1}, {1, 1}}}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	assert.True(t, o.Success)
	assert.Equal(t, 0.0, o.Metrics.ExactMatch)
	assert.Less(t, o.Metrics.GridSimilarity, 1.0)
}

func TestDispatch_UnreachableWorker(t *testing.T) {
	d, _ := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	w := &hone.Worker{UID: 9, Hotkey: "hk", Host: "127.0.0.1", Port: 1}

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Contains(t, o.ErrorReason, "submit")
}

func TestBuildPayload_NeverLeaksAnswer(t *testing.T) {
	p := testProblem(t)
	raw, err := buildPayload(p)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.NotContains(t, keys, "test_output")
	assert.Contains(t, keys, "problem_id")
	assert.Contains(t, keys, "train_examples")
	assert.Contains(t, keys, "test_input")
	assert.Contains(t, keys, "num_train")
}

func TestBuildPayload_PreservesTrainExamples(t *testing.T) {
	p := testProblem(t)
	raw, err := buildPayload(p)
	require.NoError(t, err)

	var payload struct {
		TrainExamples []map[string]json.RawMessage `json:"train_examples"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Len(t, payload.TrainExamples, len(p.TrainExamples))
	for _, ex := range payload.TrainExamples {
		assert.Contains(t, ex, "input")
		assert.Contains(t, ex, "output")
	}
}

func TestDispatch_PollsAreSigned(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(18))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, pendingPolls: 2, output: p.TestOutput}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)
	require.True(t, outcomes[0].Success)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	// the worker rejects unverified polls, so every accepted poll was signed
	assert.Equal(t, 3, fw.signedPolls)
	assert.Equal(t, "task-1", fw.lastPollData["task_id"])
}

func TestDispatch_ResponseTimeExcludesSubmit(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, output: p.TestOutput, submitDelay: 200 * time.Millisecond}
	w := fw.start(t)

	outcomes, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	o := outcomes[0]
	require.True(t, o.Success)
	assert.Less(t, o.ResponseTime, fw.submitDelay.Seconds())
}

func TestDispatch_PayloadSeenByWorker(t *testing.T) {
	d, v := testDispatcher(t, fastOptions(3))
	p := testProblem(t)
	fw := &fakeWorker{t: t, verifier: v, output: p.TestOutput}
	w := fw.start(t)

	_, err := d.Dispatch(context.Background(), 100, []*hone.Worker{w}, p)
	require.NoError(t, err)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.NotNil(t, fw.lastPayload)
	assert.NotContains(t, fw.lastPayload, "test_output")

	var id string
	require.NoError(t, json.Unmarshal(fw.lastPayload["problem_id"], &id))
	assert.Equal(t, p.ID, id)
}
