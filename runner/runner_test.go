// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runner

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/chain"
	"github.com/hone-subnet/hone/dispatch"
	"github.com/hone-subnet/hone/envelope"
	"github.com/hone-subnet/hone/grid"
	"github.com/hone-subnet/hone/health"
	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/keys"
	"github.com/hone-subnet/hone/problem"
	"github.com/hone-subnet/hone/scoring"
	"github.com/hone-subnet/hone/store"
	"github.com/hone-subnet/hone/weights"
)

// taskOutput carries the grid the echo worker will answer with.
var taskOutput atomic.Value

// stubGenerator emits the same identity puzzle every time: the expected
// output equals the test input, which is exactly what the echo worker sends
// back.
type stubGenerator struct{}

func (g *stubGenerator) Generate(numTrain, chainLength int) (*problem.Problem, error) {
	in := grid.Grid{{1, 2}, {3, 4}}
	examples := make([]problem.Example, max(numTrain, 1))
	for i := range examples {
		examples[i] = problem.Example{Input: in, Output: in}
	}
	return &problem.Problem{
		ID:            problem.ComputeID(in, []string{"identity"}),
		TrainExamples: examples,
		TestInput:     in,
		TestOutput:    in,
		NumTrain:      len(examples),
		Meta:          problem.Meta{ChainLength: max(chainLength, 1), TransformationChain: []string{"identity"}},
	}, nil
}

// echoWorker answers every query instantly with the test input unchanged.
func echoWorker(t *testing.T) (host string, port uint16) {
	verifier := envelope.NewVerifier()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == hone.QueryPath:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read body: %v", err)
			}
			parsed, err := verifier.Verify(body, r.Header.Get(hone.BodySignatureHeader))
			if err != nil {
				t.Errorf("envelope rejected: %v", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var payload struct {
				TestInput grid.Grid `json:"test_input"`
			}
			require.NoError(t, json.Unmarshal(parsed.Data, &payload))
			json.NewEncoder(w).Encode(map[string]string{"task_id": "t1"})
			taskOutput.Store(payload.TestInput)

		case strings.HasPrefix(r.URL.Path, hone.CheckTaskPath+"/"):
			out, _ := taskOutput.Load().(grid.Grid)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "completed",
				"result": map[string]any{"output": out},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	h, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	p, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return h, uint16(p)
}

func TestRunner_FullCycle(t *testing.T) {
	host, port := echoWorker(t)

	client := chain.NewMockClient(4, port)
	require.NoError(t, client.Connect())
	client.SetMinCommitInterval(0)
	for uid := uint64(1); uid < 4; uid++ {
		client.SetWorkerEndpoint(uid, host, port)
	}

	db, err := store.NewMem()
	require.NoError(t, err)
	defer db.Close()

	kp := keys.FromSeedPhrase("runner test validator")

	d := dispatch.New(envelope.NewSigner(kp), nil, dispatch.Options{
		SubmitTimeout:   time.Second,
		PollTimeout:     time.Second,
		PollInterval:    5 * time.Millisecond,
		MaxPollAttempts: 3,
	})

	h := health.New()
	r := New(
		client, db, d,
		scoring.New(db, 1),
		weights.NewCommitter(client, weights.Options{Burn: 0.99, BurnUID: 0}),
		&stubGenerator{},
		nil, h,
		Options{
			CycleDuration: 2,
			BatchSize:     2,
			RoundSleep:    5 * time.Millisecond,
			LoopSleep:     5 * time.Millisecond,
			ErrorSleep:    5 * time.Millisecond,
		},
	)

	events := make(chan CycleEvent, 64)
	sub := r.SubscribeCycleEvents(events)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// wait for the first weight commit
	deadline := time.Now().Add(10 * time.Second)
	for len(client.History()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	hist := client.History()
	require.NotEmpty(t, hist)
	var sum uint64
	for _, tk := range hist[0].Ticks {
		sum += tk
	}
	assert.Equal(t, uint64(hone.U16Max), sum)

	// outcomes were persisted for real workers
	outcomes, err := db.RecentOutcomes(1000000, 1000000)
	require.NoError(t, err)
	assert.NotEmpty(t, outcomes)

	// workers were discovered and upserted
	workers, err := db.Workers()
	require.NoError(t, err)
	assert.Len(t, workers, 3)

	// scores snapshotted
	latest, err := db.LatestScores()
	require.NoError(t, err)
	assert.NotEmpty(t, latest)

	// the loop beat and completed at least one query cycle
	status := h.Status()
	assert.True(t, status.QueryCyclesDone >= 1)
	assert.True(t, status.CommitsDone >= 1)

	// state machine visited query, commit, and stopping
	seen := map[State]bool{}
	for {
		select {
		case ev := <-events:
			seen[ev.State] = true
			continue
		default:
		}
		break
	}
	assert.True(t, seen[InQueryCycle])
	assert.True(t, seen[InCommitCycle])
	assert.True(t, seen[Stopping])
}

func TestRunner_SurvivesChainErrors(t *testing.T) {
	client := chain.NewMockClient(2, 8091)
	// never connected: every read fails, the loop must keep retrying

	db, err := store.NewMem()
	require.NoError(t, err)
	defer db.Close()

	kp := keys.FromSeedPhrase("runner error test")

	r := New(
		client, db,
		dispatch.New(envelope.NewSigner(kp), nil, dispatch.Options{}),
		scoring.New(db, 1),
		weights.NewCommitter(client, weights.DefaultOptions()),
		&stubGenerator{},
		nil, nil,
		Options{
			CycleDuration: 2,
			RoundSleep:    time.Millisecond,
			LoopSleep:     time.Millisecond,
			ErrorSleep:    time.Millisecond,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop on context cancel")
	}
}

func TestOptions_DerivedCadence(t *testing.T) {
	opts := (&Options{CycleDuration: 30}).withDefaults()
	assert.Equal(t, uint64(35), opts.QueryIntervalBlocks())
	assert.Equal(t, uint64(35), opts.WeightsIntervalBlocks())
	assert.Equal(t, uint64(120), opts.ScoreWindowBlocks())
}

func TestOptions_RetentionDefaults(t *testing.T) {
	opts := (&Options{}).withDefaults()
	assert.Equal(t, 24*time.Hour, opts.CleanupInterval)
	assert.Equal(t, 30*24*time.Hour, opts.Retention)
}
