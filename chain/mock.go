// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"fmt"
	"sync"

	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/keys"
)

// WeightCommit is one recorded weight submission on the mock ledger.
type WeightCommit struct {
	Block  uint64
	UIDs   []uint64
	Ticks  []uint64
	Floats []float64
	Reveal bool
}

// MockClient is an in-memory ledger for local runs and tests. Workers are
// derived deterministically from the subnet size, the block height advances
// on every read, and weight commits are recorded instead of submitted.
type MockClient struct {
	mu sync.Mutex

	connected bool
	block     uint64
	myUID     uint64
	size      int
	workers   []*hone.Worker

	minInterval  uint64
	lastCommit   uint64
	commitReveal bool

	history []*WeightCommit
}

// NewMockClient creates a mock subnet with size UIDs. The validator occupies
// uid 0; all other slots are workers with hotkeys derived from their uid.
func NewMockClient(size int, workerPort uint16) *MockClient {
	workers := make([]*hone.Worker, 0, size-1)
	for uid := uint64(1); uid < uint64(size); uid++ {
		kp := keys.FromSeedPhrase(fmt.Sprintf("mock worker %d", uid))
		workers = append(workers, &hone.Worker{
			UID:    uid,
			Hotkey: kp.Address(),
			Host:   "127.0.0.1",
			Port:   workerPort,
			Stake:  100,
		})
	}
	return &MockClient{
		block:       1000,
		size:        size,
		workers:     workers,
		minInterval: 100,
	}
}

func (m *MockClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockClient) Close() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *MockClient) checkConnected() error {
	if !m.connected {
		return ErrNotConnected
	}
	return nil
}

func (m *MockClient) MyUID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, err
	}
	return m.myUID, nil
}

// CurrentBlock advances the chain by one block per read, simulating time
// passing between polls.
func (m *MockClient) CurrentBlock() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, err
	}
	m.block++
	return m.block, nil
}

func (m *MockClient) ListWorkers() ([]*hone.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return nil, err
	}
	out := make([]*hone.Worker, len(m.workers))
	copy(out, m.workers)
	return out, nil
}

func (m *MockClient) SubnetSize() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, err
	}
	return m.size, nil
}

func (m *MockClient) BlocksSinceLastCommit(uid uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, err
	}
	if m.lastCommit == 0 {
		return m.block, nil
	}
	return m.block - m.lastCommit, nil
}

func (m *MockClient) MinCommitInterval() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, err
	}
	return m.minInterval, nil
}

func (m *MockClient) CommitRevealEnabled() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return false, err
	}
	return m.commitReveal, nil
}

func (m *MockClient) CommitWeights(uids []uint64, ticks []uint64, myUID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	if m.block-m.lastCommit < m.minInterval && m.lastCommit != 0 {
		return ErrTooSoon
	}
	m.history = append(m.history, &WeightCommit{
		Block: m.block,
		UIDs:  append([]uint64(nil), uids...),
		Ticks: append([]uint64(nil), ticks...),
	})
	m.lastCommit = m.block
	return nil
}

func (m *MockClient) CommitWeightsReveal(uids []uint64, weights []float64, myUID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	m.history = append(m.history, &WeightCommit{
		Block:  m.block,
		UIDs:   append([]uint64(nil), uids...),
		Floats: append([]float64(nil), weights...),
		Reveal: true,
	})
	m.lastCommit = m.block
	return nil
}

// History returns all recorded commits.
func (m *MockClient) History() []*WeightCommit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*WeightCommit, len(m.history))
	copy(out, m.history)
	return out
}

// SetWorkerEndpoint redirects one mock worker to host:port, letting tests
// point a uid at an httptest server.
func (m *MockClient) SetWorkerEndpoint(uid uint64, host string, port uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.UID == uid {
			w.Host = host
			w.Port = port
			return
		}
	}
}

// SetMinCommitInterval overrides the rate limit for tests.
func (m *MockClient) SetMinCommitInterval(v uint64) {
	m.mu.Lock()
	m.minInterval = v
	m.mu.Unlock()
}

// SetCommitReveal toggles the commit-reveal flag for tests.
func (m *MockClient) SetCommitReveal(v bool) {
	m.mu.Lock()
	m.commitReveal = v
	m.mu.Unlock()
}
