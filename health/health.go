// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"
)

const defaultHeartbeatTolerance = 60 * time.Second

type Status struct {
	Healthy         bool       `json:"healthy"`
	Heartbeat       *time.Time `json:"heartbeat"`
	LastQueryCycle  *time.Time `json:"lastQueryCycle"`
	QueryCyclesDone uint64     `json:"queryCyclesDone"`
	CommitsDone     uint64     `json:"commitsDone"`
}

// Health tracks liveness of the validator control loop. The runner beats on
// every loop pass; a stalled loop turns the status unhealthy.
type Health struct {
	lock sync.RWMutex

	heartbeatTolerance time.Duration
	heartbeat          time.Time
	lastQueryCycle     time.Time
	queryCycles        uint64
	commits            uint64
}

func New() *Health {
	return &Health{heartbeatTolerance: defaultHeartbeatTolerance}
}

// NewWithTolerance overrides how stale a heartbeat may be before the
// validator reports unhealthy.
func NewWithTolerance(tolerance time.Duration) *Health {
	return &Health{heartbeatTolerance: tolerance}
}

func (h *Health) Heartbeat() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.heartbeat = time.Now()
}

func (h *Health) QueryCycleDone() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.lastQueryCycle = time.Now()
	h.queryCycles++
}

func (h *Health) CommitDone() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.commits++
}

func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	status := &Status{
		Healthy:         !h.heartbeat.IsZero() && time.Since(h.heartbeat) < h.heartbeatTolerance,
		QueryCyclesDone: h.queryCycles,
		CommitsDone:     h.commits,
	}
	if !h.heartbeat.IsZero() {
		hb := h.heartbeat
		status.Heartbeat = &hb
	}
	if !h.lastQueryCycle.IsZero() {
		lc := h.lastQueryCycle
		status.LastQueryCycle = &lc
	}
	return status
}
