// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package telemetry forwards per-query miner metrics to an external collector
// over HTTP. Delivery is best effort: the sink buffers events in memory, drops
// the oldest when full, and never blocks the dispatcher.
package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/co"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
)

var logger = log.WithContext("pkg", "telemetry")

var metricDropped = metrics.LazyLoadCounter("telemetry_dropped_total")

const (
	queueSize     = 1000
	sendRetries   = 3
	retryInterval = 500 * time.Millisecond
	sendTimeout   = 5 * time.Second
	drainTimeout  = 2 * time.Second
)

// Event is one telemetry record, posted verbatim as JSON to the collector at
// the given path.
type Event struct {
	Path    string
	Payload any
}

// Sink queues events and delivers them from a single background goroutine.
// A Sink created with an empty endpoint accepts and discards everything.
type Sink struct {
	endpoint string
	c        *http.Client

	mu     sync.Mutex
	queue  []*Event
	notify chan struct{}
	closed bool

	goes co.Goes
	done chan struct{}
}

// NewSink creates and starts a sink posting to the given collector base URL.
// An empty endpoint disables delivery.
func NewSink(endpoint string) *Sink {
	s := &Sink{
		endpoint: endpoint,
		c:        &http.Client{Timeout: sendTimeout},
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if endpoint != "" {
		s.goes.Go(s.deliverLoop)
	}
	return s
}

// Enqueue adds an event to the delivery queue. When the queue is full the
// oldest pending event is dropped to make room, so recent data wins.
func (s *Sink) Enqueue(path string, payload any) {
	if s.endpoint == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= queueSize {
		s.queue = s.queue[1:]
		metricDropped().Add(1)
		logger.Debug("telemetry queue full, dropped oldest event")
	}
	s.queue = append(s.queue, &Event{Path: path, Payload: payload})
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of undelivered events.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shutdown stops intake and gives in-flight delivery a bounded grace period
// to drain the queue, then abandons what is left.
func (s *Sink) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := len(s.queue)
	s.mu.Unlock()

	close(s.done)
	done := make(chan struct{})
	go func() {
		s.goes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		logger.Warn("telemetry drain timed out", "pending", pending)
	}
}

func (s *Sink) deliverLoop() {
	for {
		ev := s.pop()
		if ev == nil {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				s.drain()
				return
			}
		}
		s.send(ev)
	}
}

// drain flushes whatever is queued at shutdown. The caller bounds the time
// spent here.
func (s *Sink) drain() {
	for {
		ev := s.pop()
		if ev == nil {
			return
		}
		s.send(ev)
	}
}

func (s *Sink) pop() *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev
}

func (s *Sink) send(ev *Event) {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		logger.Warn("telemetry payload not serializable", "err", err)
		return
	}
	for i := range sendRetries {
		if err = s.post(ev.Path, body); err == nil {
			return
		}
		if i < sendRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	metricDropped().Add(1)
	logger.Debug("telemetry event dropped after retries", "path", ev.Path, "err", err)
}

func (s *Sink) post(path string, body []byte) error {
	resp, err := s.c.Post(s.endpoint+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errors.Errorf("http status %d", resp.StatusCode)
	}
	return nil
}
