// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
)

var logger = log.WithContext("pkg", "chain")

const (
	readRetries     = 3
	initialBackoff  = time.Second
	maxBackoff      = 4 * time.Second
	requestTimeout  = 5 * time.Second
	commitTimeout   = 90 * time.Second // commits wait for finalization
	undefinedUID    = ^uint64(0)
	errNot200Format = "http status %d: %s"
)

// GatewayClient talks JSON over HTTP to a ledger gateway. One instance is
// shared by all readers; only the committer writes.
type GatewayClient struct {
	url    string
	netuid int
	hotkey string

	c       *http.Client
	commitC *http.Client

	mu        sync.Mutex
	connected bool
	myUID     uint64
}

// NewGatewayClient creates a client for the given gateway URL and subnet.
// hotkey is the validator's own address, used for the self-UID lookup.
func NewGatewayClient(url string, netuid int, hotkey string) *GatewayClient {
	return &GatewayClient{
		url:     url,
		netuid:  netuid,
		hotkey:  hotkey,
		c:       &http.Client{Timeout: requestTimeout},
		commitC: &http.Client{Timeout: commitTimeout},
		myUID:   undefinedUID,
	}
}

// Connect probes the gateway and resolves the validator's own UID from its
// hotkey. Calling it again re-resolves; a live session is kept as is.
func (c *GatewayClient) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var head struct {
		Number uint64 `json:"number"`
	}
	if err := c.httpGET(fmt.Sprintf("%s/blocks/best", c.url), &head); err != nil {
		return errors.Wrap(err, "connect to chain gateway")
	}

	var res struct {
		Nodes []*metagraphNode `json:"nodes"`
	}
	if err := c.httpGET(fmt.Sprintf("%s/subnets/%d/metagraph", c.url, c.netuid), &res); err != nil {
		return errors.Wrap(err, "fetch metagraph")
	}

	c.mu.Lock()
	c.connected = true
	for _, n := range res.Nodes {
		if n.Hotkey == c.hotkey {
			c.myUID = n.UID
			break
		}
	}
	myUID := c.myUID
	c.mu.Unlock()

	logger.Info("connected to chain gateway", "url", c.url, "block", head.Number, "uid", myUID)
	return nil
}

func (c *GatewayClient) Close() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.c.CloseIdleConnections()
	c.commitC.CloseIdleConnections()
}

func (c *GatewayClient) MyUID() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.myUID == undefinedUID {
		return 0, errors.New("validator hotkey not registered on subnet")
	}
	return c.myUID, nil
}

func (c *GatewayClient) CurrentBlock() (uint64, error) {
	var head struct {
		Number uint64 `json:"number"`
	}
	err := c.withRetry(func() error {
		return c.httpGET(fmt.Sprintf("%s/blocks/best", c.url), &head)
	})
	return head.Number, err
}

// metagraphNode is the gateway's wire form of a subnet participant.
type metagraphNode struct {
	UID        uint64  `json:"uid"`
	Hotkey     string  `json:"hotkey"`
	Host       string  `json:"host"`
	Port       uint16  `json:"port"`
	Stake      float64 `json:"stake"`
	LastUpdate uint64  `json:"lastUpdate"`
	Validator  bool    `json:"validator"`
}

func (c *GatewayClient) metagraph() ([]*metagraphNode, error) {
	var res struct {
		Nodes []*metagraphNode `json:"nodes"`
	}
	err := c.withRetry(func() error {
		return c.httpGET(fmt.Sprintf("%s/subnets/%d/metagraph", c.url, c.netuid), &res)
	})
	return res.Nodes, err
}

func (c *GatewayClient) ListWorkers() ([]*hone.Worker, error) {
	nodes, err := c.metagraph()
	if err != nil {
		return nil, err
	}
	workers := make([]*hone.Worker, 0, len(nodes))
	for _, n := range nodes {
		if n.Validator {
			continue
		}
		workers = append(workers, &hone.Worker{
			UID:             n.UID,
			Hotkey:          n.Hotkey,
			Host:            n.Host,
			Port:            n.Port,
			Stake:           n.Stake,
			LastUpdateBlock: n.LastUpdate,
		})
	}
	return workers, nil
}

func (c *GatewayClient) SubnetSize() (int, error) {
	nodes, err := c.metagraph()
	return len(nodes), err
}

func (c *GatewayClient) BlocksSinceLastCommit(uid uint64) (uint64, error) {
	var res struct {
		Blocks uint64 `json:"blocks"`
	}
	err := c.withRetry(func() error {
		return c.httpGET(fmt.Sprintf("%s/subnets/%d/nodes/%d/blocks-since-update", c.url, c.netuid, uid), &res)
	})
	return res.Blocks, err
}

func (c *GatewayClient) MinCommitInterval() (uint64, error) {
	var res struct {
		MinInterval uint64 `json:"minInterval"`
	}
	err := c.withRetry(func() error {
		return c.httpGET(fmt.Sprintf("%s/subnets/%d/weights/rate-limit", c.url, c.netuid), &res)
	})
	return res.MinInterval, err
}

func (c *GatewayClient) CommitRevealEnabled() (bool, error) {
	var res struct {
		Enabled bool `json:"enabled"`
	}
	err := c.withRetry(func() error {
		return c.httpGET(fmt.Sprintf("%s/subnets/%d/weights/commit-reveal", c.url, c.netuid), &res)
	})
	return res.Enabled, err
}

type commitRequest struct {
	UID                 uint64    `json:"uid"`
	UIDs                []uint64  `json:"uids"`
	Ticks               []uint64  `json:"ticks,omitempty"`
	Weights             []float64 `json:"weights,omitempty"`
	Reveal              bool      `json:"reveal"`
	WaitForFinalization bool      `json:"waitForFinalization"`
}

func (c *GatewayClient) CommitWeights(uids []uint64, ticks []uint64, myUID uint64) error {
	return c.commit(&commitRequest{
		UID:                 myUID,
		UIDs:                uids,
		Ticks:               ticks,
		WaitForFinalization: true,
	})
}

func (c *GatewayClient) CommitWeightsReveal(uids []uint64, weights []float64, myUID uint64) error {
	return c.commit(&commitRequest{
		UID:                 myUID,
		UIDs:                uids,
		Weights:             weights,
		Reveal:              true,
		WaitForFinalization: true,
	})
}

// commit is submitted exactly once: the ledger either confirms finalization
// or the error is terminal for this cycle.
func (c *GatewayClient) commit(req *commitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal commit")
	}
	url := fmt.Sprintf("%s/subnets/%d/weights", c.url, c.netuid)
	resp, err := c.commitC.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "submit weights")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrTooSoon
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RejectError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw))}
	}
}

// withRetry runs fn up to readRetries times with exponential backoff,
// reconnecting when the session dropped.
func (c *GatewayClient) withRetry(fn func() error) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		if err := c.Connect(); err != nil {
			return err
		}
	}

	backoff := initialBackoff
	var err error
	for i := range readRetries {
		if err = fn(); err == nil {
			return nil
		}
		if i == readRetries-1 {
			break
		}
		logger.Debug("chain read failed, retrying", "attempt", i+1, "err", err)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		if cerr := c.Connect(); cerr != nil {
			logger.Debug("reconnect failed", "err", cerr)
		}
		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}

func (c *GatewayClient) httpGET(url string, out any) error {
	resp, err := c.c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf(errNot200Format, resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
