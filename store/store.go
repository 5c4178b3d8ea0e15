// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package store persists workers, query outcomes and score snapshots in a
// single sqlite database. The validator survives restarts on this state: the
// scoring window is rebuilt from query_results, never from memory.
package store

import (
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/hone"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
)

var logger = log.WithContext("pkg", "store")

var metricWrites = metrics.LazyLoadCounter("store_write_total")

const (
	connectAttempts       = 10
	connectInitialBackoff = 500 * time.Millisecond
	connectMaxBackoff     = 5 * time.Second
)

// Store is the durable result store. Safe for concurrent use; sqlite
// serializes writers underneath.
type Store struct {
	path string
	db   *sql.DB
}

// New creates or opens the store at the given path. Opening is retried with
// growing backoff since the database may be briefly locked by a previous
// instance shutting down.
func New(path string) (*Store, error) {
	backoff := connectInitialBackoff
	var lastErr error
	for i := range connectAttempts {
		s, err := open(path)
		if err == nil {
			if i > 0 {
				logger.Info("store opened after retries", "attempts", i+1)
			}
			return s, nil
		}
		lastErr = err
		if i == connectAttempts-1 {
			break
		}
		logger.Warn("store open failed, retrying", "attempt", i+1, "err", err)
		time.Sleep(backoff)
		if backoff *= 2; backoff > connectMaxBackoff {
			backoff = connectMaxBackoff
		}
	}
	return nil, errors.Wrapf(lastErr, "open store at %s", path)
}

// NewMem creates a store in ram.
func NewMem() (*Store, error) {
	return open(":memory:")
}

func open(path string) (store *Store, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if store == nil {
			db.Close()
		}
	}()
	// a single connection keeps :memory: databases alive and sidesteps
	// sqlite's multi-writer lock contention
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(minerTableSchema + queryResultTableSchema + scoreTableSchema); err != nil {
		return nil, err
	}
	return &Store{path, db}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// UpsertWorker inserts or refreshes one worker row, keeping firstSeen from
// the original insert.
func (s *Store) UpsertWorker(w *hone.Worker) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO miners(uid, hotkey, host, port, stake, lastUpdateBlock, firstSeen, lastSeen)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(uid) DO UPDATE SET
			hotkey=excluded.hotkey,
			host=excluded.host,
			port=excluded.port,
			stake=excluded.stake,
			lastUpdateBlock=excluded.lastUpdateBlock,
			lastSeen=excluded.lastSeen`,
		w.UID, w.Hotkey, w.Host, w.Port, w.Stake, w.LastUpdateBlock, now, now)
	if err != nil {
		return errors.Wrap(err, "upsert worker")
	}
	metricWrites().Add(1)
	return nil
}

// Workers returns all known workers ordered by uid.
func (s *Store) Workers() ([]*hone.Worker, error) {
	rows, err := s.db.Query(`SELECT uid, hotkey, host, port, stake, lastUpdateBlock FROM miners ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*hone.Worker
	for rows.Next() {
		w := &hone.Worker{}
		if err := rows.Scan(&w.UID, &w.Hotkey, &w.Host, &w.Port, &w.Stake, &w.LastUpdateBlock); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// RecordOutcome persists one query outcome. A duplicate (uid, problem, block)
// triple is silently ignored so replayed dispatches stay idempotent.
func (s *Store) RecordOutcome(o *hone.QueryOutcome) error {
	chain, err := json.Marshal(o.TransformationChain)
	if err != nil {
		return errors.Wrap(err, "marshal transformation chain")
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO query_results(
			block, uid, problemID, success, responseTime,
			exactMatch, partialCorrectness, gridSimilarity, efficiencyScore,
			baseTask, chainLength, transformationChain, numTrainExamples,
			errorReason, rawResponse, createdAt)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.Block, o.UID, o.ProblemID, o.Success, o.ResponseTime,
		o.Metrics.ExactMatch, o.Metrics.PartialCorrectness, o.Metrics.GridSimilarity, o.Metrics.EfficiencyScore,
		o.BaseTask, o.ChainLength, string(chain), o.NumTrainExamples,
		o.ErrorReason, []byte(o.RawResponse), o.Timestamp.Unix())
	if err != nil {
		return errors.Wrap(err, "record outcome")
	}
	metricWrites().Add(1)
	return nil
}

// RecentOutcomes returns all outcomes inside the scoring window ending at
// currentBlock, oldest first.
func (s *Store) RecentOutcomes(windowBlocks, currentBlock uint64) ([]*hone.QueryOutcome, error) {
	var sinceBlock uint64
	if currentBlock > windowBlocks {
		sinceBlock = currentBlock - windowBlocks
	}
	rows, err := s.db.Query(`
		SELECT block, uid, problemID, success, responseTime,
			exactMatch, partialCorrectness, gridSimilarity, efficiencyScore,
			baseTask, chainLength, transformationChain, numTrainExamples,
			errorReason, rawResponse, createdAt
		FROM query_results
		WHERE block >= ? AND block <= ?
		ORDER BY block ASC, id ASC`, sinceBlock, currentBlock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*hone.QueryOutcome
	for rows.Next() {
		o := &hone.QueryOutcome{}
		var chain string
		var raw []byte
		var createdAt int64
		if err := rows.Scan(
			&o.Block, &o.UID, &o.ProblemID, &o.Success, &o.ResponseTime,
			&o.Metrics.ExactMatch, &o.Metrics.PartialCorrectness, &o.Metrics.GridSimilarity, &o.Metrics.EfficiencyScore,
			&o.BaseTask, &o.ChainLength, &chain, &o.NumTrainExamples,
			&o.ErrorReason, &raw, &createdAt,
		); err != nil {
			return nil, err
		}
		if chain != "" {
			if err := json.Unmarshal([]byte(chain), &o.TransformationChain); err != nil {
				return nil, errors.Wrap(err, "unmarshal transformation chain")
			}
		}
		o.RawResponse = raw
		o.Timestamp = time.Unix(createdAt, 0).UTC()
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// WorkerStats is the per-worker aggregate over a block window.
type WorkerStats struct {
	Count               int
	ExactMatches        int
	SuccessfulResponses int
	PartialSum          float64
	SimilaritySum       float64
	EfficiencySum       float64
}

// StatsFor aggregates one worker's outcomes inside the window ending at
// currentBlock. Sum fields only accumulate successful outcomes.
func (s *Store) StatsFor(uid uint64, windowBlocks, currentBlock uint64) (*WorkerStats, error) {
	var sinceBlock uint64
	if currentBlock > windowBlocks {
		sinceBlock = currentBlock - windowBlocks
	}
	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success AND exactMatch >= 1.0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(CASE WHEN success THEN partialCorrectness ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success THEN gridSimilarity ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success THEN efficiencyScore ELSE 0 END), 0)
		FROM query_results
		WHERE uid = ? AND block >= ? AND block <= ?`, uid, sinceBlock, currentBlock)

	stats := &WorkerStats{}
	if err := row.Scan(
		&stats.Count, &stats.ExactMatches, &stats.SuccessfulResponses,
		&stats.PartialSum, &stats.SimilaritySum, &stats.EfficiencySum,
	); err != nil {
		return nil, err
	}
	return stats, nil
}

// SaveScores appends one score snapshot row per record, all sharing a single
// timestamp. Rows are written in uid order.
func (s *Store) SaveScores(records map[uint64]*hone.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	uids := make([]uint64, 0, len(records))
	for uid := range records {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, uid := range uids {
		r := records[uid]
		if _, err := tx.Exec(`
			INSERT INTO scores(uid, score, exactMatchRate, partialAvg, efficiencyAvg, createdAt)
			VALUES(?,?,?,?,?,?)`,
			r.UID, r.Score, r.ExactMatchRate, r.PartialAvg, r.EfficiencyAvg, now); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "save score")
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metricWrites().Add(1)
	return nil
}

// LatestScores returns the most recent score snapshot, one record per uid.
func (s *Store) LatestScores() ([]*hone.ScoreRecord, error) {
	rows, err := s.db.Query(`
		SELECT uid, score, exactMatchRate, partialAvg, efficiencyAvg, createdAt
		FROM scores
		WHERE createdAt = (SELECT MAX(createdAt) FROM scores)
		ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*hone.ScoreRecord
	for rows.Next() {
		r := &hone.ScoreRecord{}
		var createdAt int64
		if err := rows.Scan(&r.UID, &r.Score, &r.ExactMatchRate, &r.PartialAvg, &r.EfficiencyAvg, &createdAt); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(createdAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Cleanup deletes query results and score rows older than retention and
// returns the number of rows removed.
func (s *Store) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	var total int64
	for _, table := range []string{"query_results", "scores"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE createdAt < ?", cutoff)
		if err != nil {
			return total, errors.Wrapf(err, "cleanup %s", table)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		logger.Debug("cleaned up old rows", "rows", total)
	}
	return total, nil
}
