// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

const minerTableSchema = `
create table if not exists miners (
	uid integer primary key,
	hotkey text not null,
	host text,
	port integer,
	stake real,
	lastUpdateBlock integer,
	firstSeen integer not null,
	lastSeen integer not null
);
`

const queryResultTableSchema = `
create table if not exists query_results (
	id integer primary key autoincrement,
	block integer not null,
	uid integer not null,
	problemID text not null,
	success integer not null,
	responseTime real,
	exactMatch real,
	partialCorrectness real,
	gridSimilarity real,
	efficiencyScore real,
	baseTask integer,
	chainLength integer,
	transformationChain text,
	numTrainExamples integer,
	errorReason text,
	rawResponse blob,
	createdAt integer not null,
	unique(uid, problemID, block)
);

CREATE INDEX if not exists queryResultUIDBlockIndex on query_results(uid, block);
CREATE INDEX if not exists queryResultCreatedAtIndex on query_results(createdAt);
`

const scoreTableSchema = `
create table if not exists scores (
	id integer primary key autoincrement,
	uid integer not null,
	score real not null,
	exactMatchRate real,
	partialAvg real,
	efficiencyAvg real,
	createdAt integer not null
);

CREATE INDEX if not exists scoreUIDIndex on scores(uid);
CREATE INDEX if not exists scoreCreatedAtIndex on scores(createdAt);
`
