// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package natlist

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bfix/gospel/logger"
)

// journal is an optional on-disk mirror of the NAT history append
// log, so postmortem tooling can reconstruct a node's remap history
// across restarts. It is purely additive: the in-memory ranked TA
// list never reads from it.
type journal struct {
	db *sql.DB
}

const createJournalTable = `
CREATE TABLE IF NOT EXISTS nat_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	local_id INTEGER NOT NULL,
	ta TEXT
)`

// OpenJournal opens (creating if necessary) a SQLite-backed journal
// file at path.
func OpenJournal(path string) (*journal, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal=WAL", path))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createJournalTable); err != nil {
		db.Close()
		return nil, err
	}
	return &journal{db: db}, nil
}

// write appends a data point to the journal; failures are logged and
// swallowed, matching the history's best-effort persistence policy.
func (j *journal) write(dp DataPoint) {
	var taStr interface{}
	if dp.TA != nil {
		taStr = dp.TA.String()
	}
	_, err := j.db.Exec(
		"INSERT INTO nat_history (ts, kind, local_id, ta) VALUES (?, ?, ?, ?)",
		dp.Timestamp.Val, int(dp.Kind), dp.LocalID, taStr,
	)
	if err != nil {
		logger.Printf(logger.WARN, "[natlist] journal write failed: %s\n", err.Error())
	}
}

func (j *journal) close() error {
	return j.db.Close()
}
