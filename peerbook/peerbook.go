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

// Package peerbook maintains a ranked cache of "propose peer"
// candidates (recently-seen transport addresses not yet promoted to
// the connection table), shared across co-located processes. The
// interface/backend split (an in-process default, an optional
// external store selected by a connection spec) is carried over from
// the teacher's util.KeyValueStore / OpenKVStore idiom.
package peerbook

import (
	"fmt"
	"sort"

	"github.com/bfix/ringnet/util"
)

// ErrBookUnavailable is returned when the requested backend could not
// be reached.
var ErrBookUnavailable = fmt.Errorf("peerbook: backend not available")

// Book proposes peer transport addresses ranked by a caller-supplied
// score (higher is more preferred). The candidate set is not capped;
// entries leave it only through Forget.
type Book interface {
	// Propose records that ta was seen with the given score,
	// keeping the better of the old and new score if ta is already
	// known.
	Propose(ta string, score float64) error
	// Top returns up to n transport addresses, highest score first.
	Top(n int) ([]string, error)
	// Forget removes ta from the book, e.g. once it has been
	// promoted into the connection table.
	Forget(ta string) error
}

// Open selects a Book backend from spec, following the
// "<kind>+<args>" connection-spec convention: "mem" for the
// in-process map, "redis+addr+passwd+db" for a shared Redis instance.
func Open(spec string) (Book, error) {
	if spec == "" || spec == "mem" {
		return NewMemBook(), nil
	}
	return openRedis(spec)
}

//----------------------------------------------------------------------
// in-process backend
//----------------------------------------------------------------------

// MemBook is an in-process Book backed by util.Map, the teacher's
// reentrant-locking generic map. It is the default backend for a
// single standalone node.
type MemBook struct {
	scores *util.Map[string, float64]
}

// NewMemBook creates an empty in-process peer book.
func NewMemBook() *MemBook {
	return &MemBook{scores: util.NewMap[string, float64]()}
}

// Propose implements Book.
func (b *MemBook) Propose(ta string, score float64) error {
	if old, ok := b.scores.Get(ta, 0); !ok || score > old {
		b.scores.Put(ta, score, 0)
	}
	return nil
}

// Top implements Book.
func (b *MemBook) Top(n int) ([]string, error) {
	type entry struct {
		ta    string
		score float64
	}
	var entries []entry
	_ = b.scores.ProcessRange(func(key string, value float64, pid int) error {
		entries = append(entries, entry{key, value})
		return nil
	}, true)

	sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })
	if n > len(entries) || n <= 0 {
		n = len(entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].ta
	}
	return out, nil
}

// Forget implements Book.
func (b *MemBook) Forget(ta string) error {
	b.scores.Delete(ta, 0)
	return nil
}
