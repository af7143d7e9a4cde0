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

package peerbook

import "testing"

func TestMemBookRanksByScore(t *testing.T) {
	b := NewMemBook()
	_ = b.Propose("a", 1.0)
	_ = b.Propose("b", 3.0)
	_ = b.Propose("c", 2.0)

	top, err := b.Top(2)
	if err != nil {
		t.Fatalf("Top failed: %s", err)
	}
	if len(top) != 2 || top[0] != "b" || top[1] != "c" {
		t.Fatalf("expected [b c], got %v", top)
	}
}

func TestMemBookKeepsBetterScore(t *testing.T) {
	b := NewMemBook()
	_ = b.Propose("a", 5.0)
	_ = b.Propose("a", 1.0)

	top, _ := b.Top(1)
	if len(top) != 1 || top[0] != "a" {
		t.Fatalf("expected a to survive, got %v", top)
	}
	if score, _ := b.scores.Get("a", 0); score != 5.0 {
		t.Fatalf("expected score to stay at 5.0, got %v", score)
	}
}

func TestMemBookForget(t *testing.T) {
	b := NewMemBook()
	_ = b.Propose("a", 1.0)
	_ = b.Forget("a")

	top, _ := b.Top(10)
	if len(top) != 0 {
		t.Fatalf("expected empty book after Forget, got %v", top)
	}
}

func TestOpenDefaultsToMemBook(t *testing.T) {
	bk, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") failed: %s", err)
	}
	if _, ok := bk.(*MemBook); !ok {
		t.Fatalf("expected a *MemBook for empty spec")
	}
}
