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

package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bfix/ringnet/table"
)

func TestServeSummaryCountsByClass(t *testing.T) {
	local := addr(0)
	tbl := table.New(local)
	tbl.Add(mkConn(10, 1001))
	tbl.Add(mkConn(20, 1002))

	diag := NewDiagnostics(tbl, nil)
	req := httptest.NewRequest(http.MethodGet, "/debug/summary", nil)
	w := httptest.NewRecorder()
	diag.ServeSummary(w, req)

	var counts map[string]int
	if err := json.NewDecoder(w.Body).Decode(&counts); err != nil {
		t.Fatalf("decoding summary: %s", err)
	}
	if counts[table.Near.String()] != 2 {
		t.Fatalf("expected 2 near connections, got %v", counts)
	}
	if counts[table.Shortcut.String()] != 0 || counts[table.Leaf.String()] != 0 {
		t.Fatalf("expected zero shortcut/leaf connections, got %v", counts)
	}
}
