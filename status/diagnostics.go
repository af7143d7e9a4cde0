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

	"github.com/bfix/ringnet/natlist"
	"github.com/bfix/ringnet/table"
	"github.com/bfix/ringnet/util"
)

// Diagnostics serves read-only snapshots of a node's connection table
// and NAT history over plain HTTP GET, for operators and tests rather
// than for peer protocol traffic.
type Diagnostics struct {
	tbl *table.Table
	nat *natlist.History
}

// NewDiagnostics binds a diagnostics handler to tbl and nat.
func NewDiagnostics(tbl *table.Table, nat *natlist.History) *Diagnostics {
	return &Diagnostics{tbl: tbl, nat: nat}
}

type connectionView struct {
	Address        string `json:"address"`
	TA             string `json:"ta"`
	Class          string `json:"class"`
	StatusEndpoint string `json:"statusEndpoint,omitempty"`
}

// ServeTable handles GET /debug/table: a JSON snapshot of every
// connection currently held, across all classes.
func (d *Diagnostics) ServeTable(w http.ResponseWriter, r *http.Request) {
	out := make([]connectionView, 0, d.tbl.Size())
	for _, cls := range []table.Class{table.Near, table.Shortcut, table.Leaf} {
		for _, c := range d.tbl.GetConnections(cls) {
			ta := ""
			if c.TA != nil {
				ta = c.TA.String()
			}
			out = append(out, connectionView{
				Address:        c.Address.String(),
				TA:             ta,
				Class:          c.Class.String(),
				StatusEndpoint: c.StatusEndpoint,
			})
		}
	}
	writeJSON(w, out)
}

// ServeSummary handles GET /debug/summary: the connection count per
// class, e.g. {"near":2,"shortcut":1,"leaf":0}.
func (d *Diagnostics) ServeSummary(w http.ResponseWriter, r *http.Request) {
	counts := make(util.Counter[string])
	for _, cls := range []table.Class{table.Near, table.Shortcut, table.Leaf} {
		counts[cls.String()] = 0
		for range d.tbl.GetConnections(cls) {
			counts.Add(cls.String())
		}
	}
	writeJSON(w, counts)
}

// ServeNAT handles GET /debug/nat: the ranked transport-address list
// currently believed reachable for this node, most-recently-confirmed
// first.
func (d *Diagnostics) ServeNAT(w http.ResponseWriter, r *http.Request) {
	ranked := d.nat.RankedTAs()
	out := make([]string, 0, len(ranked))
	for _, ta := range ranked {
		out = append(out, ta.String())
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
