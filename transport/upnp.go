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

package transport

import (
	"github.com/bfix/gospel/logger"
	"github.com/bfix/gospel/network"

	"github.com/bfix/ringnet/natlist"
	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/util"
)

// upnpMapper holds the live IGD port mapping for a listener that opted
// into EnableUPnP, so a node behind NAT can advertise a routable TA.
type upnpMapper struct {
	pm   *network.PortMapper
	port int
}

// EnableUPnP turns on best-effort UPnP IGD port mapping, attempted by
// Start once the socket is bound: if it succeeds, the mapped external
// port is folded into the listener's ranked TA list as a
// LocalMappingChange, recorded with host "0.0.0.0" since only the
// external port is learned. Failure is logged and otherwise ignored —
// this is a convenience, not a requirement.
func (l *Listener) EnableUPnP() {
	l.wantUPnP = true
}

func (l *Listener) enableUPnP() {
	if !l.wantUPnP {
		return
	}
	pm, err := network.NewPortMapper("udp")
	if err != nil {
		logger.Printf(logger.WARN, "[transport] UPnP unavailable: %s\n", err.Error())
		return
	}
	ext, err := pm.Assign(l.port)
	if err != nil {
		logger.Printf(logger.WARN, "[transport] UPnP port mapping failed: %s\n", err.Error())
		return
	}
	l.mapper = &upnpMapper{pm: pm, port: l.port}
	l.nat.Append(natlist.DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      natlist.LocalMappingChange,
		TA:        ta.New(ta.Udp, "0.0.0.0", uint16(ext)),
	})
	logger.Printf(logger.INFO, "[transport] UPnP mapped external port %d\n", ext)
}

func (l *Listener) disableUPnP() {
	if l.mapper == nil {
		return
	}
	if err := l.mapper.pm.Unassign(l.mapper.port); err != nil {
		logger.Printf(logger.WARN, "[transport] UPnP unmap failed: %s\n", err.Error())
	}
	l.mapper = nil
}
