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

// Package ta implements the overlay's transport address: an opaque,
// scheme-qualified endpoint descriptor with a canonical string form,
// modeled after the address handling in the teacher repo's util
// package but specialized to the small set of wire types this core
// cares about.
package ta

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the wire protocol an endpoint is reachable over.
type Type string

// Supported transport types.
const (
	Udp Type = "udp"
	Tcp Type = "tcp"
	Tls Type = "tls"
)

// TransportAddress is a (type, host, port) tuple with structural
// equality and a canonical "brunet.<type>://<host>:<port>" string form.
type TransportAddress struct {
	Typ  Type
	Host string
	Port uint16
}

// New builds a TransportAddress from its parts.
func New(typ Type, host string, port uint16) *TransportAddress {
	return &TransportAddress{Typ: typ, Host: host, Port: port}
}

// String renders the canonical scheme-qualified form.
func (t *TransportAddress) String() string {
	return fmt.Sprintf("brunet.%s://%s:%d", t.Typ, t.Host, t.Port)
}

// Equals reports structural equality between two addresses.
func (t *TransportAddress) Equals(o *TransportAddress) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Typ == o.Typ && t.Host == o.Host && t.Port == o.Port
}

// Parse decodes a "brunet.<type>://<host>:<port>" string (or a bare
// "<type>://<host>:<port>") into a TransportAddress.
func Parse(s string) (*TransportAddress, error) {
	s = strings.TrimPrefix(s, "brunet.")
	parts := strings.SplitN(s, "://", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("ta: invalid address format: %q", s)
	}
	typ := Type(parts[0])
	hostport := parts[1]
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return nil, fmt.Errorf("ta: missing port in %q", s)
	}
	host := hostport[:idx]
	port, err := strconv.ParseUint(hostport[idx+1:], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("ta: invalid port in %q: %w", s, err)
	}
	return &TransportAddress{Typ: typ, Host: host, Port: uint16(port)}, nil
}
