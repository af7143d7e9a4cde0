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

// Package bootstrap discovers candidate peers for an otherwise empty
// connection table by resolving a DNS seed zone's TXT records, each
// carrying one peer transport address ("ta=brunet.udp://host:port").
// The retry-on-timeout exchange loop is carried over from the
// teacher's gns.QueryDNS.
package bootstrap

import (
	"fmt"
	"net"
	"strings"

	"github.com/bfix/gospel/logger"
	"github.com/miekg/dns"

	"github.com/bfix/ringnet/ta"
)

// ErrNoSeeds is returned when a seed zone resolves no usable peer TAs.
var ErrNoSeeds = fmt.Errorf("no peer transport addresses found in seed zone")

// Seeder resolves a DNS zone into a list of candidate transport
// addresses via TXT records of the form "ta=<transport-address>".
type Seeder struct {
	Zone   string
	Server net.IP
}

// NewSeeder creates a Seeder for zone, querying server (or the
// default resolver 8.8.8.8 if server is nil).
func NewSeeder(zone string, server net.IP) *Seeder {
	if server == nil {
		server = net.IPv4(8, 8, 8, 8)
	}
	return &Seeder{Zone: zone, Server: server}
}

// Resolve queries the seed zone's TXT records and parses every
// "ta=..." value into a transport address, retrying up to 5 times on
// timeout. If the zone itself carries no usable seeds and is itself a
// dot-separated subdomain (e.g. "eu.seed.ringnet.example"), Resolve
// falls back once to its parent ("seed.ringnet.example") before
// giving up, the way an operator would manually retry one level up.
func (s *Seeder) Resolve() ([]*ta.TransportAddress, error) {
	out, err := s.resolveZone(s.Zone)
	if err == ErrNoSeeds {
		if parent := parentZone(s.Zone); parent != s.Zone {
			logger.Printf(logger.INFO, "[bootstrap] '%s' carried no seeds, retrying parent zone '%s'\n", s.Zone, parent)
			return s.resolveZone(parent)
		}
	}
	return out, err
}

// parentZone returns zone without its left-most label (the DNS parent
// zone), or zone unchanged if it has a single label.
func parentZone(zone string) string {
	if idx := strings.Index(zone, "."); idx != -1 {
		return zone[idx+1:]
	}
	return zone
}

func (s *Seeder) resolveZone(zone string) ([]*ta.TransportAddress, error) {
	m := &dns.Msg{
		MsgHdr: dns.MsgHdr{
			RecursionDesired: true,
			Opcode:           dns.OpcodeQuery,
		},
		Question: make([]dns.Question, 1),
	}
	m.Question[0] = dns.Question{
		Name:   dns.Fqdn(zone),
		Qtype:  dns.TypeTXT,
		Qclass: dns.ClassINET,
	}

	var in *dns.Msg
	var err error
	for retry := 0; retry < 5; retry++ {
		m.Id = dns.Id()
		in, err = dns.Exchange(m, net.JoinHostPort(s.Server.String(), "53"))
		if err != nil {
			if strings.HasSuffix(err.Error(), "i/o timeout") {
				logger.Printf(logger.WARN, "[bootstrap] TXT query for '%s' timed out -- retrying (%d/5)\n", zone, retry+1)
				continue
			}
			return nil, err
		}
		break
	}
	if in == nil {
		return nil, fmt.Errorf("bootstrap: no response resolving '%s': %w", zone, err)
	}

	var out []*ta.TransportAddress
	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, chunk := range txt.Txt {
			addr, ok := strings.CutPrefix(chunk, "ta=")
			if !ok {
				continue
			}
			parsed, err := ta.Parse(addr)
			if err != nil {
				logger.Printf(logger.WARN, "[bootstrap] unparseable seed TA '%s': %s\n", addr, err.Error())
				continue
			}
			out = append(out, parsed)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSeeds
	}
	return out, nil
}
