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

// Package node wires the ring address, connection table, edge
// listener, router and status exchange into one running overlay
// participant, the way the teacher's core.Core composes a transport,
// a peer list and an event pump behind a single NewCore/Shutdown
// lifecycle.
//
// Node intentionally does not decide WHICH candidates get promoted
// into which connection-table class, or when shortcuts should be
// resampled and churned -- that connection-overlord policy is out of
// scope here. Every edge that completes a handshake is registered as
// a Near connection; callers that need richer placement policy can
// observe table events and reclassify connections themselves.
package node

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/bootstrap"
	"github.com/bfix/ringnet/config"
	"github.com/bfix/ringnet/edge"
	"github.com/bfix/ringnet/natlist"
	"github.com/bfix/ringnet/peerbook"
	"github.com/bfix/ringnet/router"
	"github.com/bfix/ringnet/status"
	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/table"
	"github.com/bfix/ringnet/transport"
	"github.com/bfix/ringnet/util"
)

// Node is one running ring-overlay participant.
type Node struct {
	Local    *address.Address
	Table    *table.Table
	Nat      *natlist.History
	Listener *transport.Listener
	Book     peerbook.Book

	seeder    *bootstrap.Seeder
	exchange  *status.Exchange
	rpcServer *status.Server

	// statusEndpoint is this node's own status-RPC "host:port", known
	// only once rpcServer.Start has bound its listener (see Run). It
	// is carried in every address announcement so a peer can push
	// status messages back to a real, dialable HTTP endpoint instead
	// of the overlay's UDP transport address.
	statusEndpoint string
}

// New builds a Node from cfg but does not start any network activity;
// call Run to bring it up.
func New(cfg *config.Config) (*Node, error) {
	local := address.Random()

	var localTAs []*ta.TransportAddress
	for _, s := range cfg.Listener.LocalTAs {
		parsed, err := ta.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("node: invalid local TA %q: %w", s, err)
		}
		localTAs = append(localTAs, parsed)
	}

	tbl := table.New(local)

	authorizer := buildAuthorizer(cfg.Listener.TAAuthorizer)
	listener := transport.New(cfg.Listener.Port, authorizer, localTAs, cfg.Listener.SendQueueSoftCap)
	if cfg.Listener.EnableUPnP {
		listener.EnableUPnP()
	}
	if cfg.Listener.NATJournal != "" {
		if err := listener.AttachJournal(cfg.Listener.NATJournal); err != nil {
			return nil, fmt.Errorf("node: opening NAT journal: %w", err)
		}
	}
	nat := listener.NatHistory()

	book, err := peerbook.Open(cfg.Peerbook.Spec)
	if err != nil {
		return nil, fmt.Errorf("node: opening peer book: %w", err)
	}

	n := &Node{
		Local:    local,
		Table:    tbl,
		Nat:      nat,
		Listener: listener,
		Book:     book,
	}

	if cfg.Bootstrap != nil && cfg.Bootstrap.SeedZone != "" {
		n.seeder = bootstrap.NewSeeder(cfg.Bootstrap.SeedZone, nil)
	}

	n.wireListener()
	n.wireStatus(cfg)
	return n, nil
}

// buildAuthorizer translates the configured authorizer policy name
// into a transport.Authorizer. "seed-only" is a placeholder for a
// policy that would check candidates against the peer book; until
// that policy exists it behaves like "any".
func buildAuthorizer(policy string) transport.Authorizer {
	switch policy {
	case "seed-only":
		return func(remote *ta.TransportAddress) bool { return true }
	default:
		return func(remote *ta.TransportAddress) bool { return true }
	}
}

// wireListener registers the edge-creation callback that promotes a
// freshly-handshaken edge into the connection table. The transport
// layer identifies peers only by transport address; a new edge does
// not yet know the remote's ring address or status-RPC endpoint, so
// the first payload exchanged over every edge is an address
// announcement (the 20-byte ring address followed by this node's
// "host:port" status endpoint), both on accepting an inbound edge and
// when CreateEdgeTo's callback hands back an outbound edge (which it
// does as soon as the edge's first datagram is queued).
func (n *Node) wireListener() {
	n.Listener.OnNewEdge(func(e *edge.Edge) {
		n.awaitPeerAddress(e)
		if err := e.Send(n.announcePayload()); err != nil {
			logger.Printf(logger.WARN, "[node] failed to announce local address: %s\n", err.Error())
		}
	})
}

// announcePayload builds this node's address-announcement payload:
// its ring address followed by its status-RPC endpoint, if known.
func (n *Node) announcePayload() []byte {
	return append(n.Local.Bytes(), []byte(n.statusEndpoint)...)
}

// awaitPeerAddress installs a one-shot receive handler that parses the
// peer's ring address and status endpoint out of the first payload,
// then registers the connection and switches the edge over to
// ordinary delivery.
func (n *Node) awaitPeerAddress(e *edge.Edge) {
	e.OnReceive(func(payload []byte) {
		if len(payload) < address.NumBytes {
			logger.Printf(logger.WARN, "[node] undersized address announcement, closing edge\n")
			e.Close()
			return
		}
		addrBytes := payload[:address.NumBytes]
		peer, err := address.FromBytes(addrBytes)
		if err != nil || util.IsNull(addrBytes) {
			logger.Printf(logger.WARN, "[node] malformed address announcement, closing edge\n")
			e.Close()
			return
		}
		endpoint := string(payload[address.NumBytes:])
		added := n.Table.Add(&table.Connection{
			Address:        peer,
			TA:             e.End,
			Class:          table.Near,
			Edge:           e,
			StatusEndpoint: endpoint,
		})
		if !added {
			logger.Printf(logger.DBG, "[node] peer %s already connected, closing duplicate edge\n", peer)
			e.Close()
			return
		}
		e.OnClose(func() { n.Table.Remove(peer) })
		e.OnReceive(func(payload []byte) {
			logger.Printf(logger.DBG, "[node] %d bytes of application payload from %s\n", len(payload), peer)
		})
	})
}

// wireStatus builds the status exchange and RPC/diagnostics server.
func (n *Node) wireStatus(cfg *config.Config) {
	maxNeighbors := 0
	if cfg.Routing != nil {
		maxNeighbors = cfg.Routing.MaxNeighborsInStatus
	}
	pusher := status.NewHTTPPusher(0)
	n.exchange = status.New(n.Local, n.Table, pusher, maxNeighbors)

	svc := status.NewService(func(msg *status.Message) {
		logger.Printf(logger.DBG, "[node] status push received from %s (%d neighbors)\n", msg.From, len(msg.Neighbors))
	})
	diag := status.NewDiagnostics(n.Table, n.Nat)
	httpRouter := mux.NewRouter()
	status.Mount(httpRouter, svc, diag)

	endpoint := "127.0.0.1:0"
	if cfg.Status != nil && cfg.Status.Endpoint != "" {
		endpoint = cfg.Status.Endpoint
	}
	n.rpcServer = status.NewServer(endpoint, httpRouter)
}

// Run starts the status server and edge listener, resolves bootstrap
// seeds (if configured) and blocks until ctx is cancelled. The status
// server is started first so its actual bound address is known (and
// can be advertised in the handshake, see announcePayload) before any
// edge can be created.
func (n *Node) Run(ctx context.Context) error {
	if err := n.rpcServer.Start(ctx); err != nil {
		return fmt.Errorf("node: starting status server: %w", err)
	}
	n.statusEndpoint = n.rpcServer.Addr()

	if err := n.Listener.Start(); err != nil {
		return fmt.Errorf("node: starting listener: %w", err)
	}

	if n.seeder != nil {
		go n.bootstrapOnce()
	}

	<-ctx.Done()
	n.Listener.Stop()
	return nil
}

// bootstrapOnce resolves the seed zone and attempts to connect to
// every candidate it returns, best-effort.
func (n *Node) bootstrapOnce() {
	seeds, err := n.seeder.Resolve()
	if err != nil {
		logger.Printf(logger.WARN, "[node] bootstrap resolution failed: %s\n", err.Error())
		return
	}
	for _, dest := range seeds {
		n.Book.Propose(dest.String(), 1.0)
		n.Listener.CreateEdgeTo(dest, func(e *edge.Edge, err error) {
			if err != nil {
				logger.Printf(logger.WARN, "[node] bootstrap connect to %s failed: %s\n", dest, err.Error())
				return
			}
			n.awaitPeerAddress(e)
			if err := e.Send(n.announcePayload()); err != nil {
				logger.Printf(logger.WARN, "[node] failed to announce local address to %s: %s\n", dest, err.Error())
			}
		})
	}
}

// NextHop exposes the router's next-hop decision over this node's
// table and local address.
func (n *Node) NextHop(from *address.Address, pkt *router.Packet) (*address.Address, bool) {
	return router.NextHop(n.Local, n.Table, from, pkt)
}

// EstimateSize returns this node's current density-based network-size
// estimate, for use as the sample-size parameter of SampleShortcut.
func (n *Node) EstimateSize() *big.Int {
	return router.EstimateSize(n.Local, n.Table)
}

// SampleShortcut draws a long-range shortcut target using this node's
// current size estimate.
func (n *Node) SampleShortcut() *address.Address {
	est := n.EstimateSize()
	return router.SampleShortcut(n.Local, est.Int64())
}
