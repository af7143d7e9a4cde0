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
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"
	gorillaRPC "github.com/gorilla/rpc"
	gorillaJSON "github.com/gorilla/rpc/json"
)

// Service is the JSON-RPC receiver exposing sys:link.GetStatus. Its
// shape (an exported method on a receiver type, registered through a
// mux.Router) mirrors the RPCService/Router split of the teacher's
// service/rpc.go and service/dht/rpc.go.
type Service struct {
	tbl onStatusFunc
}

// onStatusFunc is invoked when a GetStatus push arrives from a peer.
type onStatusFunc func(msg *Message)

// NewService creates a Service that calls onStatus for every status
// push it receives.
func NewService(onStatus func(msg *Message)) *Service {
	return &Service{tbl: onStatus}
}

// GetStatusArgs is the JSON-RPC request body for sys:link.GetStatus.
type GetStatusArgs struct {
	Message Message `json:"message"`
}

// GetStatusReply acknowledges receipt; the exchange is fire-and-forget
// from the caller's point of view, so the reply carries no data.
type GetStatusReply struct {
	Ok bool `json:"ok"`
}

// GetStatus is the RPC handler for "sys:link.GetStatus".
func (s *Service) GetStatus(r *http.Request, args *GetStatusArgs, reply *GetStatusReply) error {
	if s.tbl != nil {
		s.tbl(&args.Message)
	}
	reply.Ok = true
	return nil
}

// Mount registers the status RPC service and the diagnostics endpoints
// on router, following the one-path-per-module registration idiom of
// RegisterRPC in the teacher's service/rpc.go.
func Mount(router *mux.Router, svc *Service, diag *Diagnostics) {
	rpcSrv := gorillaRPC.NewServer()
	rpcSrv.RegisterCodec(gorillaJSON.NewCodec(), "application/json")
	if err := rpcSrv.RegisterService(svc, "sys:link"); err != nil {
		logger.Printf(logger.ERROR, "[status] failed to register sys:link service: %s\n", err.Error())
	}
	router.Handle("/rpc", rpcSrv)

	if diag != nil {
		router.HandleFunc("/debug/table", diag.ServeTable).Methods(http.MethodGet)
		router.HandleFunc("/debug/summary", diag.ServeSummary).Methods(http.MethodGet)
		router.HandleFunc("/debug/nat", diag.ServeNAT).Methods(http.MethodGet)
	}
}

// Server wraps an http.Server bound to router, started and stopped
// the same way StartRPC bounds its server to a context in the
// teacher's service/rpc.go.
type Server struct {
	httpSrv  *http.Server
	addr     string
	listener net.Listener
}

// NewServer builds (but does not start) an RPC+diagnostics server.
func NewServer(addr string, router *mux.Router) *Server {
	return &Server{addr: addr, httpSrv: &http.Server{
		Handler:      router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}}
}

// Start binds the listening socket synchronously (so Addr is valid as
// soon as Start returns, even when the configured address used an
// ephemeral port) and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[status] RPC server listen failed: %s\n", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		if err := s.httpSrv.Shutdown(context.Background()); err != nil {
			logger.Printf(logger.WARN, "[status] RPC server shutdown failed: %s\n", err.Error())
		}
	}()
	return nil
}

// Addr returns the server's actual bound "host:port", valid only
// after Start has returned successfully.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

//----------------------------------------------------------------------
// client-side push
//----------------------------------------------------------------------

// HTTPPusher implements Pusher by issuing a gorilla/rpc/json-compatible
// request against a peer's /rpc endpoint. Pushes are fire-and-forget:
// failures are logged and otherwise swallowed, matching the
// best-effort nature of the status exchange.
type HTTPPusher struct {
	client  *http.Client
	timeout time.Duration
	seq     int64
}

// NewHTTPPusher creates a pusher with the given per-request timeout.
func NewHTTPPusher(timeout time.Duration) *HTTPPusher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPusher{client: &http.Client{Timeout: timeout}, timeout: timeout}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

// PushStatus sends msg to the peer's /rpc endpoint, asynchronously.
// dest is a bare "host:port" status-RPC endpoint (as learned via the
// address-announcement handshake), not a URL: the overlay's own
// transport address (ta.TransportAddress.String(), e.g.
// "brunet.udp://host:port") is a UDP endpoint this HTTP client cannot
// dial, so callers must never pass one here.
func (p *HTTPPusher) PushStatus(dest string, msg *Message) {
	go func() {
		id := atomic.AddInt64(&p.seq, 1)
		body := jsonRPCRequest{
			Method: "sys:link.GetStatus",
			Params: []any{GetStatusArgs{Message: *msg}},
			ID:     id,
		}
		raw, err := json.Marshal(body)
		if err != nil {
			logger.Printf(logger.WARN, "[status] encode push to %s failed: %s\n", dest, err.Error())
			return
		}
		url := "http://" + dest + "/rpc"
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			logger.Printf(logger.WARN, "[status] build push request to %s failed: %s\n", dest, err.Error())
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := p.client.Do(req)
		if err != nil {
			logger.Printf(logger.INFO, "[status] push to %s failed (best-effort): %s\n", dest, err.Error())
			return
		}
		resp.Body.Close()
	}()
}
