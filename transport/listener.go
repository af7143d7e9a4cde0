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

// Package transport implements the UDP Edge Listener: a single socket
// multiplexing many logical edges via a reader thread, a writer
// thread and a bounded send queue, with control-packet handling for
// edge teardown and NAT-remap survival. The reader/writer split and
// the Run/Stop lifecycle follow the teacher's endpoint goroutine
// design in transport/endpoint.go; the id-table locking and
// copy-on-write NAT state follow the teacher's routing-table and
// PeerAddrList conventions respectively.
package transport

import (
	"errors"
	"fmt"
	mrand "math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bfix/gospel/logger"

	"github.com/bfix/ringnet/edge"
	"github.com/bfix/ringnet/natlist"
	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/util"
)

// Error taxonomy, see spec §7.
var (
	ErrNotStarted       = errors.New("transport: listener not started")
	ErrWrongTAType      = errors.New("transport: unsupported transport address type")
	ErrUnauthorized     = errors.New("transport: transport address rejected by authorizer")
	ErrRestartAttempted = errors.New("transport: Start called more than once")
)

// DefaultSendQueueSoftCap is the default bound on the outbound queue.
const DefaultSendQueueSoftCap = 1024

// Authorizer decides whether an inbound transport address may hold an
// edge. The default (nil) allows all.
type Authorizer func(remote *ta.TransportAddress) bool

// CreateCallback receives the outcome of CreateEdgeTo.
type CreateCallback func(e *edge.Edge, err error)

// Listener multiplexes many logical Edges over one UDP socket.
type Listener struct {
	mtx      sync.Mutex // guards idHT and remoteHT together, per spec §5
	idHT     map[int32]*edge.Edge
	remoteHT map[int32]*edge.Edge

	conn       *net.UDPConn
	port       int
	authorizer Authorizer
	nat        *natlist.History
	queue      *sendQueue

	onNewEdge func(e *edge.Edge)

	started int32 // atomic bool; Start may run at most once
	running int32 // atomic bool; cooperative cancellation flag

	wg         sync.WaitGroup
	stopOnce   sync.Once
	readerDone chan struct{}

	mapper   *upnpMapper // optional, see upnp.go
	wantUPnP bool
}

// New creates a listener bound to the requested local port (0 =
// ephemeral) with the given TA authorizer (nil = allow-all), seeded
// local TAs and outbound queue soft cap.
func New(port int, authorizer Authorizer, localTAs []*ta.TransportAddress, softCap int) *Listener {
	if softCap <= 0 {
		softCap = DefaultSendQueueSoftCap
	}
	return &Listener{
		idHT:       make(map[int32]*edge.Edge),
		remoteHT:   make(map[int32]*edge.Edge),
		port:       port,
		authorizer: authorizer,
		nat:        natlist.New(localTAs),
		queue:      newSendQueue(softCap),
		readerDone: make(chan struct{}),
	}
}

// OnNewEdge registers the callback fired whenever a new inbound edge
// is created.
func (l *Listener) OnNewEdge(f func(e *edge.Edge)) {
	l.onNewEdge = f
}

// AttachJournal enables on-disk NAT history persistence (§12.C).
func (l *Listener) AttachJournal(path string) error {
	j, err := natlist.OpenJournal(path)
	if err != nil {
		return err
	}
	l.nat.AttachJournal(j)
	return nil
}

// NatHistory returns the listener's NAT/mapping history, shared with
// diagnostics and status-reporting callers rather than duplicated.
func (l *Listener) NatHistory() *natlist.History { return l.nat }

// TAType returns the transport type this listener serves.
func (l *Listener) TAType() ta.Type { return ta.Udp }

// LocalTAs returns the current ranked list of advertised local
// transport addresses.
func (l *Listener) LocalTAs() []*ta.TransportAddress {
	return l.nat.RankedTAs()
}

// Port returns the bound UDP port (valid only after Start).
func (l *Listener) Port() int { return l.port }

// Start binds the UDP socket and launches the reader and writer
// threads. May be called at most once.
func (l *Listener) Start() error {
	if !atomic.CompareAndSwapInt32(&l.started, 0, 1) {
		return ErrRestartAttempted
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: l.port})
	if err != nil {
		return err
	}
	l.conn = conn
	l.port = conn.LocalAddr().(*net.UDPAddr).Port
	atomic.StoreInt32(&l.running, 1)

	l.enableUPnP()

	l.wg.Add(2)
	go l.readLoop()
	go l.writeLoop()
	logger.Printf(logger.INFO, "[transport] edge listener started on UDP port %d\n", l.port)
	return nil
}

// Stop cooperatively shuts the listener down: readLoop is woken with
// self-addressed Null control packets, the writer is handed the
// sentinel, both threads are joined and every outstanding edge is
// closed. Idempotent.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		atomic.StoreInt32(&l.running, 0)
		self := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: l.port}
		loopDone := make(chan struct{})
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-l.readerDone:
					close(loopDone)
					return
				case <-ticker.C:
					l.writeRaw(encodeControlHeader(0, 0), encodeControlBody(CtrlNull, nil), self)
				}
			}
		}()
		l.writeRaw(encodeControlHeader(0, 0), encodeControlBody(CtrlNull, nil), self)
		<-loopDone

		l.queue.Shutdown()
		l.wg.Wait()
		l.disableUPnP()
		l.conn.Close()
		l.closeAllEdges()
		l.nat.CloseJournal()
		logger.Println(logger.INFO, "[transport] edge listener stopped")
	})
}

// writeRaw sends a datagram directly on the socket, bypassing the
// send queue; used only for the shutdown self-loopback.
func (l *Listener) writeRaw(hdr, payload []byte, dest *net.UDPAddr) {
	buf := make([]byte, 0, len(hdr)+len(payload))
	buf = append(buf, hdr...)
	buf = append(buf, payload...)
	if _, err := l.conn.WriteToUDP(buf, dest); err != nil {
		logger.Printf(logger.WARN, "[transport] self-loopback send failed: %s\n", err.Error())
	}
}

func (l *Listener) readLoop() {
	defer l.wg.Done()
	defer close(l.readerDone)
	buf := make([]byte, 64*1024)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if atomic.LoadInt32(&l.running) == 0 {
			return
		}
		if err != nil {
			logger.Printf(logger.WARN, "[transport] socket receive error: %s\n", err.Error())
			continue
		}
		l.handleDatagram(append([]byte(nil), buf[:n]...), raddr)
	}
}

func (l *Listener) writeLoop() {
	defer l.wg.Done()
	for {
		msg := l.queue.Dequeue()
		if msg == nil {
			return
		}
		buf := make([]byte, 0, len(msg.header)+len(msg.payload))
		buf = append(buf, msg.header...)
		buf = append(buf, msg.payload...)
		if _, err := l.conn.WriteToUDP(buf, msg.dest); err != nil {
			logger.Printf(logger.WARN, "[transport] socket send error: %s\n", err.Error())
		}
	}
}

func udpAddrToTA(raddr *net.UDPAddr) *ta.TransportAddress {
	return ta.New(ta.Udp, raddr.IP.String(), uint16(raddr.Port))
}

func resolveUDP(dest *ta.TransportAddress) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dest.Host, dest.Port))
}

func (l *Listener) handleDatagram(dgram []byte, raddr *net.UDPAddr) {
	h, payload, err := decodeHeader(dgram)
	if err != nil {
		logger.Printf(logger.WARN, "[transport] %s from %s\n", err.Error(), raddr)
		return
	}
	remoteTA := udpAddrToTA(raddr)
	if h.isControl() {
		l.handleControl(h, payload, remoteTA)
		return
	}
	l.handleData(h, payload, remoteTA)
}

func (l *Listener) handleData(h header, payload []byte, remoteTA *ta.TransportAddress) {
	if h.localID == 0 {
		l.mtx.Lock()
		e := l.remoteHT[h.remoteID]
		l.mtx.Unlock()
		if e != nil && e.End.Equals(remoteTA) {
			e.Deliver(payload)
			return
		}
		// either no existing edge for this remote id, or a coincidence
		// (same remote id, different endpoint): allocate fresh.
		newEdge := l.allocateAndRegisterEdge(h.remoteID, remoteTA)
		if newEdge == nil {
			return // denied by authorizer
		}
		newEdge.Deliver(payload)
		return
	}

	l.mtx.Lock()
	e, ok := l.idHT[h.localID]
	l.mtx.Unlock()
	if !ok || e == nil {
		l.sendControl(CtrlEdgeClosed, h.localID, h.remoteID, remoteTA, nil)
		return
	}
	if e.RemoteID() == 0 {
		e.SetRemoteID(h.remoteID)
		e.Deliver(payload)
		return
	}
	if e.RemoteID() != h.remoteID {
		l.sendControl(CtrlEdgeClosed, e.LocalID, e.RemoteID(), e.End, nil)
		return
	}
	if !e.End.Equals(remoteTA) {
		if l.authorizer != nil && !l.authorizer(remoteTA) {
			l.sendControl(CtrlEdgeClosed, e.LocalID, e.RemoteID(), e.End, nil)
			e.Close()
			return
		}
		e.End = remoteTA
		l.nat.Append(natlist.DataPoint{
			Timestamp: util.AbsoluteTimeNow(),
			Kind:      natlist.RemoteMappingChange,
			LocalID:   e.LocalID,
			TA:        remoteTA,
		})
		l.announceEdge(e)
		e.Deliver(payload)
		return
	}
	e.Deliver(payload)
}

func (l *Listener) handleControl(h header, payload []byte, remoteTA *ta.TransportAddress) {
	localID := h.ourLocalID()
	l.mtx.Lock()
	e, ok := l.idHT[localID]
	l.mtx.Unlock()
	if !ok || e == nil {
		return
	}
	code, body, err := decodeControlBody(payload)
	if err != nil {
		logger.Printf(logger.WARN, "[transport] %s\n", err.Error())
		return
	}
	switch code {
	case CtrlEdgeClosed:
		e.Close()

	case CtrlEdgeDataAnnounce:
		ann, err := decodeEdgeDataAnnounce(body)
		if err != nil {
			logger.Printf(logger.WARN, "[transport] %s\n", err.Error())
			return
		}
		if e.LocalTA == nil || e.LocalTA.String() != ann.RemoteTA {
			if parsed, perr := ta.Parse(ann.RemoteTA); perr == nil {
				e.LocalTA = parsed
				l.nat.Append(natlist.DataPoint{
					Timestamp: util.AbsoluteTimeNow(),
					Kind:      natlist.LocalMappingChange,
					LocalID:   e.LocalID,
					TA:        parsed,
				})
			}
		}

	case CtrlNull:
		// self-wakeup only
	}
}

// allocateAndRegisterEdge authorizes remoteTA, allocates a fresh local
// id, registers the edge under both tables, fires the new-edge
// callback and announces the edge to its peer. Returns nil if the
// authorizer denied the connection.
func (l *Listener) allocateAndRegisterEdge(remoteID int32, remoteTA *ta.TransportAddress) *edge.Edge {
	if l.authorizer != nil && !l.authorizer(remoteTA) {
		logger.Printf(logger.WARN, "[transport] rejected inbound edge from %s\n", remoteTA)
		return nil
	}
	localID := l.reserveLocalID()
	e := edge.New(localID, true, remoteTA, l)
	e.SetRemoteID(remoteID)
	e.OnClose(func() { l.forgetEdge(e) })

	l.mtx.Lock()
	l.idHT[localID] = e
	l.remoteHT[remoteID] = e
	l.mtx.Unlock()

	l.nat.Append(natlist.DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      natlist.NewEdge,
		LocalID:   localID,
		TA:        remoteTA,
	})
	if l.onNewEdge != nil {
		l.onNewEdge(e)
	}
	l.announceEdge(e)
	return e
}

// reserveLocalID draws a uniformly random nonzero 31-bit id (from the
// non-cryptographic math/rand source) not already present in idHT,
// reserving it with a nil placeholder so concurrent allocation cannot
// collide with it before the caller installs the real edge.
func (l *Listener) reserveLocalID() int32 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	for {
		id := mrand.Int31()
		if id == 0 {
			continue
		}
		if _, exists := l.idHT[id]; exists {
			continue
		}
		l.idHT[id] = nil
		return id
	}
}

func (l *Listener) forgetEdge(e *edge.Edge) {
	l.mtx.Lock()
	delete(l.idHT, e.LocalID)
	if cur, ok := l.remoteHT[e.RemoteID()]; ok && cur == e {
		delete(l.remoteHT, e.RemoteID())
	}
	l.mtx.Unlock()
	l.nat.Append(natlist.DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      natlist.EdgeClose,
		LocalID:   e.LocalID,
	})
}

func (l *Listener) closeAllEdges() {
	l.mtx.Lock()
	edges := make([]*edge.Edge, 0, len(l.idHT))
	for _, e := range l.idHT {
		if e != nil {
			edges = append(edges, e)
		}
	}
	l.mtx.Unlock()
	for _, e := range edges {
		e.Close()
	}
}

// announceEdge sends our view of the edge's endpoints to the peer, so
// it can detect a local mapping change on its own side.
func (l *Listener) announceEdge(e *edge.Edge) {
	local := "brunet.udp://0.0.0.0:0"
	if tas := l.LocalTAs(); len(tas) > 0 {
		local = tas[0].String()
	}
	body := encodeEdgeDataAnnounce(e.End.String(), local)
	l.sendControl(CtrlEdgeDataAnnounce, e.LocalID, e.RemoteID(), e.End, body)
}

func (l *Listener) sendControl(code ControlCode, localID, remoteID int32, dest *ta.TransportAddress, body []byte) {
	udpAddr, err := resolveUDP(dest)
	if err != nil {
		logger.Printf(logger.WARN, "[transport] cannot resolve %s: %s\n", dest, err.Error())
		return
	}
	hdr := encodeControlHeader(localID, remoteID)
	pl := encodeControlBody(code, body)
	l.queue.Enqueue(&outMsg{header: hdr, payload: pl, dest: udpAddr})
}

// SendTo implements edge.SendHandler: it enqueues an application
// payload for the writer thread. Enqueue failures (queue full) are
// swallowed, matching the send-queue's intended back-pressure policy.
func (l *Listener) SendTo(localID, remoteID int32, dest *ta.TransportAddress, payload []byte) error {
	if atomic.LoadInt32(&l.running) == 0 {
		return ErrNotStarted
	}
	udpAddr, err := resolveUDP(dest)
	if err != nil {
		return err
	}
	hdr := encodeDataHeader(localID, remoteID)
	// The writer thread reads payload asynchronously; clone it so a
	// caller reusing its buffer right after Send returns cannot race
	// the queued datagram.
	l.queue.Enqueue(&outMsg{header: hdr, payload: util.Clone(payload), dest: udpAddr})
	return nil
}

// CreateEdgeTo establishes a new outbound edge to dest, invoking cb
// with the result. The initial (empty-payload) datagram carries
// remote_id=0 on the wire, putting the peer into its handshake path.
func (l *Listener) CreateEdgeTo(dest *ta.TransportAddress, cb CreateCallback) {
	if atomic.LoadInt32(&l.started) == 0 {
		cb(nil, ErrNotStarted)
		return
	}
	if dest.Typ != ta.Udp {
		cb(nil, ErrWrongTAType)
		return
	}
	localID := l.reserveLocalID()
	e := edge.New(localID, false, dest, l)
	e.OnClose(func() { l.forgetEdge(e) })
	l.mtx.Lock()
	l.idHT[localID] = e
	l.mtx.Unlock()

	l.nat.Append(natlist.DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      natlist.NewEdge,
		LocalID:   localID,
		TA:        dest,
	})
	if err := e.Send(nil); err != nil {
		cb(nil, err)
		return
	}
	cb(e, nil)
}
