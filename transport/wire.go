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
	"encoding/binary"
	"encoding/json"
	"errors"
)

// headerSize is the length of the two i32 id fields preceding the
// payload in every datagram.
const headerSize = 8

// ControlCode identifies the kind of a control packet (one whose
// wire-level localid field is negative).
type ControlCode int32

// Control codes.
const (
	CtrlEdgeClosed       ControlCode = 1
	CtrlEdgeDataAnnounce ControlCode = 2
	CtrlNull             ControlCode = 3
)

// ErrMalformedDatagram is returned for datagrams shorter than the
// fixed header, or control bodies that fail to decode.
var ErrMalformedDatagram = errors.New("transport: malformed datagram")

// header is the decoded [remoteid][localid] pair of a datagram, both
// taken from the receiving side's perspective of its peer's view.
type header struct {
	remoteID int32
	localID  int32
}

// encodeDataHeader lays out the wire header for a normal application
// payload sent over edge e: remoteid = our local id, localid = our
// current knowledge of the peer's id for this edge.
func encodeDataHeader(ourLocalID, ourViewOfRemoteID int32) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(ourLocalID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(ourViewOfRemoteID))
	return buf
}

// encodeControlHeader lays out the wire header for a control packet:
// remoteid stays our local id, localid is the bitwise complement of
// our knowledge of the peer's id, which both marks the packet as
// control (negative) and lets the receiver recover its own local id
// via another complement.
func encodeControlHeader(ourLocalID, ourViewOfRemoteID int32) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(ourLocalID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(^ourViewOfRemoteID))
	return buf
}

// decodeHeader parses the two id fields and returns them along with
// the remaining payload.
func decodeHeader(dgram []byte) (h header, payload []byte, err error) {
	if len(dgram) < headerSize {
		err = ErrMalformedDatagram
		return
	}
	h.remoteID = int32(binary.BigEndian.Uint32(dgram[0:4]))
	h.localID = int32(binary.BigEndian.Uint32(dgram[4:8]))
	payload = dgram[headerSize:]
	return
}

// isControl reports whether the wire-level localid field signals a
// control packet.
func (h header) isControl() bool { return h.localID < 0 }

// ourLocalID recovers the receiver's own local edge id, valid for
// both data packets (h.localID directly) and control packets (the
// complement of h.localID).
func (h header) ourLocalID() int32 {
	if h.isControl() {
		return ^h.localID
	}
	return h.localID
}

// encodeControlBody prefixes a control code (and, for
// EdgeDataAnnounce, a JSON dictionary body) ahead of the payload.
func encodeControlBody(code ControlCode, body []byte) []byte {
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(code))
	copy(buf[4:], body)
	return buf
}

// decodeControlBody splits a control payload into its code and body.
func decodeControlBody(payload []byte) (code ControlCode, body []byte, err error) {
	if len(payload) < 4 {
		err = ErrMalformedDatagram
		return
	}
	code = ControlCode(binary.BigEndian.Uint32(payload[0:4]))
	body = payload[4:]
	return
}

// edgeDataAnnounce is the application-dictionary body of an
// EdgeDataAnnounce control packet. Field names are wire-significant:
// the spec requires the literal keys "RemoteTA"/"LocalTA" for
// interop, so this is kept as a narrow tagged struct (per the
// redesign note) rather than a generic map, while preserving those
// string keys on the wire via JSON marshaling.
type edgeDataAnnounce struct {
	RemoteTA string `json:"RemoteTA"`
	LocalTA  string `json:"LocalTA"`
}

func encodeEdgeDataAnnounce(remoteTA, localTA string) []byte {
	body, _ := json.Marshal(edgeDataAnnounce{RemoteTA: remoteTA, LocalTA: localTA})
	return body
}

func decodeEdgeDataAnnounce(body []byte) (*edgeDataAnnounce, error) {
	var a edgeDataAnnounce
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, ErrMalformedDatagram
	}
	return &a, nil
}
