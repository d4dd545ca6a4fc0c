// cell.go - Relay cell body and key seed types.
// Copyright (C) 2025  The Arachne Project Developers.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package onioncrypt implements the layered relay-cell cryptography applied
// on circuits: the per-hop client and relay states, and the ordered
// multi-layer wrappers that onion-encrypt outbound cells and peel inbound
// ones.  The concrete constructions live in the tor1 and cgo subpackages;
// everything here is algorithm-agnostic.
package onioncrypt

import (
	"github.com/katzenpost/hpqc/util"
)

// RelayBodyLen is the fixed length of a relay cell body in bytes.  The
// framing layer owns everything outside of it.
const RelayBodyLen = 509

// RelayBody is one relay cell body.  Encrypt and decrypt operations mutate
// it in place.
type RelayBody [RelayBodyLen]byte

// Bytes returns the cell body as a byte slice.
func (b *RelayBody) Bytes() []byte {
	return b[:]
}

// Reset clears the cell body.
func (b *RelayBody) Reset() {
	util.ExplicitBzero(b[:])
}

// HopNum identifies a hop position on a circuit, 0 being the hop adjacent
// to the client.
type HopNum uint8

// KeySeed is the per-hop secret produced by the handshake.  It is consumed
// by the tor1 and cgo constructors, which derive their sub-keys from it and
// do not retain the buffer.
type KeySeed []byte

// Reset clears the seed such that no secret material is left in memory.
func (s KeySeed) Reset() {
	util.ExplicitBzero(s)
}
