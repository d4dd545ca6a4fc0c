// cgo.go - Counter-Galois-Onion relay-cell construction.
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

// Package cgo implements the Counter-Galois-Onion relay-cell construction.
// Each hop transforms the whole cell body under a wide-block tweakable
// SPRP whose tweak is chained across cells, and a single all-zero tag slot
// doubles as the integrity and recognition signal.  Flipping any ciphertext
// bit scrambles the entire body and every subsequent cell's tweak, so the
// tagging attacks the legacy construction admits have no purchase here.
package cgo

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/util"

	"github.com/arachne-project/arachne/core/onioncrypt"
	"github.com/arachne-project/arachne/core/onioncrypt/internal/crypto"
)

const (
	// TagLen is the length of the recognition/authentication tag at the
	// front of the plaintext cell body.
	TagLen = 16

	lengthOff = TagLen // 2 bytes
	dataOff   = TagLen + 2

	// HeaderLen is the length of the header at the front of the cell body.
	HeaderLen = dataOff

	// MaxDataLen is the maximum data carried by a single cell.
	MaxDataLen = onioncrypt.RelayBodyLen - dataOff

	kdfInfoPrefix = "arachne-cgo-kdf-v0-"
)

// Scheme pins the parameters of one deployed protocol version.
type Scheme struct {
	// Name is the scheme identifier.
	Name string

	// KeyLen is the per-direction SPRP key length in bytes.
	KeyLen int

	// MinSeedLen is the minimum handshake seed length the key schedule
	// accepts.
	MinSeedLen int
}

var (
	// SchemeAEZ128 uses 32 byte per-direction SPRP keys.
	SchemeAEZ128 = &Scheme{
		Name:       "cgo-aez128",
		KeyLen:     32,
		MinSeedLen: 32,
	}

	// SchemeAEZ256 uses 64 byte per-direction SPRP keys.
	SchemeAEZ256 = &Scheme{
		Name:       "cgo-aez256",
		KeyLen:     64,
		MinSeedLen: 32,
	}
)

// Geometry returns the relay cell geometry of this scheme.
func (s *Scheme) Geometry() *onioncrypt.Geometry {
	return &onioncrypt.Geometry{
		SchemeName:   s.Name,
		RelayBodyLen: onioncrypt.RelayBodyLen,
		HeaderLen:    HeaderLen,
		TagLen:       TagLen,
		MaxDataLen:   MaxDataLen,
	}
}

// cryptState is one direction's SPRP key and running tweak.  The tweak
// absorbs a digest of every full ciphertext this state has crossed: both
// endpoints of a hop observe the same bytes at their layer boundary, so
// they evolve in lockstep until a cell is tampered with, dropped, or
// reordered, after which nothing on this direction will verify again.
type cryptState struct {
	key   []byte
	tweak [crypto.SPRPTweakLength]byte
}

// chain folds the whole layer-boundary ciphertext into the running tweak.
// Digesting all 509 bytes rather than a prefix makes a flip of any
// ciphertext bit, not just one in the first block, diverge the chain.
func (cs *cryptState) chain(ct []byte) {
	sum := sha256.Sum256(ct)
	for i := 0; i < crypto.SPRPTweakLength; i++ {
		cs.tweak[i] ^= sum[i]
	}
}

func (cs *cryptState) encrypt(cell *onioncrypt.RelayBody) {
	ct := crypto.SPRPEncrypt(cs.key, &cs.tweak, cell[:])
	cs.chain(ct)
	copy(cell[:], ct)
}

func (cs *cryptState) decrypt(cell *onioncrypt.RelayBody) {
	pt := crypto.SPRPDecrypt(cs.key, &cs.tweak, cell[:])
	cs.chain(cell[:])
	copy(cell[:], pt)
}

func (cs *cryptState) reset() {
	util.ExplicitBzero(cs.key)
	util.ExplicitBzero(cs.tweak[:])
}

func deriveStates(s *Scheme, seed onioncrypt.KeySeed) (fwd, back *cryptState, err error) {
	if len(seed) < s.MinSeedLen {
		return nil, nil, fmt.Errorf("cgo: %s seed is %d bytes, need %d: %w",
			s.Name, len(seed), s.MinSeedLen, onioncrypt.ErrShortSeed)
	}

	okmLen := 2*s.KeyLen + 2*crypto.SPRPTweakLength
	okm := crypto.HKDFExpand(sha256.New, seed, []byte(kdfInfoPrefix+s.Name), okmLen)
	defer util.ExplicitBzero(okm)

	fwd = &cryptState{key: make([]byte, s.KeyLen)}
	back = &cryptState{key: make([]byte, s.KeyLen)}
	ptr := okm
	copy(fwd.key, ptr[:s.KeyLen])
	ptr = ptr[s.KeyLen:]
	copy(back.key, ptr[:s.KeyLen])
	ptr = ptr[s.KeyLen:]
	copy(fwd.tweak[:], ptr[:crypto.SPRPTweakLength])
	ptr = ptr[crypto.SPRPTweakLength:]
	copy(back.tweak[:], ptr[:crypto.SPRPTweakLength])

	return fwd, back, nil
}

func zeroTag(cell *onioncrypt.RelayBody) {
	for i := 0; i < TagLen; i++ {
		cell[i] = 0
	}
}

// ClientCryptState is the client-side state for one hop.
type ClientCryptState struct {
	fwd  *cryptState
	back *cryptState
}

// NewClientCryptState derives a client hop state from the handshake seed.
// The seed buffer is not retained.
func NewClientCryptState(s *Scheme, seed onioncrypt.KeySeed) (*ClientCryptState, error) {
	fwd, back, err := deriveStates(s, seed)
	if err != nil {
		return nil, err
	}
	return &ClientCryptState{fwd: fwd, back: back}, nil
}

// Originate zeroes the tag slot of a cell addressed to this hop.
func (c *ClientCryptState) Originate(cell *onioncrypt.RelayBody) {
	zeroTag(cell)
}

// EncryptOutbound applies this hop's forward SPRP layer.
func (c *ClientCryptState) EncryptOutbound(cell *onioncrypt.RelayBody) {
	c.fwd.encrypt(cell)
}

// DecryptInbound peels this hop's backward SPRP layer and reports whether
// the tag verifies.  The tag check is constant time and the tweak advances
// whether or not it does.
func (c *ClientCryptState) DecryptInbound(cell *onioncrypt.RelayBody) bool {
	c.back.decrypt(cell)
	return util.CtIsZero(cell[:TagLen])
}

// Reset clears the state's secret material.
func (c *ClientCryptState) Reset() {
	c.fwd.reset()
	c.back.reset()
}

// RelayCryptState is the relay-side state for the relay's own hop.
type RelayCryptState struct {
	fwd  *cryptState
	back *cryptState
}

// NewRelayCryptState derives a relay hop state from the handshake seed.  It
// is the reciprocal of the ClientCryptState derived from the same seed.
func NewRelayCryptState(s *Scheme, seed onioncrypt.KeySeed) (*RelayCryptState, error) {
	fwd, back, err := deriveStates(s, seed)
	if err != nil {
		return nil, err
	}
	return &RelayCryptState{fwd: fwd, back: back}, nil
}

// Decrypt peels a cell moving away from the client and reports whether its
// tag verifies, meaning this hop is the cell's destination.
func (r *RelayCryptState) Decrypt(cell *onioncrypt.RelayBody) bool {
	r.fwd.decrypt(cell)
	return util.CtIsZero(cell[:TagLen])
}

// Originate prepares and encrypts a cell this relay is sending back toward
// the client.
func (r *RelayCryptState) Originate(cell *onioncrypt.RelayBody) {
	zeroTag(cell)
	r.back.encrypt(cell)
}

// Encrypt applies this hop's backward SPRP layer to a cell originated
// further from the client.
func (r *RelayCryptState) Encrypt(cell *onioncrypt.RelayBody) {
	r.back.encrypt(cell)
}

// Reset clears the state's secret material.
func (r *RelayCryptState) Reset() {
	r.fwd.reset()
	r.back.reset()
}

// NewRelayCell assembles a plaintext relay cell body carrying data.  The
// tag slot is left zero; the slack after the data is random padding.
func NewRelayCell(data []byte) (*onioncrypt.RelayBody, error) {
	if len(data) > MaxDataLen {
		return nil, fmt.Errorf("cgo: relay data too large: %d > %d", len(data), MaxDataLen)
	}

	cell := new(onioncrypt.RelayBody)
	binary.BigEndian.PutUint16(cell[lengthOff:], uint16(len(data)))
	copy(cell[dataOff:], data)

	if padStart := dataOff + len(data); padStart < onioncrypt.RelayBodyLen {
		if _, err := io.ReadFull(rand.Reader, cell[padStart:]); err != nil {
			return nil, err
		}
	}
	return cell, nil
}

// RelayCellData returns the data of a recognized plaintext relay cell.
func RelayCellData(cell *onioncrypt.RelayBody) ([]byte, error) {
	dataLen := binary.BigEndian.Uint16(cell[lengthOff:])
	if int(dataLen) > MaxDataLen {
		return nil, fmt.Errorf("cgo: relay data length %d exceeds maximum %d", dataLen, MaxDataLen)
	}
	data := make([]byte, dataLen)
	copy(data, cell[dataOff:dataOff+int(dataLen)])
	return data, nil
}
