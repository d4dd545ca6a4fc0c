// tor1.go - Legacy counter-mode relay-cell construction.
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

// Package tor1 implements the legacy relay-cell construction: a per-hop
// counter-mode keystream for confidentiality, and a running digest over all
// cells a hop has originated in a direction, truncated into the cell header
// as the recognition signal.
package tor1

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/katzenpost/hpqc/rand"

	"github.com/arachne-project/arachne/core/onioncrypt"
	"github.com/arachne-project/arachne/core/onioncrypt/internal/crypto"
)

// Relay cell command constants.
const (
	RelayBegin     uint8 = 1
	RelayData      uint8 = 2
	RelayEnd       uint8 = 3
	RelayConnected uint8 = 4
	RelaySendMe    uint8 = 5
	RelayTruncated uint8 = 9
	RelayExtend2   uint8 = 14
	RelayExtended2 uint8 = 15
)

// Relay header offsets within the cell body.
const (
	cmdOff        = 0  // 1 byte
	recognizedOff = 1  // 2 bytes
	streamIDOff   = 3  // 2 bytes
	digestOff     = 5  // 4 bytes
	lengthOff     = 9  // 2 bytes
	dataOff       = 11

	digestFieldLen = 4

	// HeaderLen is the length of the relay header at the front of the
	// cell body.
	HeaderLen = dataOff

	// MaxDataLen is the maximum data carried by a single cell.
	MaxDataLen = onioncrypt.RelayBodyLen - dataOff
)

// Scheme pins the primitives and truncation widths of one deployed protocol
// version.  The truncated digest width is protocol-version-dependent and
// lives here rather than as a package constant.
type Scheme struct {
	// Name is the scheme identifier.
	Name string

	// StreamKeyLen is the keystream cipher key length in bytes.
	StreamKeyLen int

	// DigestSeedLen is the per-direction digest seed length in bytes.
	DigestSeedLen int

	// DigestTruncLen is the width of the truncated digest written into the
	// cell header, at most digestFieldLen.
	DigestTruncLen int

	// NewDigest constructs the running digest.  The returned hash must
	// support encoding.BinaryMarshaler so a speculative digest update can
	// be rolled back when the recognized field is zero by coincidence.
	NewDigest func() hash.Hash
}

var (
	// SchemeAES128SHA1 is the link relay crypto: AES-128-CTR with a running
	// SHA-1 digest.
	SchemeAES128SHA1 = &Scheme{
		Name:           "tor1-aes128-sha1",
		StreamKeyLen:   16,
		DigestSeedLen:  sha1.Size,
		DigestTruncLen: 4,
		NewDigest:      sha1.New,
	}

	// SchemeAES256SHA3 is the onion-service variant: AES-256-CTR with a
	// running SHA3-256 digest.
	SchemeAES256SHA3 = &Scheme{
		Name:           "tor1-aes256-sha3",
		StreamKeyLen:   32,
		DigestSeedLen:  32,
		DigestTruncLen: 4,
		NewDigest:      func() hash.Hash { return sha3.New256() },
	}
)

// SeedLen returns the length of seed material this scheme's key schedule
// consumes: Df | Db | Kf | Kb.
func (s *Scheme) SeedLen() int {
	return 2*s.DigestSeedLen + 2*s.StreamKeyLen
}

// Geometry returns the relay cell geometry of this scheme.
func (s *Scheme) Geometry() *onioncrypt.Geometry {
	return &onioncrypt.Geometry{
		SchemeName:   s.Name,
		RelayBodyLen: onioncrypt.RelayBodyLen,
		HeaderLen:    HeaderLen,
		TagLen:       s.DigestTruncLen,
		MaxDataLen:   MaxDataLen,
	}
}

// cryptState is one direction's keystream and running digest.
type cryptState struct {
	scheme *Scheme
	stream *crypto.Stream
	digest hash.Hash
}

func newCryptState(s *Scheme, digestSeed, key []byte) (*cryptState, error) {
	stream, err := crypto.NewStream(key)
	if err != nil {
		return nil, err
	}
	d := s.NewDigest()
	d.Write(digestSeed)
	return &cryptState{
		scheme: s,
		stream: stream,
		digest: d,
	}, nil
}

// originate fills in the recognition fields of a plaintext cell: recognized
// zeroed, then the running digest absorbs the body with a zeroed digest
// field, and its truncated sum lands in the digest field.
func (cs *cryptState) originate(cell *onioncrypt.RelayBody) {
	cell[recognizedOff] = 0
	cell[recognizedOff+1] = 0
	for i := 0; i < digestFieldLen; i++ {
		cell[digestOff+i] = 0
	}
	cs.digest.Write(cell[:])
	sum := cs.digest.Sum(nil)
	copy(cell[digestOff:digestOff+cs.scheme.DigestTruncLen], sum[:cs.scheme.DigestTruncLen])
}

// recognize checks whether a peeled cell is addressed to this hop.  The
// digest update is committed only when the cell verifies; a coincidental
// zero recognized field rolls the running digest back so subsequent cells
// stay in sync.
func (cs *cryptState) recognize(cell *onioncrypt.RelayBody) bool {
	if cell[recognizedOff] != 0 || cell[recognizedOff+1] != 0 {
		return false
	}

	var saved [digestFieldLen]byte
	copy(saved[:], cell[digestOff:digestOff+digestFieldLen])
	for i := 0; i < digestFieldLen; i++ {
		cell[digestOff+i] = 0
	}

	snapshot, err := cs.digest.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic("tor1: BUG: digest state not snapshottable: " + err.Error())
	}
	cs.digest.Write(cell[:])
	sum := cs.digest.Sum(nil)
	copy(cell[digestOff:], saved[:])

	trunc := cs.scheme.DigestTruncLen
	if subtle.ConstantTimeCompare(saved[:trunc], sum[:trunc]) == 1 {
		return true
	}

	// Not ours after all.
	if err = cs.digest.(encoding.BinaryUnmarshaler).UnmarshalBinary(snapshot); err != nil {
		panic("tor1: BUG: failed to restore digest state: " + err.Error())
	}
	return false
}

func (cs *cryptState) reset() {
	cs.stream.Reset()
	// hash.Hash offers no way to wipe its chaining state, dropping the
	// seeded digest is the best available.
	cs.digest.Reset()
}

func deriveStates(s *Scheme, seed onioncrypt.KeySeed) (fwd, back *cryptState, err error) {
	if len(seed) < s.SeedLen() {
		return nil, nil, fmt.Errorf("tor1: %s seed is %d bytes, need %d: %w",
			s.Name, len(seed), s.SeedLen(), onioncrypt.ErrShortSeed)
	}

	df := seed[:s.DigestSeedLen]
	db := seed[s.DigestSeedLen : 2*s.DigestSeedLen]
	kf := seed[2*s.DigestSeedLen : 2*s.DigestSeedLen+s.StreamKeyLen]
	kb := seed[2*s.DigestSeedLen+s.StreamKeyLen : s.SeedLen()]

	if fwd, err = newCryptState(s, df, kf); err != nil {
		return nil, nil, err
	}
	if back, err = newCryptState(s, db, kb); err != nil {
		fwd.reset()
		return nil, nil, err
	}
	return fwd, back, nil
}

// ClientCryptState is the client-side state for one hop: the forward half
// originates and encrypts outbound cells, the backward half peels inbound
// ones.
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

// Originate prepares the recognition fields of a cell addressed to this hop.
func (c *ClientCryptState) Originate(cell *onioncrypt.RelayBody) {
	c.fwd.originate(cell)
}

// EncryptOutbound applies this hop's forward keystream.
func (c *ClientCryptState) EncryptOutbound(cell *onioncrypt.RelayBody) {
	c.fwd.stream.XORKeyStream(cell[:], cell[:])
}

// DecryptInbound peels this hop's backward keystream and reports
// recognition.
func (c *ClientCryptState) DecryptInbound(cell *onioncrypt.RelayBody) bool {
	c.back.stream.XORKeyStream(cell[:], cell[:])
	return c.back.recognize(cell)
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
// final destination is this hop.
func (r *RelayCryptState) Decrypt(cell *onioncrypt.RelayBody) bool {
	r.fwd.stream.XORKeyStream(cell[:], cell[:])
	return r.fwd.recognize(cell)
}

// Originate prepares and encrypts a cell this relay is sending back toward
// the client.
func (r *RelayCryptState) Originate(cell *onioncrypt.RelayBody) {
	r.back.originate(cell)
	r.back.stream.XORKeyStream(cell[:], cell[:])
}

// Encrypt applies this hop's backward keystream to a cell originated
// further from the client.
func (r *RelayCryptState) Encrypt(cell *onioncrypt.RelayBody) {
	r.back.stream.XORKeyStream(cell[:], cell[:])
}

// Reset clears the state's secret material.
func (r *RelayCryptState) Reset() {
	r.fwd.reset()
	r.back.reset()
}

// NewRelayCell assembles a plaintext relay cell body carrying data.  The
// recognition fields are left zero for Originate to fill in; the slack
// after the data is 4 zero bytes followed by random padding.
func NewRelayCell(cmd uint8, streamID uint16, data []byte) (*onioncrypt.RelayBody, error) {
	if len(data) > MaxDataLen {
		return nil, fmt.Errorf("tor1: relay data too large: %d > %d", len(data), MaxDataLen)
	}

	cell := new(onioncrypt.RelayBody)
	cell[cmdOff] = cmd
	binary.BigEndian.PutUint16(cell[streamIDOff:], streamID)
	binary.BigEndian.PutUint16(cell[lengthOff:], uint16(len(data)))
	copy(cell[dataOff:], data)

	if padStart := dataOff + len(data) + 4; padStart < onioncrypt.RelayBodyLen {
		if _, err := io.ReadFull(rand.Reader, cell[padStart:]); err != nil {
			return nil, err
		}
	}
	return cell, nil
}

// RelayCellData returns the command, stream ID and data of a recognized
// plaintext relay cell.
func RelayCellData(cell *onioncrypt.RelayBody) (cmd uint8, streamID uint16, data []byte, err error) {
	dataLen := binary.BigEndian.Uint16(cell[lengthOff:])
	if int(dataLen) > MaxDataLen {
		return 0, 0, nil, fmt.Errorf("tor1: relay data length %d exceeds maximum %d", dataLen, MaxDataLen)
	}
	cmd = cell[cmdOff]
	streamID = binary.BigEndian.Uint16(cell[streamIDOff:])
	data = make([]byte, dataLen)
	copy(data, cell[dataOff:dataOff+int(dataLen)])
	return cmd, streamID, data, nil
}
