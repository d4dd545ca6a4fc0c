// crypto.go - Cryptographic primitive wrappers.
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

// Package crypto provides the primitive wrappers shared by the relay-cell
// crypto constructions.
package crypto

import (
	"crypto/cipher"

	"gitlab.com/yawning/aez.git"
	"gitlab.com/yawning/bsaes.git"

	"github.com/katzenpost/hpqc/util"
)

const (
	// StreamIVLength is the IV size of the relay keystream cipher in bytes.
	// Relay keystreams always start from a zero IV; the counter state
	// carries across cells.
	StreamIVLength = 16

	// SPRPTweakLength is the tweak size of the wide-block SPRP in bytes.
	SPRPTweakLength = 16
)

type resetable interface {
	Reset()
}

// Stream is a relay-cell keystream cipher.
type Stream struct {
	cipher.Stream
}

// KeyStream fills the buffer dst with key stream output.
func (s *Stream) KeyStream(dst []byte) {
	util.ExplicitBzero(dst)
	s.XORKeyStream(dst, dst)
}

// Reset clears the Stream instance such that no sensitive data is left in
// memory.
func (s *Stream) Reset() {
	// bsaes's ctrAble implementation exposes this, `crypto/aes` does not,
	// c'est la vie.
	if r, ok := s.Stream.(resetable); ok {
		r.Reset()
	}
}

// NewStream returns a new Stream keyed with key, running CTR mode from a
// zero IV.  Key length selects the AES variant (16 or 32 bytes).
func NewStream(key []byte) (*Stream, error) {
	// bsaes is smart enough to detect if the Go runtime and the CPU support
	// AES-NI and PCLMULQDQ and call `crypto/aes`.
	blk, err := bsaes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	var iv [StreamIVLength]byte
	return &Stream{cipher.NewCTR(blk, iv[:])}, nil
}

// SPRPEncrypt returns the ciphertext of the message msg, encrypted via the
// wide-block SPRP with the provided key and tweak.
func SPRPEncrypt(key []byte, tweak *[SPRPTweakLength]byte, msg []byte) []byte {
	return aez.Encrypt(key, tweak[:], nil, 0, msg, nil)
}

// SPRPDecrypt returns the plaintext of the message msg, decrypted via the
// wide-block SPRP with the provided key and tweak.
func SPRPDecrypt(key []byte, tweak *[SPRPTweakLength]byte, msg []byte) []byte {
	dst, ok := aez.Decrypt(key, tweak[:], nil, 0, msg, nil)
	if !ok {
		// Not covered by unit tests because this indicates a bug in the AEZ
		// implementation, that is hard to force.
		panic("crypto/SPRPDecrypt: BUG - aez.Decrypt failed with tau = 0")
	}
	return dst
}
