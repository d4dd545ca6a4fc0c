// benchmark_test.go - Legacy relay-cell construction benchmarks.
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

package tor1

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arachne-project/arachne/core/onioncrypt"
)

// benchCircuit builds a synchronized three hop circuit for one scheme.
func benchCircuit(b *testing.B, s *Scheme) (*onioncrypt.OutboundClientCrypt, *onioncrypt.InboundClientCrypt, []onioncrypt.RelayCrypt) {
	require := require.New(b)

	ccOut := onioncrypt.NewOutboundClientCrypt()
	ccIn := onioncrypt.NewInboundClientCrypt()
	relays := make([]onioncrypt.RelayCrypt, 3)
	for i := range relays {
		seed := make([]byte, s.SeedLen())
		_, err := rand.Read(seed)
		require.NoError(err)

		outLayer, err := NewClientCryptState(s, seed)
		require.NoError(err)
		ccOut.AddLayer(outLayer)
		inLayer, err := NewClientCryptState(s, seed)
		require.NoError(err)
		ccIn.AddLayer(inLayer)
		relays[i], err = NewRelayCryptState(s, seed)
		require.NoError(err)
	}
	return ccOut, ccIn, relays
}

func benchOutbound(b *testing.B, s *Scheme) {
	require := require.New(b)

	ccOut, _, relays := benchCircuit(b, s)
	payload := make([]byte, MaxDataLen)
	_, err := rand.Read(payload)
	require.NoError(err)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		cell, err := NewRelayCell(RelayData, 1, payload)
		require.NoError(err)
		require.NoError(ccOut.Encrypt(cell, 2))
		require.False(relays[0].Decrypt(cell))
		require.False(relays[1].Decrypt(cell))
		require.True(relays[2].Decrypt(cell))
	}
}

func benchInbound(b *testing.B, s *Scheme) {
	require := require.New(b)

	_, ccIn, relays := benchCircuit(b, s)
	payload := make([]byte, MaxDataLen)
	_, err := rand.Read(payload)
	require.NoError(err)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		cell, err := NewRelayCell(RelayData, 1, payload)
		require.NoError(err)
		onioncrypt.CircuitEncryptInbound(cell, relays)
		hop, err := ccIn.Decrypt(cell)
		require.NoError(err)
		require.Equal(onioncrypt.HopNum(2), hop)
	}
}

func BenchmarkOutboundThreeHopsAES128SHA1(b *testing.B) {
	benchOutbound(b, SchemeAES128SHA1)
}

func BenchmarkOutboundThreeHopsAES256SHA3(b *testing.B) {
	benchOutbound(b, SchemeAES256SHA3)
}

func BenchmarkInboundThreeHopsAES128SHA1(b *testing.B) {
	benchInbound(b, SchemeAES128SHA1)
}

func BenchmarkInboundThreeHopsAES256SHA3(b *testing.B) {
	benchInbound(b, SchemeAES256SHA3)
}
