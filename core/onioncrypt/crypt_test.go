// crypt_test.go - Multi-layer wrapper tests.
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

package onioncrypt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// countingLayer records how often each entry point ran, recognizing inbound
// cells when told to.  It stands in for a real construction so the wrapper
// loops can be observed in isolation.
type countingLayer struct {
	id        int
	recognize bool

	originates int
	encrypts   int
	decrypts   int
	resets     int

	log *[]int // application order, shared across layers
}

func (l *countingLayer) Originate(cell *RelayBody) {
	l.originates++
	*l.log = append(*l.log, l.id)
}

func (l *countingLayer) EncryptOutbound(cell *RelayBody) {
	l.encrypts++
	*l.log = append(*l.log, l.id)
}

func (l *countingLayer) DecryptInbound(cell *RelayBody) bool {
	l.decrypts++
	*l.log = append(*l.log, l.id)
	return l.recognize
}

func (l *countingLayer) Reset() {
	l.resets++
}

func newCountingStack(n, recognizeAt int) ([]*countingLayer, *[]int) {
	log := new([]int)
	layers := make([]*countingLayer, n)
	for i := range layers {
		layers[i] = &countingLayer{
			id:        i,
			recognize: i == recognizeAt,
			log:       log,
		}
	}
	return layers, log
}

func TestOutboundLayerOrder(t *testing.T) {
	require := require.New(t)

	layers, log := newCountingStack(4, -1)
	cc := NewOutboundClientCrypt()
	for _, l := range layers {
		cc.AddLayer(l)
	}
	require.Equal(4, cc.NumLayers())

	cell := new(RelayBody)
	require.NoError(cc.Encrypt(cell, 2))

	// Originate at the target, then wrap 2, 1, 0.
	require.Equal([]int{2, 2, 1, 0}, *log)
	require.Equal(1, layers[2].originates)
	require.Equal(1, layers[2].encrypts)
	require.Equal(1, layers[1].encrypts)
	require.Equal(1, layers[0].encrypts)
	require.Equal(0, layers[3].originates, "layer beyond the target must be untouched")
	require.Equal(0, layers[3].encrypts, "layer beyond the target must be untouched")
}

func TestOutboundNoSuchHop(t *testing.T) {
	require := require.New(t)

	cc := NewOutboundClientCrypt()
	layers, _ := newCountingStack(2, -1)
	for _, l := range layers {
		cc.AddLayer(l)
	}

	cell := new(RelayBody)
	require.ErrorIs(cc.Encrypt(cell, 2), ErrNoSuchHop)
	require.Equal(0, layers[0].encrypts, "failed encrypt must not touch any layer")
	require.Equal(0, layers[1].encrypts, "failed encrypt must not touch any layer")
}

func TestInboundExhaustiveness(t *testing.T) {
	require := require.New(t)

	for recognizeAt := 0; recognizeAt < 4; recognizeAt++ {
		layers, _ := newCountingStack(4, recognizeAt)
		cc := NewInboundClientCrypt()
		for _, l := range layers {
			cc.AddLayer(l)
		}

		cell := new(RelayBody)
		hop, err := cc.Decrypt(cell)
		require.NoError(err)
		require.Equal(HopNum(recognizeAt), hop)

		// Every layer up to and including the recognizing one ran exactly
		// once, none past it.
		for i, l := range layers {
			if i <= recognizeAt {
				require.Equalf(1, l.decrypts, "layer %d (recognizer %d)", i, recognizeAt)
			} else {
				require.Equalf(0, l.decrypts, "layer %d (recognizer %d)", i, recognizeAt)
			}
		}
	}
}

func TestInboundNotRecognized(t *testing.T) {
	require := require.New(t)

	layers, log := newCountingStack(3, -1)
	cc := NewInboundClientCrypt()
	for _, l := range layers {
		cc.AddLayer(l)
	}

	cell := new(RelayBody)
	_, err := cc.Decrypt(cell)
	require.ErrorIs(err, ErrCellNotRecognized)

	// The full pass still crossed every layer, in order.
	require.Equal([]int{0, 1, 2}, *log)
	for i, l := range layers {
		require.Equalf(1, l.decrypts, "layer %d", i)
	}
}

func TestStackReset(t *testing.T) {
	require := require.New(t)

	layers, _ := newCountingStack(3, -1)
	ccOut := NewOutboundClientCrypt()
	ccIn := NewInboundClientCrypt()
	for _, l := range layers {
		ccOut.AddLayer(l)
		ccIn.AddLayer(l)
	}
	ccOut.Reset()
	ccIn.Reset()
	for i, l := range layers {
		require.Equalf(2, l.resets, "layer %d", i)
	}
}

func TestKeySeedReset(t *testing.T) {
	require := require.New(t)

	seed := KeySeed([]byte("not a very secret seed material"))
	seed.Reset()
	for i, b := range seed {
		require.Zerof(b, "seed byte %d survived Reset", i)
	}

	var cell RelayBody
	cell[0] = 0xa5
	cell.Reset()
	require.Zero(cell[0])
}

func TestGeometryValidate(t *testing.T) {
	require := require.New(t)

	g := &Geometry{
		SchemeName:   "test",
		RelayBodyLen: RelayBodyLen,
		HeaderLen:    11,
		TagLen:       4,
		MaxDataLen:   RelayBodyLen - 11,
	}
	require.NoError(g.Validate())
	require.Contains(g.Display(), "SchemeName")

	bad := *g
	bad.MaxDataLen--
	require.Error(bad.Validate())

	bad = *g
	bad.RelayBodyLen = 512
	require.Error(bad.Validate())

	bad = *g
	bad.TagLen = 0
	require.Error(bad.Validate())

	bad = *g
	bad.SchemeName = ""
	require.Error(bad.Validate())
}
