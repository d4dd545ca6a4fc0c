// crypt.go - Multi-layer circuit crypt wrappers.
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
	"errors"
)

var (
	// ErrCellNotRecognized is returned when no layer of an inbound client
	// stack recognized the cell.  The circuit's crypto state cannot be
	// rewound, so the caller must tear the circuit down.
	ErrCellNotRecognized = errors.New("onioncrypt: cell not recognized by any hop")

	// ErrNoSuchHop is returned when an outbound cell targets a hop beyond
	// the last layer of the stack.
	ErrNoSuchHop = errors.New("onioncrypt: no such hop")

	// ErrShortSeed is wrapped by the tor1 and cgo constructors when the
	// handshake seed does not cover the algorithm's key schedule.
	ErrShortSeed = errors.New("onioncrypt: seed too short")
)

// ClientLayer is the client-side cryptographic state for a single hop.
// All methods advance internal keystream/tweak state; cells on a circuit
// direction must be presented in strict transmission order, each exactly
// once.  A ClientLayer is exclusively owned by one circuit's task and is
// never safe for concurrent use.
type ClientLayer interface {
	// Originate prepares the recognition fields of a plaintext cell
	// addressed to this hop.  The caller then applies EncryptOutbound for
	// this hop and every hop closer to the client.
	Originate(cell *RelayBody)

	// EncryptOutbound applies this hop's forward transformation.
	EncryptOutbound(cell *RelayBody)

	// DecryptInbound peels this hop's layer off an inbound cell and
	// reports whether the result is addressed to this hop.
	DecryptInbound(cell *RelayBody) bool

	// Reset clears the layer's secret state.  The layer is unusable
	// afterwards.
	Reset()
}

// RelayCrypt is the relay-side cryptographic state for the relay's own hop.
// The same ownership and strict ordering rules as ClientLayer apply.
type RelayCrypt interface {
	// Decrypt processes a cell moving away from the client and reports
	// whether the cell's final destination is this hop.  Unrecognized
	// cells are forwarded to the next hop as transformed.
	Decrypt(cell *RelayBody) bool

	// Originate prepares and encrypts a cell this relay itself is sending
	// back toward the client.
	Originate(cell *RelayBody)

	// Encrypt applies this hop's inbound transformation to a cell
	// originated further from the client, for forwarding toward it.
	Encrypt(cell *RelayBody)

	// Reset clears the state's secret material.
	Reset()
}

// OutboundClientCrypt holds the ordered client-side layers used to encrypt
// cells traveling toward the exit.  Layer 0 is the hop adjacent to the
// client.
type OutboundClientCrypt struct {
	layers []ClientLayer
}

// NewOutboundClientCrypt creates a new OutboundClientCrypt with no layers.
func NewOutboundClientCrypt() *OutboundClientCrypt {
	return &OutboundClientCrypt{}
}

// AddLayer appends the state for a newly extended hop.  Layers are only
// added between circuit-extension steps, never while a cell is mid-flight
// through this stack.
func (c *OutboundClientCrypt) AddLayer(l ClientLayer) {
	c.layers = append(c.layers, l)
}

// NumLayers returns the number of hops this stack can encrypt for.
func (c *OutboundClientCrypt) NumLayers() int {
	return len(c.layers)
}

// Encrypt onion-encrypts a cell addressed to the given hop, innermost layer
// first: the target hop's layer originates the cell, then every layer from
// the target inward to hop 0 wraps it.
func (c *OutboundClientCrypt) Encrypt(cell *RelayBody, hop HopNum) error {
	if int(hop) >= len(c.layers) {
		return ErrNoSuchHop
	}
	c.layers[hop].Originate(cell)
	for i := int(hop); i >= 0; i-- {
		c.layers[i].EncryptOutbound(cell)
	}
	return nil
}

// Reset clears every layer's secret state.
func (c *OutboundClientCrypt) Reset() {
	for _, l := range c.layers {
		l.Reset()
	}
}

// InboundClientCrypt holds the ordered client-side layers used to peel
// cells arriving from the circuit.
type InboundClientCrypt struct {
	layers []ClientLayer
}

// NewInboundClientCrypt creates a new InboundClientCrypt with no layers.
func NewInboundClientCrypt() *InboundClientCrypt {
	return &InboundClientCrypt{}
}

// AddLayer appends the state for a newly extended hop.
func (c *InboundClientCrypt) AddLayer(l ClientLayer) {
	c.layers = append(c.layers, l)
}

// NumLayers returns the number of layers in this stack.
func (c *InboundClientCrypt) NumLayers() int {
	return len(c.layers)
}

// Decrypt peels layers off an inbound cell, outermost first, and returns
// the hop that recognized it.  Every layer up to and including the
// recognizing one advances its state exactly once; an unrecognized cell
// crosses all layers and yields ErrCellNotRecognized, after which the
// circuit must be torn down.
func (c *InboundClientCrypt) Decrypt(cell *RelayBody) (HopNum, error) {
	for i, l := range c.layers {
		if l.DecryptInbound(cell) {
			return HopNum(i), nil
		}
	}
	return 0, ErrCellNotRecognized
}

// Reset clears every layer's secret state.
func (c *InboundClientCrypt) Reset() {
	for _, l := range c.layers {
		l.Reset()
	}
}

// CircuitEncryptInbound applies the relay-side inbound transformations of a
// whole circuit to a cell, as if the last state's relay had originated it
// and every relay closer to the client had forwarded it.  This is the
// out-of-band driver used by tests and benchmarks to synthesize inbound
// traffic without a live circuit.
func CircuitEncryptInbound(cell *RelayBody, states []RelayCrypt) {
	if len(states) == 0 {
		return
	}
	states[len(states)-1].Originate(cell)
	for i := len(states) - 2; i >= 0; i-- {
		states[i].Encrypt(cell)
	}
}
