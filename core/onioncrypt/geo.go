// geo.go - Relay cell geometry.
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
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Geometry describes how a construction lays out the fixed-size relay cell
// body: how much of it is header and recognition signal, and how much is
// usable data.
type Geometry struct {
	// SchemeName is the name of the construction this geometry belongs to.
	SchemeName string

	// RelayBodyLen is the fixed cell body length.
	RelayBodyLen int

	// HeaderLen is the number of body bytes consumed by the relay header,
	// including the recognition fields.
	HeaderLen int

	// TagLen is the width of the recognition signal in bytes: the truncated
	// digest for tor1, the authentication tag for cgo.
	TagLen int

	// MaxDataLen is the maximum user data carried by one cell.
	MaxDataLen int
}

// Config is the toplevel TOML wrapper for a serialized Geometry.
type Config struct {
	RelayCellGeometry *Geometry
}

func (g *Geometry) String() string {
	var b strings.Builder
	b.WriteString("relay_cell_geometry:\n")
	b.WriteString(fmt.Sprintf("scheme: %s\n", g.SchemeName))
	b.WriteString(fmt.Sprintf("cell body size: %d\n", g.RelayBodyLen))
	b.WriteString(fmt.Sprintf("header size: %d\n", g.HeaderLen))
	b.WriteString(fmt.Sprintf("recognition tag size: %d\n", g.TagLen))
	b.WriteString(fmt.Sprintf("max data size: %d\n", g.MaxDataLen))
	return b.String()
}

// Display returns the geometry as a TOML document.
func (g *Geometry) Display() string {
	buf := new(bytes.Buffer)
	encoder := toml.NewEncoder(buf)
	err := encoder.Encode(&Config{RelayCellGeometry: g})
	if err != nil {
		panic(err)
	}
	return buf.String()
}

// Validate sanity checks the geometry's internal consistency.
func (g *Geometry) Validate() error {
	if g == nil {
		return fmt.Errorf("geometry is nil")
	}
	if g.SchemeName == "" {
		return fmt.Errorf("geometry: SchemeName is not set")
	}
	if g.RelayBodyLen != RelayBodyLen {
		return fmt.Errorf("geometry: invalid RelayBodyLen %d, expected %d", g.RelayBodyLen, RelayBodyLen)
	}
	if g.TagLen <= 0 || g.TagLen > g.HeaderLen {
		return fmt.Errorf("geometry: invalid TagLen %d", g.TagLen)
	}
	if g.HeaderLen+g.MaxDataLen != g.RelayBodyLen {
		return fmt.Errorf("geometry: header %d + data %d != body %d", g.HeaderLen, g.MaxDataLen, g.RelayBodyLen)
	}
	return nil
}
