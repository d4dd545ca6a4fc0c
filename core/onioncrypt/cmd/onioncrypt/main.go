// SPDX-FileCopyrightText: Copyright (C) 2025  The Arachne Project Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// onioncrypt is a CLI tool for exercising the relay-cell crypto
// constructions against files and ad-hoc synthetic circuits.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/katzenpost/hpqc/rand"

	"github.com/arachne-project/arachne/core/onioncrypt"
	"github.com/arachne-project/arachne/core/onioncrypt/cgo"
	"github.com/arachne-project/arachne/core/onioncrypt/tor1"
)

// cellScheme adapts one construction to the scheme-agnostic subcommands.
type cellScheme struct {
	geometry  *onioncrypt.Geometry
	seedLen   int
	newClient func(seed onioncrypt.KeySeed) (onioncrypt.ClientLayer, error)
	newRelay  func(seed onioncrypt.KeySeed) (onioncrypt.RelayCrypt, error)
	newCell   func(data []byte) (*onioncrypt.RelayBody, error)
	cellData  func(cell *onioncrypt.RelayBody) ([]byte, error)
}

func tor1Scheme(s *tor1.Scheme) *cellScheme {
	return &cellScheme{
		geometry: s.Geometry(),
		seedLen:  s.SeedLen(),
		newClient: func(seed onioncrypt.KeySeed) (onioncrypt.ClientLayer, error) {
			return tor1.NewClientCryptState(s, seed)
		},
		newRelay: func(seed onioncrypt.KeySeed) (onioncrypt.RelayCrypt, error) {
			return tor1.NewRelayCryptState(s, seed)
		},
		newCell: func(data []byte) (*onioncrypt.RelayBody, error) {
			return tor1.NewRelayCell(tor1.RelayData, 0, data)
		},
		cellData: func(cell *onioncrypt.RelayBody) ([]byte, error) {
			_, _, data, err := tor1.RelayCellData(cell)
			return data, err
		},
	}
}

func cgoScheme(s *cgo.Scheme) *cellScheme {
	return &cellScheme{
		geometry: s.Geometry(),
		seedLen:  s.MinSeedLen,
		newClient: func(seed onioncrypt.KeySeed) (onioncrypt.ClientLayer, error) {
			return cgo.NewClientCryptState(s, seed)
		},
		newRelay: func(seed onioncrypt.KeySeed) (onioncrypt.RelayCrypt, error) {
			return cgo.NewRelayCryptState(s, seed)
		},
		newCell:  cgo.NewRelayCell,
		cellData: cgo.RelayCellData,
	}
}

var schemes = map[string]*cellScheme{
	tor1.SchemeAES128SHA1.Name: tor1Scheme(tor1.SchemeAES128SHA1),
	tor1.SchemeAES256SHA3.Name: tor1Scheme(tor1.SchemeAES256SHA3),
	cgo.SchemeAEZ128.Name:      cgoScheme(cgo.SchemeAEZ128),
	cgo.SchemeAEZ256.Name:      cgoScheme(cgo.SchemeAEZ256),
}

func schemeByName(name string) *cellScheme {
	s, ok := schemes[name]
	if !ok {
		names := make([]string, 0, len(schemes))
		for n := range schemes {
			names = append(names, n)
		}
		sort.Strings(names)
		log.Fatalf("unknown scheme %q, have %v", name, names)
	}
	return s
}

var rootCmd = &cobra.Command{
	Use:   "onioncrypt",
	Short: "Relay cell crypto tool",
	Long:  "A CLI tool for exercising the relay-cell onion crypto constructions.",
}

var geometryCmd = &cobra.Command{
	Use:   "geometry",
	Short: "Print a scheme's relay cell geometry",
	Run: func(cmd *cobra.Command, args []string) {
		schemeName, _ := cmd.Flags().GetString("scheme")
		file, _ := cmd.Flags().GetString("file")

		s := schemeByName(schemeName)
		tomlOut := s.geometry.Display()
		if file == "" {
			fmt.Println(tomlOut)
			return
		}
		if err := os.WriteFile(file, []byte(tomlOut), 0600); err != nil {
			log.Fatalf("failed to write geometry file: %v", err)
		}
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random hop seed",
	Long:  "Generate a random hop seed of the scheme's seed length, hex encoded.",
	Run: func(cmd *cobra.Command, args []string) {
		schemeName, _ := cmd.Flags().GetString("scheme")

		s := schemeByName(schemeName)
		seed := make([]byte, s.seedLen)
		if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			log.Fatalf("failed to generate seed: %v", err)
		}
		fmt.Println(hex.EncodeToString(seed))
	},
}

var wrapCmd = &cobra.Command{
	Use:   "wrap",
	Short: "Onion-encrypt a payload for the last listed hop",
	Long: `Build an outbound relay cell through the listed hop seeds, addressed to
the last hop, and write the encrypted cell body.

Example:
  onioncrypt wrap --scheme tor1-aes128-sha1 --seed <hex> --seed <hex> \
    --payload msg.bin --output cell.bin`,
	Run: func(cmd *cobra.Command, args []string) {
		schemeName, _ := cmd.Flags().GetString("scheme")
		seedsHex, _ := cmd.Flags().GetStringArray("seed")
		payloadFile, _ := cmd.Flags().GetString("payload")
		outputFile, _ := cmd.Flags().GetString("output")

		s := schemeByName(schemeName)
		if len(seedsHex) == 0 {
			log.Fatalf("at least one --seed is required")
		}

		payload, err := readInput(payloadFile)
		if err != nil {
			log.Fatalf("failed to read payload: %v", err)
		}

		cell, err := s.newCell(payload)
		if err != nil {
			log.Fatalf("failed to assemble cell: %v", err)
		}

		cc := onioncrypt.NewOutboundClientCrypt()
		for i, seedHex := range seedsHex {
			seed, err := hex.DecodeString(seedHex)
			if err != nil {
				log.Fatalf("hop %d: invalid seed hex: %v", i, err)
			}
			layer, err := s.newClient(seed)
			if err != nil {
				log.Fatalf("hop %d: %v", i, err)
			}
			cc.AddLayer(layer)
		}
		if err = cc.Encrypt(cell, onioncrypt.HopNum(len(seedsHex)-1)); err != nil {
			log.Fatalf("encrypt failed: %v", err)
		}

		if err = writeOutput(outputFile, cell.Bytes()); err != nil {
			log.Fatalf("failed to write cell: %v", err)
		}
	},
}

var unwrapCmd = &cobra.Command{
	Use:   "unwrap",
	Short: "Apply one relay hop's decryption to a cell",
	Long: `Process a cell body the way the relay holding the given seed would,
reporting whether the hop recognized it.  A recognized cell's payload is
written out; an unrecognized cell body is written as transformed, ready to
forward to the next hop.`,
	Run: func(cmd *cobra.Command, args []string) {
		schemeName, _ := cmd.Flags().GetString("scheme")
		seedHex, _ := cmd.Flags().GetString("seed")
		cellFile, _ := cmd.Flags().GetString("cell")
		outputFile, _ := cmd.Flags().GetString("output")

		s := schemeByName(schemeName)
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			log.Fatalf("invalid seed hex: %v", err)
		}
		relay, err := s.newRelay(seed)
		if err != nil {
			log.Fatalf("failed to derive relay state: %v", err)
		}

		raw, err := os.ReadFile(cellFile)
		if err != nil {
			log.Fatalf("failed to read cell file: %v", err)
		}
		if len(raw) != onioncrypt.RelayBodyLen {
			log.Fatalf("cell file is %d bytes, expected %d", len(raw), onioncrypt.RelayBodyLen)
		}
		cell := new(onioncrypt.RelayBody)
		copy(cell[:], raw)

		if !relay.Decrypt(cell) {
			fmt.Fprintf(os.Stderr, "cell not recognized at this hop, forward it onward\n")
			if err = writeOutput(outputFile, cell.Bytes()); err != nil {
				log.Fatalf("failed to write cell: %v", err)
			}
			return
		}

		fmt.Fprintf(os.Stderr, "cell recognized at this hop\n")
		data, err := s.cellData(cell)
		if err != nil {
			log.Fatalf("recognized cell is malformed: %v", err)
		}
		if err = writeOutput(outputFile, data); err != nil {
			log.Fatalf("failed to write payload: %v", err)
		}
	},
}

var tripCmd = &cobra.Command{
	Use:   "trip",
	Short: "Run a synthetic round trip over freshly keyed hops",
	Long: `Build a circuit of randomly seeded hops, send an outbound cell to the
exit and an inbound reply back, printing each hop's recognition verdict.`,
	Run: func(cmd *cobra.Command, args []string) {
		schemeName, _ := cmd.Flags().GetString("scheme")
		nrHops, _ := cmd.Flags().GetInt("hops")

		s := schemeByName(schemeName)
		if nrHops < 1 || nrHops > 8 {
			log.Fatalf("hop count %d out of range [1, 8]", nrHops)
		}

		ccOut := onioncrypt.NewOutboundClientCrypt()
		ccIn := onioncrypt.NewInboundClientCrypt()
		relays := make([]onioncrypt.RelayCrypt, nrHops)
		for i := 0; i < nrHops; i++ {
			seed := make([]byte, s.seedLen)
			if _, err := io.ReadFull(rand.Reader, seed); err != nil {
				log.Fatalf("failed to generate seed: %v", err)
			}
			outLayer, err := s.newClient(seed)
			if err != nil {
				log.Fatalf("hop %d: %v", i, err)
			}
			inLayer, err := s.newClient(seed)
			if err != nil {
				log.Fatalf("hop %d: %v", i, err)
			}
			relays[i], err = s.newRelay(seed)
			if err != nil {
				log.Fatalf("hop %d: %v", i, err)
			}
			ccOut.AddLayer(outLayer)
			ccIn.AddLayer(inLayer)
		}

		// Outbound: client to exit.
		cell, err := s.newCell([]byte("arachne roundtrip probe"))
		if err != nil {
			log.Fatalf("failed to assemble cell: %v", err)
		}
		if err = ccOut.Encrypt(cell, onioncrypt.HopNum(nrHops-1)); err != nil {
			log.Fatalf("outbound encrypt failed: %v", err)
		}
		for i, relay := range relays {
			recognized := relay.Decrypt(cell)
			fmt.Printf("outbound hop %d: recognized=%v\n", i, recognized)
			if recognized != (i == nrHops-1) {
				log.Fatalf("outbound recognition misfired at hop %d", i)
			}
		}

		// Inbound: exit back to client.
		cell, err = s.newCell([]byte("arachne roundtrip reply"))
		if err != nil {
			log.Fatalf("failed to assemble cell: %v", err)
		}
		onioncrypt.CircuitEncryptInbound(cell, relays)
		hop, err := ccIn.Decrypt(cell)
		if err != nil {
			log.Fatalf("inbound decrypt failed: %v", err)
		}
		fmt.Printf("inbound: recognized at layer %d\n", hop)
		if int(hop) != nrHops-1 {
			log.Fatalf("inbound recognition misfired at layer %d", hop)
		}
		fmt.Println("round trip ok")
	},
}

func readInput(file string) ([]byte, error) {
	if file == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func writeOutput(file string, b []byte) error {
	if file == "" {
		_, err := os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(file, b, 0600)
}

func init() {
	rootCmd.AddCommand(geometryCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(wrapCmd)
	rootCmd.AddCommand(unwrapCmd)
	rootCmd.AddCommand(tripCmd)

	for _, cmd := range []*cobra.Command{geometryCmd, keygenCmd, wrapCmd, unwrapCmd, tripCmd} {
		cmd.Flags().String("scheme", tor1.SchemeAES128SHA1.Name, "relay crypto scheme name")
	}

	geometryCmd.Flags().String("file", "", "file path to write TOML output to, empty indicates stdout")

	wrapCmd.Flags().StringArray("seed", []string{}, "hop seed, hex (repeat in circuit-extension order)")
	wrapCmd.Flags().String("payload", "", "file to read the payload from (default: stdin)")
	wrapCmd.Flags().String("output", "", "file to write the cell body to (default: stdout)")
	wrapCmd.MarkFlagRequired("seed")

	unwrapCmd.Flags().String("seed", "", "this hop's seed, hex (required)")
	unwrapCmd.Flags().String("cell", "", "file holding the cell body (required)")
	unwrapCmd.Flags().String("output", "", "file to write the result to (default: stdout)")
	unwrapCmd.MarkFlagRequired("seed")
	unwrapCmd.MarkFlagRequired("cell")

	tripCmd.Flags().Int("hops", 3, "number of hops in the synthetic circuit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
