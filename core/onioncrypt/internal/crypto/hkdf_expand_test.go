// hkdf_expand_test.go - HKDF-Expand tests.
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

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// RFC 5869 Appendix A test vectors, expand step only.
var hkdfVectors = []struct {
	name string
	prk  string
	info string
	l    int
	okm  string
}{
	{
		name: "A.1",
		prk:  "077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5",
		info: "f0f1f2f3f4f5f6f7f8f9",
		l:    42,
		okm:  "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865",
	},
	{
		name: "A.2",
		prk:  "06a6b88c5853361a06104c9ceb35b45cef760014904671014a193f40c15fc244",
		info: "b0b1b2b3b4b5b6b7b8b9babbbcbdbebfc0c1c2c3c4c5c6c7c8c9cacbcccdcecfd0d1d2d3d4d5d6d7d8d9dadbdcdddedfe0e1e2e3e4e5e6e7e8e9eaebecedeeeff0f1f2f3f4f5f6f7f8f9fafbfcfdfeff",
		l:    82,
		okm:  "b11e398dc80327a1c8e7f78c596a49344f012eda2d4efad8a050cc4c19afa97c59045a99cac7827271cb41c65e590e09da3275600c2f09b8367793a9aca3db71cc30c58179ec3e87c14c01d5c1f3434f1d87",
	},
	{
		name: "A.3",
		prk:  "19ef24a32c717b167f33a91d6f648bdf96596776afdb6377ac434c1c293ccb04",
		info: "",
		l:    42,
		okm:  "8da4e775a563c18f715f802a063c5a31b8a11f5c5ee1879ec3454e5f3c738d2d9d201395faa4b61a96c8",
	},
}

func TestHKDFExpand(t *testing.T) {
	for _, vec := range hkdfVectors {
		t.Run(vec.name, func(t *testing.T) {
			require := require.New(t)

			prk, err := hex.DecodeString(vec.prk)
			require.NoError(err)
			info, err := hex.DecodeString(vec.info)
			require.NoError(err)
			okm, err := hex.DecodeString(vec.okm)
			require.NoError(err)

			require.Equal(okm, HKDFExpand(sha256.New, prk, info, vec.l))
		})
	}
}

func TestHKDFExpandInfoSeparation(t *testing.T) {
	require := require.New(t)

	prk := make([]byte, sha256.Size)
	a := HKDFExpand(sha256.New, prk, []byte("context a"), 64)
	b := HKDFExpand(sha256.New, prk, []byte("context b"), 64)
	require.NotEqual(a, b, "distinct info strings must yield distinct output")
}
