// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package keys

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Format is the generic substrate address format.
const DefaultSS58Format = 42

var ss58Prefix = []byte("SS58PRE")

// EncodeSS58 encodes a 32-byte public key into its SS58 address form.
func EncodeSS58(pub []byte, format uint16) string {
	var payload []byte
	if format < 64 {
		payload = append(payload, byte(format))
	} else {
		// two-byte prefix encoding for formats 64..16383
		first := byte(((format & 0xfc) >> 2) | 0x40)
		second := byte((format >> 8) | ((format & 0x03) << 6))
		payload = append(payload, first, second)
	}
	payload = append(payload, pub...)
	payload = append(payload, ss58Checksum(payload)...)
	return base58.Encode(payload)
}

// DecodeSS58 decodes an SS58 address into the raw 32-byte public key.
func DecodeSS58(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, errors.Wrap(err, "decode ss58")
	}
	var prefixLen int
	switch {
	case len(raw) >= 35 && raw[0] >= 64:
		prefixLen = 2
	case len(raw) >= 34 && raw[0] < 64:
		prefixLen = 1
	default:
		return nil, errors.New("ss58 address too short")
	}
	body := raw[:len(raw)-2]
	checksum := raw[len(raw)-2:]
	expected := ss58Checksum(body)
	if checksum[0] != expected[0] || checksum[1] != expected[1] {
		return nil, errors.New("ss58 checksum mismatch")
	}
	pub := body[prefixLen:]
	if len(pub) != 32 {
		return nil, errors.Errorf("unexpected ss58 public key length %d", len(pub))
	}
	return pub, nil
}

func ss58Checksum(payload []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(payload)
	return h.Sum(nil)[:2]
}
