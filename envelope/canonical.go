// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package envelope

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Canonicalize serializes v into the canonical JSON form both signer and
// verifier must agree on: object keys sorted lexicographically at every
// nesting level, no insignificant whitespace, UTF-8, standard JSON escaping.
//
// The value is first marshalled with encoding/json and then re-decoded into
// generic form, so struct field order never leaks into the output. Numbers are
// kept as their original literals (json.Number) so nanosecond nonces survive
// the round trip exactly.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return canonicalizeRaw(raw)
}

func canonicalizeRaw(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// reject trailing garbage
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	// encoding/json sorts map[string]... keys at every level
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
