// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hone-subnet/hone/keys"
)

func newTestPair(t *testing.T) (*Signer, *Verifier) {
	t.Helper()
	return NewSigner(keys.FromSeedPhrase("envelope-signer")), NewVerifier()
}

func TestCanonicalize_SortsKeysRecursively(t *testing.T) {
	body, err := Canonicalize(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"c": 3, "a": 1, "b": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":1,"b":2,"c":3},"zebra":1}`, string(body))
}

func TestCanonicalize_StructOrderDoesNotLeak(t *testing.T) {
	type payload struct {
		Zulu  int `json:"zulu"`
		Alpha int `json:"alpha"`
	}
	body, err := Canonicalize(payload{Zulu: 1, Alpha: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zulu":1}`, string(body))
}

func TestCanonicalize_PreservesNanosecondNonce(t *testing.T) {
	nonce := time.Now().UnixNano()
	body, err := Canonicalize(map[string]any{"nonce": nonce})
	require.NoError(t, err)

	again, err := canonicalizeRaw(body)
	require.NoError(t, err)
	assert.Equal(t, body, again)

	var decoded struct {
		Nonce int64 `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(again, &decoded))
	assert.Equal(t, nonce, decoded.Nonce)
}

func TestBuildVerify_RoundTrip(t *testing.T) {
	signer, verifier := newTestPair(t)

	body, sig, err := signer.Build("5Receiver", map[string]any{"problem_id": "abc", "num_train": 3})
	require.NoError(t, err)

	parsed, err := verifier.Verify(body, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), parsed.SignedBy)
	assert.Equal(t, "5Receiver", parsed.SignedFor)
	assert.Equal(t, 1, parsed.Version)

	var data map[string]any
	require.NoError(t, json.Unmarshal(parsed.Data, &data))
	assert.Equal(t, "abc", data["problem_id"])
}

func TestVerify_TamperedBody(t *testing.T) {
	signer, verifier := newTestPair(t)

	body, sig, err := signer.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)

	tampered := []byte(string(body[:len(body)-2]) + "2}")
	_, err = verifier.Verify(tampered, sig)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_WrongKey(t *testing.T) {
	signer, verifier := newTestPair(t)
	imposter := NewSigner(keys.FromSeedPhrase("imposter"))

	body, _, err := signer.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)
	_, sig, err := imposter.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)

	_, err = verifier.Verify(body, sig)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_MissingField(t *testing.T) {
	_, verifier := newTestPair(t)

	for _, field := range []string{"data", "nonce", "signed_by", "signed_for"} {
		envelope := map[string]any{
			"data":       map[string]any{},
			"nonce":      time.Now().UnixNano(),
			"signed_by":  "addr",
			"signed_for": "addr",
		}
		delete(envelope, field)
		raw, err := json.Marshal(envelope)
		require.NoError(t, err)

		_, err = verifier.Verify(raw, "0x00")
		assert.ErrorIs(t, err, ErrMissingField, "field %s", field)
	}
}

func TestVerify_BadNonceType(t *testing.T) {
	_, verifier := newTestPair(t)

	raw := []byte(`{"data":{},"nonce":"not-a-number","signed_by":"a","signed_for":"b"}`)
	_, err := verifier.Verify(raw, "0x00")
	assert.ErrorIs(t, err, ErrBadNonceType)
}

func TestVerify_BadSignatureFormat(t *testing.T) {
	signer, verifier := newTestPair(t)

	body, sig, err := signer.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)

	_, err = verifier.Verify(body, sig[2:]) // strip 0x
	assert.ErrorIs(t, err, ErrBadSignatureFormat)

	_, err = verifier.Verify(body, "0xZZZZ")
	assert.ErrorIs(t, err, ErrBadSignatureFormat)
}

func TestVerify_MalformedJSON(t *testing.T) {
	_, verifier := newTestPair(t)

	_, err := verifier.Verify([]byte("{not json"), "0x00")
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestVerify_StaleBoundary(t *testing.T) {
	signer, verifier := newTestPair(t)

	base := time.Now().UnixNano()
	verifier.nowNs = func() int64 { return base }

	// exactly AllowedDelta old: accepted
	signer.nowNs = func() int64 { return base - int64(AllowedDelta) }
	body, sig, err := signer.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = verifier.Verify(body, sig)
	assert.NoError(t, err)

	// one nanosecond older: rejected as stale
	signer.nowNs = func() int64 { return base - int64(AllowedDelta) - 1 }
	body, sig, err = signer.Build("5Receiver", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = verifier.Verify(body, sig)
	require.Error(t, err)
	assert.True(t, IsStale(err))

	var stale *StaleError
	require.True(t, errors.As(err, &stale))
	assert.InDelta(t, 5.0, stale.Age.Seconds(), 0.1)
}
