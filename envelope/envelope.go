// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package envelope implements the signed request envelope used between
// validators and workers. An envelope is a JSON body
//
//	{"data": ..., "nonce": <ns timestamp>, "signed_by": ..., "signed_for": ..., "version": ...}
//
// serialized in canonical form (keys sorted lexicographically at every level,
// no insignificant whitespace) and signed over those exact bytes. The
// signature travels in the Body-Signature header as "0x" + hex.
//
// Signer and verifier are pure functions over bytes and keys; the HTTP layer
// composes them.
package envelope

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/keys"
)

// AllowedDelta is the maximum age of an envelope nonce before the request is
// rejected as stale.
const AllowedDelta = 5 * time.Second

const keyCacheSize = 512

var requiredFields = []string{"data", "nonce", "signed_by", "signed_for"}

// Parsed is a verified, decoded envelope body.
type Parsed struct {
	Data      json.RawMessage
	Nonce     int64
	SignedBy  string
	SignedFor string
	Version   int
}

// Signer builds signed envelopes on behalf of a local keypair.
type Signer struct {
	kp      *keys.Keypair
	version int
	nowNs   func() int64
}

// NewSigner creates a Signer around the given keypair.
func NewSigner(kp *keys.Keypair) *Signer {
	return &Signer{
		kp:      kp,
		version: 1,
		nowNs:   func() int64 { return time.Now().UnixNano() },
	}
}

// Address returns the SS58 address envelopes are signed by.
func (s *Signer) Address() string { return s.kp.Address() }

// Build serializes data into a canonical signed envelope addressed to
// receiver. It returns the body bytes to send and the value of the
// Body-Signature header.
func (s *Signer) Build(receiver string, data any) (body []byte, signature string, err error) {
	envelope := map[string]any{
		"data":       data,
		"nonce":      s.nowNs(),
		"signed_by":  s.kp.Address(),
		"signed_for": receiver,
		"version":    s.version,
	}
	body, err = Canonicalize(envelope)
	if err != nil {
		return nil, "", errors.Wrap(err, "canonicalize envelope")
	}
	return body, "0x" + hex.EncodeToString(s.kp.Sign(body)), nil
}

// Verifier checks incoming envelopes. Safe for concurrent use.
type Verifier struct {
	keyCache *lru.Cache // ss58 address -> ed25519 public key
	nowNs    func() int64
}

// NewVerifier creates a Verifier with the default clock.
func NewVerifier() *Verifier {
	cache, _ := lru.New(keyCacheSize)
	return &Verifier{
		keyCache: cache,
		nowNs:    func() int64 { return time.Now().UnixNano() },
	}
}

// Verify checks raw body bytes against the Body-Signature header value and
// returns the decoded envelope on success. Errors are one of the sum type in
// errors.go, possibly wrapped with context.
func (v *Verifier) Verify(raw []byte, signature string) (*Parsed, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(ErrMalformedJSON, err.Error())
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return nil, errors.Wrapf(ErrMissingField, "field %q", f)
		}
	}

	var nonce int64
	if err := json.Unmarshal(fields["nonce"], &nonce); err != nil {
		return nil, ErrBadNonceType
	}
	if age := v.nowNs() - nonce; age > int64(AllowedDelta) {
		return nil, &StaleError{Age: time.Duration(age)}
	}

	if !strings.HasPrefix(signature, "0x") {
		return nil, ErrBadSignatureFormat
	}
	sig, err := hex.DecodeString(signature[2:])
	if err != nil {
		return nil, ErrBadSignatureFormat
	}

	var signedBy string
	if err := json.Unmarshal(fields["signed_by"], &signedBy); err != nil {
		return nil, errors.Wrap(ErrMalformedJSON, "signed_by is not a string")
	}
	pub, err := v.publicKey(signedBy)
	if err != nil {
		return nil, err
	}

	// Re-canonicalize the parsed body. The signer serialized the same way, so
	// a mismatch here means the bytes were not produced by a conforming
	// signer.
	canonical, err := canonicalizeRaw(raw)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedJSON, err.Error())
	}
	if !keys.Verify(pub, canonical, sig) {
		return nil, ErrSignatureInvalid
	}

	parsed := &Parsed{
		Data:     fields["data"],
		Nonce:    nonce,
		SignedBy: signedBy,
	}
	if rawFor, ok := fields["signed_for"]; ok {
		_ = json.Unmarshal(rawFor, &parsed.SignedFor)
	}
	if rawVer, ok := fields["version"]; ok {
		_ = json.Unmarshal(rawVer, &parsed.Version)
	}
	return parsed, nil
}

func (v *Verifier) publicKey(address string) ([]byte, error) {
	if cached, ok := v.keyCache.Get(address); ok {
		return cached.([]byte), nil
	}
	pub, err := keys.DecodeSS58(address)
	if err != nil {
		return nil, errors.Wrap(ErrSignatureInvalid, err.Error())
	}
	v.keyCache.Add(address, pub)
	return pub, nil
}
