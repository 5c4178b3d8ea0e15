// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package keys

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// hotkeyFile is the on-disk layout of a wallet hotkey file:
// <walletPath>/<walletName>/hotkeys/<hotkeyName>
type hotkeyFile struct {
	SecretSeed  string `json:"secretSeed"`
	SecretKey   string `json:"secretKey"`
	SS58Address string `json:"ss58Address"`
}

// Load reads the hotkey keypair from the wallet directory layout.
func Load(walletPath, walletName, hotkeyName string) (*Keypair, error) {
	if walletPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home dir")
		}
		walletPath = filepath.Join(home, ".wallets")
	}
	path := filepath.Join(walletPath, walletName, "hotkeys", hotkeyName)

	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "read hotkey file [%v]", path)
	}
	var f hotkeyFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parse hotkey file [%v]", path)
	}

	secret := f.SecretSeed
	if secret == "" {
		secret = f.SecretKey
	}
	if secret == "" {
		return nil, errors.Errorf("no secret seed in hotkey file [%v]", path)
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(secret, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode secret seed")
	}
	if len(seed) > 32 {
		// some wallet tools store the expanded secret key; the seed is its first half
		seed = seed[:32]
	}
	kp, err := FromSeed(seed)
	if err != nil {
		return nil, err
	}
	if f.SS58Address != "" && f.SS58Address != kp.Address() {
		return nil, errors.Errorf("hotkey file address mismatch: have %v want %v", kp.Address(), f.SS58Address)
	}
	return kp, nil
}
