// Package wallet provides a local private-key wallet that signs the way
// browser wallets implement personal_sign.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/eth"
	"github.com/layer-3/beatauth/ports"
)

// KeyWallet signs with an in-process secp256k1 key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New wraps an existing key.
func New(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Generate creates a wallet with a fresh random key.
func Generate() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}
	return New(key), nil
}

var _ ports.Wallet = (*KeyWallet)(nil)

// Address returns the EIP-55 checksummed address.
func (w *KeyWallet) Address() string {
	return w.address.Hex()
}

// SignMessage signs message if address belongs to this wallet.
func (w *KeyWallet) SignMessage(ctx context.Context, address string, message []byte) (string, error) {
	if !core.SameAddress(address, w.address.Hex()) {
		return "", fmt.Errorf("wallet does not control %s", address)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return eth.SignPersonal(w.key, message)
}
