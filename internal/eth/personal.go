// Package eth wraps the go-ethereum primitives used for wallet sign-in:
// EIP-191 personal-message hashing, signing and signer recovery.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

var (
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrInvalidSignature = errors.New("invalid signature encoding")
)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return len(s) == 42 && common.IsHexAddress(s)
}

// ChecksumAddress returns the EIP-55 form of a valid address.
func ChecksumAddress(s string) (string, error) {
	if !IsAddress(s) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(s).Hex(), nil
}

// SignPersonal signs message the way wallets implement personal_sign and
// returns the 0x-prefixed 65-byte signature with V in {27, 28}.
func SignPersonal(key *ecdsa.PrivateKey, message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverPersonal returns the address that produced signature over message.
// Both {0, 1} and {27, 28} recovery ids are accepted.
func RecoverPersonal(message []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes", ErrInvalidSignature, signatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonal reports whether signature over message was produced by
// expected.
func VerifyPersonal(message []byte, signature string, expected common.Address) (bool, error) {
	recovered, err := RecoverPersonal(message, signature)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}
