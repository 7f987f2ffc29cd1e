package eth

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecoverPersonal(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	msg := []byte("hello beats")
	sig, err := SignPersonal(key, msg)
	require.NoError(t, err)

	recovered, err := RecoverPersonal(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	ok, err := VerifyPersonal(msg, sig, addr)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPersonal([]byte("tampered"), sig, addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoverPersonalAcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := []byte("raw v")
	sig, err := SignPersonal(key, msg)
	require.NoError(t, err)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] -= 27

	recovered, err := RecoverPersonal(msg, hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestRecoverPersonalRejectsGarbage(t *testing.T) {
	_, err := RecoverPersonal([]byte("x"), "not-hex")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = RecoverPersonal([]byte("x"), "0x1234")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = RecoverPersonal([]byte("x"), "0x"+strings.Repeat("00", 64)+"05")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	_, err = ChecksumAddress("0x123")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.False(t, IsAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00"))
}
