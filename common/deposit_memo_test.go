package common

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositMemoRoundTrip(t *testing.T) {
	recipient := solana.PublicKeyFromBytes(RandBytes(32))

	data, err := MakeDepositOpReturnData(recipient.String())
	require.NoError(t, err)
	assert.Equal(t, DepositMemoLen, len(data))

	memo, err := DecodeDepositMemo(data)
	require.NoError(t, err)
	assert.Equal(t, recipient, memo.Recipient)
}

func TestDepositMemoRejectsGarbage(t *testing.T) {
	// wrong length
	_, err := DecodeDepositMemo([]byte{1, 2, 3})
	assert.Error(t, err)

	// right length, wrong magic
	bad := RandBytes(DepositMemoLen)
	bad[0] = 'X'
	_, err = DecodeDepositMemo(bad)
	assert.Error(t, err)

	// not a base58 address at all
	_, err = MakeDepositOpReturnData("definitely-not-base58!!")
	assert.Error(t, err)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abcd", Shorten("abcd", 4))
	long := "0123456789abcdef0123456789abcdef"
	assert.Equal(t, "0123...cdef", Shorten(long, 4))
}
