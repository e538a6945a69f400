package solman

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sol_recipient_str = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"

func TestMintInstructionData(t *testing.T) {
	data := mintInstructionData(8900000)
	require.Len(t, data, 16)

	disc := sha256.Sum256([]byte("global:mint_zenzec"))
	assert.Equal(t, disc[:8], data[:8])
	assert.Equal(t, uint64(8900000), binary.LittleEndian.Uint64(data[8:]))
}

func encodeBurnEventLog(t *testing.T, ev *BurnToBTCEvent) string {
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(ev))

	disc := burnEventDiscriminator()
	raw := append(disc[:], buf.Bytes()...)
	return programDataPrefix + base64.StdEncoding.EncodeToString(raw)
}

func TestParseBurnEvent(t *testing.T) {
	user := solana.MustPublicKeyFromBase58(sol_recipient_str)
	ev := &BurnToBTCEvent{
		User:           user,
		Amount:         1250000,
		BtcAddressHash: "bcrt1q5n2k3frgpxces3dsw4qfpqk4kksv0cz96svn0w",
		Encrypted:      false,
		Timestamp:      1724407200,
	}

	logs := []string{
		"Program 7ac8wtD5S9BRutHBMUoKMjpYepKSHVCgGaoN1etLjkd4 invoke [1]",
		"Program log: Instruction: BurnForBtc",
		encodeBurnEventLog(t, ev),
		"Program 7ac8wtD5S9BRutHBMUoKMjpYepKSHVCgGaoN1etLjkd4 success",
	}

	got, err := ParseBurnEvent(logs)
	require.NoError(t, err)
	assert.Equal(t, user, got.User)
	assert.Equal(t, uint64(1250000), got.Amount)
	assert.Equal(t, ev.BtcAddressHash, got.BtcAddressHash)
	assert.False(t, got.Encrypted)
	assert.Equal(t, int64(1724407200), got.Timestamp)
}

func TestParseBurnEventIgnoresOtherEvents(t *testing.T) {
	// A "Program data:" line carrying some other event discriminator
	otherDisc := sha256.Sum256([]byte("event:SomethingElse"))
	raw := append(otherDisc[:8], []byte{1, 2, 3}...)
	logs := []string{
		programDataPrefix + base64.StdEncoding.EncodeToString(raw),
		"Program log: nothing of interest",
	}

	_, err := ParseBurnEvent(logs)
	require.Error(t, err)
}

func TestParseBurnEventEmptyLogs(t *testing.T) {
	_, err := ParseBurnEvent(nil)
	require.Error(t, err)
}

func TestSimulatedMintFinalizes(t *testing.T) {
	sp := NewSimulatedPayoutClient()
	sp.FinalizeAfter = 2
	ctx := context.Background()

	recipient := solana.MustPublicKeyFromBase58(sol_recipient_str)
	sig, err := sp.MintZenZEC(ctx, recipient, 42000)
	require.NoError(t, err)

	mints := sp.Mints()
	require.Len(t, mints, 1)
	assert.Equal(t, recipient, mints[0].Recipient)
	assert.Equal(t, uint64(42000), mints[0].Amount)

	st, err := sp.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.False(t, st.Finalized)

	st, err = sp.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.True(t, st.Finalized)
	assert.False(t, st.Failed)
}

func TestSimulatedUnknownSignature(t *testing.T) {
	sp := NewSimulatedPayoutClient()

	st, err := sp.SignatureStatus(context.Background(), RandomSignature())
	require.NoError(t, err)
	assert.False(t, st.Found)
}

func TestSimulatedFailedSignature(t *testing.T) {
	sp := NewSimulatedPayoutClient()
	ctx := context.Background()

	recipient := solana.MustPublicKeyFromBase58(sol_recipient_str)
	sig, err := sp.MintZenZEC(ctx, recipient, 42000)
	require.NoError(t, err)
	sp.FailSignature(sig)

	st, err := sp.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.True(t, st.Failed)
	assert.False(t, st.Finalized)
}

func TestSimulatedPlantedBurn(t *testing.T) {
	sp := NewSimulatedPayoutClient()
	ctx := context.Background()

	sig := RandomSignature()
	planted := &BurnVerification{
		Signature:  sig.String(),
		Burner:     solana.MustPublicKeyFromBase58(sol_recipient_str),
		Amount:     777000,
		BtcAddress: "bcrt1q5n2k3frgpxces3dsw4qfpqk4kksv0cz96svn0w",
	}
	sp.PlantBurn(sig, planted)

	bv, err := sp.VerifyBurn(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, uint64(777000), bv.Amount)

	_, err = sp.VerifyBurn(ctx, RandomSignature())
	require.Error(t, err)
}

func TestSimulatedSubmitError(t *testing.T) {
	sp := NewSimulatedPayoutClient()
	sp.SubmitErr = assert.AnError

	_, err := sp.MintZenZEC(context.Background(), solana.MustPublicKeyFromBase58(sol_recipient_str), 1)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, sp.Mints())
}
