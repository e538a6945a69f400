package solman

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	logger "github.com/sirupsen/logrus"
)

// PayoutClient is the Solana surface the payout flows need. Solman
// implements it against a real cluster, SimulatedPayoutClient in
// memory.
type PayoutClient interface {
	// MintZenZEC submits a mint of amount base units to the
	// recipient's token account and returns the tx signature.
	MintZenZEC(ctx context.Context, recipient solana.PublicKey, amount uint64) (solana.Signature, error)

	// SignatureStatus reports how deep a submitted signature sits.
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatusResult, error)

	// VerifyBurn proves a burn_for_btc transaction and extracts the
	// payout request from its event.
	VerifyBurn(ctx context.Context, sig solana.Signature) (*BurnVerification, error)

	// AuthorityBalance is the fee-payer balance in lamports.
	AuthorityBalance(ctx context.Context) (uint64, error)

	// CurrentSlot is the cluster slot at the given moment.
	CurrentSlot(ctx context.Context) (uint64, error)
}

// Solman talks to the deployed bridge program.
type Solman struct {
	rpcClient *rpc.Client
	cfg       *SolmanConfig
	authority solana.PrivateKey
	program   solana.PublicKey
	mint      solana.PublicKey
	configPDA solana.PublicKey
}

func NewSolman(cfg *SolmanConfig) (*Solman, error) {
	authority, err := solana.PrivateKeyFromBase58(cfg.AuthorityPrivKey)
	if err != nil {
		logger.WithError(err).Error("failed to parse authority private key")
		return nil, err
	}

	program, err := solana.PublicKeyFromBase58(cfg.BridgeProgram)
	if err != nil {
		logger.WithError(err).Error("failed to parse bridge program id")
		return nil, err
	}

	mint, err := solana.PublicKeyFromBase58(cfg.ZenZECMint)
	if err != nil {
		logger.WithError(err).Error("failed to parse zenZEC mint")
		return nil, err
	}

	configPDA, _, err := solana.FindProgramAddress([][]byte{configSeed}, program)
	if err != nil {
		logger.WithError(err).Error("failed to derive config PDA")
		return nil, err
	}

	url := cfg.URL
	if url == "" {
		url = GetNetworkURL(cfg.Network)
	}

	return &Solman{
		rpcClient: rpc.New(url),
		cfg:       cfg,
		authority: authority,
		program:   program,
		mint:      mint,
		configPDA: configPDA,
	}, nil
}

// AuthorityPubKey returns the mint authority public key.
func (sm *Solman) AuthorityPubKey() solana.PublicKey {
	return sm.authority.PublicKey()
}

// MintZenZEC builds and submits the mint_zenzec instruction. Account
// order follows the on-chain program: config PDA, mint, the
// recipient's associated token account (created on the fly if needed,
// paid by the authority), recipient, authority, then the three
// programs.
func (sm *Solman) MintZenZEC(ctx context.Context, recipient solana.PublicKey, amount uint64) (solana.Signature, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(recipient, sm.mint)
	if err != nil {
		logger.WithError(err).Error("failed to derive recipient token account")
		return solana.Signature{}, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(sm.configPDA).WRITE(),
		solana.Meta(sm.mint).WRITE(),
		solana.Meta(ata).WRITE(),
		solana.Meta(recipient),
		solana.Meta(sm.authority.PublicKey()).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	inst := solana.NewInstruction(sm.program, accounts, mintInstructionData(amount))

	recent, err := sm.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		logger.WithError(err).Error("failed to fetch recent blockhash")
		return solana.Signature{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		recent.Value.Blockhash,
		solana.TransactionPayer(sm.authority.PublicKey()),
	)
	if err != nil {
		logger.WithError(err).Error("failed to build mint transaction")
		return solana.Signature{}, err
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(sm.authority.PublicKey()) {
			return &sm.authority
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("failed to sign mint transaction")
		return solana.Signature{}, err
	}

	sig, err := sm.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		logger.WithError(err).WithFields(logger.Fields{
			"recipient": recipient.String(),
			"amount":    amount,
		}).Error("failed to submit mint transaction")
		return solana.Signature{}, err
	}

	logger.WithFields(logger.Fields{
		"sig":       sig.String(),
		"recipient": recipient.String(),
		"amount":    amount,
	}).Info("mint submitted")
	return sig, nil
}

func (sm *Solman) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatusResult, error) {
	out, err := sm.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		logger.WithError(err).Error("failed to fetch signature status")
		return nil, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return &SignatureStatusResult{Found: false}, nil
	}

	st := out.Value[0]
	res := &SignatureStatusResult{
		Found: true,
		Slot:  st.Slot,
	}
	if st.Err != nil {
		res.Failed = true
	}
	if st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		res.Finalized = true
	}
	return res, nil
}

// VerifyBurn looks a signature up on chain and proves it is a
// successful burn_for_btc call of our program, then pulls the payout
// request out of the emitted event.
func (sm *Solman) VerifyBurn(ctx context.Context, sig solana.Signature) (*BurnVerification, error) {
	maxVersion := uint64(0)
	res, err := sm.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		logger.WithError(err).WithField("sig", sig.String()).Error("failed to fetch burn transaction")
		return nil, err
	}
	if res == nil || res.Meta == nil {
		return nil, fmt.Errorf("transaction %s not found on chain", sig.String())
	}
	if res.Meta.Err != nil {
		return nil, fmt.Errorf("transaction %s failed on chain", sig.String())
	}

	parsedTx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, err
	}
	if !invokesProgram(parsedTx, sm.program) {
		return nil, fmt.Errorf("transaction %s does not call the bridge program", sig.String())
	}

	ev, err := ParseBurnEvent(res.Meta.LogMessages)
	if err != nil {
		return nil, err
	}

	bv := &BurnVerification{
		Signature:  sig.String(),
		Burner:     ev.User,
		Amount:     ev.Amount,
		BtcAddress: ev.BtcAddressHash,
		Encrypted:  ev.Encrypted,
		Slot:       res.Slot,
	}
	if res.BlockTime != nil {
		bv.BlockTime = int64(*res.BlockTime)
	}
	return bv, nil
}

func (sm *Solman) AuthorityBalance(ctx context.Context) (uint64, error) {
	out, err := sm.rpcClient.GetBalance(ctx, sm.authority.PublicKey(), rpc.CommitmentFinalized)
	if err != nil {
		logger.WithError(err).Error("failed to fetch authority balance")
		return 0, err
	}
	return out.Value, nil
}

func (sm *Solman) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := sm.rpcClient.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		logger.WithError(err).Error("failed to fetch current slot")
		return 0, err
	}
	return slot, nil
}

func invokesProgram(tx *solana.Transaction, program solana.PublicKey) bool {
	for _, inst := range tx.Message.Instructions {
		idx := int(inst.ProgramIDIndex)
		if idx < len(tx.Message.AccountKeys) && tx.Message.AccountKeys[idx].Equals(program) {
			return true
		}
	}
	return false
}

const programDataPrefix = "Program data: "

// ParseBurnEvent scans transaction logs for the BurnToBTCEvent. Anchor
// emits events as base64 "Program data:" log lines, 8 discriminator
// bytes followed by the borsh payload.
func ParseBurnEvent(logs []string) (*BurnToBTCEvent, error) {
	disc := burnEventDiscriminator()
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil || len(raw) < 8 {
			continue
		}
		if !bytes.Equal(raw[:8], disc[:]) {
			continue
		}
		var ev BurnToBTCEvent
		if err := bin.NewBorshDecoder(raw[8:]).Decode(&ev); err != nil {
			return nil, fmt.Errorf("malformed burn event: %w", err)
		}
		return &ev, nil
	}
	return nil, errors.New("no burn event in transaction logs")
}
