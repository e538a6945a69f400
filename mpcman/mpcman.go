package mpcman

/*
Privacy layer of the redemption path. Users who do not want relayers
to see their BTC payout address encrypt it under the MPC cluster key;
the bundle around a private transfer carries the amount and chain pair
the same way. Client side this is plain x25519 ECDH with an ephemeral
key plus an AEAD, the cluster side runs inside the MPC computation.
*/

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const envelopeInfo = "zenz-bridge-envelope-v1"

// EncryptedAddressPrefix marks a stored recipient as a sealed envelope
// rather than a plain BTC address. The payout flow strips the prefix
// and opens the envelope before paying.
const EncryptedAddressPrefix = "enc1:"

// EncodeEncryptedAddress packs a sealed payout address into the string
// form stored in the transaction record.
func EncodeEncryptedAddress(env *Envelope) string {
	return EncryptedAddressPrefix + env.Encode()
}

// IsEncryptedAddress reports whether a stored recipient is sealed.
func IsEncryptedAddress(s string) bool {
	return strings.HasPrefix(s, EncryptedAddressPrefix)
}

// DecodeEncryptedAddress recovers the envelope from a stored recipient.
func DecodeEncryptedAddress(s string) (*Envelope, error) {
	if !IsEncryptedAddress(s) {
		return nil, errors.New("recipient is not an encrypted address")
	}
	return DecodeEnvelope(strings.TrimPrefix(s, EncryptedAddressPrefix))
}

// PayoutBundle is the private half of a bridge transfer.
type PayoutBundle struct {
	Amount      uint64           `json:"amount"`
	SourceChain string           `json:"source_chain"`
	DestChain   string           `json:"dest_chain"`
	Timestamp   int64            `json:"timestamp"`
	User        solana.PublicKey `json:"user_pubkey"`
}

// Envelope is a sealed message to the cluster: the sender's ephemeral
// public key, the AEAD nonce, and the ciphertext.
type Envelope struct {
	EphemeralPub [32]byte
	Nonce        [chacha20poly1305.NonceSizeX]byte
	Ciphertext   []byte
}

// Encode packs the envelope into the string form that travels through
// the burn instruction and the database.
func (e *Envelope) Encode() string {
	raw := make([]byte, 0, 32+chacha20poly1305.NonceSizeX+len(e.Ciphertext))
	raw = append(raw, e.EphemeralPub[:]...)
	raw = append(raw, e.Nonce[:]...)
	raw = append(raw, e.Ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeEnvelope(s string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if len(raw) < 32+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, errors.New("envelope too short")
	}
	var e Envelope
	copy(e.EphemeralPub[:], raw[:32])
	copy(e.Nonce[:], raw[32:32+chacha20poly1305.NonceSizeX])
	e.Ciphertext = raw[32+chacha20poly1305.NonceSizeX:]
	return &e, nil
}

// PrivacyEngine opens envelopes sealed to the cluster. Encryption
// is offered on the engine too so flows can roundtrip without
// carrying the cluster key around.
type PrivacyEngine interface {
	ClusterPubKey() [32]byte
	EncryptAddress(addr string) (*Envelope, error)
	DecryptAddress(env *Envelope) (string, error)
	EncryptPayoutBundle(b *PayoutBundle) (*Envelope, error)
	DecryptPayoutBundle(env *Envelope) (*PayoutBundle, error)
}

// SealAddress encrypts a BTC payout address to the cluster. This is
// what wallet frontends run before calling burn_for_btc.
func SealAddress(clusterPub [32]byte, addr string) (*Envelope, error) {
	return seal(clusterPub, []byte(addr))
}

// SealPayoutBundle encrypts the bundle to the cluster.
func SealPayoutBundle(clusterPub [32]byte, b *PayoutBundle) (*Envelope, error) {
	plain, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return seal(clusterPub, plain)
}

func seal(clusterPub [32]byte, plaintext []byte) (*Envelope, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, err
	}
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	aead, err := sharedAEAD(ephPriv[:], clusterPub[:])
	if err != nil {
		return nil, err
	}

	env := &Envelope{}
	copy(env.EphemeralPub[:], ephPub)
	if _, err := rand.Read(env.Nonce[:]); err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce[:], plaintext, env.EphemeralPub[:])
	return env, nil
}

// sharedAEAD derives the AEAD from an ECDH between ourPriv and
// theirPub. Both directions of the exchange land on the same key.
func sharedAEAD(ourPriv, theirPub []byte) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(ourPriv, theirPub)
	if err != nil {
		return nil, err
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, shared, nil, []byte(envelopeInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
