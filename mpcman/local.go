package mpcman

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/curve25519"
)

// LocalPrivacyEngine holds one x25519 private key standing in for the
// cluster's share set. Good for tests and single-operator runs; a
// remote engine would hand Decrypt over to the MPC computation.
type LocalPrivacyEngine struct {
	priv [32]byte
	pub  [32]byte
}

// If user provides a 32 byte private key, we can create an engine.
func NewLocalPrivacyEngine(privKey []byte) (*LocalPrivacyEngine, error) {
	if len(privKey) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	e := &LocalPrivacyEngine{}
	copy(e.priv[:], privKey)

	pub, err := curve25519.X25519(e.priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(e.pub[:], pub)
	return e, nil
}

// If user choose to randomly generate an engine.
func NewRandomLocalPrivacyEngine() (*LocalPrivacyEngine, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, err
	}
	return NewLocalPrivacyEngine(priv[:])
}

func (e *LocalPrivacyEngine) ClusterPubKey() [32]byte {
	return e.pub
}

func (e *LocalPrivacyEngine) EncryptAddress(addr string) (*Envelope, error) {
	return SealAddress(e.pub, addr)
}

func (e *LocalPrivacyEngine) DecryptAddress(env *Envelope) (string, error) {
	plain, err := e.open(env)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (e *LocalPrivacyEngine) EncryptPayoutBundle(b *PayoutBundle) (*Envelope, error) {
	return SealPayoutBundle(e.pub, b)
}

func (e *LocalPrivacyEngine) DecryptPayoutBundle(env *Envelope) (*PayoutBundle, error) {
	plain, err := e.open(env)
	if err != nil {
		return nil, err
	}
	var b PayoutBundle
	if err := json.Unmarshal(plain, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (e *LocalPrivacyEngine) open(env *Envelope) ([]byte, error) {
	aead, err := sharedAEAD(e.priv[:], env.EphemeralPub[:])
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, env.Nonce[:], env.Ciphertext, env.EphemeralPub[:])
	if err != nil {
		return nil, errors.New("envelope does not open under the cluster key")
	}
	return plain, nil
}
